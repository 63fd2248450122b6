// Package cmd provides the kanoon CLI commands.
//
// Commands:
//   - serve: HTTP API server with SSE streaming chat
//   - ask: one-shot question against the current session
//   - sessions: manage conversation sessions
//   - ingest: embed and index legal passages into a collection
//   - version: show version and configuration
//
// All blocking commands install signal handlers and shut down via
// context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kanoonai/kanoon/internal/log"
)

var (
	verbose bool
	jsonLog bool
)

var rootCmd = &cobra.Command{
	Use:   "kanoon",
	Short: "Kanoon - Nepali legal assistant",
	Long: `Kanoon is a retrieval-augmented assistant for Nepali law.

It answers questions in Nepali, grounding each answer in retrieved
provisions of the selected legal corpus and citing its sources.

Run "kanoon ask" for a one-shot question, or "kanoon serve" to start
the HTTP API.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "write logs as JSON")
}

// newLogger builds the process logger from the global flags and
// installs it as the slog default.
func newLogger() log.Logger {
	level := slog.LevelInfo
	if verbose || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: jsonLog})
	slog.SetDefault(logger)
	return logger
}
