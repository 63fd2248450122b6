package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kanoonai/kanoon/internal/app"
	"github.com/kanoonai/kanoon/internal/config"
	"github.com/kanoonai/kanoon/internal/knowledge"
)

var ingestCollection string

var ingestCmd = &cobra.Command{
	Use:   "ingest <passages.json>",
	Short: "Embed and index legal passages into a collection",
	Long: `Ingest reads a JSON array of passages, embeds each passage's text,
and inserts them into the pgvector passages table.

Each passage has a "text" field plus optional source metadata:
"act", "section_num", "section_title", "subsection_num".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestCollection, "collection", knowledge.DefaultCollection, "target collection")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if cfg.VectorBackend != config.VectorBackendPgvector {
		return fmt.Errorf("ingest writes to the pgvector backend; set vector_backend=%s (current: %s)",
			config.VectorBackendPgvector, cfg.VectorBackend)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading passages file: %w", err)
	}
	var passages []knowledge.Passage
	if err := json.Unmarshal(data, &passages); err != nil {
		return fmt.Errorf("parsing passages file: %w", err)
	}
	if len(passages) == 0 {
		return fmt.Errorf("no passages in %s", path)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	inserted, err := a.Indexer.Index(ctx, ingestCollection, passages)
	if err != nil {
		return fmt.Errorf("indexing passages (%d of %d inserted): %w", inserted, len(passages), err)
	}

	fmt.Printf("Indexed %d passages into %s\n", inserted, ingestCollection)
	return nil
}
