package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kanoonai/kanoon/internal/app"
	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/config"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

var (
	askProfile    string
	askNewSession bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a one-shot question in the current session",
	Long: `Ask sends one question through the chat pipeline and streams the
answer to stdout. The turn is appended to the current session, so a
follow-up "kanoon ask" keeps the conversation context. Interrupting
with Ctrl-C keeps the partial answer in the session.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsk(args)
	},
}

func init() {
	askCmd.Flags().StringVar(&askProfile, "profile", "", "legal corpus profile (e.g. Lawyer, Constitution)")
	askCmd.Flags().BoolVar(&askNewSession, "new", false, "start a new session instead of continuing the current one")
	rootCmd.AddCommand(askCmd)
}

func runAsk(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		return errors.New("question must not be empty")
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

	threadID, err := currentThreadID(ctx, a.Store, logger, askNewSession)
	if err != nil {
		return err
	}

	conv := a.Lifecycle.Resume(ctx, threadID)
	if askProfile != "" {
		conv.SetProfile(askProfile)
	}

	result, err := a.Pipeline.Run(ctx, conv, question, nil, func(_ context.Context, text string) error {
		fmt.Print(text)
		return nil
	})
	if err != nil {
		return fmt.Errorf("running turn: %w", err)
	}

	fmt.Println()
	if result.State == chat.StateCancelled {
		fmt.Println("(interrupted, partial answer kept in session)")
	}
	return nil
}

// currentThreadID resolves the session to converse in: the one in the
// state file when it still exists, otherwise a fresh thread which
// becomes the new current session.
func currentThreadID(ctx context.Context, store *session.Store, logger log.Logger, forceNew bool) (uuid.UUID, error) {
	baseDir, err := session.StateBaseDir()
	if err != nil {
		return uuid.Nil, err
	}

	if !forceNew {
		currentID, err := session.LoadCurrentSessionID(baseDir)
		if err != nil {
			return uuid.Nil, fmt.Errorf("loading session state: %w", err)
		}
		if currentID != nil {
			if _, err = store.Thread(ctx, *currentID); err == nil {
				return *currentID, nil
			}
			if !errors.Is(err, session.ErrThreadNotFound) {
				return uuid.Nil, fmt.Errorf("validating session: %w", err)
			}
		}
	}

	thread, err := store.CreateThread(ctx, "CLI session")
	if err != nil {
		return uuid.Nil, fmt.Errorf("creating session: %w", err)
	}
	if err := session.SaveCurrentSessionID(baseDir, thread.ID); err != nil {
		logger.Warn("failed to save session state", "error", err)
	}
	return thread.ID, nil
}
