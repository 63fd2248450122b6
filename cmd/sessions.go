package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/kanoonai/kanoon/db"
	"github.com/kanoonai/kanoon/internal/config"
	"github.com/kanoonai/kanoon/internal/session"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage conversation sessions",
}

func init() {
	sessionsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List sessions",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), runSessionsList)
			},
		},
		&cobra.Command{
			Use:   "show <session-id>",
			Short: "Show a session's turns",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
					return runSessionsShow(ctx, store, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "new [title]",
			Short: "Create a session and make it current",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				title := "CLI session"
				if len(args) == 1 {
					title = args[0]
				}
				return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
					return runSessionsNew(ctx, store, title)
				})
			},
		},
		&cobra.Command{
			Use:   "use <session-id>",
			Short: "Make an existing session current",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
					return runSessionsUse(ctx, store, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "delete <session-id>",
			Short: "Delete a session and its turns",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withStore(cmd.Context(), func(ctx context.Context, store *session.Store) error {
					return runSessionsDelete(ctx, store, args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Forget the current session (keeps its data)",
			RunE: func(cmd *cobra.Command, args []string) error {
				baseDir, err := session.StateBaseDir()
				if err != nil {
					return err
				}
				if err := session.ClearCurrentSessionID(baseDir); err != nil {
					return err
				}
				fmt.Println("Current session cleared.")
				return nil
			},
		},
	)
	rootCmd.AddCommand(sessionsCmd)
}

// withStore connects to PostgreSQL for the duration of one session
// subcommand. Sessions commands need only the database, not the model
// stack, so they skip the full application setup.
func withStore(ctx context.Context, fn func(context.Context, *session.Store) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, session.NewStore(pool, newLogger()))
}

func runSessionsList(ctx context.Context, store *session.Store) error {
	threads, err := store.ListThreads(ctx, 100, 0)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(threads) == 0 {
		fmt.Println("No sessions yet. Create one with: kanoon sessions new")
		return nil
	}

	baseDir, err := session.StateBaseDir()
	if err != nil {
		return err
	}
	currentID, err := session.LoadCurrentSessionID(baseDir)
	if err != nil {
		return err
	}

	for _, thread := range threads {
		marker := "  "
		if currentID != nil && *currentID == thread.ID {
			marker = "* "
		}
		fmt.Printf("%s%s  %-30s  %d turns  %s\n",
			marker, thread.ID, thread.Title, thread.StepCount, formatTime(thread.UpdatedAt))
	}
	return nil
}

func runSessionsShow(ctx context.Context, store *session.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}

	thread, err := store.Thread(ctx, id)
	if err != nil {
		return fmt.Errorf("getting session: %w", err)
	}
	steps, err := store.Steps(ctx, id)
	if err != nil {
		return fmt.Errorf("getting turns: %w", err)
	}
	turns := session.ReconstructTurns(steps)

	fmt.Printf("Session: %s\n", thread.ID)
	fmt.Printf("Title:   %s\n", thread.Title)
	fmt.Printf("Created: %s\n", formatTime(thread.CreatedAt))
	fmt.Printf("Updated: %s\n", formatTime(thread.UpdatedAt))
	fmt.Printf("Turns:   %d\n", len(turns))
	fmt.Println()

	for _, turn := range turns {
		role := "You"
		if turn.Role == session.RoleAssistant {
			role = "Kanoon"
		}
		fmt.Printf("%s> %s\n\n", role, turn.Content)
	}
	return nil
}

func runSessionsNew(ctx context.Context, store *session.Store, title string) error {
	thread, err := store.CreateThread(ctx, title)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	baseDir, err := session.StateBaseDir()
	if err != nil {
		return err
	}
	if err := session.SaveCurrentSessionID(baseDir, thread.ID); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}

	fmt.Printf("Created session %s (now current)\n", thread.ID)
	return nil
}

func runSessionsUse(ctx context.Context, store *session.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}
	if _, err = store.Thread(ctx, id); err != nil {
		if errors.Is(err, session.ErrThreadNotFound) {
			return fmt.Errorf("session %s does not exist", id)
		}
		return fmt.Errorf("getting session: %w", err)
	}

	baseDir, err := session.StateBaseDir()
	if err != nil {
		return err
	}
	if err := session.SaveCurrentSessionID(baseDir, id); err != nil {
		return fmt.Errorf("saving session state: %w", err)
	}

	fmt.Printf("Current session is now %s\n", id)
	return nil
}

func runSessionsDelete(ctx context.Context, store *session.Store, rawID string) error {
	id, err := uuid.Parse(rawID)
	if err != nil {
		return fmt.Errorf("invalid session ID: %s", rawID)
	}
	if err = store.DeleteThread(ctx, id); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	// Forget the state file if it pointed at the deleted session.
	baseDir, err := session.StateBaseDir()
	if err != nil {
		return err
	}
	currentID, err := session.LoadCurrentSessionID(baseDir)
	if err == nil && currentID != nil && *currentID == id {
		if clearErr := session.ClearCurrentSessionID(baseDir); clearErr != nil {
			return clearErr
		}
	}

	fmt.Printf("Deleted session %s\n", id)
	return nil
}

// formatTime renders a timestamp relative to now for recent times.
func formatTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%d minutes ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02 15:04")
	}
}
