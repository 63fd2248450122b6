// Package app assembles the application: configuration, database,
// Genkit, the retrieval backend, and the turn pipelines. Setup returns
// a fully wired App; Close releases everything in reverse order.
package app

import (
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanoonai/kanoon/internal/audio"
	"github.com/kanoonai/kanoon/internal/auth"
	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/config"
	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

// App holds all initialized application components.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Pool     *pgxpool.Pool
	Embedder ai.Embedder

	Searcher  knowledge.Searcher
	Indexer   *knowledge.Indexer
	Router    *knowledge.Router
	Store     *session.Store
	Lifecycle *session.Lifecycle
	Auth      *auth.Service
	Pipeline  *chat.Pipeline
	Audio     *audio.Pipeline

	// Cleanup hooks, executed in reverse registration order.
	cleanups []func() error
}

// onClose registers a cleanup hook.
func (a *App) onClose(fn func() error) {
	a.cleanups = append(a.cleanups, fn)
}

// Close releases all resources. Safe to call after a partial Setup.
func (a *App) Close() error {
	var errs []error
	for i := len(a.cleanups) - 1; i >= 0; i-- {
		if err := a.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.cleanups = nil
	return errors.Join(errs...)
}
