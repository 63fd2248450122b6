// Package api exposes the assistant over HTTP: session management,
// synchronous and streaming chat turns, voice capture, login, and
// health probes. Handlers are thin; all turn semantics live in the
// chat and audio packages.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kanoonai/kanoon/internal/audio"
	"github.com/kanoonai/kanoon/internal/auth"
	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/session"
)

// Server timeouts. WriteTimeout is generous because chat turns stream
// for as long as the model generates.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 5 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 15 * time.Second
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    log.Logger
	Lifecycle *session.Lifecycle // Required
	Store     *session.Store     // Required
	Router    *knowledge.Router  // Required

	ChatFlow     *chat.Flow      // Optional: nil disables chat endpoints
	ChatPipeline *chat.Pipeline  // Optional: nil disables voice turns
	Audio        *audio.Pipeline // Optional: nil disables audio endpoints
	Auth         *auth.Service   // Optional: nil disables login
	Pool         *pgxpool.Pool   // Optional: nil disables db ping in /ready

	CORSOrigins []string
	TrustProxy  bool
	RateBurst   int // 0 = default 60
}

// Server is the JSON API HTTP server.
type Server struct {
	mux    *http.ServeMux
	logger log.Logger
}

// NewServer creates the API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Lifecycle == nil {
		return nil, errors.New("session lifecycle is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("knowledge router is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mux := http.NewServeMux()

	sh := &sessionHandler{lifecycle: cfg.Lifecycle, store: cfg.Store, logger: logger}
	mux.HandleFunc("POST /api/v1/sessions", sh.create)
	mux.HandleFunc("GET /api/v1/sessions", sh.list)
	mux.HandleFunc("GET /api/v1/sessions/{id}", sh.get)
	mux.HandleFunc("POST /api/v1/sessions/{id}/resume", sh.resume)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", sh.delete)

	ph := &profilesHandler{router: cfg.Router, logger: logger}
	mux.HandleFunc("GET /api/v1/profiles", ph.list)

	ch := &chatHandler{flow: cfg.ChatFlow, logger: logger}
	ch.registerRoutes(mux)

	if cfg.Audio != nil && cfg.ChatPipeline != nil {
		ah := &audioHandler{
			pipeline:  cfg.Audio,
			chat:      cfg.ChatPipeline,
			lifecycle: cfg.Lifecycle,
			logger:    logger,
		}
		mux.HandleFunc("POST /api/v1/sessions/{id}/audio/begin", ah.begin)
		mux.HandleFunc("POST /api/v1/sessions/{id}/audio/chunk", ah.chunk)
		mux.HandleFunc("POST /api/v1/sessions/{id}/audio/end", ah.end)
	}

	if cfg.Auth != nil {
		lh := &loginHandler{auth: cfg.Auth, logger: logger}
		mux.HandleFunc("POST /api/v1/login", lh.login)
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   recovery -> logging -> CORS -> rate limit -> routes
	// CORS runs before the rate limiter so preflight OPTIONS carries
	// proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health(logger))
	topMux.HandleFunc("GET /ready", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux, logger: logger}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
