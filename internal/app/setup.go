package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/kanoonai/kanoon/db"
	"github.com/kanoonai/kanoon/internal/audio"
	"github.com/kanoonai/kanoon/internal/auth"
	"github.com/kanoonai/kanoon/internal/chat"
	"github.com/kanoonai/kanoon/internal/config"
	"github.com/kanoonai/kanoon/internal/knowledge"
	"github.com/kanoonai/kanoon/internal/log"
	"github.com/kanoonai/kanoon/internal/observability"
	"github.com/kanoonai/kanoon/internal/session"
)

// Setup creates and initializes the application. On error, everything
// already initialized is released before returning.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, config.ErrConfigNil
	}
	if logger == nil {
		logger = log.NewNop()
	}

	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	if cfg.TraceEnabled {
		shutdown, err := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.OTLPAgentHost,
			Environment: cfg.Environment,
			ServiceName: cfg.ServiceName,
		})
		if err != nil {
			return nil, fmt.Errorf("setting up tracing: %w", err)
		}
		a.onClose(func() error {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return shutdown(shutdownCtx)
		})
	}

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool
	a.onClose(func() error {
		pool.Close()
		return nil
	})

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	a.Genkit = g
	logger.Info("initialized genkit", "model", cfg.ModelName)

	a.Embedder = googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if a.Embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	searcher, err := provideSearcher(a, cfg)
	if err != nil {
		return nil, err
	}
	a.Searcher = searcher
	a.Router = knowledge.NewRouter()

	a.Store = session.NewStore(pool, logger)
	a.Lifecycle = session.NewLifecycle(a.Store, logger)
	a.Auth = auth.NewService(pool, logger)

	pipeline, err := chat.New(chat.Config{
		Genkit:      g,
		Assembler:   chat.NewAssembler(searcher, cfg.TopK, logger),
		Router:      a.Router,
		Sessions:    a.Lifecycle,
		Logger:      logger,
		ModelName:   cfg.ModelName,
		Turns:       a.Store,
		RateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	})
	if err != nil {
		return nil, fmt.Errorf("creating turn pipeline: %w", err)
	}
	a.Pipeline = pipeline

	transcriber, err := provideTranscriber(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Audio = audio.NewPipeline(transcriber, logger)
	a.Indexer = knowledge.NewIndexer(pool, a.Embedder, logger)

	return a, nil
}

// provideDBPool runs migrations and opens the connection pool.
// pgvector types are registered on every pooled connection so the
// pgvector search backend can bind vectors natively.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// provideSearcher selects the vector backend from configuration.
func provideSearcher(a *App, cfg *config.Config) (knowledge.Searcher, error) {
	switch cfg.VectorBackend {
	case config.VectorBackendQdrant:
		qs, err := knowledge.NewQdrantSearcher(knowledge.QdrantConfig{
			Host:   cfg.QdrantHost,
			Port:   cfg.QdrantPort,
			APIKey: cfg.QdrantAPIKey,
			UseTLS: cfg.QdrantUseTLS,
		}, a.Embedder, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("creating qdrant searcher: %w", err)
		}
		a.onClose(qs.Close)
		return qs, nil
	case config.VectorBackendPgvector:
		return knowledge.NewPgvectorSearcher(a.Pool, a.Embedder, a.Logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidVectorBackend, cfg.VectorBackend)
	}
}

// provideTranscriber creates the Gemini client used for audio
// transcription. This is a separate client from Genkit because the
// transcription hop sends inline audio bytes directly.
func provideTranscriber(ctx context.Context, cfg *config.Config) (audio.Transcriber, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	model := cfg.TranscribeModel
	if model == "" {
		model = config.DefaultTranscribeModel
	}
	return audio.NewGeminiTranscriber(client, model), nil
}
