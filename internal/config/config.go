// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (KANOON_* prefix, runtime override)
//  2. Config file (~/.kanoon/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model selection, embedder, transcription model
//   - Vector store: backend selection (qdrant or pgvector) and connection
//   - Storage: PostgreSQL connection (see storage.go)
//   - Server: listen address, CORS origins, rate limiting
//   - Observability: OTLP trace export
//
// Error handling uses sentinel errors so callers can match with errors.Is.
// Sensitive fields (passwords, API keys) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTopK indicates the retrieval top-K value is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top_k")

	// ErrInvalidVectorBackend indicates the vector store backend is not supported.
	ErrInvalidVectorBackend = errors.New("invalid vector backend")

	// ErrInvalidQdrantHost indicates the Qdrant host is invalid.
	ErrInvalidQdrantHost = errors.New("invalid Qdrant host")

	// ErrInvalidQdrantPort indicates the Qdrant port is out of range.
	ErrInvalidQdrantPort = errors.New("invalid Qdrant port")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")
)

// Vector store backend identifiers used in Config.VectorBackend.
const (
	VectorBackendQdrant   = "qdrant"
	VectorBackendPgvector = "pgvector"
)

const (
	// DefaultModelName is the provider-qualified default chat model.
	DefaultModelName = "googleai/gemini-2.5-flash"

	// DefaultEmbedderModel is the default embedder model.
	DefaultEmbedderModel = "gemini-embedding-001"

	// DefaultTranscribeModel is the model used for audio transcription.
	DefaultTranscribeModel = "gemini-2.5-flash"

	// DefaultTopK is the number of passages retrieved per turn.
	DefaultTopK = 3

	// MaxTopK bounds retrieval size so prompts stay a reasonable length.
	MaxTopK = 10
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// AI configuration
	ModelName       string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel   string `mapstructure:"embedder_model" json:"embedder_model"`
	TranscribeModel string `mapstructure:"transcribe_model" json:"transcribe_model"`
	GeminiAPIKey    string `mapstructure:"gemini_api_key" json:"gemini_api_key"`

	// Retrieval configuration
	TopK          int    `mapstructure:"top_k" json:"top_k"`
	VectorBackend string `mapstructure:"vector_backend" json:"vector_backend"`

	// Qdrant connection (used when vector_backend = "qdrant")
	QdrantHost   string `mapstructure:"qdrant_host" json:"qdrant_host"`
	QdrantPort   int    `mapstructure:"qdrant_port" json:"qdrant_port"`
	QdrantAPIKey string `mapstructure:"qdrant_api_key" json:"qdrant_api_key"`
	QdrantUseTLS bool   `mapstructure:"qdrant_use_tls" json:"qdrant_use_tls"`

	// PostgreSQL connection (accounts, threads, and the pgvector backend)
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_dbname" json:"postgres_dbname"`
	PostgresSSLMode  string `mapstructure:"postgres_sslmode" json:"postgres_sslmode"`

	// HTTP server
	ListenAddr     string  `mapstructure:"listen_addr" json:"listen_addr"`
	AllowedOrigins string  `mapstructure:"allowed_origins" json:"allowed_origins"`
	RateLimit      float64 `mapstructure:"rate_limit" json:"rate_limit"`
	RateBurst      int     `mapstructure:"rate_burst" json:"rate_burst"`
	TrustProxy     bool    `mapstructure:"trust_proxy" json:"trust_proxy"`

	// Observability
	TraceEnabled  bool   `mapstructure:"trace_enabled" json:"trace_enabled"`
	OTLPAgentHost string `mapstructure:"otlp_agent_host" json:"otlp_agent_host"`
	ServiceName   string `mapstructure:"service_name" json:"service_name"`
	Environment   string `mapstructure:"environment" json:"environment"`
}

// MarshalJSON masks sensitive fields when the config is serialized.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	if masked.QdrantAPIKey != "" {
		masked.QdrantAPIKey = "***"
	}
	if masked.GeminiAPIKey != "" {
		masked.GeminiAPIKey = "***"
	}
	return json.Marshal(masked)
}

// configDirName is the directory under $HOME holding the config file.
const configDirName = ".kanoon"

// Load reads configuration from file, environment, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("KANOON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, configDirName))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// GEMINI_API_KEY is the conventional un-prefixed variable; honor it
	// when the prefixed form is not set.
	if cfg.GeminiAPIKey == "" {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("embedder_model", DefaultEmbedderModel)
	v.SetDefault("transcribe_model", DefaultTranscribeModel)
	v.SetDefault("top_k", DefaultTopK)
	v.SetDefault("vector_backend", VectorBackendQdrant)

	v.SetDefault("qdrant_host", "localhost")
	v.SetDefault("qdrant_port", 6334)
	v.SetDefault("qdrant_use_tls", false)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "kanoon")
	v.SetDefault("postgres_dbname", "kanoon")
	v.SetDefault("postgres_sslmode", "disable")

	v.SetDefault("listen_addr", "127.0.0.1:3500")
	v.SetDefault("rate_limit", 10.0)
	v.SetDefault("rate_burst", 30)
	v.SetDefault("trust_proxy", false)

	v.SetDefault("trace_enabled", false)
	v.SetDefault("otlp_agent_host", "localhost:4318")
	v.SetDefault("service_name", "kanoon")
	v.SetDefault("environment", "dev")
}

// Origins returns the parsed allowed CORS origins.
// An empty configuration disables CORS headers entirely.
func (c *Config) Origins() []string {
	if c.AllowedOrigins == "" {
		return nil
	}
	parts := strings.Split(c.AllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}
