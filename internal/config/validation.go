package config

import (
	"fmt"
	"strings"
)

// validSSLModes are the PostgreSQL SSL modes pgx accepts.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks configuration values common to all commands.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidModelName)
	}

	if c.TopK < 1 || c.TopK > MaxTopK {
		return fmt.Errorf("%w: top_k %d out of range [1, %d]", ErrInvalidTopK, c.TopK, MaxTopK)
	}

	switch c.VectorBackend {
	case VectorBackendQdrant:
		if strings.TrimSpace(c.QdrantHost) == "" {
			return fmt.Errorf("%w: qdrant_host must not be empty", ErrInvalidQdrantHost)
		}
		if c.QdrantPort < 1 || c.QdrantPort > 65535 {
			return fmt.Errorf("%w: qdrant_port %d out of range", ErrInvalidQdrantPort, c.QdrantPort)
		}
	case VectorBackendPgvector:
		// Uses the PostgreSQL settings validated below.
	default:
		return fmt.Errorf("%w: %q (want %q or %q)",
			ErrInvalidVectorBackend, c.VectorBackend, VectorBackendQdrant, VectorBackendPgvector)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: postgres_port %d out of range", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_dbname must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	return nil
}

// ValidateServe performs the checks required to run the HTTP server,
// which needs a working model on top of the base validation.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: set GEMINI_API_KEY or gemini_api_key", ErrMissingAPIKey)
	}
	return nil
}
