package config

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for values that would fail at runtime.
// It returns the first violation found, wrapped around the matching
// sentinel error.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return fmt.Errorf("%w: model_name must not be empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbedderModel) == "" {
		return fmt.Errorf("%w: embedder_model must not be empty", ErrInvalidEmbedderModel)
	}

	if strings.TrimSpace(c.PostgresHost) == "" {
		return fmt.Errorf("%w: postgres_host must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if strings.TrimSpace(c.PostgresDBName) == "" {
		return fmt.Errorf("%w: postgres_db_name must not be empty", ErrInvalidPostgresDBName)
	}

	if c.HistoryWindow < 1 || c.HistoryWindow > MaxHistoryWindow {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidHistoryWindow, c.HistoryWindow, MaxHistoryWindow)
	}
	if c.RetrievalTopK < 1 || c.RetrievalTopK > MaxRetrievalTopK {
		return fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidTopK, c.RetrievalTopK, MaxRetrievalTopK)
	}
	if c.RunTimeout <= 0 {
		return fmt.Errorf("%w: %s (must be positive)", ErrInvalidRunTimeout, c.RunTimeout)
	}

	switch c.ResponseFormat {
	case FormatMarkdown, FormatJSON:
	default:
		return fmt.Errorf("invalid response_format %q (must be %q or %q)",
			c.ResponseFormat, FormatMarkdown, FormatJSON)
	}

	return nil
}
