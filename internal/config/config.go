// Package config provides application configuration with multi-source
// priority.
//
// Sources (highest to lowest):
//  1. Environment variables (WAYFARER_ prefix)
//  2. Config file (~/.wayfarer/config.yaml or ./config.yaml)
//  3. Defaults
//
// Sensitive fields (the Postgres password) are masked in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors returned by Validate. Check with errors.Is.
var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidHistoryWindow indicates the history window is out of range.
	ErrInvalidHistoryWindow = errors.New("invalid history window")

	// ErrInvalidTopK indicates the retrieval top-k is out of range.
	ErrInvalidTopK = errors.New("invalid retrieval top k")

	// ErrInvalidRunTimeout indicates the pipeline run timeout is invalid.
	ErrInvalidRunTimeout = errors.New("invalid run timeout")
)

// History window bounds. The orchestrator loads at most HistoryWindow prior
// messages per turn.
const (
	DefaultHistoryWindow = 8
	MaxHistoryWindow     = 100
)

// Retrieval defaults.
const (
	DefaultRetrievalTopK = 5
	MaxRetrievalTopK     = 50
)

// DefaultRunTimeout bounds one full pipeline run, covering both model calls
// and any tool round-trip.
const DefaultRunTimeout = 60 * time.Second

// Response format strategies for the system prompt.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// SearchConfig configures the web_search_call tool (SearXNG-compatible
// JSON API).
type SearchConfig struct {
	BaseURL    string `mapstructure:"base_url" json:"base_url"`
	MaxResults int    `mapstructure:"max_results" json:"max_results"`
}

// WeatherConfig configures the get_weather tool (Open-Meteo compatible).
type WeatherConfig struct {
	GeocodeURL  string `mapstructure:"geocode_url" json:"geocode_url"`
	ForecastURL string `mapstructure:"forecast_url" json:"forecast_url"`
}

// CustomAPIConfig configures the custom_api_call tool.
type CustomAPIConfig struct {
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// Config stores the application configuration.
type Config struct {
	// Model configuration
	ModelName     string `mapstructure:"model_name" json:"model_name"`
	EmbedderModel string `mapstructure:"embedder_model" json:"embedder_model"`

	// Pipeline configuration
	HistoryWindow  int           `mapstructure:"history_window" json:"history_window"`
	RetrievalTopK  int           `mapstructure:"retrieval_top_k" json:"retrieval_top_k"`
	ResponseFormat string        `mapstructure:"response_format" json:"response_format"`
	RunTimeout     time.Duration `mapstructure:"run_timeout" json:"run_timeout"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Tool configuration
	Search    SearchConfig    `mapstructure:"search" json:"search"`
	Weather   WeatherConfig   `mapstructure:"weather" json:"weather"`
	CustomAPI CustomAPIConfig `mapstructure:"custom_api" json:"custom_api"`

	// Server configuration
	ListenAddr string `mapstructure:"listen_addr" json:"listen_addr"`
	RateBurst  int    `mapstructure:"rate_burst" json:"rate_burst"`
}

// Load loads configuration with priority env > file > defaults.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".wayfarer")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	v.SetEnvPrefix("WAYFARER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No config file is fine; env + defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers default values for a quick start.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "googleai/gemini-2.5-flash")
	v.SetDefault("embedder_model", "text-embedding-004")

	v.SetDefault("history_window", DefaultHistoryWindow)
	v.SetDefault("retrieval_top_k", DefaultRetrievalTopK)
	v.SetDefault("response_format", FormatMarkdown)
	v.SetDefault("run_timeout", DefaultRunTimeout)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "wayfarer")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "wayfarer")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("search.base_url", "http://localhost:8888")
	v.SetDefault("search.max_results", 5)
	v.SetDefault("weather.geocode_url", "https://geocoding-api.open-meteo.com/v1/search")
	v.SetDefault("weather.forecast_url", "https://api.open-meteo.com/v1/forecast")
	v.SetDefault("custom_api.endpoint", "")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("rate_burst", 60)
}

// ConnString builds a pgx-compatible PostgreSQL URL.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPassword,
		c.PostgresHost, c.PostgresPort,
		c.PostgresDBName, c.PostgresSSLMode)
}

// MarshalJSON masks sensitive fields. When adding new secrets to Config,
// update this method.
func (c *Config) MarshalJSON() ([]byte, error) {
	type alias Config // drop methods to avoid recursion
	masked := alias(*c)
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "********"
	}
	return json.Marshal(masked)
}
