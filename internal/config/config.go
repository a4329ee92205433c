package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// Global singleton kept for packages that cannot take injection yet
var globalConfig *Config

// Config holds all environment backed configuration for houzel-server.
type Config struct {
	// HTTP Server
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9091"`
	DatabaseURL string `env:"DATABASE_URL,notEmpty"`

	// Model provider
	OpenAIAPIKey  string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`
	ChatModel     string `env:"CHAT_MODEL" envDefault:"gpt-4o"`

	// Scoring compiler subprocess
	CompilerPythonBin string        `env:"COMPILER_PYTHON_BIN" envDefault:"/usr/bin/python3"`
	CompilerBaseDir   string        `env:"COMPILER_BASE_DIR" envDefault:"."`
	CompilerTimeout   time.Duration `env:"COMPILER_TIMEOUT" envDefault:"20s"`

	// Image storage
	ImageStorageDir   string        `env:"IMAGE_STORAGE_DIR" envDefault:"storage/chat_images"`
	ImageMaxBytes     int64         `env:"IMAGE_MAX_BYTES" envDefault:"10485760"`
	ImageFetchTimeout time.Duration `env:"IMAGE_FETCH_TIMEOUT" envDefault:"10s"`

	// Title derivation
	TitleWatchInterval time.Duration `env:"TITLE_WATCH_INTERVAL" envDefault:"500ms"`
	TitleWatchCeiling  time.Duration `env:"TITLE_WATCH_CEILING" envDefault:"30s"`
	TitleSweepSchedule string        `env:"TITLE_SWEEP_SCHEDULE" envDefault:"*/5 * * * *"`
	TitleSweepEnabled  bool          `env:"TITLE_SWEEP_ENABLED" envDefault:"true"`

	// Observability / Logging
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`
	OTLPEndpoint     string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPHeaders      string        `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	ServiceName      string        `env:"SERVICE_NAME" envDefault:"houzel-server"`
	ServiceNamespace string        `env:"SERVICE_NAMESPACE" envDefault:"houzel"`
	Environment      string        `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat        string        `env:"LOG_FORMAT" envDefault:"console"`

	// Features
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`
	TestingMode bool `env:"TESTING_MODE" envDefault:"false"`

	// Internal
	EnvReloadedAt time.Time
}

// Load parses environment variables into Config and performs minimal validation.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ChatModel = strings.TrimSpace(cfg.ChatModel)
	if cfg.ChatModel == "" {
		return nil, fmt.Errorf("CHAT_MODEL must not be blank")
	}

	if cfg.CompilerTimeout <= 0 {
		return nil, fmt.Errorf("COMPILER_TIMEOUT must be positive, got %s", cfg.CompilerTimeout)
	}
	if cfg.TitleWatchInterval <= 0 || cfg.TitleWatchCeiling <= 0 {
		return nil, fmt.Errorf("title watch interval and ceiling must be positive")
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.EnvReloadedAt = time.Now()

	globalConfig = cfg

	return cfg, nil
}

// OfflineMode reports whether model calls should use deterministic local
// output instead of the remote provider.
func (c *Config) OfflineMode() bool {
	return c.TestingMode || strings.TrimSpace(c.OpenAIAPIKey) == ""
}

// GetGlobal returns the global config instance for backwards compatibility.
// Deprecated: Use dependency injection with Load() instead.
func GetGlobal() *Config {
	return globalConfig
}

var Version = "dev"

func IsDev() bool {
	return strings.HasPrefix(Version, "dev")
}
