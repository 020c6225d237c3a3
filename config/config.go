package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the daemon's environment-tunable settings.
type Config struct {
	// MaxCascadeDepth bounds every causal event chain. Zero disables
	// the guard.
	MaxCascadeDepth int `env:"KSI_MAX_CASCADE_DEPTH" envDefault:"100"`

	// ContextTTL is how long stored lineage context references stay
	// resolvable.
	ContextTTL time.Duration `env:"KSI_CONTEXT_TTL" envDefault:"1h"`

	// HistoryCapacity bounds each orchestration's event history ring.
	HistoryCapacity int `env:"KSI_HISTORY_CAPACITY" envDefault:"100"`

	// CleanupDelay is how long terminal orchestrations keep their
	// hierarchy and history bookkeeping.
	CleanupDelay time.Duration `env:"KSI_CLEANUP_DELAY" envDefault:"30s"`

	// RetentionWindow is how long terminal orchestrations stay
	// queryable at all.
	RetentionWindow time.Duration `env:"KSI_RETENTION_WINDOW" envDefault:"1h"`

	// IdleTimeout escalates orchestrations idle past this bound. Zero
	// disables the check.
	IdleTimeout time.Duration `env:"KSI_IDLE_TIMEOUT" envDefault:"0"`

	// CompletionTimeout bounds one completion backend call.
	CompletionTimeout time.Duration `env:"KSI_COMPLETION_TIMEOUT" envDefault:"5m"`

	// TransformerDir, when set, is loaded as system-scope transformer
	// definitions at daemon startup.
	TransformerDir string `env:"KSI_TRANSFORMER_DIR"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"KSI_LOG_LEVEL" envDefault:"info"`

	// LogFormat is json or text.
	LogFormat string `env:"KSI_LOG_FORMAT" envDefault:"json"`
}

// Default returns the configuration the daemon runs with when the
// environment sets nothing.
func Default() Config {
	return Config{
		MaxCascadeDepth:   100,
		ContextTTL:        time.Hour,
		HistoryCapacity:   100,
		CleanupDelay:      30 * time.Second,
		RetentionWindow:   time.Hour,
		CompletionTimeout: 5 * time.Minute,
		LogLevel:          "info",
		LogFormat:         "json",
	}
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges and enumerations.
func (c Config) Validate() error {
	if c.MaxCascadeDepth < 0 {
		return fmt.Errorf("config: max cascade depth must not be negative, got %d", c.MaxCascadeDepth)
	}
	if c.ContextTTL <= 0 {
		return fmt.Errorf("config: context ttl must be positive, got %s", c.ContextTTL)
	}
	if c.HistoryCapacity < 1 {
		return fmt.Errorf("config: history capacity must be at least 1, got %d", c.HistoryCapacity)
	}
	if c.CleanupDelay < 0 || c.RetentionWindow < 0 || c.IdleTimeout < 0 {
		return fmt.Errorf("config: lifecycle durations must not be negative")
	}
	if c.CompletionTimeout < 0 {
		return fmt.Errorf("config: completion timeout must not be negative, got %s", c.CompletionTimeout)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	return nil
}
