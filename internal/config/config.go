package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables.
// It is loaded once at startup and read-only afterwards.
type Config struct {
	ListenAddr  string `env:"CRITIQUE_LISTEN_ADDR"  envDefault:":8090"`
	LogLevel    string `env:"CRITIQUE_LOG_LEVEL"    envDefault:"info"`
	JournalPath string `env:"CRITIQUE_JOURNAL_PATH" envDefault:"critique.db"`

	// Result delivery. ServiceKey is the shared secret the main service
	// expects in every callback payload.
	MainServiceURL  string        `env:"CRITIQUE_MAIN_SERVICE_URL" envDefault:"http://localhost:8080"`
	ServiceKey      string        `env:"CRITIQUE_SERVICE_KEY"      envDefault:"a1b2c3d4e5f67890"`
	DeliveryTimeout time.Duration `env:"CRITIQUE_DELIVERY_TIMEOUT" envDefault:"30s"`

	// Analysis simulation window and success probability.
	MinDelay    time.Duration `env:"CRITIQUE_ANALYSIS_MIN_DELAY"    envDefault:"5s"`
	MaxDelay    time.Duration `env:"CRITIQUE_ANALYSIS_MAX_DELAY"    envDefault:"10s"`
	SuccessRate float64       `env:"CRITIQUE_ANALYSIS_SUCCESS_RATE" envDefault:"0.8"`

	// DrainTimeout bounds how long shutdown waits for in-flight jobs.
	DrainTimeout time.Duration `env:"CRITIQUE_DRAIN_TIMEOUT" envDefault:"30s"`
}

// Load reads configuration from the environment, consulting a .env file when
// one exists, and applies guardrails to the parsed values.
func Load() (Config, error) {
	// A missing .env file is the normal case outside development.
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return Config{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	cfg.Sanitize()
	return cfg, nil
}

// Sanitize applies guardrails to values loaded from the environment. Empty or
// out-of-range settings fall back to their defaults rather than failing
// startup.
func (c *Config) Sanitize() {
	if strings.TrimSpace(c.ListenAddr) == "" {
		c.ListenAddr = ":8090"
	}
	if strings.TrimSpace(c.JournalPath) == "" {
		c.JournalPath = "critique.db"
	}
	if strings.TrimSpace(c.MainServiceURL) == "" {
		c.MainServiceURL = "http://localhost:8080"
	}
	if strings.TrimSpace(c.ServiceKey) == "" {
		c.ServiceKey = "a1b2c3d4e5f67890"
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 30 * time.Second
	}
	if c.MinDelay < 0 {
		c.MinDelay = 0
	}
	if c.MaxDelay < 0 {
		c.MaxDelay = 0
	}
	if c.MaxDelay < c.MinDelay {
		c.MinDelay, c.MaxDelay = c.MaxDelay, c.MinDelay
	}
	if c.SuccessRate <= 0 || c.SuccessRate > 1 {
		c.SuccessRate = 0.8
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = 30 * time.Second
	}
}

// Level returns the slog level for the configured LogLevel string.
func (c Config) Level() slog.Level {
	return parseLogLevel(c.LogLevel)
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
