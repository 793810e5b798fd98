package infra

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger constructs a zerolog.Logger for one binary. Development builds
// log at debug level to the console; LOG_LEVEL overrides the level.
func NewLogger(cfg *Config, service string) zerolog.Logger {
	level := zerolog.InfoLevel
	if cfg.AppEnv == "development" {
		level = zerolog.DebugLevel
	}
	if cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}

	logger := zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("ledger_mode", cfg.LedgerMode).
		Logger()

	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	return logger
}

// Logger aliases zerolog.Logger so callers can depend on the logging
// contract through infra.
type Logger = zerolog.Logger
