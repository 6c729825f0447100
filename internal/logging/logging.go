// Package logging configures the global zerolog logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Env        string // "production" disables the console writer's pretty output
	Debug      bool
	FilePath   string // rotating file output, disabled when empty
	MaxSize    int    // megabytes
	MaxBackups int
	MaxAge     int // days
}

// FromEnv builds a Config from the process environment.
func FromEnv() Config {
	return Config{
		Env:        os.Getenv("ENV"),
		Debug:      os.Getenv("DEBUG") == "true",
		FilePath:   os.Getenv("LOG_FILE"),
		MaxSize:    100,
		MaxBackups: 7,
		MaxAge:     30,
	}
}

// Setup replaces the global logger according to cfg.
func Setup(cfg Config) {
	var writers []io.Writer

	if cfg.Env != "production" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stdout)
	}

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   cfg.FilePath,
				MaxSize:    cfg.MaxSize,
				MaxBackups: cfg.MaxBackups,
				MaxAge:     cfg.MaxAge,
				Compress:   true,
			})
		}
	}

	zlog.Logger = zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Logger()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
