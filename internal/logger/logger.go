// Package logger configures the process-wide zerolog logger.
//
// The reader reports events with four severities which map onto zerolog
// levels as: error -> Error, warning -> Warn, notice -> Info, debug -> Debug.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options controls Setup.
type Options struct {
	Level  string
	Format string // "console" or "json"

	// File, when set, receives the log in append mode instead of Output.
	File   string
	Output io.Writer

	// NoRepeatLastN is the number of distinct recent messages checked for
	// repeats. 0 disables suppression.
	NoRepeatLastN int
	// RepeatMaxCount emits a suppressed message again after this many
	// repeats. 0 waits for RepeatMaxInterval or Flush.
	RepeatMaxCount int
	// RepeatMaxInterval emits a suppressed message again once this much
	// time has passed since it was last written.
	RepeatMaxInterval time.Duration
}

// Setup initializes the global logger and returns the repeat filter so the
// caller can Flush it before exiting.
func Setup(opts Options) (*RepeatFilter, error) {
	zerolog.SetGlobalLevel(parseLevel(opts.Level))

	var base io.Writer = os.Stderr
	if opts.Output != nil {
		base = opts.Output
	}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logger: open %s: %w", opts.File, err)
		}
		base = f
	}
	if strings.ToLower(opts.Format) == "console" {
		base = zerolog.ConsoleWriter{
			Out:        base,
			TimeFormat: time.RFC3339,
		}
	}

	filter := NewRepeatFilter(base, opts.NoRepeatLastN, opts.RepeatMaxCount, opts.RepeatMaxInterval)

	log.Logger = zerolog.New(filter).
		With().
		Timestamp().
		Logger()
	return filter, nil
}

// parseLevel converts string level to zerolog.Level
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info", "notice":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Get returns a logger with the given component name
func Get(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
