// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logger builds structured zerolog loggers
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level and destination
type Config struct {
	Level  string `yaml:"level"`
	Debug  bool   `yaml:"debug"`
	Output string `yaml:"output"` // stderr, stdout, or a file path
	// Console writes human readable lines instead of JSON
	Console    bool   `yaml:"console"`
	TimeFormat string `yaml:"time_format"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New creates a logger. The returned closer releases the log file, if any.
func New(config Config) (zerolog.Logger, io.Closer, error) {
	var (
		output io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)

	switch config.Output {
	case "", "stderr":
	case "stdout":
		output = os.Stdout
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
		}
		output = f
		closer = f
	}

	level := zerolog.InfoLevel
	if config.Debug {
		level = zerolog.DebugLevel
	} else if config.Level != "" {
		var err error
		level, err = zerolog.ParseLevel(config.Level)
		if err != nil {
			closer.Close()
			return zerolog.Nop(), nil, fmt.Errorf("log level %q: %w", config.Level, err)
		}
	}

	timeFormat := config.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	if config.Console {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat, NoColor: output != os.Stderr && output != os.Stdout}
	} else {
		zerolog.TimeFieldFormat = timeFormat
	}

	return zerolog.New(output).Level(level).With().Timestamp().Logger(), closer, nil
}

// WithComponent returns a child logger tagged with a component name
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
