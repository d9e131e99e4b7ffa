// Package logging builds the zap loggers used across Smart Repeat.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the logger flavour.
type Options struct {
	// Level is a zap level name such as "debug" or "warn". Empty means info.
	Level string

	// Development switches to the human-readable console encoder.
	Development bool

	// File, when set, receives the log instead of stderr.
	File string
}

// New builds a logger. The returned level can be changed while the logger
// is in use.
func New(opts Options) (*zap.Logger, zap.AtomicLevel, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if name := strings.TrimSpace(opts.Level); name != "" {
		l, err := zap.ParseAtomicLevel(strings.ToLower(name))
		if err != nil {
			return nil, level, fmt.Errorf("log level %q: %w", opts.Level, err)
		}
		level = l
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = level
	if opts.File != "" {
		cfg.OutputPaths = []string{opts.File}
		cfg.ErrorOutputPaths = []string{opts.File}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, level, fmt.Errorf("build logger: %w", err)
	}
	return logger, level, nil
}
