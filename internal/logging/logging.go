// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package logging builds the zap logger shared by all commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pdiddy/watermark-hook/pkg/types"
)

// Log modes.
const (
	ModeDevelopment = "development"
	ModeProduction  = "production"
)

// New builds a logger writing to stderr. Production mode emits JSON,
// development mode human-readable console lines. A non-empty level
// overrides the mode's default level.
func New(cfg types.LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch cfg.Mode {
	case ModeProduction:
		zc = zap.NewProductionConfig()
	case ModeDevelopment, "":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("unknown log mode %q: use %s or %s", cfg.Mode, ModeDevelopment, ModeProduction)
	}

	if cfg.Level != "" {
		var lvl zapcore.Level
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
