// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/watermark-hook/internal/logging"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

const envPrefix = "WATERMARK_HOOK"

// configureViper installs defaults and environment lookup. Every key needs
// a default so that Unmarshal sees environment overrides.
func configureViper(v *viper.Viper) {
	d := types.DefaultConfig()
	v.SetDefault("watermark.binary", d.Watermark.Binary)
	v.SetDefault("watermark.stamp", d.Watermark.Stamp)
	v.SetDefault("rescan.php", d.Rescan.PHP)
	v.SetDefault("rescan.occ", d.Rescan.OCC)
	v.SetDefault("rescan.shallow", d.Rescan.Shallow)
	v.SetDefault("rescan.unscanned", d.Rescan.Unscanned)
	v.SetDefault("log.mode", d.Log.Mode)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("sweep.base_dir", d.Sweep.BaseDir)
	v.SetDefault("watch.root", d.Watch.Root)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("command_timeout", d.CommandTimeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// decodeConfig builds a validated Config from v.
func decodeConfig(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg types.Config) error {
	required := []struct{ key, value string }{
		{"watermark.binary", cfg.Watermark.Binary},
		{"watermark.stamp", cfg.Watermark.Stamp},
		{"rescan.php", cfg.Rescan.PHP},
		{"rescan.occ", cfg.Rescan.OCC},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("config: %s must be set", r.key)
		}
	}
	if cfg.CommandTimeout < 0 {
		return fmt.Errorf("config: command_timeout must not be negative")
	}
	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must not be negative")
	}
	return nil
}

// setup loads configuration and the logger for a command whose flags have
// been validated. Errors after this point are not usage errors.
func setup(cmd *cobra.Command) (types.Config, *zap.Logger, error) {
	cmd.SilenceUsage = true

	cfg, err := decodeConfig(viper.GetViper())
	if err != nil {
		return types.Config{}, nil, err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return types.Config{}, nil, err
	}
	return cfg, log, nil
}
