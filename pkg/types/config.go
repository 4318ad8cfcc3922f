// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// WatermarkConfig locates the external stamping tool and the stamp image.
type WatermarkConfig struct {
	// Binary is the path to the markpdf executable.
	Binary string `json:"binary" yaml:"binary" mapstructure:"binary"`

	// Stamp is the image overlaid onto every page.
	Stamp string `json:"stamp" yaml:"stamp" mapstructure:"stamp"`
}

// RescanConfig locates the platform's occ console and selects scan flags.
type RescanConfig struct {
	// PHP is the php interpreter used to run occ (looked up on PATH when bare).
	PHP string `json:"php" yaml:"php" mapstructure:"php"`

	// OCC is the path to the occ console script.
	OCC string `json:"occ" yaml:"occ" mapstructure:"occ"`

	// Shallow appends --shallow to files:scan (default true).
	Shallow bool `json:"shallow" yaml:"shallow" mapstructure:"shallow"`

	// Unscanned appends --unscanned to files:scan (default false).
	Unscanned bool `json:"unscanned" yaml:"unscanned" mapstructure:"unscanned"`
}

// LogConfig selects the logger flavour.
type LogConfig struct {
	// Mode is "development" (console) or "production" (JSON).
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// Level is a zap level name: debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`
}

// SweepConfig holds settings for the batch sweep.
type SweepConfig struct {
	// BaseDir is the tree searched for PDF files.
	BaseDir string `json:"base_dir" yaml:"base_dir" mapstructure:"base_dir"`
}

// WatchConfig holds settings for the filesystem watcher.
type WatchConfig struct {
	// Root is the platform data directory; relative paths are computed against it.
	Root string `json:"root" yaml:"root" mapstructure:"root"`

	// Debounce is the quiet period after the last event before a file is processed.
	Debounce time.Duration `json:"debounce" yaml:"debounce" mapstructure:"debounce"`
}

// Config groups everything the CLI reads from flags, file, and environment.
type Config struct {
	Watermark WatermarkConfig `json:"watermark" yaml:"watermark" mapstructure:"watermark"`
	Rescan    RescanConfig    `json:"rescan" yaml:"rescan" mapstructure:"rescan"`
	Log       LogConfig       `json:"log" yaml:"log" mapstructure:"log"`
	Sweep     SweepConfig     `json:"sweep" yaml:"sweep" mapstructure:"sweep"`
	Watch     WatchConfig     `json:"watch" yaml:"watch" mapstructure:"watch"`

	// StateDir holds history.db.
	StateDir string `json:"state_dir" yaml:"state_dir" mapstructure:"state_dir"`

	// CommandTimeout bounds each external command; zero means no limit.
	CommandTimeout time.Duration `json:"command_timeout" yaml:"command_timeout" mapstructure:"command_timeout"`
}

const scriptsDir = "/home/www/nextcloud_workflow_scripts"

// DefaultConfig returns the settings of a stock installation next to the
// platform's workflow scripts.
func DefaultConfig() Config {
	return Config{
		Watermark: WatermarkConfig{
			Binary: scriptsDir + "/markpdf",
			Stamp:  scriptsDir + "/watermark.png",
		},
		Rescan: RescanConfig{
			PHP:     "php",
			OCC:     "/home/www/nextcloud/occ",
			Shallow: true,
		},
		Log: LogConfig{
			Mode:  "development",
			Level: "info",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		StateDir: scriptsDir + "/state",
	}
}
