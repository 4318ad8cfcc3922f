// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the watermark-hook CLI.
//
// Invoked with the platform's event flags, the root command stamps the
// affected PDF and asks the platform to rescan its directory. Subcommands
// cover batch sweeps, a filesystem watcher, history inspection, and an
// installation check.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// version is set at build time via ldflags.
var version = "dev"

// exitError carries a specific process exit status out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) && ee.code > 0 {
		return ee.code
	}
	return 1
}

// rootCmd handles one platform file event.
var rootCmd = &cobra.Command{
	Use:   "watermark-hook",
	Short: "Stamp PDFs on file events and rescan them in the storage platform",
	Long: `watermark-hook is called by the platform's workflow script app on
file create, write, and rename events. For PDF files it overlays a fixed
stamp image on every page in place using markpdf, then runs
"occ files:scan --shallow" on the file's directory so the platform notices
the change. Other files are left alone.

Register it as:

  watermark-hook --event_type %e --file_id %i --actor_user_id %a \
    --owner_user_id %o --nextcloud_relative_path %n \
    --locally_available_file %f --old_nextcloud_relative_file_path %x`,
	Args: cobra.NoArgs,
	RunE: runHook,
}

func init() {
	rootCmd.PersistentPreRunE = loadConfig

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./watermark-hook.yaml or ~/.config/watermark-hook/watermark-hook.yaml)")
	rootCmd.PersistentFlags().String("log-mode", "", "log format: development (console) or production (JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("state-dir", "", "directory holding the history database")

	_ = viper.BindPFlag("log.mode", rootCmd.PersistentFlags().Lookup("log-mode"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("state_dir", rootCmd.PersistentFlags().Lookup("state-dir"))
}

// loadConfig reads the configuration before any command runs. A config file
// named with --config must be readable; the default locations are optional.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if err := readConfig(viper.GetViper(), cfgFile); err != nil {
		cmd.SilenceUsage = true
		return err
	}
	return nil
}

func readConfig(v *viper.Viper, cfgFile string) error {
	configureViper(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("watermark-hook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "watermark-hook"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}
