// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/internal/rescan"
	"github.com/pdiddy/watermark-hook/internal/sweep"
	"github.com/pdiddy/watermark-hook/internal/watermark"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Stamp every PDF under a directory that has not been stamped yet",
	Long: `Sweep walks the base directory for PDF files, compares them with the
history database, stamps the new ones, and rescans each through
"occ groupfolders:scan". Failed files are recorded and retried on the next
sweep; files that disappeared are dropped from history.

With --populate, sweep only records the current files as known without
stamping anything, so an existing tree can be adopted.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().String("base-dir", "", "directory searched for PDF files")
	sweepCmd.Flags().Bool("populate", false, "record current files in history without stamping")
	_ = viper.BindPFlag("sweep.base_dir", sweepCmd.Flags().Lookup("base-dir"))

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Sweep.BaseDir == "" {
		return fmt.Errorf("no base directory: pass --base-dir or set sweep.base_dir")
	}

	store, err := history.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	runner := command.NewRunner(os.Stdout, os.Stderr, cfg.CommandTimeout)
	sw := sweep.New(
		watermark.NewStamper(cfg.Watermark, runner),
		rescan.NewScanner(cfg.Rescan, runner),
		store,
		log,
	)

	if populate, _ := cmd.Flags().GetBool("populate"); populate {
		_, err := sw.Populate(cmd.Context(), cfg.Sweep.BaseDir, os.Stdout)
		return err
	}

	result, err := sw.Run(cmd.Context(), cfg.Sweep.BaseDir, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed, see `watermark-hook history list --status failed`", result.Failed)
	}
	return nil
}
