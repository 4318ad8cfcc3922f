// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stamp PDFs as they appear under the platform data directory",
	Long: `Watch subscribes to filesystem notifications under the platform data
directory and runs the same stamp-and-rescan pipeline as the hook for every
created or written PDF. Events on one file are coalesced for the debounce
period; the tool's own writes do not retrigger it. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().String("root", "", "platform data directory to watch")
	watchCmd.Flags().Duration("debounce", 0, "quiet period before a changed file is processed (default 2s)")
	_ = viper.BindPFlag("watch.root", watchCmd.Flags().Lookup("root"))
	_ = viper.BindPFlag("watch.debounce", watchCmd.Flags().Lookup("debounce"))

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Watch.Root == "" {
		return fmt.Errorf("no watch root: pass --root or set watch.root")
	}

	store, err := history.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}
	defer store.Close()

	p := newPipeline(cfg, log).WithRecorder(store)
	w := watch.New(cfg.Watch.Root, cfg.Watch.Debounce, p, store, log)
	return w.Run(cmd.Context())
}
