// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/internal/hook"
	"github.com/pdiddy/watermark-hook/internal/rescan"
	"github.com/pdiddy/watermark-hook/internal/watermark"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

// eventFlags lists the platform substitution flags in registration order.
var eventFlags = []struct {
	name  string
	usage string
}{
	{"event_type", `The event type. One of \OCP\Files::postCreate, \OCP\Files::postWrite or \OCP\Files::postRename. Pass as ` + "`%e`."},
	{"file_id", "The file id. Pass as `%i`."},
	{"actor_user_id", "The actor's user id. Pass as `%a`."},
	{"owner_user_id", "The owner's user id. Pass as `%o`."},
	{"nextcloud_relative_path", "The platform-relative path. Pass as `%n`."},
	{"locally_available_file", "The locally available file. Pass as `%f`."},
	{"old_nextcloud_relative_file_path", "The old platform-relative file path (only on rename and copy). Pass as `%x`."},
}

func init() {
	for _, f := range eventFlags {
		rootCmd.Flags().String(f.name, "", f.usage)
		_ = rootCmd.MarkFlagRequired(f.name)
	}
	rootCmd.Flags().Bool("record", false, "record the outcome in the history database")
}

func eventFromFlags(cmd *cobra.Command) types.Event {
	get := func(name string) string {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return types.Event{
		Type:            types.EventType(get("event_type")),
		FileID:          get("file_id"),
		ActorUserID:     get("actor_user_id"),
		OwnerUserID:     get("owner_user_id"),
		RelativePath:    get("nextcloud_relative_path"),
		LocalPath:       get("locally_available_file"),
		OldRelativePath: get("old_nextcloud_relative_file_path"),
	}
}

// newPipeline wires the stamp and rescan steps to a runner that echoes
// child output to this process's stdout and stderr.
func newPipeline(cfg types.Config, log *zap.Logger) *hook.Pipeline {
	runner := command.NewRunner(os.Stdout, os.Stderr, cfg.CommandTimeout)
	return hook.New(
		watermark.NewStamper(cfg.Watermark, runner),
		rescan.NewScanner(cfg.Rescan, runner),
		rescan.OptionsFrom(cfg.Rescan),
		log,
	)
}

func runHook(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	p := newPipeline(cfg, log)

	if record, _ := cmd.Flags().GetBool("record"); record {
		store, err := history.NewStore(cfg.StateDir)
		if err != nil {
			return err
		}
		defer store.Close()
		p.WithRecorder(store)
	}

	out := p.Handle(cmd.Context(), eventFromFlags(cmd))
	if out.Status == hook.StatusFailed {
		return &exitError{code: out.ExitStatus(), err: out.Err()}
	}
	return nil
}
