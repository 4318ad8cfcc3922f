// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rescan asks the storage platform to re-index paths through its occ
// console after a file was modified behind its back.
package rescan

import (
	"context"
	"regexp"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

var (
	// groupFolderPrefix matches the container prefix the files:scan command
	// does not understand.
	groupFolderPrefix = regexp.MustCompile(`__groupfolders/\d+/(.*)`)

	// groupFolderTarget splits a local data-directory path into the group
	// folder id and the path inside it.
	groupFolderTarget = regexp.MustCompile(`__groupfolders/(\d+)/(files/)?(.*)`)
)

// Normalize rewrites "__groupfolders/<id>/<rest>" to "<rest>". Paths without
// that segment are returned unchanged.
func Normalize(path string) string {
	return groupFolderPrefix.ReplaceAllString(path, "${1}")
}

// GroupFolderTarget extracts the group folder id and the folder-relative path
// from ".../__groupfolders/<id>/[files/]<rest>". ok is false when path does
// not live in a group folder.
func GroupFolderTarget(path string) (id, rest string, ok bool) {
	m := groupFolderTarget.FindStringSubmatch(path)
	if m == nil {
		return "", "", false
	}
	return m[1], m[3], true
}

// Options selects the optional files:scan flags.
type Options struct {
	// Unscanned limits the scan to entries not scanned before.
	Unscanned bool
	// Shallow skips recursion into subdirectories.
	Shallow bool
}

// OptionsFrom returns the scan flags configured in cfg.
func OptionsFrom(cfg types.RescanConfig) Options {
	return Options{Unscanned: cfg.Unscanned, Shallow: cfg.Shallow}
}

// Runner executes one external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) command.Result
}

// Scanner runs occ scan commands.
type Scanner struct {
	php    string
	occ    string
	runner Runner
}

// NewScanner returns a Scanner for the php binary and occ script in cfg.
func NewScanner(cfg types.RescanConfig, r Runner) *Scanner {
	return &Scanner{php: cfg.PHP, occ: cfg.OCC, runner: r}
}

// FilesScanCommand returns the full argv of a files:scan of path.
func (s *Scanner) FilesScanCommand(path string, opts Options) []string {
	argv := []string{s.php, s.occ, "files:scan", "--path", Normalize(path)}
	if opts.Unscanned {
		argv = append(argv, "--unscanned")
	}
	if opts.Shallow {
		argv = append(argv, "--shallow")
	}
	return argv
}

// GroupFolderScanCommand returns the full argv of a groupfolders:scan of
// path inside group folder id.
func (s *Scanner) GroupFolderScanCommand(id, path string) []string {
	return []string{s.php, s.occ, "groupfolders:scan", "--path", path, id}
}

// Rescan re-indexes the platform-relative path.
func (s *Scanner) Rescan(ctx context.Context, path string, opts Options) command.Result {
	argv := s.FilesScanCommand(path, opts)
	return s.runner.Run(ctx, argv[0], argv[1:]...)
}

// RescanGroupFolder re-indexes path inside group folder id.
func (s *Scanner) RescanGroupFolder(ctx context.Context, id, path string) command.Result {
	argv := s.GroupFolderScanCommand(id, path)
	return s.runner.Run(ctx, argv[0], argv[1:]...)
}
