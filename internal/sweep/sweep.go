// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sweep stamps every PDF under a directory tree that the history
// does not know yet, then rescans it through the group folder console
// command. A populate run only records the current tree.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/internal/rescan"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

// Stamper applies the watermark to a local PDF in place.
type Stamper interface {
	Apply(ctx context.Context, content string) command.Result
}

// GroupRescanner re-indexes a path inside a group folder.
type GroupRescanner interface {
	RescanGroupFolder(ctx context.Context, id, path string) command.Result
}

// History is the persistence the sweep diffs against.
type History interface {
	List(ctx context.Context, opts history.ListOptions) ([]types.FileRecord, error)
	Known(ctx context.Context) (map[string]bool, error)
	Record(ctx context.Context, rec types.FileRecord) error
	Remove(ctx context.Context, paths []string) error
	Replace(ctx context.Context, recs []types.FileRecord) error
}

var errNotGroupFolder = errors.New("not inside a group folder, cannot rescan")

// Result holds the counts of one sweep.
type Result struct {
	Found       int
	New         int
	Removed     int
	Watermarked int
	Failed      int
}

// HasFailures reports whether any new file could not be processed.
func (r Result) HasFailures() bool {
	return r.Failed > 0
}

// Sweeper runs sweeps.
type Sweeper struct {
	stamper   Stamper
	rescanner GroupRescanner
	history   History
	log       *zap.Logger
}

// New returns a Sweeper. A nil logger discards log output.
func New(s Stamper, r GroupRescanner, h History, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{stamper: s, rescanner: r, history: h, log: log}
}

// Run stamps and rescans the PDFs under baseDir that are not in history,
// drops history rows for files that disappeared, and prints per-file status
// and a summary to w. A file already stamped whose rescan failed is only
// rescanned. Individual file failures are recorded and counted; the returned
// error is reserved for failures of the sweep itself.
func (s *Sweeper) Run(ctx context.Context, baseDir string, w io.Writer) (Result, error) {
	current, err := FindPDFs(baseDir)
	if err != nil {
		return Result{}, err
	}
	previous, err := s.history.List(ctx, history.ListOptions{})
	if err != nil {
		return Result{}, err
	}
	done, err := s.history.Known(ctx)
	if err != nil {
		return Result{}, err
	}

	inTree := make(map[string]bool, len(current))
	for _, p := range current {
		inTree[p] = true
	}
	stamped := make(map[string]bool)
	var removed []string
	for _, rec := range previous {
		switch {
		case !inTree[rec.Path]:
			removed = append(removed, rec.Path)
		case rec.Status == types.StatusStamped:
			stamped[rec.Path] = true
		}
	}

	result := Result{Found: len(current), Removed: len(removed)}

	for _, path := range current {
		if done[path] {
			continue
		}
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		result.New++
		marked, err := s.process(ctx, path, stamped[path])
		if err != nil {
			fmt.Fprintf(w, "failed:      %s (%v)\n", path, err)
			s.log.Error("sweep file failed", zap.String("file", path), zap.Bool("stamped", marked), zap.Error(err))
			result.Failed++
			status := types.StatusFailed
			if marked {
				status = types.StatusStamped
			}
			s.record(ctx, path, status, err.Error())
			continue
		}
		fmt.Fprintf(w, "watermarked: %s\n", path)
		result.Watermarked++
		s.record(ctx, path, types.StatusWatermarked, "")
	}

	if err := s.history.Remove(ctx, removed); err != nil {
		return result, err
	}

	fmt.Fprintf(w, "\nSweep summary: %d found, %d new, %d removed, %d watermarked, %d failed\n",
		result.Found, result.New, result.Removed, result.Watermarked, result.Failed)
	return result, nil
}

// Populate replaces the history with the PDFs currently under baseDir
// without stamping any of them, and returns how many were recorded.
func (s *Sweeper) Populate(ctx context.Context, baseDir string, w io.Writer) (int, error) {
	current, err := FindPDFs(baseDir)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	recs := make([]types.FileRecord, 0, len(current))
	for _, p := range current {
		rec := types.FileRecord{Path: p, Status: types.StatusKnown, UpdatedAt: now}
		if info, err := os.Stat(p); err == nil {
			rec.ModTime = info.ModTime().UTC()
			rec.Size = info.Size()
		}
		recs = append(recs, rec)
	}
	if err := s.history.Replace(ctx, recs); err != nil {
		return 0, err
	}
	fmt.Fprintf(w, "Populate: history updated with %d files.\n", len(recs))
	return len(recs), nil
}

// process stamps path unless alreadyStamped, then rescans it. It reports
// whether the file carries the stamp when it returns. Files outside a group
// folder are rejected before stamping since they could never be rescanned.
func (s *Sweeper) process(ctx context.Context, path string, alreadyStamped bool) (bool, error) {
	id, rel, ok := rescan.GroupFolderTarget(path)
	if !ok {
		return alreadyStamped, errNotGroupFolder
	}

	if !alreadyStamped {
		mark := s.stamper.Apply(ctx, path)
		if !mark.OK() {
			return false, fmt.Errorf("watermark: %w", mark.Err)
		}
	}

	scan := s.rescanner.RescanGroupFolder(ctx, id, rel)
	if !scan.OK() {
		return true, fmt.Errorf("rescan: %w", scan.Err)
	}
	return true, nil
}

func (s *Sweeper) record(ctx context.Context, path string, status types.FileStatus, msg string) {
	rec := types.FileRecord{Path: path, Status: status, Message: msg, UpdatedAt: time.Now().UTC()}
	if info, err := os.Stat(path); err == nil {
		rec.ModTime = info.ModTime().UTC()
		rec.Size = info.Size()
	}
	if err := s.history.Record(ctx, rec); err != nil {
		s.log.Warn("recording history failed", zap.String("file", path), zap.Error(err))
	}
}

// FindPDFs returns the sorted history keys of all files under baseDir whose
// extension is ".pdf" in any letter case.
func FindPDFs(baseDir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(baseDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".pdf") {
			return nil
		}
		files = append(files, history.Key(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", baseDir, err)
	}
	sort.Strings(files)
	return files, nil
}
