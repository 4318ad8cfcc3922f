// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watch runs the hook pipeline from filesystem notifications instead
// of platform events. Bursts of events on one file are coalesced, files are
// processed one at a time, and a file whose size and modification time still
// match what the tool itself left behind is not processed again.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pdiddy/watermark-hook/internal/hook"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

const queueSize = 1024

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, ev types.Event) hook.Outcome
}

// Tracker looks up what was last recorded for a file.
type Tracker interface {
	Get(ctx context.Context, path string) (types.FileRecord, bool, error)
}

type fileState struct {
	modTime time.Time
	size    int64
}

type item struct {
	path string
	typ  types.EventType
}

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	debounce time.Duration
	handler  Handler
	tracker  Tracker
	log      *zap.Logger

	fsw  *fsnotify.Watcher
	seen map[string]fileState // worker goroutine only
}

// New returns a Watcher over root, made absolute so that the paths handed
// to h match the history keys. tracker may be nil; a nil logger discards log
// output.
func New(root string, debounce time.Duration, h Handler, tracker Tracker, log *zap.Logger) *Watcher {
	if log == nil {
		log = zap.NewNop()
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return &Watcher{
		root:     root,
		debounce: debounce,
		handler:  h,
		tracker:  tracker,
		log:      log,
		seen:     make(map[string]fileState),
	}
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch root %s is not a directory", w.root)
	}

	w.fsw, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.fsw.Close()

	w.addRecursive(w.root)
	w.log.Info("watching", zap.String("root", w.root), zap.Duration("debounce", w.debounce))

	work := make(chan item, queueSize)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for it := range work {
			w.process(ctx, it)
		}
	}()
	defer func() {
		close(work)
		wg.Wait()
	}()

	deb := newDebouncer(w.debounce)
	defer deb.stop()
	kinds := make(map[string]types.EventType)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			typ, relevant := w.classify(ev)
			if !relevant {
				continue
			}
			kinds[ev.Name] = typ
			deb.touch(ctx, ev.Name)

		case f := <-deb.fire:
			if !deb.accept(f) {
				continue
			}
			it := item{path: f.path, typ: kinds[f.path]}
			delete(kinds, f.path)
			select {
			case work <- it:
			case <-ctx.Done():
				return nil
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// classify maps a notification to a platform event type and reports whether
// it can lead to a stamp.
func (w *Watcher) classify(ev fsnotify.Event) (types.EventType, bool) {
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			w.log.Debug("new directory", zap.String("dir", ev.Name))
			w.addRecursive(ev.Name)
			return "", false
		}
	}
	if !hook.HasPDFSuffix(ev.Name) {
		return "", false
	}
	switch {
	case ev.Has(fsnotify.Create):
		return types.EventPostCreate, true
	case ev.Has(fsnotify.Write):
		return types.EventPostWrite, true
	default:
		return "", false
	}
}

func (w *Watcher) addRecursive(root string) {
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := w.fsw.Add(p); err != nil {
				w.log.Warn("cannot watch directory", zap.String("dir", p), zap.Error(err))
			}
		}
		return nil
	})
	if err != nil {
		w.log.Warn("walking directory", zap.String("dir", root), zap.Error(err))
	}
}

func (w *Watcher) process(ctx context.Context, it item) {
	if ctx.Err() != nil {
		return
	}
	log := w.log.With(zap.String("file", it.path))

	info, err := os.Stat(it.path)
	if err != nil || info.IsDir() {
		log.Debug("file gone before processing")
		return
	}
	if w.unchanged(ctx, it.path, info) {
		log.Debug("file unchanged since last stamp, skipping")
		return
	}

	rel, err := filepath.Rel(w.root, it.path)
	if err != nil {
		log.Warn("cannot compute relative path", zap.Error(err))
		return
	}

	out := w.handler.Handle(ctx, types.Event{
		Type:         it.typ,
		RelativePath: filepath.ToSlash(rel),
		LocalPath:    it.path,
	})
	if out.Status == hook.StatusSkipped {
		return
	}

	if after, err := os.Stat(it.path); err == nil {
		w.seen[it.path] = fileState{modTime: after.ModTime(), size: after.Size()}
	}
}

func (w *Watcher) unchanged(ctx context.Context, path string, info os.FileInfo) bool {
	if st, ok := w.seen[path]; ok {
		return st.size == info.Size() && st.modTime.Equal(info.ModTime())
	}
	if w.tracker == nil {
		return false
	}
	rec, ok, err := w.tracker.Get(ctx, path)
	if err != nil || !ok {
		return false
	}
	if rec.Status != types.StatusWatermarked && rec.Status != types.StatusStamped {
		return false
	}
	return rec.Matches(info.ModTime().UTC(), info.Size())
}
