// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watch

import (
	"context"
	"time"
)

// firing is sent when a path's quiet period has elapsed.
type firing struct {
	path string
	gen  uint64
}

type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces bursts of events per path. Every touch starts a fresh
// timer with a new generation; a firing whose generation is no longer
// current is stale and is rejected by accept. It is used by one goroutine.
type debouncer struct {
	delay   time.Duration
	fire    chan firing
	pending map[string]pendingTimer
	gen     uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		fire:    make(chan firing),
		pending: make(map[string]pendingTimer),
	}
}

// touch (re)starts the quiet period for path.
func (d *debouncer) touch(ctx context.Context, path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	f := firing{path: path, gen: d.gen}
	d.pending[path] = pendingTimer{
		gen: f.gen,
		timer: time.AfterFunc(d.delay, func() {
			select {
			case d.fire <- f:
			case <-ctx.Done():
			}
		}),
	}
}

// accept reports whether f is the current firing for its path, and if so
// forgets the path.
func (d *debouncer) accept(f firing) bool {
	p, ok := d.pending[f.path]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.path)
	return true
}

func (d *debouncer) stop() {
	for _, p := range d.pending {
		p.timer.Stop()
	}
}
