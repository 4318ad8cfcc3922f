// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package hook implements the per-event pipeline: suffix guard, watermark,
// path normalization, rescan. Each step yields an explicit command.Result
// and the pipeline folds them into an Outcome the entry point turns into an
// exit status.
package hook

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/internal/rescan"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

const pdfSuffix = ".pdf"

// Step names used in Outcome.Steps.
const (
	StepWatermark = "watermark"
	StepRescan    = "rescan"
)

// Status summarizes how an event was handled.
type Status string

const (
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
)

// Step pairs a pipeline step with its command result.
type Step struct {
	Name   string
	Result command.Result
}

// Outcome is the result of handling one event.
type Outcome struct {
	Status Status
	Steps  []Step
}

// ExitStatus returns the process exit status for the outcome: 0 unless a
// step failed, in which case the failing command's status.
func (o Outcome) ExitStatus() int {
	if o.Status != StatusFailed || len(o.Steps) == 0 {
		return 0
	}
	return o.Steps[len(o.Steps)-1].Result.ExitStatus()
}

// Err returns the failing step's error, or nil.
func (o Outcome) Err() error {
	if o.Status != StatusFailed || len(o.Steps) == 0 {
		return nil
	}
	return o.Steps[len(o.Steps)-1].Result.Err
}

// Stamper applies the watermark to a local PDF in place.
type Stamper interface {
	Apply(ctx context.Context, content string) command.Result
}

// Rescanner asks the platform to re-index a relative path.
type Rescanner interface {
	Rescan(ctx context.Context, path string, opts rescan.Options) command.Result
}

// Recorder persists the result of handling a file.
type Recorder interface {
	Record(ctx context.Context, rec types.FileRecord) error
}

// Pipeline handles platform events.
type Pipeline struct {
	stamper   Stamper
	rescanner Rescanner
	opts      rescan.Options
	recorder  Recorder
	log       *zap.Logger
}

// New returns a Pipeline. A nil logger discards log output.
func New(s Stamper, r Rescanner, opts rescan.Options, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{stamper: s, rescanner: r, opts: opts, log: log}
}

// WithRecorder makes the pipeline persist every stamped or failed file. A
// history store keys records by absolute path, so relative local paths are
// fine.
func (p *Pipeline) WithRecorder(r Recorder) *Pipeline {
	p.recorder = r
	return p
}

// Handle runs the pipeline for ev. Files without a ".pdf" suffix are
// skipped without running any command. The rescan runs only after the
// watermark succeeded.
func (p *Pipeline) Handle(ctx context.Context, ev types.Event) Outcome {
	log := p.log.With(
		zap.String("event", string(ev.Type)),
		zap.String("file_id", ev.FileID),
		zap.String("file", ev.LocalPath),
	)

	if !HasPDFSuffix(ev.LocalPath) {
		log.Debug("not a PDF, skipping")
		return Outcome{Status: StatusSkipped}
	}

	var out Outcome

	mark := p.stamper.Apply(ctx, ev.LocalPath)
	out.Steps = append(out.Steps, Step{Name: StepWatermark, Result: mark})
	if !mark.OK() {
		log.Error("watermark failed",
			zap.String("command", mark.CommandLine()),
			zap.Int("exit_code", mark.ExitCode),
			zap.String("output", mark.Output),
			zap.Error(mark.Err),
		)
		out.Status = StatusFailed
		p.record(ctx, log, ev.LocalPath, out)
		return out
	}
	log.Info("watermarked")

	target := RescanTarget(ev.RelativePath)
	scan := p.rescanner.Rescan(ctx, target, p.opts)
	out.Steps = append(out.Steps, Step{Name: StepRescan, Result: scan})
	if !scan.OK() {
		log.Error("rescan failed",
			zap.String("command", scan.CommandLine()),
			zap.Int("exit_code", scan.ExitCode),
			zap.String("output", scan.Output),
			zap.Error(scan.Err),
		)
		out.Status = StatusFailed
		p.record(ctx, log, ev.LocalPath, out)
		return out
	}
	log.Info("rescanned", zap.String("path", rescan.Normalize(target)))

	out.Status = StatusDone
	p.record(ctx, log, ev.LocalPath, out)
	return out
}

func (p *Pipeline) record(ctx context.Context, log *zap.Logger, localPath string, out Outcome) {
	if p.recorder == nil {
		return
	}
	rec := types.FileRecord{
		Path:      localPath,
		Status:    types.StatusWatermarked,
		UpdatedAt: time.Now().UTC(),
	}
	if err := out.Err(); err != nil {
		rec.Status = types.StatusFailed
		if out.Steps[len(out.Steps)-1].Name == StepRescan {
			rec.Status = types.StatusStamped
		}
		rec.Message = err.Error()
	}
	if info, err := os.Stat(localPath); err == nil {
		rec.ModTime = info.ModTime().UTC()
		rec.Size = info.Size()
	}
	if err := p.recorder.Record(ctx, rec); err != nil {
		log.Warn("recording history failed", zap.Error(err))
	}
}

// HasPDFSuffix reports whether the final path element ends in ".pdf". The
// match is case-sensitive, and a bare ".pdf" name or one ending in a dot has
// no suffix.
func HasPDFSuffix(p string) bool {
	name := filepath.Base(p)
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return false
	}
	return name[i:] == pdfSuffix
}

// RescanTarget returns the directory of a platform-relative file path, the
// unit the platform rescans after a change.
func RescanTarget(relPath string) string {
	return path.Dir(path.Clean(relPath))
}
