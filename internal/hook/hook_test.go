// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package hook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/internal/history"
	"github.com/pdiddy/watermark-hook/internal/rescan"
	"github.com/pdiddy/watermark-hook/internal/watermark"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

// scriptedRunner records every argv in order and fails commands whose
// program is listed in failCodes.
type scriptedRunner struct {
	calls     [][]string
	failCodes map[string]int
}

func (s *scriptedRunner) Run(_ context.Context, name string, args ...string) command.Result {
	argv := append([]string{name}, args...)
	s.calls = append(s.calls, argv)
	if code, ok := s.failCodes[name]; ok {
		return command.Result{Args: argv, ExitCode: code, Err: errors.New(name + " failed")}
	}
	return command.Result{Args: argv}
}

type memRecorder struct {
	records []types.FileRecord
	err     error
}

func (m *memRecorder) Record(_ context.Context, rec types.FileRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

func newTestPipeline(r *scriptedRunner, log *zap.Logger) *Pipeline {
	cfg := types.Config{
		Watermark: types.WatermarkConfig{Binary: "markpdf", Stamp: "/opt/watermark.png"},
		Rescan:    types.RescanConfig{PHP: "php", OCC: "/srv/occ", Shallow: true},
	}
	return New(
		watermark.NewStamper(cfg.Watermark, r),
		rescan.NewScanner(cfg.Rescan, r),
		rescan.OptionsFrom(cfg.Rescan),
		log,
	)
}

func pdfEvent(local, rel string) types.Event {
	return types.Event{
		Type:         types.EventPostWrite,
		FileID:       "1234",
		ActorUserID:  "alice",
		OwnerUserID:  "alice",
		RelativePath: rel,
		LocalPath:    local,
	}
}

func TestHandleSkipsNonPDF(t *testing.T) {
	for _, local := range []string{
		"/data/alice/files/notes.txt",
		"/data/alice/files/SCAN.PDF",
		"/data/alice/files/scan.Pdf",
		"/data/alice/files/.pdf",
		"/data/alice/files/archive.pdf.zip",
		"",
	} {
		t.Run(local, func(t *testing.T) {
			r := &scriptedRunner{}
			out := newTestPipeline(r, nil).Handle(context.Background(), pdfEvent(local, "alice/files/x"))

			assert.Equal(t, StatusSkipped, out.Status)
			assert.Equal(t, 0, out.ExitStatus())
			assert.NoError(t, out.Err())
			assert.Empty(t, r.calls, "no external command may run for a skipped file")
		})
	}
}

func TestHandleWatermarksThenRescans(t *testing.T) {
	r := &scriptedRunner{}
	out := newTestPipeline(r, nil).Handle(context.Background(),
		pdfEvent("/data/__groupfolders/42/sub/dir/report.pdf", "__groupfolders/42/sub/dir/report.pdf"))

	require.Equal(t, StatusDone, out.Status)
	assert.Equal(t, 0, out.ExitStatus())
	require.Len(t, r.calls, 2)
	assert.Equal(t, []string{
		"markpdf",
		"/data/__groupfolders/42/sub/dir/report.pdf",
		"/opt/watermark.png",
		"/data/__groupfolders/42/sub/dir/report.pdf",
		"-c",
	}, r.calls[0])
	assert.Equal(t, []string{"php", "/srv/occ", "files:scan", "--path", "sub/dir", "--shallow"}, r.calls[1])
	require.Len(t, out.Steps, 2)
	assert.Equal(t, StepWatermark, out.Steps[0].Name)
	assert.Equal(t, StepRescan, out.Steps[1].Name)
}

func TestHandleWatermarkFailureStopsPipeline(t *testing.T) {
	r := &scriptedRunner{failCodes: map[string]int{"markpdf": 3}}
	out := newTestPipeline(r, nil).Handle(context.Background(),
		pdfEvent("/data/alice/files/a.pdf", "alice/files/a.pdf"))

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 3, out.ExitStatus())
	assert.Error(t, out.Err())
	require.Len(t, r.calls, 1, "rescan must not run after a failed watermark")
	assert.Equal(t, "markpdf", r.calls[0][0])
}

func TestHandleRescanFailure(t *testing.T) {
	r := &scriptedRunner{failCodes: map[string]int{"php": 1}}
	out := newTestPipeline(r, nil).Handle(context.Background(),
		pdfEvent("/data/alice/files/a.pdf", "alice/files/a.pdf"))

	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, 1, out.ExitStatus())
	assert.Len(t, r.calls, 2)
}

func TestHandleLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := &scriptedRunner{failCodes: map[string]int{"markpdf": 2}}

	newTestPipeline(r, zap.New(core)).Handle(context.Background(),
		pdfEvent("/data/alice/files/a.pdf", "alice/files/a.pdf"))

	entries := logs.FilterMessage("watermark failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(2), fields["exit_code"])
	assert.Equal(t, "/data/alice/files/a.pdf", fields["file"])
}

func TestHandleRecordsOutcome(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.7"), 0o644))

	t.Run("success", func(t *testing.T) {
		rec := &memRecorder{}
		p := newTestPipeline(&scriptedRunner{}, nil).WithRecorder(rec)

		p.Handle(context.Background(), pdfEvent(local, "alice/files/a.pdf"))

		require.Len(t, rec.records, 1)
		assert.Equal(t, types.StatusWatermarked, rec.records[0].Status)
		assert.Equal(t, int64(8), rec.records[0].Size)
		assert.False(t, rec.records[0].ModTime.IsZero())
	})

	t.Run("failure", func(t *testing.T) {
		rec := &memRecorder{}
		p := newTestPipeline(&scriptedRunner{failCodes: map[string]int{"markpdf": 1}}, nil).WithRecorder(rec)

		p.Handle(context.Background(), pdfEvent(local, "alice/files/a.pdf"))

		require.Len(t, rec.records, 1)
		assert.Equal(t, types.StatusFailed, rec.records[0].Status)
		assert.Contains(t, rec.records[0].Message, "markpdf failed")
	})

	t.Run("rescan failure keeps the stamp", func(t *testing.T) {
		rec := &memRecorder{}
		p := newTestPipeline(&scriptedRunner{failCodes: map[string]int{"php": 1}}, nil).WithRecorder(rec)

		p.Handle(context.Background(), pdfEvent(local, "alice/files/a.pdf"))

		require.Len(t, rec.records, 1)
		assert.Equal(t, types.StatusStamped, rec.records[0].Status)
		assert.Contains(t, rec.records[0].Message, "php failed")
	})

	t.Run("recorder error does not change outcome", func(t *testing.T) {
		rec := &memRecorder{err: errors.New("disk full")}
		p := newTestPipeline(&scriptedRunner{}, nil).WithRecorder(rec)

		out := p.Handle(context.Background(), pdfEvent(local, "alice/files/a.pdf"))
		assert.Equal(t, StatusDone, out.Status)
	})

	t.Run("skip is not recorded", func(t *testing.T) {
		rec := &memRecorder{}
		p := newTestPipeline(&scriptedRunner{}, nil).WithRecorder(rec)

		p.Handle(context.Background(), pdfEvent(filepath.Join(dir, "a.txt"), "alice/files/a.txt"))
		assert.Empty(t, rec.records)
	})
}

func TestHasPDFSuffix(t *testing.T) {
	tests := map[string]bool{
		"report.pdf":           true,
		"/a/b/report.pdf":      true,
		"archive.tar.pdf":      true,
		"report.PDF":           false,
		".pdf":                 false,
		"report.":              false,
		"report":               false,
		"/a/b.pdf/report.docx": false,
	}
	for in, want := range tests {
		assert.Equal(t, want, HasPDFSuffix(in), in)
	}
}

func TestRescanTarget(t *testing.T) {
	tests := map[string]string{
		"alice/files/Reports/q1.pdf":           "alice/files/Reports",
		"__groupfolders/42/sub/dir/report.pdf": "__groupfolders/42/sub/dir",
		"/alice/files/q1.pdf":                  "/alice/files",
		"q1.pdf":                               ".",
		"":                                     ".",
	}
	for in, want := range tests {
		assert.Equal(t, want, RescanTarget(in), in)
	}
}

func TestHandleRecordsUnderHistoryKey(t *testing.T) {
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	local := filepath.Join(dir, "a.pdf")
	require.NoError(t, os.WriteFile(local, []byte("%PDF-1.7"), 0o644))

	store, err := history.NewStore(filepath.Join(dir, "state"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	t.Chdir(dir)

	ctx := context.Background()
	p := newTestPipeline(&scriptedRunner{}, nil).WithRecorder(store)
	require.Equal(t, StatusDone, p.Handle(ctx, pdfEvent("a.pdf", "alice/files/a.pdf")).Status)

	rec, ok, err := store.Get(ctx, local)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, local, rec.Path)
	assert.Equal(t, types.StatusWatermarked, rec.Status)
}
