// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package watermark

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

// fakeRunner records invocations and returns a canned result.
type fakeRunner struct {
	calls [][]string
	fail  bool
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) command.Result {
	argv := append([]string{name}, args...)
	f.calls = append(f.calls, argv)
	if f.fail {
		return command.Result{Args: argv, ExitCode: 2, Err: errors.New("markpdf exited with status 2")}
	}
	return command.Result{Args: argv}
}

func TestApplyArgumentOrder(t *testing.T) {
	r := &fakeRunner{}
	s := NewStamper(types.WatermarkConfig{Binary: "/opt/scripts/markpdf", Stamp: "/opt/scripts/watermark.png"}, r)

	res := s.Apply(context.Background(), "/data/alice/files/report.pdf")

	if !res.OK() {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	want := []string{
		"/opt/scripts/markpdf",
		"/data/alice/files/report.pdf",
		"/opt/scripts/watermark.png",
		"/data/alice/files/report.pdf",
		"-c",
	}
	if len(r.calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(r.calls))
	}
	if got := r.calls[0]; !slices.Equal(got, want) {
		t.Errorf("argv = %q, want %q", got, want)
	}
}

func TestApplyFailure(t *testing.T) {
	r := &fakeRunner{fail: true}
	s := NewStamper(types.WatermarkConfig{Binary: "markpdf", Stamp: "s.png"}, r)

	res := s.Apply(context.Background(), "a.pdf")

	if res.OK() {
		t.Fatal("expected failure, got success")
	}
	if res.ExitStatus() != 2 {
		t.Errorf("exit status = %d, want 2", res.ExitStatus())
	}
}
