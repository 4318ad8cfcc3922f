// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package watermark stamps PDFs in place through the external markpdf tool.
// The tool is opaque: given a content PDF and a stamp image it overlays the
// stamp on every page and writes the result to the output path.
package watermark

import (
	"context"

	"github.com/pdiddy/watermark-hook/internal/command"
	"github.com/pdiddy/watermark-hook/pkg/types"
)

// cloneFlag tells markpdf to carry the source document's metadata over.
const cloneFlag = "-c"

// Runner executes one external command.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) command.Result
}

// Stamper applies a fixed stamp image with a fixed binary.
type Stamper struct {
	binary string
	stamp  string
	runner Runner
}

// NewStamper returns a Stamper for the binary and stamp in cfg.
func NewStamper(cfg types.WatermarkConfig, r Runner) *Stamper {
	return &Stamper{binary: cfg.Binary, stamp: cfg.Stamp, runner: r}
}

// Args returns the argument list (without the program) that stamps content
// onto itself.
func (s *Stamper) Args(content string) []string {
	return []string{content, s.stamp, content, cloneFlag}
}

// Apply stamps the PDF at content in place. It blocks until the tool exits.
func (s *Stamper) Apply(ctx context.Context, content string) command.Result {
	return s.runner.Run(ctx, s.binary, s.Args(content)...)
}
