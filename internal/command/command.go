// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package command runs external programs and reports each invocation as an
// explicit Result instead of a bare error, so callers can compose steps and
// propagate the child's exit code.
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

// outputTail is how many trailing bytes of combined output a Result keeps.
const outputTail = 4096

// Result describes one finished (or unstartable) external command.
type Result struct {
	// Args is the full argv; Args[0] is the program.
	Args []string

	// ExitCode is the child's exit status, or -1 when it never started or
	// was terminated by a signal.
	ExitCode int

	// Output holds the tail of the combined stdout and stderr.
	Output string

	// Err is nil on success.
	Err error
}

// OK reports whether the command ran and exited zero.
func (r Result) OK() bool { return r.Err == nil }

// ExitStatus maps the result to a process exit status: 0 on success, the
// child's code when it exited non-zero, and 1 otherwise.
func (r Result) ExitStatus() int {
	switch {
	case r.Err == nil:
		return 0
	case r.ExitCode > 0:
		return r.ExitCode
	default:
		return 1
	}
}

// CommandLine renders Args for logs.
func (r Result) CommandLine() string {
	return strings.Join(r.Args, " ")
}

// executor abstracts process execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// Runner executes commands synchronously. Child output is echoed to the
// configured writers and a tail of it is kept in the Result.
type Runner struct {
	exec    executor
	stdout  io.Writer
	stderr  io.Writer
	timeout time.Duration
}

// NewRunner returns a Runner that echoes child output to stdout and stderr.
// A zero timeout lets commands run until they exit.
func NewRunner(stdout, stderr io.Writer, timeout time.Duration) *Runner {
	return newRunner(&osExecutor{}, stdout, stderr, timeout)
}

func newRunner(exec executor, stdout, stderr io.Writer, timeout time.Duration) *Runner {
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}
	return &Runner{exec: exec, stdout: stdout, stderr: stderr, timeout: timeout}
}

// LookPath resolves a program name the same way Run does.
func (r *Runner) LookPath(name string) (string, error) {
	return r.exec.LookPath(name)
}

// Run executes name with args and blocks until it exits.
func (r *Runner) Run(ctx context.Context, name string, args ...string) Result {
	res := Result{
		Args:     append([]string{name}, args...),
		ExitCode: -1,
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	tail := &tailBuffer{max: outputTail}
	err := r.exec.Run(ctx, name, args,
		io.MultiWriter(r.stdout, tail),
		io.MultiWriter(r.stderr, tail),
	)
	res.Output = tail.String()

	if err == nil {
		res.ExitCode = 0
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		res.Err = fmt.Errorf("running %s: %w", name, ctxErr)
		return res
	}
	if res.ExitCode > 0 {
		res.Err = fmt.Errorf("%s exited with status %d", name, res.ExitCode)
		return res
	}
	res.Err = fmt.Errorf("running %s: %w", name, err)
	return res
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(string(t.buf))
}
