// Package toolchain runs external build tools behind a narrow interface so
// that compile, link and transform stages can be driven by an in-process
// implementation in tests.
package toolchain

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// Invocation is one external tool call.
type Invocation struct {
	Tool        string
	Args        []string
	Dir         string
	Description string
}

// String renders the command line.
func (i Invocation) String() string {
	return strings.Join(append([]string{i.Tool}, i.Args...), " ")
}

// Output returns the argument following -o, or "" when there is none.
func (i Invocation) Output() string {
	for n, a := range i.Args {
		if (a == "-o" || a == "--output") && n+1 < len(i.Args) {
			return i.Args[n+1]
		}
	}
	return ""
}

// Result is the captured outcome of a finished tool.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports a zero exit status.
func (r Result) Success() bool {
	return r.ExitCode == 0
}

// Check converts a non-zero exit into an error of the given kind carrying
// the tool's output verbatim.
func (r Result) Check(kind errs.Kind, stage string, inv Invocation) error {
	if r.Success() {
		return nil
	}
	return errs.New(kind).
		Stage(stage).
		Tool(inv.Tool).
		Detailf("command failed for %s: exit status %d", inv.Description, r.ExitCode).
		Output(r.Stdout, r.Stderr).
		Build()
}

// Runner executes an invocation to completion. A non-zero exit is reported
// in Result, not as an error; the error is reserved for failing to run the
// tool at all.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation) (Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (Result, error) {
	return f(ctx, inv)
}

// ExecRunner runs tools as child processes and blocks for their full
// lifetime. No timeout is applied.
type ExecRunner struct {
	Logger *slog.Logger
}

// NewExecRunner creates an ExecRunner. A nil logger discards output.
func NewExecRunner(logger *slog.Logger) *ExecRunner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExecRunner{Logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (Result, error) {
	r.Logger.Debug("running tool", "description", inv.Description, "command", inv.String())

	cmd := exec.CommandContext(ctx, inv.Tool, inv.Args...)
	cmd.Dir = inv.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			r.Logger.Debug("tool failed", "description", inv.Description, "exit_code", res.ExitCode)
			return res, nil
		}
		return res, errs.New(errs.KindIO).
			Stage("spawn").
			Tool(inv.Tool).
			Detailf("failed to run %s", inv.Description).
			Cause(err).
			Build()
	}
	return res, nil
}

// LookPath reports where a tool resolves on PATH.
func LookPath(tool string) (string, error) {
	return exec.LookPath(tool)
}
