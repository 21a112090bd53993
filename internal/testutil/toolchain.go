package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// FakeToolchain records every invocation and, unless told to fail, writes
// the command line to the -o output path as the produced artifact.
type FakeToolchain struct {
	mu       sync.Mutex
	calls    []toolchain.Invocation
	failures []failure
}

type failure struct {
	match  string
	result toolchain.Result
}

// NewFakeToolchain creates an empty fake.
func NewFakeToolchain() *FakeToolchain {
	return &FakeToolchain{}
}

// Fail makes every invocation whose tool or description contains match
// exit non-zero with the given stderr.
func (f *FakeToolchain) Fail(match string, exitCode int, stderr string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, failure{
		match:  match,
		result: toolchain.Result{ExitCode: exitCode, Stdout: []byte("fake stdout"), Stderr: []byte(stderr)},
	})
}

// Run implements toolchain.Runner.
func (f *FakeToolchain) Run(_ context.Context, inv toolchain.Invocation) (toolchain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	for _, fl := range f.failures {
		if strings.Contains(inv.Tool, fl.match) || strings.Contains(inv.Description, fl.match) {
			f.mu.Unlock()
			return fl.result, nil
		}
	}
	f.mu.Unlock()

	if out := inv.Output(); out != "" {
		if !filepath.IsAbs(out) && inv.Dir != "" {
			out = filepath.Join(inv.Dir, out)
		}
		if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
			return toolchain.Result{}, err
		}
		if err := os.WriteFile(out, []byte(inv.String()), 0o600); err != nil {
			return toolchain.Result{}, err
		}
	}
	return toolchain.Result{}, nil
}

// Invocations returns a copy of the recorded calls in call order.
func (f *FakeToolchain) Invocations() []toolchain.Invocation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]toolchain.Invocation, len(f.calls))
	copy(out, f.calls)
	return out
}

// Find returns the first invocation whose description contains s.
func (f *FakeToolchain) Find(s string) (toolchain.Invocation, bool) {
	for _, inv := range f.Invocations() {
		if strings.Contains(inv.Description, s) {
			return inv, true
		}
	}
	return toolchain.Invocation{}, false
}
