package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/disasm"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/testutil"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

const guestSource = `#include "ajanta_guest.h"

AJANTA_EXPORT(uint64_t, refine_ext, void) { return 0; }
`

type recorder struct {
	mu      sync.Mutex
	reports []*Report
	err     error
}

func (r *recorder) Record(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, report)
	return r.err
}

type fixture struct {
	dir       string
	scratch   string
	source    string
	toolchain *testutil.FakeToolchain
	tr        *testutil.FakeTransformer
	states    []State
	p         *Pipeline
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:       dir,
		scratch:   filepath.Join(dir, "scratch"),
		source:    filepath.Join(dir, "service.c"),
		toolchain: testutil.NewFakeToolchain(),
		tr:        testutil.NewFakeTransformer(),
	}
	require.NoError(t, os.WriteFile(f.source, []byte(guestSource), 0o600))
	require.NoError(t, os.Mkdir(f.scratch, 0o750))

	opts.TempDir = f.scratch
	f.p = New(opts, f.toolchain, f.tr, testutil.NewTestLogger(t))
	f.p.Observer = func(s State) { f.states = append(f.states, s) }
	return f
}

func (f *fixture) request(t *testing.T, output string, metadata []byte) Request {
	t.Helper()
	req, err := NewRequest(f.source, output, metadata)
	require.NoError(t, err)
	return req
}

func (f *fixture) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.scratch)
	require.NoError(t, err)
	assert.Empty(t, entries, "build workspace must be removed")
}

func TestDebugPath(t *testing.T) {
	tests := []struct {
		output string
		want   string
	}{
		{"build/service.pvm", filepath.Join("build", "service.debug.pvm")},
		{"out/deep/app.bin", filepath.Join("out", "deep", "app.debug.pvm")},
		{"service", "service.debug.pvm"},
		{"/srv/a.b.pvm", "/srv/a.b.debug.pvm"},
	}
	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			assert.Equal(t, tt.want, DebugPath(tt.output))
		})
	}
}

func TestNewRequest(t *testing.T) {
	_, err := NewRequest("", "", nil)
	assert.ErrorIs(t, err, errs.ErrArgument)

	_, err = NewRequest("service.c", "build/", nil)
	assert.ErrorIs(t, err, errs.ErrArgument)

	req, err := NewRequest("service.c", "", nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(DefaultOutput), req.Output())
	assert.Equal(t, filepath.Join("build", "service.debug.pvm"), req.DebugPath())
	assert.Empty(t, req.Metadata())

	meta := []byte("abi=1")
	req, err = NewRequest("service.c", "", meta)
	require.NoError(t, err)
	meta[0] = 'X'
	got := req.Metadata()
	assert.Equal(t, []byte("abi=1"), got)
	got[0] = 'Y'
	assert.Equal(t, []byte("abi=1"), req.Metadata())
}

func TestRequest_WithToolchain(t *testing.T) {
	base, err := NewRequest("service.c", "", nil)
	require.NoError(t, err)
	assert.Empty(t, base.Compiler())
	assert.Nil(t, base.CFlags())

	flags := []string{"-O2"}
	req := base.WithToolchain("clang", flags)
	flags[0] = "-O0"
	assert.Equal(t, "clang", req.Compiler())
	assert.Equal(t, []string{"-O2"}, req.CFlags())
	assert.Empty(t, base.Compiler(), "the original request is unchanged")

	cleared := base.WithToolchain("", []string{})
	assert.NotNil(t, cleared.CFlags())
	assert.Empty(t, cleared.CFlags())
}

func TestBuild_PerRequestToolchain(t *testing.T) {
	f := newFixture(t, Options{CFlags: []string{"-DCONFIGURED"}})

	_, err := f.p.Build(context.Background(), f.request(t, filepath.Join(f.dir, "a.pvm"), nil))
	require.NoError(t, err)
	req := f.request(t, filepath.Join(f.dir, "b.pvm"), nil).WithToolchain("clang", []string{"-O2"})
	_, err = f.p.Build(context.Background(), req)
	require.NoError(t, err)

	var guest []toolchain.Invocation
	for _, inv := range f.toolchain.Invocations() {
		if inv.Description == "compile guest source" {
			guest = append(guest, inv)
		}
	}
	require.Len(t, guest, 2)
	assert.Equal(t, "riscv64-elf-gcc", guest[0].Tool)
	assert.Contains(t, guest[0].Args, "-DCONFIGURED")
	assert.Equal(t, "clang", guest[1].Tool)
	assert.Contains(t, guest[1].Args, "-O2")
	assert.NotContains(t, guest[1].Args, "-DCONFIGURED")
	assert.Empty(t, f.p.Driver.Override, "per-request settings do not leak into the pipeline")
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StateInit, StateCompiling))
	assert.True(t, CanTransition(StateEncoding, StateDone))
	assert.False(t, CanTransition(StateInit, StateLinking))
	assert.False(t, CanTransition(StateDone, StateFailed))
	assert.False(t, CanTransition(StateFailed, StateCompiling))
	for s := StateInit; s < StateDone; s++ {
		assert.True(t, CanTransition(s, StateFailed), s.String())
	}
	assert.Equal(t, "stub_building", StateStubBuilding.String())
	assert.Equal(t, "unknown", State(99).String())
}

func TestBuild_EndToEnd(t *testing.T) {
	f := newFixture(t, Options{})
	t.Chdir(f.dir)

	res, err := f.p.Build(context.Background(), f.request(t, "", nil))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("build", "service.pvm"), res.Output)
	assert.Equal(t, filepath.Join("build", "service.debug.pvm"), res.DebugOutput)

	deploy, err := blob.ReadFile(filepath.Join("build", "service.pvm"))
	require.NoError(t, err)
	assert.Empty(t, deploy.Metadata)
	assert.False(t, deploy.Program.HasDebugInfo())

	debug, err := blob.ReadFile(filepath.Join("build", "service.debug.pvm"))
	require.NoError(t, err)
	assert.True(t, debug.Program.HasDebugInfo())

	var listing bytes.Buffer
	require.NoError(t, disasm.DisassembleFile(&listing, res.DebugOutput, disasm.Options{Format: disasm.FormatGuest}))
	assert.Contains(t, listing.String(), "load_imm a0, 0")

	assert.Equal(t, []State{
		StateInit, StateCompiling, StateStubBuilding, StateLinking,
		StateTransforming, StateEncoding, StateDone,
	}, f.states)

	var descs []string
	for _, inv := range f.toolchain.Invocations() {
		descs = append(descs, inv.Description)
	}
	assert.Equal(t, []string{
		"compile guest source",
		"compile entry stub", "compile runtime stub", "compile exports stub",
		"link ELF",
	}, descs)

	guest, ok := f.toolchain.Find("compile guest source")
	require.True(t, ok)
	assert.Contains(t, guest.Args, "-I")

	calls := f.tr.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].Strip)
	assert.False(t, calls[1].Strip)

	f.assertScratchEmpty(t)
}

func TestBuild_NoPartialOutputOnCompileFailure(t *testing.T) {
	f := newFixture(t, Options{})
	out := filepath.Join(f.dir, "build", "service.pvm")
	require.NoError(t, os.MkdirAll(filepath.Dir(out), 0o750))
	require.NoError(t, os.WriteFile(DebugPath(out), []byte("previous"), 0o600))

	f.toolchain.Fail("compile guest source", 1, "service.c:3:1: error: unknown type name 'lng'")
	rec := &recorder{}
	f.p.Recorder = rec

	_, err := f.p.Build(context.Background(), f.request(t, out, nil))
	require.ErrorIs(t, err, errs.ErrCompile)
	assert.Contains(t, err.Error(), "unknown type name 'lng'")
	assert.Contains(t, err.Error(), "fake stdout")

	assert.NoFileExists(t, out)
	prev, err := os.ReadFile(DebugPath(out))
	require.NoError(t, err)
	assert.Equal(t, []byte("previous"), prev)

	_, linked := f.toolchain.Find("link ELF")
	assert.False(t, linked, "no stage runs after a failure")
	assert.Empty(t, f.tr.Calls())
	assert.Equal(t, StateFailed, f.states[len(f.states)-1])

	require.Len(t, rec.reports, 1)
	assert.Equal(t, StateFailed, rec.reports[0].State)
	assert.Equal(t, StateCompiling, rec.reports[0].Reached)
	f.assertScratchEmpty(t)
}

func TestBuild_StageFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		kind    error
		reached State
	}{
		{
			name:    "stub compile",
			setup:   func(f *fixture) { f.toolchain.Fail("compile runtime stub", 1, "runtime.c: error") },
			kind:    errs.ErrCompile,
			reached: StateStubBuilding,
		},
		{
			name:    "link",
			setup:   func(f *fixture) { f.toolchain.Fail("riscv64-elf-ld", 1, "undefined reference to `memcpy'") },
			kind:    errs.ErrLink,
			reached: StateLinking,
		},
		{
			name:    "transform",
			setup:   func(f *fixture) { f.tr.Err = errors.New("unsupported relocation") },
			kind:    errs.ErrTransform,
			reached: StateTransforming,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			tt.setup(f)
			rec := &recorder{}
			f.p.Recorder = rec
			out := filepath.Join(f.dir, "build", "service.pvm")

			_, err := f.p.Build(context.Background(), f.request(t, out, nil))
			require.ErrorIs(t, err, tt.kind)
			assert.NoFileExists(t, out)
			assert.NoFileExists(t, DebugPath(out))
			require.Len(t, rec.reports, 1)
			assert.Equal(t, tt.reached, rec.reports[0].Reached)
			f.assertScratchEmpty(t)
		})
	}
}

func TestBuild_Deterministic(t *testing.T) {
	f := newFixture(t, Options{})
	a := filepath.Join(f.dir, "a", "service.pvm")
	b := filepath.Join(f.dir, "b", "service.pvm")

	ra, err := f.p.Build(context.Background(), f.request(t, a, nil))
	require.NoError(t, err)
	rb, err := f.p.Build(context.Background(), f.request(t, b, nil))
	require.NoError(t, err)

	assert.Equal(t, ra.DeployBlob, rb.DeployBlob)
	da, err := os.ReadFile(a)
	require.NoError(t, err)
	db, err := os.ReadFile(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestBuild_Metadata(t *testing.T) {
	f := newFixture(t, Options{})
	out := filepath.Join(f.dir, "service.pvm")

	_, err := f.p.Build(context.Background(), f.request(t, out, []byte(`{"abi":1}`)))
	require.NoError(t, err)

	for _, path := range []string{out, DebugPath(out)} {
		b, err := blob.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"abi":1}`), b.Metadata)
	}
}

func TestBuild_RecorderFailureDoesNotFailBuild(t *testing.T) {
	f := newFixture(t, Options{})
	rec := &recorder{err: errors.New("database is locked")}
	f.p.Recorder = rec

	res, err := f.p.Build(context.Background(), f.request(t, filepath.Join(f.dir, "service.pvm"), nil))
	require.NoError(t, err)
	require.Len(t, rec.reports, 1)
	assert.Equal(t, StateDone, rec.reports[0].State)
	assert.Same(t, res, rec.reports[0].Result)
	assert.Equal(t, "toolchain", rec.reports[0].Frontend)
	assert.False(t, rec.reports[0].FinishedAt.Before(rec.reports[0].StartedAt))
}

func TestBuild_ParallelStubs(t *testing.T) {
	f := newFixture(t, Options{ParallelStubs: true})

	_, err := f.p.Build(context.Background(), f.request(t, filepath.Join(f.dir, "service.pvm"), nil))
	require.NoError(t, err)

	var descs []string
	for _, inv := range f.toolchain.Invocations() {
		descs = append(descs, inv.Description)
	}
	sort.Strings(descs)
	assert.Equal(t, []string{
		"compile entry stub", "compile exports stub", "compile guest source",
		"compile runtime stub", "link ELF",
	}, descs)
}

func TestBuild_MissingExportsWarnOnly(t *testing.T) {
	f := newFixture(t, Options{})
	elfRunner := toolchain.RunnerFunc(func(ctx context.Context, inv toolchain.Invocation) (toolchain.Result, error) {
		res, err := f.toolchain.Run(ctx, inv)
		if err != nil || inv.Description != "link ELF" {
			return res, err
		}
		image := testutil.BuildRelocatableELF([]string{"_start", "refine_ext"}, []string{"memcpy"})
		return res, os.WriteFile(inv.Output(), image, 0o600)
	})
	f.p.Linker.Runner = elfRunner

	res, err := f.p.Build(context.Background(), f.request(t, filepath.Join(f.dir, "service.pvm"), nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"accumulate_ext", "on_transfer_ext"}, res.MissingExports)
}

func TestBuildSingleCall(t *testing.T) {
	f := newFixture(t, Options{CFlags: []string{"-DSERVICE=1"}})
	out := filepath.Join(f.dir, "build", "service.pvm")

	res, err := f.p.BuildSingleCall(context.Background(), f.request(t, out, nil))
	require.NoError(t, err)
	assert.FileExists(t, out)
	assert.FileExists(t, DebugPath(out))
	assert.Equal(t, "refine_ext", res.Deploy.Dispatch[0].Symbol)

	invs := f.toolchain.Invocations()
	require.Len(t, invs, 1)
	assert.Equal(t, "polkavm-cc", invs[0].Tool)
	assert.Contains(t, invs[0].Args, "-DSERVICE=1")
	assert.Equal(t, StateDone, f.states[len(f.states)-1])
	f.assertScratchEmpty(t)
}

func TestBuildSingleCall_Failure(t *testing.T) {
	f := newFixture(t, Options{})
	f.toolchain.Fail("polkavm-cc", 2, "ld.lld: error: undefined symbol: host_call")
	out := filepath.Join(f.dir, "service.pvm")

	_, err := f.p.BuildSingleCall(context.Background(), f.request(t, out, nil))
	require.ErrorIs(t, err, errs.ErrCompile)
	assert.NoFileExists(t, out)
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "service.pvm")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	require.NoError(t, writeFileAtomic(path, []byte("new")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), data)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not remain")

	err = writeFileAtomic(filepath.Join(dir, "missing", "x.pvm"), []byte("x"))
	assert.ErrorIs(t, err, errs.ErrIO)
}

func TestWriteFilesAtomic_StagesBeforeRenaming(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "service.pvm")
	require.NoError(t, os.WriteFile(first, []byte("old"), 0o600))

	err := writeFilesAtomic(
		pendingFile{path: first, data: []byte("new")},
		pendingFile{path: filepath.Join(dir, "missing", "service.debug.pvm"), data: []byte("dbg")},
	)
	require.ErrorIs(t, err, errs.ErrIO)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data, "no target changes when a later file cannot be staged")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not remain")
}

func TestBuild_DebugWriteFailureKeepsDeployBlob(t *testing.T) {
	f := newFixture(t, Options{})
	outDir := filepath.Join(f.dir, "out")
	out := filepath.Join(outDir, "service.pvm")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "service.debug.pvm", "busy"), 0o750))
	require.NoError(t, os.WriteFile(out, []byte("old"), 0o600))

	_, err := f.p.Build(context.Background(), f.request(t, out, nil))
	require.ErrorIs(t, err, errs.ErrIO)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data, "deployment blob is not replaced when the debug blob fails")
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files must not remain")
	f.assertScratchEmpty(t)
}
