// Package pipeline runs a build from guest source to deployment and debug
// blobs: compile, build stubs, link, transform twice, encode, write.
package pipeline

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/compiler"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/linker"
	"github.com/leapstack-labs/ajanta/internal/program"
	"github.com/leapstack-labs/ajanta/internal/stubs"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
	"github.com/leapstack-labs/ajanta/internal/transform"
)

// Options configure the toolchain used by a Pipeline. A Request may name
// its own compiler and flags, which take precedence for that build.
type Options struct {
	Compiler           string
	CXXCompiler        string
	Linker             string
	SingleCallCompiler string
	CFlags             []string
	ParallelStubs      bool
	// TempDir is the parent for build workspaces. Empty means the system default.
	TempDir string
}

// Recorder receives a report after every run, successful or not.
type Recorder interface {
	Record(ctx context.Context, report *Report) error
}

// Result describes a successful build.
type Result struct {
	Output         string
	DebugOutput    string
	Deploy         *transform.Variant
	Debug          *transform.Variant
	DeployBlob     []byte
	DebugBlob      []byte
	MissingExports []string
}

// Report is what a Recorder sees for one run.
type Report struct {
	Request    Request
	Frontend   string
	State      State
	Reached    State
	Err        error
	Result     *Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Pipeline holds the stage collaborators. It is safe to run several builds
// with one Pipeline as long as they target different outputs.
type Pipeline struct {
	Driver   *compiler.Driver
	Composer *compiler.Composer
	Linker   *linker.Linker
	Single   *compiler.SingleCall
	Adapter  *transform.Adapter
	Logger   *slog.Logger
	TempDir  string
	Recorder Recorder
	// Observer, if set, is called on every state transition.
	Observer func(State)
}

// New wires a Pipeline whose external tools all run through runner.
func New(opts Options, runner toolchain.Runner, tr transform.Transformer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		Driver: &compiler.Driver{
			Runner:      runner,
			Logger:      logger,
			Compiler:    opts.Compiler,
			CXXCompiler: opts.CXXCompiler,
			CFlags:      slices.Clone(opts.CFlags),
		},
		Composer: &compiler.Composer{
			Runner:   runner,
			Logger:   logger,
			Compiler: opts.Compiler,
			Parallel: opts.ParallelStubs,
		},
		Linker: &linker.Linker{Runner: runner, Logger: logger, Tool: opts.Linker},
		Single: &compiler.SingleCall{
			Runner:   runner,
			Logger:   logger,
			Compiler: opts.SingleCallCompiler,
			CFlags:   slices.Clone(opts.CFlags),
		},
		Adapter: &transform.Adapter{Transformer: tr, Logger: logger},
		Logger:  logger,
		TempDir: opts.TempDir,
	}
}

// frontend produces the linked image inside a run.
type frontend func(ctx context.Context, r *run, tree *stubs.Tree) (*linker.Image, error)

// Build compiles the guest and the stubs separately and links them.
func (p *Pipeline) Build(ctx context.Context, req Request) (*Result, error) {
	return p.execute(ctx, req, "toolchain", p.separate)
}

// BuildSingleCall compiles and links guest and stubs in one compiler call,
// then transforms and encodes exactly as Build does.
func (p *Pipeline) BuildSingleCall(ctx context.Context, req Request) (*Result, error) {
	return p.execute(ctx, req, "single-call", p.single)
}

func (p *Pipeline) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// run tracks the state of one build.
type run struct {
	p       *Pipeline
	req     Request
	logger  *slog.Logger
	ws      *toolchain.Workspace
	state   State
	reached State
	started time.Time
}

func (r *run) enter(s State) {
	if !CanTransition(r.state, s) {
		r.logger.Error("invalid state transition", "from", r.state, "to", s)
		return
	}
	r.logger.Debug("state", "from", r.state, "to", s)
	r.state = s
	if s != StateFailed {
		r.reached = s
	}
	if r.p.Observer != nil {
		r.p.Observer(s)
	}
}

func (p *Pipeline) execute(ctx context.Context, req Request, name string, front frontend) (*Result, error) {
	r := &run{
		p:       p,
		req:     req,
		logger:  p.logger().With("source", req.Source(), "frontend", name),
		started: time.Now(),
	}
	if p.Observer != nil {
		p.Observer(StateInit)
	}

	res, err := r.build(ctx, front)
	if err != nil {
		r.enter(StateFailed)
		r.logger.Error("build failed", "stage", r.reached, "error", err)
	} else {
		r.logger.Info("build finished", "output", res.Output, "debug_output", res.DebugOutput,
			"duration", time.Since(r.started))
	}

	if p.Recorder != nil {
		report := &Report{
			Request:    req,
			Frontend:   name,
			State:      r.state,
			Reached:    r.reached,
			Err:        err,
			Result:     res,
			StartedAt:  r.started,
			FinishedAt: time.Now(),
		}
		if rerr := p.Recorder.Record(ctx, report); rerr != nil {
			r.logger.Warn("failed to record build", "error", rerr)
		}
	}
	return res, err
}

func (r *run) build(ctx context.Context, front frontend) (*Result, error) {
	req := r.req
	if req.Source() == "" {
		return nil, errs.Argument("no guest source given")
	}
	ws, err := toolchain.NewWorkspace(r.p.TempDir)
	if err != nil {
		return nil, err
	}
	r.ws = ws
	defer func() {
		if cerr := ws.Close(); cerr != nil {
			r.logger.Warn("failed to remove workspace", "dir", ws.Dir, "error", cerr)
		}
	}()

	tree, err := stubs.Materialize(ws.Dir)
	if err != nil {
		return nil, errs.New(errs.KindIO).Stage("materialize stubs").Path(ws.Dir).Cause(err).Build()
	}

	image, err := front(ctx, r, tree)
	if err != nil {
		return nil, err
	}
	missing := r.precheck(image)

	r.enter(StateTransforming)
	stripped, debug, err := r.p.Adapter.Both(ctx, image.Data)
	if err != nil {
		return nil, err
	}

	r.enter(StateEncoding)
	deployBlob, err := blob.Encode(stripped.Parts, req.Metadata())
	if err != nil {
		return nil, err
	}
	debugBlob, err := blob.Encode(debug.Parts, req.Metadata())
	if err != nil {
		return nil, err
	}

	out, dbg := req.Output(), req.DebugPath()
	if err := os.MkdirAll(filepath.Dir(out), 0o750); err != nil {
		return nil, errs.IO("create output directory", filepath.Dir(out), err)
	}
	// The deployment blob is renamed last so a failed debug write never
	// leaves a new deployment blob beside a stale debug blob.
	if err := writeFilesAtomic(
		pendingFile{path: dbg, data: debugBlob},
		pendingFile{path: out, data: deployBlob},
	); err != nil {
		return nil, err
	}

	r.enter(StateDone)
	return &Result{
		Output:         out,
		DebugOutput:    dbg,
		Deploy:         stripped,
		Debug:          debug,
		DeployBlob:     deployBlob,
		DebugBlob:      debugBlob,
		MissingExports: missing,
	}, nil
}

// precheck warns about dispatch symbols the image does not define. The
// transformer stays the authority, so this never fails the build.
func (r *run) precheck(image *linker.Image) []string {
	missing, err := linker.MissingSymbols(image.Data, program.DispatchSymbols())
	if err != nil {
		r.logger.Debug("skipping export check", "error", err)
		return nil
	}
	if len(missing) > 0 {
		r.logger.Warn("linked image does not define dispatch symbols", "missing", missing)
	}
	return missing
}

func (p *Pipeline) separate(ctx context.Context, r *run, tree *stubs.Tree) (*linker.Image, error) {
	guestObj := r.ws.Path("guest.o")

	r.enter(StateCompiling)
	d := *p.Driver
	d.IncludeDirs = append(slices.Clone(d.IncludeDirs), tree.IncludeDir)
	d.Override = r.req.Compiler()
	if cflags := r.req.CFlags(); cflags != nil {
		d.CFlags = cflags
	}
	if err := d.CompileGuest(ctx, r.req.Source(), guestObj); err != nil {
		return nil, err
	}

	r.enter(StateStubBuilding)
	c := *p.Composer
	if cc := r.req.Compiler(); cc != "" {
		c.Compiler = cc
	}
	objs, err := c.Compile(ctx, tree, r.ws)
	if err != nil {
		return nil, err
	}

	r.enter(StateLinking)
	list, err := linker.NewObjectList(objs.Entry, guestObj, objs.Runtime, objs.Exports)
	if err != nil {
		return nil, err
	}
	return p.Linker.Link(ctx, list, r.ws.Path("linked.elf"))
}

func (p *Pipeline) single(ctx context.Context, r *run, tree *stubs.Tree) (*linker.Image, error) {
	output := r.ws.Path("linked.elf")

	r.enter(StateCompiling)
	s := *p.Single
	if cc := r.req.Compiler(); cc != "" {
		s.Compiler = cc
	}
	if cflags := r.req.CFlags(); cflags != nil {
		s.CFlags = cflags
	}
	if err := s.Build(ctx, r.req.Source(), tree, output); err != nil {
		return nil, err
	}
	// Stubs were compiled and linked by the same call.
	r.enter(StateStubBuilding)
	r.enter(StateLinking)

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, errs.IO("read linked image", output, err)
	}
	return &linker.Image{Path: output, Data: data}, nil
}
