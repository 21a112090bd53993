package compiler

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/ajanta/internal/stubs"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// StubObjects are the compiled stub objects.
type StubObjects struct {
	Entry   string
	Runtime string
	Exports string
}

// Composer compiles the stub set. Stubs always use the C compiler, never
// the C++ pairing, and never receive guest CFlags.
type Composer struct {
	Runner   toolchain.Runner
	Logger   *slog.Logger
	Compiler string

	// Parallel compiles the three stubs concurrently. They share no
	// inputs, so the result is identical either way.
	Parallel bool
}

// StubInvocation builds the compile command for one stub.
func (c *Composer) StubInvocation(stub stubs.Stub, source, object string) toolchain.Invocation {
	args := append([]string{}, BaselineFlags...)
	if stub.Profile == stubs.ProfileFreestanding {
		args = append(args, FreestandingFlags...)
	}
	args = append(args, "-c", source, "-o", object)

	cc := c.Compiler
	if cc == "" {
		cc = DefaultCompiler
	}
	return toolchain.Invocation{
		Tool:        cc,
		Args:        args,
		Description: "compile " + stub.Name + " stub",
	}
}

// Compile builds every stub in tree into objects under ws. Failures are
// CompileErrors.
func (c *Composer) Compile(ctx context.Context, tree *stubs.Tree, ws *toolchain.Workspace) (StubObjects, error) {
	objs := StubObjects{
		Entry:   ws.Path(stubs.Entry.Object()),
		Runtime: ws.Path(stubs.Runtime.Object()),
		Exports: ws.Path(stubs.Exports.Object()),
	}
	jobs := []struct {
		stub stubs.Stub
		obj  string
	}{
		{stubs.Entry, objs.Entry},
		{stubs.Runtime, objs.Runtime},
		{stubs.Exports, objs.Exports},
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger.Info("compiling stubs", "parallel", c.Parallel)

	if !c.Parallel {
		for _, j := range jobs {
			if err := run(ctx, c.Runner, c.StubInvocation(j.stub, tree.Path(j.stub), j.obj)); err != nil {
				return StubObjects{}, err
			}
		}
		return objs, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, j := range jobs {
		inv := c.StubInvocation(j.stub, tree.Path(j.stub), j.obj)
		g.Go(func() error {
			return run(gctx, c.Runner, inv)
		})
	}
	if err := g.Wait(); err != nil {
		return StubObjects{}, err
	}
	return objs, nil
}
