package compiler

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// Driver compiles guest sources.
type Driver struct {
	Runner toolchain.Runner
	Logger *slog.Logger

	// Compiler is the configured C compiler. Empty means DefaultCompiler.
	Compiler string
	// CXXCompiler overrides the C++ driver paired with Compiler.
	CXXCompiler string
	// Override is a compiler named for a single build. Unless it equals the
	// configured compiler it is used as given, for C and C++ sources alike.
	Override string
	// CFlags are appended after the profile and input/output arguments.
	CFlags []string
	// IncludeDirs are passed as -I after CFlags.
	IncludeDirs []string
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return d.Logger
}

// CCompiler is the effective C compiler.
func (d *Driver) CCompiler() string {
	if d.Compiler == "" {
		return DefaultCompiler
	}
	return d.Compiler
}

// CompilerFor selects the compiler binary for a source. A C++ source
// switches to the C++ driver paired with the configured compiler unless
// the build named a different compiler. Naming the configured compiler
// again still pairs.
func (d *Driver) CompilerFor(source string) string {
	if d.Override != "" && d.Override != d.CCompiler() {
		return d.Override
	}
	cc := d.CCompiler()
	if !IsCXXSource(source) {
		return cc
	}
	if d.CXXCompiler != "" {
		return d.CXXCompiler
	}
	return PairedCXXCompiler(cc)
}

// GuestInvocation builds the compile command for a guest source.
func (d *Driver) GuestInvocation(source, object string) toolchain.Invocation {
	args := GuestFlags(IsCXXSource(source))
	args = append(args, "-c", source, "-o", object)
	args = append(args, d.CFlags...)
	for _, dir := range d.IncludeDirs {
		args = append(args, "-I", dir)
	}
	return toolchain.Invocation{
		Tool:        d.CompilerFor(source),
		Args:        args,
		Description: "compile guest source",
	}
}

// CompileGuest compiles source into object. A non-zero compiler exit is a
// CompileError carrying the captured output.
func (d *Driver) CompileGuest(ctx context.Context, source, object string) error {
	inv := d.GuestInvocation(source, object)
	d.logger().Info("compiling guest", "source", source, "compiler", inv.Tool, "cxx", IsCXXSource(source))
	return run(ctx, d.Runner, inv)
}

func run(ctx context.Context, r toolchain.Runner, inv toolchain.Invocation) error {
	res, err := r.Run(ctx, inv)
	if err != nil {
		return err
	}
	return res.Check(errs.KindCompile, "compile", inv)
}
