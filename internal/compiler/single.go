package compiler

import (
	"context"
	"log/slog"

	"github.com/leapstack-labs/ajanta/internal/stubs"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// DefaultSingleCallCompiler compiles and links guest and stubs in one call.
const DefaultSingleCallCompiler = "polkavm-cc"

// SingleCallFlags is the fixed profile of the single-call front end. It
// omits -mabi and -nostdlib because the wrapper supplies both.
var SingleCallFlags = []string{"-march=rv64imac", "-mno-relax", "-ffreestanding", "-fno-builtin", "-Os"}

// SingleCall builds the relocatable image from the guest and the stub
// sources with one compiler invocation.
type SingleCall struct {
	Runner   toolchain.Runner
	Logger   *slog.Logger
	Compiler string
	CFlags   []string
}

// Invocation builds the one-shot command line.
func (s *SingleCall) Invocation(source string, tree *stubs.Tree, output string) toolchain.Invocation {
	cc := s.Compiler
	if cc == "" {
		cc = DefaultSingleCallCompiler
	}
	args := append([]string{}, SingleCallFlags...)
	args = append(args, source)
	for _, st := range stubs.All() {
		args = append(args, tree.Path(st))
	}
	args = append(args, "-o", output)
	args = append(args, s.CFlags...)
	args = append(args, "-I", tree.IncludeDir)
	return toolchain.Invocation{Tool: cc, Args: args, Description: "compile and link guest"}
}

// Build runs the single call. A non-zero exit is a CompileError.
func (s *SingleCall) Build(ctx context.Context, source string, tree *stubs.Tree, output string) error {
	inv := s.Invocation(source, tree, output)
	if s.Logger != nil {
		s.Logger.Info("compiling and linking", "source", source, "compiler", inv.Tool)
	}
	return run(ctx, s.Runner, inv)
}
