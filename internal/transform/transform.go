// Package transform converts a linked relocatable image into a bytecode
// program through an external transformer, and builds the stripped and
// unstripped program variants a build needs.
package transform

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/program"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// DefaultCommand is the transformer binary.
const DefaultCommand = "polkatool"

// Transformer turns image bytes into program container bytes. The
// transformer resolves dispatch symbols against the image's exports.
type Transformer interface {
	Transform(ctx context.Context, image []byte, dispatch []string, strip bool) ([]byte, error)
}

// ExecTransformer runs an external transformer binary. Each call uses its
// own scratch directory.
type ExecTransformer struct {
	Runner  toolchain.Runner
	Logger  *slog.Logger
	Command string
	// ExtraArgs are inserted after the subcommand and before the fixed flags.
	ExtraArgs []string
	// TempDir is the parent for scratch directories. Empty means the system default.
	TempDir string
}

// Invocation builds the transformer command line.
func (t *ExecTransformer) Invocation(input, output string, dispatch []string, strip bool) toolchain.Invocation {
	cmd := t.Command
	if cmd == "" {
		cmd = DefaultCommand
	}
	args := []string{"link"}
	args = append(args, t.ExtraArgs...)
	if strip {
		args = append(args, "--strip")
	}
	if len(dispatch) > 0 {
		args = append(args, "--dispatch-table", strings.Join(dispatch, ","))
	}
	args = append(args, "-o", output, input)

	desc := "transform ELF"
	if strip {
		desc = "transform ELF (stripped)"
	}
	return toolchain.Invocation{Tool: cmd, Args: args, Description: desc}
}

// Transform implements Transformer.
func (t *ExecTransformer) Transform(ctx context.Context, image []byte, dispatch []string, strip bool) ([]byte, error) {
	ws, err := toolchain.NewWorkspace(t.TempDir)
	if err != nil {
		return nil, err
	}
	defer func() { _ = ws.Close() }()

	input := ws.Path("linked.elf")
	output := ws.Path("program.polkavm")
	if err := os.WriteFile(input, image, 0o600); err != nil {
		return nil, errs.IO("write image", input, err)
	}

	inv := t.Invocation(input, output, dispatch, strip)
	if t.Logger != nil {
		t.Logger.Debug("transforming", "command", inv.String())
	}
	res, err := t.Runner.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	if err := res.Check(errs.KindTransform, "transform", inv); err != nil {
		return nil, err
	}

	out, err := os.ReadFile(output)
	if err != nil {
		return nil, errs.IO("read program", output, err)
	}
	return out, nil
}

// Variant is one transform result.
type Variant struct {
	Stripped bool
	Raw      []byte
	Parts    *program.Parts
	Dispatch program.DispatchTable
}

// Adapter calls a Transformer with the fixed dispatch symbol list and
// parses its output.
type Adapter struct {
	Transformer Transformer
	Logger      *slog.Logger
}

// Variant produces one program variant. The image is not modified.
func (a *Adapter) Variant(ctx context.Context, image []byte, strip bool) (*Variant, error) {
	raw, err := a.Transformer.Transform(ctx, bytes.Clone(image), program.DispatchSymbols(), strip)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) {
			return nil, err
		}
		return nil, errs.New(errs.KindTransform).Stage("transform").Cause(err).Build()
	}

	parts, err := program.Parse(raw)
	if err != nil {
		return nil, errs.New(errs.KindTransform).Stage("transform").
			Detail("transformer produced an unreadable program").Cause(err).Build()
	}
	if strip && parts.HasDebugInfo() {
		if a.Logger != nil {
			a.Logger.Warn("transformer left debug sections in stripped output; removing them")
		}
		parts = parts.Strip()
	}

	v := &Variant{
		Stripped: strip,
		Raw:      raw,
		Parts:    parts,
		Dispatch: program.NewDispatchTable(parts.Exports),
	}
	if a.Logger != nil {
		a.Logger.Info("transformed", "stripped", strip, "code_bytes", len(parts.Code.Instructions),
			"unresolved_dispatch", v.Dispatch.Unresolved())
	}
	return v, nil
}

// Both produces the stripped deployment variant and the unstripped debug
// variant as two independent calls on the same image.
func (a *Adapter) Both(ctx context.Context, image []byte) (stripped, debug *Variant, err error) {
	if stripped, err = a.Variant(ctx, image, true); err != nil {
		return nil, nil, err
	}
	if debug, err = a.Variant(ctx, image, false); err != nil {
		return nil, nil, err
	}
	return stripped, debug, nil
}
