// Package linker merges the entry, guest, runtime and exports objects into
// one relocatable image.
package linker

import (
	"bytes"
	"context"
	"debug/elf"
	"fmt"
	"log/slog"
	"os"

	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
)

// DefaultLinker performs the relocatable link.
const DefaultLinker = "riscv64-elf-ld"

// ObjectList is the link input in its fixed positional order. The entry
// object comes first so process entry is at the lowest address, and the
// exports object follows the guest because its metadata refers to guest
// symbols by name.
type ObjectList struct {
	entry, guest, runtime, exports string
}

// NewObjectList validates and orders the four link inputs.
func NewObjectList(entry, guest, runtime, exports string) (ObjectList, error) {
	for role, p := range map[string]string{"entry": entry, "guest": guest, "runtime": runtime, "exports": exports} {
		if p == "" {
			return ObjectList{}, errs.New(errs.KindArgument).Stage("link").Detailf("missing %s object", role).Build()
		}
	}
	return ObjectList{entry: entry, guest: guest, runtime: runtime, exports: exports}, nil
}

// Paths returns the objects in link order.
func (l ObjectList) Paths() []string {
	return []string{l.entry, l.guest, l.runtime, l.exports}
}

// Image is a linked relocatable ELF.
type Image struct {
	Path string
	Data []byte
}

// Linker runs the relocatable link.
type Linker struct {
	Runner toolchain.Runner
	Logger *slog.Logger
	// Tool is the linker binary. Empty means DefaultLinker.
	Tool string
}

// Invocation builds the link command.
func (l *Linker) Invocation(objs ObjectList, output string) toolchain.Invocation {
	tool := l.Tool
	if tool == "" {
		tool = DefaultLinker
	}
	args := append([]string{"-r"}, objs.Paths()...)
	args = append(args, "-o", output)
	return toolchain.Invocation{Tool: tool, Args: args, Description: "link ELF"}
}

// Link merges objs into output and returns the resulting image. A non-zero
// linker exit is a LinkError.
func (l *Linker) Link(ctx context.Context, objs ObjectList, output string) (*Image, error) {
	inv := l.Invocation(objs, output)
	if l.Logger != nil {
		l.Logger.Info("linking", "output", output, "objects", len(objs.Paths()))
	}

	res, err := l.Runner.Run(ctx, inv)
	if err != nil {
		return nil, err
	}
	if err := res.Check(errs.KindLink, "link", inv); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(output)
	if err != nil {
		return nil, errs.IO("read linked image", output, err)
	}
	return &Image{Path: output, Data: data}, nil
}

// MissingSymbols returns the names in want that the image does not define.
// This is advisory; the transformer remains the authority on exports.
func MissingSymbols(data []byte, want []string) ([]string, error) {
	f, err := elf.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse linked image: %w", err)
	}
	defer f.Close()

	syms, err := f.Symbols()
	if err != nil {
		return nil, fmt.Errorf("failed to read symbol table: %w", err)
	}
	defined := make(map[string]bool, len(syms))
	for _, s := range syms {
		if s.Section != elf.SHN_UNDEF {
			defined[s.Name] = true
		}
	}

	var missing []string
	for _, name := range want {
		if !defined[name] {
			missing = append(missing, name)
		}
	}
	return missing, nil
}
