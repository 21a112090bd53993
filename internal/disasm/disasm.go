package disasm

import (
	"io"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/program"
)

// Disassemble renders parts to w.
func Disassemble(w io.Writer, parts *program.Parts, opts Options) error {
	if !opts.Format.Valid() {
		return invalidFormat(opts.Format)
	}
	return NewListing(parts).Render(w, opts)
}

// DisassembleFile decodes the blob at path and renders it to w. The format
// is checked before the file is opened.
func DisassembleFile(w io.Writer, path string, opts Options) error {
	if !opts.Format.Valid() {
		return invalidFormat(opts.Format)
	}
	b, err := blob.ReadFile(path)
	if err != nil {
		return err
	}
	return NewListing(b.Program).Render(w, opts)
}

// ListFile decodes the blob at path into a listing.
func ListFile(path string) (*Listing, error) {
	b, err := blob.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewListing(b.Program), nil
}

func invalidFormat(f Format) error {
	return errs.New(errs.KindArgument).Stage("disasm").Detailf("invalid disassembly format %d", int(f)).Build()
}
