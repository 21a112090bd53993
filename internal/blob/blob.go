// Package blob implements the program blob, the durable on-disk container
// that wraps a program with opaque metadata.
//
// Layout:
//
//	magic "PVMB" | version u8 | varint metadata length | metadata | program container
package blob

import (
	"errors"
	"os"

	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/program"
)

// Magic opens every program blob.
var Magic = [4]byte{'P', 'V', 'M', 'B'}

// Version is the only blob version this codec reads and writes.
const Version byte = 1

// Extension is the conventional blob file extension.
const Extension = ".pvm"

// Blob is a decoded program blob.
type Blob struct {
	Program  *program.Parts
	Metadata []byte
}

// Encode serializes parts and metadata into a blob. A nil metadata slice is
// written as zero-length metadata.
func Encode(parts *program.Parts, metadata []byte) ([]byte, error) {
	if parts == nil {
		return nil, errs.New(errs.KindFormat).Stage("encode").Detail("nil program").Build()
	}
	body, err := parts.Encode()
	if err != nil {
		return nil, errs.New(errs.KindFormat).Stage("encode").Detail("program container").Cause(err).Build()
	}

	out := make([]byte, 0, len(Magic)+1+program.VarintLen(uint64(len(metadata)))+len(metadata)+len(body))
	out = append(out, Magic[:]...)
	out = append(out, Version)
	out = program.AppendVarint(out, uint64(len(metadata)))
	out = append(out, metadata...)
	return append(out, body...), nil
}

// Decode parses a blob into its program parts and metadata. It fails with a
// FormatError on truncated input, an unknown version, or a malformed program.
func Decode(data []byte) (*program.Parts, []byte, error) {
	b, err := DecodeBlob(data)
	if err != nil {
		return nil, nil, err
	}
	return b.Program, b.Metadata, nil
}

// DecodeBlob is Decode returning a Blob value.
func DecodeBlob(data []byte) (*Blob, error) {
	if len(data) < len(Magic)+1 {
		return nil, formatError("truncated header: %d bytes", len(data))
	}
	if [4]byte(data[:4]) != Magic {
		return nil, formatError("bad magic %q", data[:4])
	}
	if data[4] != Version {
		return nil, formatError("unsupported blob version %d", data[4])
	}

	rest := data[5:]
	n, size, err := program.ReadVarint(rest)
	if err != nil {
		return nil, formatError("truncated metadata length")
	}
	rest = rest[size:]
	if n > uint64(len(rest)) {
		return nil, formatError("metadata length %d exceeds remaining %d bytes", n, len(rest))
	}
	metadata := make([]byte, n)
	copy(metadata, rest[:n])

	parts, err := program.Parse(rest[n:])
	if err != nil {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detail("program container").Cause(err).Build()
	}
	return &Blob{Program: parts, Metadata: metadata}, nil
}

// ReadFile reads and decodes the blob at path.
func ReadFile(path string) (*Blob, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO("read", path, err)
	}
	b, err := DecodeBlob(data)
	if err != nil {
		var e *errs.Error
		if errors.As(err, &e) && e.Path == "" {
			e.Path = path
		}
		return nil, err
	}
	return b, nil
}

func formatError(format string, args ...any) error {
	return errs.New(errs.KindFormat).Stage("decode").Detailf(format, args...).Build()
}
