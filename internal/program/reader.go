package program

import (
	"encoding/binary"
	"fmt"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// reader walks a byte slice with position tracking. Every read failure is a
// FormatError naming the offset and the field being read.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) fail(field string, format string, args ...any) error {
	return errs.New(errs.KindFormat).
		Stage("decode").
		Detailf("%s at offset %d: %s", field, r.pos, fmt.Sprintf(format, args...)).
		Build()
}

func (r *reader) byte(field string) (byte, error) {
	if r.remaining() < 1 {
		return 0, r.fail(field, "unexpected end of input")
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) bytes(field string, n int) ([]byte, error) {
	if n < 0 || r.remaining() < n {
		return nil, r.fail(field, "need %d bytes, have %d", n, r.remaining())
	}
	if n == 0 {
		return nil, nil
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) u32(field string) (uint32, error) {
	b, err := r.bytes(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) u64(field string) (uint64, error) {
	b, err := r.bytes(field, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) varint(field string) (uint64, error) {
	v, n, err := ReadVarint(r.data[r.pos:])
	if err != nil {
		return 0, r.fail(field, "malformed varint")
	}
	r.pos += n
	return v, nil
}

// length reads a varint that must not exceed the bytes left in the input.
func (r *reader) length(field string) (int, error) {
	v, err := r.varint(field)
	if err != nil {
		return 0, err
	}
	if v > uint64(r.remaining()) {
		return 0, r.fail(field, "length %d exceeds remaining %d bytes", v, r.remaining())
	}
	return int(v), nil
}

// u32varint reads a varint that must fit in 32 bits.
func (r *reader) u32varint(field string) (uint32, error) {
	v, err := r.varint(field)
	if err != nil {
		return 0, err
	}
	if v > 1<<32-1 {
		return 0, r.fail(field, "value %d overflows u32", v)
	}
	return uint32(v), nil
}
