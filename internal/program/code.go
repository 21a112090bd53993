package program

import (
	"encoding/binary"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// Code holds the instruction stream, its instruction-start bitmask and the
// indirect jump table.
type Code struct {
	JumpTable     []uint32
	JumpEntrySize byte
	Instructions  []byte
	Bitmask       []byte
}

// NewCode builds a Code value, deriving the bitmask from the instruction
// start offsets and choosing the narrowest jump table entry size.
func NewCode(instructions []byte, starts []int, jumpTable []uint32) Code {
	mask := make([]byte, BitmaskLen(len(instructions)))
	for _, s := range starts {
		if s >= 0 && s < len(instructions) {
			mask[s/8] |= 1 << (s % 8)
		}
	}
	return Code{
		JumpTable:     jumpTable,
		JumpEntrySize: entrySizeFor(jumpTable),
		Instructions:  instructions,
		Bitmask:       mask,
	}
}

// BitmaskLen returns the bitmask size for a code length.
func BitmaskLen(codeLen int) int {
	return (codeLen + 7) / 8
}

func entrySizeFor(table []uint32) byte {
	var largest uint32
	for _, v := range table {
		largest = max(largest, v)
	}
	switch {
	case len(table) == 0:
		return 0
	case largest <= 0xff:
		return 1
	case largest <= 0xffff:
		return 2
	case largest <= 0xffffff:
		return 3
	default:
		return 4
	}
}

// IsInstructionStart reports whether offset begins an instruction.
func (c *Code) IsInstructionStart(offset int) bool {
	if offset < 0 || offset >= len(c.Instructions) {
		return false
	}
	return c.Bitmask[offset/8]&(1<<(offset%8)) != 0
}

// Skip returns the number of bytes after offset before the next instruction
// start, capped at 24. Past the end of code the stream is treated as if the
// next bit were set.
func (c *Code) Skip(offset int) int {
	for n := 0; n < 24; n++ {
		next := offset + 1 + n
		if next >= len(c.Instructions) || c.IsInstructionStart(next) {
			return n
		}
	}
	return 24
}

// Starts lists every instruction start offset in order.
func (c *Code) Starts() []int {
	var starts []int
	for i := range c.Instructions {
		if c.IsInstructionStart(i) {
			starts = append(starts, i)
		}
	}
	return starts
}

func (c *Code) encode() ([]byte, error) {
	if len(c.Bitmask) != BitmaskLen(len(c.Instructions)) {
		return nil, errs.Format("bitmask is %d bytes, want %d", len(c.Bitmask), BitmaskLen(len(c.Instructions)))
	}
	size := c.JumpEntrySize
	if len(c.JumpTable) > 0 && (size == 0 || size > 4) {
		return nil, errs.Format("invalid jump table entry size %d", size)
	}

	var out []byte
	out = AppendVarint(out, uint64(len(c.JumpTable)))
	out = append(out, size)
	out = AppendVarint(out, uint64(len(c.Instructions)))
	var entry [4]byte
	for _, v := range c.JumpTable {
		binary.LittleEndian.PutUint32(entry[:], v)
		out = append(out, entry[:size]...)
	}
	out = append(out, c.Instructions...)
	out = append(out, c.Bitmask...)
	return out, nil
}

func decodeCode(payload []byte) (Code, error) {
	r := newReader(payload)
	count, err := r.varint("jump table count")
	if err != nil {
		return Code{}, err
	}
	size, err := r.byte("jump table entry size")
	if err != nil {
		return Code{}, err
	}
	if size > 4 || (count > 0 && size == 0) {
		return Code{}, r.fail("jump table entry size", "invalid size %d", size)
	}
	codeLen, err := r.length("code length")
	if err != nil {
		return Code{}, err
	}
	if size > 0 && count > uint64(r.remaining())/uint64(size) {
		return Code{}, r.fail("jump table", "%d entries of %d bytes overrun payload", count, size)
	}

	c := Code{JumpEntrySize: size}
	if count > 0 {
		c.JumpTable = make([]uint32, count)
	}
	for i := range c.JumpTable {
		raw, _ := r.bytes("jump table entry", int(size))
		var entry [4]byte
		copy(entry[:], raw)
		c.JumpTable[i] = binary.LittleEndian.Uint32(entry[:])
	}
	if c.Instructions, err = r.bytes("code", codeLen); err != nil {
		return Code{}, err
	}
	want := BitmaskLen(codeLen)
	if r.remaining() != want {
		return Code{}, r.fail("bitmask", "have %d bytes, want %d", r.remaining(), want)
	}
	c.Bitmask, _ = r.bytes("bitmask", want)
	return c, nil
}
