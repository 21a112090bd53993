package isa

import (
	"encoding/binary"

	"github.com/leapstack-labs/ajanta/internal/program"
)

// Instruction is one decoded instruction.
type Instruction struct {
	Offset int
	Op     *Opcode
	Raw    []byte

	// Operands. Which are meaningful depends on Op.Format.
	RegA, RegB, RegD Reg
	Imm1, Imm2       int64
	Target           int64
}

// Invalid reports whether the opcode byte is undefined. An invalid
// instruction behaves as trap.
func (i *Instruction) Invalid() bool {
	return i.Op == nil
}

// Name is the mnemonic, or "invalid" for undefined opcodes.
func (i *Instruction) Name() string {
	if i.Op == nil {
		return "invalid"
	}
	return i.Op.Name
}

// Terminates reports whether the instruction ends a basic block.
func (i *Instruction) Terminates() bool {
	return i.Op == nil || i.Op.Terminates
}

// Decode decodes the instruction starting at offset. Operand bytes past the
// end of code read as zero.
func Decode(code *program.Code, offset int) Instruction {
	skip := code.Skip(offset)
	end := min(offset+1+skip, len(code.Instructions))

	inst := Instruction{
		Offset: offset,
		Raw:    code.Instructions[offset:end],
	}
	op, ok := Lookup(code.Instructions[offset])
	if !ok {
		return inst
	}
	inst.Op = op

	// args holds the operand bytes zero-padded so fixed-position reads never
	// run past the slice.
	args := make([]byte, 16+skip)
	copy(args, code.Instructions[offset+1:end])

	pc := int64(offset)
	switch op.Format {
	case FormatNone:
	case FormatImm:
		lx := min(4, skip)
		inst.Imm1 = immediate(args[:lx])
	case FormatOffset:
		lx := min(4, skip)
		inst.Target = pc + immediate(args[:lx])
	case FormatRegExtImm:
		inst.RegA = reg(args[0] & 15)
		inst.Imm1 = int64(binary.LittleEndian.Uint64(args[1:9]))
	case FormatImmImm:
		lx := min(4, int(args[0]&7))
		ly := clampImm(skip - lx - 1)
		inst.Imm1 = immediate(args[1 : 1+lx])
		inst.Imm2 = immediate(args[1+lx : 1+lx+ly])
	case FormatRegImm:
		inst.RegA = reg(args[0] & 15)
		lx := clampImm(skip - 1)
		inst.Imm1 = immediate(args[1 : 1+lx])
	case FormatRegImmImm, FormatRegImmOffset:
		inst.RegA = reg(args[0] & 15)
		lx := min(4, int(args[0]>>4)&7)
		ly := clampImm(skip - lx - 1)
		inst.Imm1 = immediate(args[1 : 1+lx])
		inst.Imm2 = immediate(args[1+lx : 1+lx+ly])
		if op.Format == FormatRegImmOffset {
			inst.Target = pc + inst.Imm2
			inst.Imm2 = 0
		}
	case FormatRegReg:
		inst.RegD = reg(args[0] & 15)
		inst.RegA = reg(args[0] >> 4)
	case FormatRegRegImm, FormatRegRegOffset:
		inst.RegA = reg(args[0] & 15)
		inst.RegB = reg(args[0] >> 4)
		lx := clampImm(skip - 1)
		v := immediate(args[1 : 1+lx])
		if op.Format == FormatRegRegOffset {
			inst.Target = pc + v
		} else {
			inst.Imm1 = v
		}
	case FormatRegRegImmImm:
		inst.RegA = reg(args[0] & 15)
		inst.RegB = reg(args[0] >> 4)
		lx := min(4, int(args[1]&7))
		ly := clampImm(skip - lx - 2)
		inst.Imm1 = immediate(args[2 : 2+lx])
		inst.Imm2 = immediate(args[2+lx : 2+lx+ly])
	case FormatRegRegReg:
		inst.RegA = reg(args[0] & 15)
		inst.RegB = reg(args[0] >> 4)
		inst.RegD = reg(args[1])
	}
	return inst
}

// DecodeAll decodes every instruction in code order.
func DecodeAll(code *program.Code) []Instruction {
	starts := code.Starts()
	out := make([]Instruction, 0, len(starts))
	for _, s := range starts {
		out = append(out, Decode(code, s))
	}
	return out
}

func reg(n byte) Reg {
	return Reg(min(n, NumRegs-1))
}

func clampImm(n int) int {
	return min(4, max(0, n))
}

// immediate reads a little-endian value of len(b) bytes and sign-extends it.
func immediate(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var v uint64
	for i, x := range b {
		v |= uint64(x) << (8 * i)
	}
	shift := 64 - 8*len(b)
	return int64(v<<shift) >> shift
}
