package testutil

import (
	"bytes"
	"encoding/binary"
)

// BuildRelocatableELF assembles a minimal little-endian ELF64 RISC-V
// relocatable object with a four-byte .text section. Symbols in defined are
// global functions in .text; symbols in undefined are global references.
func BuildRelocatableELF(defined, undefined []string) []byte {
	const (
		ehdrSize = 64
		shdrSize = 64
		symSize  = 24
		textSize = 4
	)

	strtab := []byte{0}
	type sym struct {
		name  uint32
		shndx uint16
	}
	var syms []sym
	for _, n := range defined {
		syms = append(syms, sym{name: uint32(len(strtab)), shndx: 1})
		strtab = append(append(strtab, n...), 0)
	}
	for _, n := range undefined {
		syms = append(syms, sym{name: uint32(len(strtab)), shndx: 0})
		strtab = append(append(strtab, n...), 0)
	}

	var symtab bytes.Buffer
	symtab.Write(make([]byte, symSize))
	for _, s := range syms {
		_ = binary.Write(&symtab, binary.LittleEndian, s.name)
		symtab.WriteByte(0x12) // STB_GLOBAL, STT_FUNC
		symtab.WriteByte(0)
		_ = binary.Write(&symtab, binary.LittleEndian, s.shndx)
		_ = binary.Write(&symtab, binary.LittleEndian, uint64(0))
		_ = binary.Write(&symtab, binary.LittleEndian, uint64(0))
	}

	shstrtab := []byte("\x00.text\x00.strtab\x00.symtab\x00.shstrtab\x00")

	textOff := uint64(ehdrSize)
	strOff := textOff + textSize
	symOff := align8(strOff + uint64(len(strtab)))
	shstrOff := symOff + uint64(symtab.Len())
	shOff := align8(shstrOff + uint64(len(shstrtab)))

	var out bytes.Buffer
	le := binary.LittleEndian
	out.Write([]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0})
	out.Write(make([]byte, 8))
	_ = binary.Write(&out, le, uint16(1))   // ET_REL
	_ = binary.Write(&out, le, uint16(243)) // EM_RISCV
	_ = binary.Write(&out, le, uint32(1))
	_ = binary.Write(&out, le, uint64(0)) // entry
	_ = binary.Write(&out, le, uint64(0)) // phoff
	_ = binary.Write(&out, le, shOff)
	_ = binary.Write(&out, le, uint32(0)) // flags
	_ = binary.Write(&out, le, uint16(ehdrSize))
	_ = binary.Write(&out, le, uint16(56))
	_ = binary.Write(&out, le, uint16(0))
	_ = binary.Write(&out, le, uint16(shdrSize))
	_ = binary.Write(&out, le, uint16(5))
	_ = binary.Write(&out, le, uint16(4))

	out.Write([]byte{0x73, 0x00, 0x10, 0x00}) // ebreak
	out.Write(strtab)
	pad(&out, symOff)
	out.Write(symtab.Bytes())
	out.Write(shstrtab)
	pad(&out, shOff)

	type shdr struct {
		Name, Type             uint32
		Flags, Addr, Off, Size uint64
		Link, Info             uint32
		Align, EntSize         uint64
	}
	headers := []shdr{
		{},
		{Name: 1, Type: 1, Flags: 6, Off: textOff, Size: textSize, Align: 4},
		{Name: 7, Type: 3, Off: strOff, Size: uint64(len(strtab)), Align: 1},
		{Name: 15, Type: 2, Off: symOff, Size: uint64(symtab.Len()), Link: 2, Info: 1, Align: 8, EntSize: symSize},
		{Name: 23, Type: 3, Off: shstrOff, Size: uint64(len(shstrtab)), Align: 1},
	}
	for _, h := range headers {
		_ = binary.Write(&out, le, h)
	}
	return out.Bytes()
}

func align8(n uint64) uint64 {
	return (n + 7) &^ 7
}

func pad(b *bytes.Buffer, to uint64) {
	for uint64(b.Len()) < to {
		b.WriteByte(0)
	}
}
