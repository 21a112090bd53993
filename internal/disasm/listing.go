package disasm

import (
	"encoding/hex"

	"github.com/leapstack-labs/ajanta/internal/isa"
	"github.com/leapstack-labs/ajanta/internal/program"
)

// Entry is one decoded instruction in a listing.
type Entry struct {
	Offset   int    `json:"offset"`
	Opcode   byte   `json:"opcode"`
	Mnemonic string `json:"mnemonic"`
	Operands string `json:"operands,omitempty"`
	Format   string `json:"format"`
	Raw      string `json:"raw"`
	Gas      int    `json:"gas"`

	inst isa.Instruction
}

// Block is a basic block: a run of instructions ending at a terminating
// instruction or at the end of code.
type Block struct {
	Index   int      `json:"index"`
	Offset  int      `json:"offset"`
	Gas     int      `json:"gas"`
	Labels  []string `json:"labels,omitempty"`
	Entries []Entry  `json:"instructions"`
}

// Listing is the decoded form of a program ready for rendering.
type Listing struct {
	Is64Bit      bool                  `json:"is_64_bit"`
	CodeSize     int                   `json:"code_size"`
	Instructions int                   `json:"instructions"`
	Gas          int                   `json:"gas"`
	Dispatch     program.DispatchTable `json:"dispatch"`
	Blocks       []Block               `json:"blocks"`

	blockAt map[int]int
}

// NewListing decodes parts into basic blocks. Export symbols become labels
// on the block starting at their code offset.
func NewListing(parts *program.Parts) *Listing {
	l := &Listing{
		Is64Bit:  parts.Is64Bit,
		CodeSize: len(parts.Code.Instructions),
		Dispatch: program.NewDispatchTable(parts.Exports),
		blockAt:  make(map[int]int),
	}

	labels := make(map[int][]string)
	for _, e := range parts.Exports {
		labels[int(e.Offset)] = append(labels[int(e.Offset)], e.Symbol)
	}

	var cur *Block
	for _, inst := range isa.DecodeAll(&parts.Code) {
		_, exported := labels[inst.Offset]
		if cur == nil || exported {
			l.Blocks = append(l.Blocks, Block{Index: len(l.Blocks), Offset: inst.Offset, Labels: labels[inst.Offset]})
			cur = &l.Blocks[len(l.Blocks)-1]
			l.blockAt[inst.Offset] = cur.Index
		}
		cur.Entries = append(cur.Entries, Entry{
			Offset:   inst.Offset,
			Opcode:   parts.Code.Instructions[inst.Offset],
			Mnemonic: inst.Name(),
			Format:   formatOf(&inst),
			Raw:      hex.EncodeToString(inst.Raw),
			Gas:      isa.GasCost,
			inst:     inst,
		})
		cur.Gas += isa.GasCost
		l.Instructions++
		l.Gas += isa.GasCost
		if inst.Terminates() {
			cur = nil
		}
	}

	// Operands are rendered once every block is known so branch targets
	// resolve to block labels.
	for bi := range l.Blocks {
		for ei := range l.Blocks[bi].Entries {
			e := &l.Blocks[bi].Entries[ei]
			e.Operands = operands(&e.inst, l)
		}
	}
	return l
}

// BlockAt returns the index of the block starting at offset.
func (l *Listing) BlockAt(offset int) (int, bool) {
	i, ok := l.blockAt[offset]
	return i, ok
}

func formatOf(inst *isa.Instruction) string {
	if inst.Invalid() {
		return "invalid"
	}
	return inst.Op.Format.String()
}
