// Package program models the bytecode program produced by the ELF
// transformer and implements its binary container format.
//
// A container starts with the magic "PVM\0", a version byte and the total
// length as a little-endian u64, followed by sections of the form
// [id u8][varint length][payload] in strictly increasing id order and
// terminated by the end-of-file section id 0.
package program

// Magic opens every program container.
var Magic = [4]byte{'P', 'V', 'M', 0}

// Container versions.
const (
	Version32 byte = 0
	Version64 byte = 1
)

// Section ids.
const (
	SectionEnd                    byte = 0
	SectionMemoryConfig           byte = 1
	SectionROData                 byte = 2
	SectionRWData                 byte = 3
	SectionImports                byte = 4
	SectionExports                byte = 5
	SectionCodeAndJumpTable       byte = 6
	SectionDebugStrings           byte = 128
	SectionDebugLinePrograms      byte = 129
	SectionDebugLineProgramRanges byte = 130
)

// headerSize is magic, version and blob length.
const headerSize = 4 + 1 + 8

// Import is a host function the program calls by index.
type Import struct {
	Symbol string
}

// Export is a named entry point at a code offset.
type Export struct {
	Offset uint32
	Symbol string
}

// Parts is the decoded program representation.
type Parts struct {
	Is64Bit bool

	ROSize    uint32
	RWSize    uint32
	StackSize uint32
	ROData    []byte
	RWData    []byte

	Imports []Import
	Exports []Export
	Code    Code

	DebugStrings           []byte
	DebugLinePrograms      []byte
	DebugLineProgramRanges []byte
}

// HasDebugInfo reports whether any debug section is present.
func (p *Parts) HasDebugInfo() bool {
	return len(p.DebugStrings) > 0 || len(p.DebugLinePrograms) > 0 || len(p.DebugLineProgramRanges) > 0
}

// Strip returns a copy of p with every debug section removed.
func (p *Parts) Strip() *Parts {
	c := *p
	c.DebugStrings = nil
	c.DebugLinePrograms = nil
	c.DebugLineProgramRanges = nil
	return &c
}

// Export returns the export with the given symbol.
func (p *Parts) Export(symbol string) (Export, bool) {
	for _, e := range p.Exports {
		if e.Symbol == symbol {
			return e, true
		}
	}
	return Export{}, false
}
