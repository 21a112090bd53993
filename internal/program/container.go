package program

import (
	"encoding/binary"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// Encode serializes p into a program container.
func (p *Parts) Encode() ([]byte, error) {
	out := make([]byte, headerSize, 256)
	copy(out, Magic[:])
	out[4] = Version32
	if p.Is64Bit {
		out[4] = Version64
	}

	if uint64(len(p.ROData)) > uint64(p.ROSize) {
		return nil, errs.Format("ro data is %d bytes but ro size is %d", len(p.ROData), p.ROSize)
	}
	if uint64(len(p.RWData)) > uint64(p.RWSize) {
		return nil, errs.Format("rw data is %d bytes but rw size is %d", len(p.RWData), p.RWSize)
	}

	var mem []byte
	mem = AppendVarint(mem, uint64(p.ROSize))
	mem = AppendVarint(mem, uint64(p.RWSize))
	mem = AppendVarint(mem, uint64(p.StackSize))
	out = appendSection(out, SectionMemoryConfig, mem)
	out = appendSection(out, SectionROData, p.ROData)
	out = appendSection(out, SectionRWData, p.RWData)
	if len(p.Imports) > 0 {
		out = appendSection(out, SectionImports, encodeImports(p.Imports))
	}
	if len(p.Exports) > 0 {
		out = appendSection(out, SectionExports, encodeExports(p.Exports))
	}

	code, err := p.Code.encode()
	if err != nil {
		return nil, err
	}
	out = appendSectionAlways(out, SectionCodeAndJumpTable, code)
	out = appendSection(out, SectionDebugStrings, p.DebugStrings)
	out = appendSection(out, SectionDebugLinePrograms, p.DebugLinePrograms)
	out = appendSection(out, SectionDebugLineProgramRanges, p.DebugLineProgramRanges)
	out = append(out, SectionEnd)

	binary.LittleEndian.PutUint64(out[5:headerSize], uint64(len(out)))
	return out, nil
}

// appendSection writes a section, omitting it when the payload is empty.
func appendSection(out []byte, id byte, payload []byte) []byte {
	if len(payload) == 0 {
		return out
	}
	return appendSectionAlways(out, id, payload)
}

func appendSectionAlways(out []byte, id byte, payload []byte) []byte {
	out = append(out, id)
	out = AppendVarint(out, uint64(len(payload)))
	return append(out, payload...)
}

func encodeImports(imports []Import) []byte {
	var out []byte
	out = AppendVarint(out, uint64(len(imports)))
	var symbols []byte
	for _, imp := range imports {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(symbols)))
		symbols = append(symbols, imp.Symbol...)
	}
	return append(out, symbols...)
}

func encodeExports(exports []Export) []byte {
	var out []byte
	out = AppendVarint(out, uint64(len(exports)))
	for _, e := range exports {
		out = AppendVarint(out, uint64(e.Offset))
		out = AppendVarint(out, uint64(len(e.Symbol)))
		out = append(out, e.Symbol...)
	}
	return out
}

// Parse decodes a program container. It fails with a FormatError on bad
// magic, an unknown version, a length mismatch, an unknown required section,
// out-of-order sections, or a missing end marker.
func Parse(data []byte) (*Parts, error) {
	r := newReader(data)
	magic, err := r.bytes("magic", 4)
	if err != nil {
		return nil, err
	}
	if [4]byte(magic) != Magic {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detailf("bad magic %q", magic).Build()
	}
	version, err := r.byte("version")
	if err != nil {
		return nil, err
	}
	if version != Version32 && version != Version64 {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detailf("unsupported container version %d", version).Build()
	}
	total, err := r.u64("blob length")
	if err != nil {
		return nil, err
	}
	if total != uint64(len(data)) {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detailf("blob length field is %d, input is %d bytes", total, len(data)).Build()
	}

	p := &Parts{Is64Bit: version == Version64}
	var last byte
	var haveMemory, haveCode bool
	for {
		id, err := r.byte("section id")
		if err != nil {
			return nil, r.fail("section id", "missing end-of-file section")
		}
		if id == SectionEnd {
			break
		}
		if id <= last {
			return nil, r.fail("section id", "section %d follows section %d", id, last)
		}
		last = id

		size, err := r.length("section length")
		if err != nil {
			return nil, err
		}
		payload, _ := r.bytes("section payload", size)

		switch id {
		case SectionMemoryConfig:
			if err := p.decodeMemory(payload); err != nil {
				return nil, err
			}
			haveMemory = true
		case SectionROData:
			p.ROData = payload
		case SectionRWData:
			p.RWData = payload
		case SectionImports:
			if p.Imports, err = decodeImports(payload); err != nil {
				return nil, err
			}
		case SectionExports:
			if p.Exports, err = decodeExports(payload); err != nil {
				return nil, err
			}
		case SectionCodeAndJumpTable:
			if p.Code, err = decodeCode(payload); err != nil {
				return nil, err
			}
			haveCode = true
		case SectionDebugStrings:
			p.DebugStrings = payload
		case SectionDebugLinePrograms:
			p.DebugLinePrograms = payload
		case SectionDebugLineProgramRanges:
			p.DebugLineProgramRanges = payload
		default:
			// Ids from 128 up are optional and skipped when unknown.
			if id < 128 {
				return nil, errs.New(errs.KindFormat).Stage("decode").Detailf("unknown section %d", id).Build()
			}
		}
	}

	if r.remaining() != 0 {
		return nil, r.fail("end of file", "%d trailing bytes", r.remaining())
	}
	if !haveMemory {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detail("missing memory config section").Build()
	}
	if !haveCode {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detail("missing code section").Build()
	}
	if uint64(len(p.ROData)) > uint64(p.ROSize) || uint64(len(p.RWData)) > uint64(p.RWSize) {
		return nil, errs.New(errs.KindFormat).Stage("decode").Detail("data section larger than its memory size").Build()
	}
	return p, nil
}

func (p *Parts) decodeMemory(payload []byte) error {
	r := newReader(payload)
	var err error
	if p.ROSize, err = r.u32varint("ro data size"); err != nil {
		return err
	}
	if p.RWSize, err = r.u32varint("rw data size"); err != nil {
		return err
	}
	if p.StackSize, err = r.u32varint("stack size"); err != nil {
		return err
	}
	if r.remaining() != 0 {
		return r.fail("memory config", "%d trailing bytes", r.remaining())
	}
	return nil
}

func decodeImports(payload []byte) ([]Import, error) {
	r := newReader(payload)
	count, err := r.varint("import count")
	if err != nil {
		return nil, err
	}
	if count > uint64(r.remaining())/4 {
		return nil, r.fail("import offsets", "%d offsets overrun payload", count)
	}
	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i], _ = r.u32("import offset")
	}
	symbols, _ := r.bytes("import symbols", r.remaining())

	imports := make([]Import, count)
	for i, start := range offsets {
		end := uint32(len(symbols))
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start > end || end > uint32(len(symbols)) {
			return nil, errs.Format("import %d symbol range %d..%d is invalid", i, start, end)
		}
		imports[i] = Import{Symbol: string(symbols[start:end])}
	}
	return imports, nil
}

func decodeExports(payload []byte) ([]Export, error) {
	r := newReader(payload)
	count, err := r.varint("export count")
	if err != nil {
		return nil, err
	}
	if count > uint64(r.remaining()) {
		return nil, r.fail("export count", "%d exports overrun payload", count)
	}
	exports := make([]Export, 0, count)
	for i := uint64(0); i < count; i++ {
		offset, err := r.u32varint("export offset")
		if err != nil {
			return nil, err
		}
		n, err := r.length("export symbol length")
		if err != nil {
			return nil, err
		}
		name, _ := r.bytes("export symbol", n)
		exports = append(exports, Export{Offset: offset, Symbol: string(name)})
	}
	if r.remaining() != 0 {
		return nil, r.fail("exports", "%d trailing bytes", r.remaining())
	}
	return exports, nil
}
