package program

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// sampleParts is a small program: trap, load_imm r7 5, fallthrough.
func sampleParts() *Parts {
	return &Parts{
		ROSize:    16,
		RWSize:    8,
		StackSize: 4096,
		ROData:    []byte("hello"),
		RWData:    []byte{1, 2},
		Imports:   []Import{{Symbol: "fetch"}, {Symbol: "log"}},
		Exports: []Export{
			{Offset: 0, Symbol: "refine_ext"},
			{Offset: 4, Symbol: "helper"},
		},
		Code:         NewCode([]byte{0, 51, 0x07, 0x05, 1}, []int{0, 1, 4}, []uint32{1, 4}),
		DebugStrings: []byte("main.c"),
	}
}

func TestParts_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		parts *Parts
	}{
		{name: "full", parts: sampleParts()},
		{name: "stripped", parts: sampleParts().Strip()},
		{name: "minimal", parts: &Parts{Code: NewCode([]byte{0}, []int{0}, nil)}},
		{name: "64-bit", parts: func() *Parts { p := sampleParts(); p.Is64Bit = true; return p }()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.parts.Encode()
			require.NoError(t, err)

			got, err := Parse(data)
			require.NoError(t, err)
			assert.Equal(t, tt.parts, got)

			again, err := got.Encode()
			require.NoError(t, err)
			assert.Equal(t, data, again)
		})
	}
}

func TestParts_Strip(t *testing.T) {
	p := sampleParts()
	assert.True(t, p.HasDebugInfo())

	s := p.Strip()
	assert.False(t, s.HasDebugInfo())
	assert.True(t, p.HasDebugInfo(), "strip must not mutate the original")
	assert.Equal(t, p.Code, s.Code)
}

// container assembles a container by hand around raw section bytes.
func container(version byte, sections ...byte) []byte {
	out := append([]byte{'P', 'V', 'M', 0, version}, make([]byte, 8)...)
	out = append(out, sections...)
	binary.LittleEndian.PutUint64(out[5:13], uint64(len(out)))
	return out
}

func TestParse_Errors(t *testing.T) {
	valid, err := sampleParts().Encode()
	require.NoError(t, err)

	memory := []byte{SectionMemoryConfig, 3, 0, 0, 0}
	code := []byte{SectionCodeAndJumpTable, 5, 0, 0, 1, 0, 1}

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "empty", input: nil},
		{name: "truncated header", input: valid[:7]},
		{name: "truncated body", input: valid[:len(valid)-1]},
		{name: "bad magic", input: append([]byte("ELF\x7f"), valid[4:]...)},
		{name: "unknown version", input: container(9, append(memory, append(code, SectionEnd)...)...)},
		{name: "missing end marker", input: container(Version32, append(memory, code...)...)},
		{name: "trailing bytes", input: container(Version32, append(memory, append(code, SectionEnd, 0xaa)...)...)},
		{name: "missing code", input: container(Version32, append(memory, SectionEnd)...)},
		{name: "missing memory config", input: container(Version32, append(code, SectionEnd)...)},
		{name: "out of order", input: container(Version32, append(code, append(memory, SectionEnd)...)...)},
		{name: "unknown required section", input: container(Version32, append(memory, append([]byte{42, 0}, append(code, SectionEnd)...)...)...)},
		{name: "section overrun", input: container(Version32, SectionMemoryConfig, 50, 0)},
		{name: "bitmask mismatch", input: container(Version32, append(memory, SectionCodeAndJumpTable, 3, 0, 0, 1, 0, SectionEnd)...)},
		{name: "ro data beyond size", input: container(Version32, append(memory, append([]byte{SectionROData, 1, 7}, append(code, SectionEnd)...)...)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			require.Error(t, err)
			assert.ErrorIs(t, err, errs.ErrFormat)
		})
	}
}

func TestParse_SkipsUnknownOptionalSection(t *testing.T) {
	memory := []byte{SectionMemoryConfig, 3, 0, 0, 0}
	code := []byte{SectionCodeAndJumpTable, 5, 0, 0, 1, 0, 1}
	custom := []byte{200, 2, 0xde, 0xad}

	p, err := Parse(container(Version32, append(append(memory, code...), append(custom, SectionEnd)...)...))
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, p.Code.Instructions)
}

func TestCode_Skip(t *testing.T) {
	c := NewCode([]byte{0, 51, 0x07, 0x05, 1}, []int{0, 1, 4}, nil)

	assert.Equal(t, []byte{0x13}, c.Bitmask)
	assert.Equal(t, []int{0, 1, 4}, c.Starts())
	assert.Equal(t, 0, c.Skip(0))
	assert.Equal(t, 2, c.Skip(1))
	assert.Equal(t, 0, c.Skip(4))
	assert.False(t, c.IsInstructionStart(2))
	assert.False(t, c.IsInstructionStart(99))

	long := NewCode(make([]byte, 40), []int{0}, nil)
	assert.Equal(t, 24, long.Skip(0))
}

func TestNewCode_EntrySize(t *testing.T) {
	assert.Equal(t, byte(0), NewCode(nil, nil, nil).JumpEntrySize)
	assert.Equal(t, byte(1), NewCode(nil, nil, []uint32{200}).JumpEntrySize)
	assert.Equal(t, byte(2), NewCode(nil, nil, []uint32{300}).JumpEntrySize)
	assert.Equal(t, byte(3), NewCode(nil, nil, []uint32{1 << 20}).JumpEntrySize)
	assert.Equal(t, byte(4), NewCode(nil, nil, []uint32{1 << 30}).JumpEntrySize)
}
