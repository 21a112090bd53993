package isa

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ajanta/internal/program"
)

// single wraps one instruction as a code blob whose only start is 0.
func single(b ...byte) *program.Code {
	c := program.NewCode(b, []int{0}, nil)
	return &c
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		code   *program.Code
		offset int
		want   Instruction
	}{
		{
			name: "trap",
			code: single(0),
			want: Instruction{},
		},
		{
			name: "ecalli",
			code: single(10, 0x02),
			want: Instruction{Imm1: 2},
		},
		{
			name: "load_imm",
			code: single(51, 0x07, 0x05),
			want: Instruction{RegA: 7, Imm1: 5},
		},
		{
			name: "load_imm_64",
			code: single(20, 0x08, 1, 0, 0, 0, 0, 0, 0, 0x80),
			want: Instruction{RegA: 8, Imm1: math.MinInt64 + 1},
		},
		{
			name: "store_imm_u8",
			code: single(30, 0x01, 0x10, 0x2a),
			want: Instruction{Imm1: 0x10, Imm2: 0x2a},
		},
		{
			name: "move_reg clamps registers",
			code: single(100, 0xff),
			want: Instruction{RegD: 12, RegA: 12},
		},
		{
			name: "add_imm_64 sign extends",
			code: single(149, 0x87, 0xff),
			want: Instruction{RegA: 7, RegB: 8, Imm1: -1},
		},
		{
			name: "add_64",
			code: single(200, 0x21, 0x03),
			want: Instruction{RegA: 1, RegB: 2, RegD: 3},
		},
		{
			name: "load_imm_jump_ind",
			code: single(180, 0x87, 0x01, 0x05, 0x03),
			want: Instruction{RegA: 7, RegB: 8, Imm1: 5, Imm2: 3},
		},
		{
			name: "three reg clamps destination",
			code: single(210, 0x00, 0x20),
			want: Instruction{RegD: 12},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decode(tt.code, tt.offset)
			require.NotNil(t, got.Op)
			assert.Equal(t, tt.code.Instructions[0], got.Op.Code)
			assert.Equal(t, tt.code.Instructions, got.Raw)
			assert.Equal(t, tt.want.RegA, got.RegA, "RegA")
			assert.Equal(t, tt.want.RegB, got.RegB, "RegB")
			assert.Equal(t, tt.want.RegD, got.RegD, "RegD")
			assert.Equal(t, tt.want.Imm1, got.Imm1, "Imm1")
			assert.Equal(t, tt.want.Imm2, got.Imm2, "Imm2")
		})
	}
}

func TestDecode_Targets(t *testing.T) {
	jump := program.NewCode([]byte{0, 40, 0xff}, []int{0, 1}, nil)
	inst := Decode(&jump, 1)
	assert.Equal(t, "jump", inst.Name())
	assert.Equal(t, int64(0), inst.Target)
	assert.True(t, inst.Terminates())

	branch := program.NewCode([]byte{0, 0, 0, 0, 81, 0x17, 0x05, 0xfc}, []int{0, 1, 2, 3, 4}, nil)
	inst = Decode(&branch, 4)
	assert.Equal(t, "branch_eq_imm", inst.Name())
	assert.Equal(t, Reg(7), inst.RegA)
	assert.Equal(t, int64(5), inst.Imm1)
	assert.Equal(t, int64(0), inst.Target)

	beq := program.NewCode([]byte{170, 0x87, 0x10}, []int{0}, nil)
	inst = Decode(&beq, 0)
	assert.Equal(t, int64(16), inst.Target)
	assert.Equal(t, Reg(7), inst.RegA)
	assert.Equal(t, Reg(8), inst.RegB)
}

func TestDecode_Invalid(t *testing.T) {
	inst := Decode(single(255, 1, 2), 0)
	assert.True(t, inst.Invalid())
	assert.True(t, inst.Terminates())
	assert.Equal(t, "invalid", inst.Name())
	assert.Equal(t, []byte{255, 1, 2}, inst.Raw)
}

func TestDecodeAll(t *testing.T) {
	code := program.NewCode([]byte{51, 0x07, 0x00, 40, 0, 0}, []int{0, 3, 5}, nil)
	insts := DecodeAll(&code)

	require.Len(t, insts, 3)
	assert.Equal(t, []string{"load_imm", "jump", "trap"}, []string{insts[0].Name(), insts[1].Name(), insts[2].Name()})
	assert.Equal(t, []int{0, 3, 5}, []int{insts[0].Offset, insts[1].Offset, insts[2].Offset})
	assert.Equal(t, int64(3), insts[1].Target)
}

func TestOpcodes(t *testing.T) {
	seen := map[string]bool{}
	for _, op := range Opcodes() {
		assert.False(t, seen[op.Name], "duplicate mnemonic %s", op.Name)
		seen[op.Name] = true
	}

	for code, name := range map[byte]string{
		0: "trap", 20: "load_imm_64", 62: "store_u64", 90: "branch_gt_s_imm", 111: "reverse_bytes",
		161: "rot_r_32_imm_alt", 175: "branch_ge_s", 199: "shar_r_32", 209: "shar_r_64", 230: "min_u",
	} {
		op, ok := Lookup(code)
		require.True(t, ok, "opcode %d", code)
		assert.Equal(t, name, op.Name)
	}

	_, ok := Lookup(2)
	assert.False(t, ok)
}

func TestReg_String(t *testing.T) {
	assert.Equal(t, "ra", Reg(0).String())
	assert.Equal(t, "a0", Reg(7).String())
	assert.Equal(t, "a5", Reg(12).String())
	assert.Equal(t, "r?", Reg(13).String())
}
