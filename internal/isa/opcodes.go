// Package isa describes the bytecode instruction set: opcodes, operand
// formats and the decoding rules that map code bytes to instructions.
package isa

// Format is an instruction's operand layout.
type Format uint8

const (
	FormatNone Format = iota
	FormatImm
	FormatOffset
	FormatRegExtImm
	FormatImmImm
	FormatRegImm
	FormatRegImmImm
	FormatRegImmOffset
	FormatRegReg
	FormatRegRegImm
	FormatRegRegOffset
	FormatRegRegImmImm
	FormatRegRegReg
)

var formatNames = [...]string{
	FormatNone:         "none",
	FormatImm:          "imm",
	FormatOffset:       "offset",
	FormatRegExtImm:    "reg_ext_imm",
	FormatImmImm:       "imm_imm",
	FormatRegImm:       "reg_imm",
	FormatRegImmImm:    "reg_imm_imm",
	FormatRegImmOffset: "reg_imm_offset",
	FormatRegReg:       "reg_reg",
	FormatRegRegImm:    "reg_reg_imm",
	FormatRegRegOffset: "reg_reg_offset",
	FormatRegRegImmImm: "reg_reg_imm_imm",
	FormatRegRegReg:    "reg_reg_reg",
}

func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "unknown"
}

// Opcode describes one instruction.
type Opcode struct {
	Code       byte
	Name       string
	Format     Format
	Terminates bool
}

var opcodes [256]*Opcode

func def(code byte, name string, format Format) {
	opcodes[code] = &Opcode{Code: code, Name: name, Format: format}
}

func term(code byte, name string, format Format) {
	opcodes[code] = &Opcode{Code: code, Name: name, Format: format, Terminates: true}
}

func init() {
	term(0, "trap", FormatNone)
	term(1, "fallthrough", FormatNone)

	def(10, "ecalli", FormatImm)
	def(20, "load_imm_64", FormatRegExtImm)

	for i, n := range []string{"store_imm_u8", "store_imm_u16", "store_imm_u32", "store_imm_u64"} {
		def(30+byte(i), n, FormatImmImm)
	}

	term(40, "jump", FormatOffset)

	term(50, "jump_ind", FormatRegImm)
	def(51, "load_imm", FormatRegImm)
	for i, n := range []string{"load_u8", "load_i8", "load_u16", "load_i16", "load_u32", "load_i32", "load_u64"} {
		def(52+byte(i), n, FormatRegImm)
	}
	for i, n := range []string{"store_u8", "store_u16", "store_u32", "store_u64"} {
		def(59+byte(i), n, FormatRegImm)
	}

	for i, n := range []string{"store_imm_ind_u8", "store_imm_ind_u16", "store_imm_ind_u32", "store_imm_ind_u64"} {
		def(70+byte(i), n, FormatRegImmImm)
	}

	term(80, "load_imm_jump", FormatRegImmOffset)
	for i, n := range []string{
		"branch_eq_imm", "branch_ne_imm", "branch_lt_u_imm", "branch_le_u_imm", "branch_ge_u_imm",
		"branch_gt_u_imm", "branch_lt_s_imm", "branch_le_s_imm", "branch_ge_s_imm", "branch_gt_s_imm",
	} {
		term(81+byte(i), n, FormatRegImmOffset)
	}

	for i, n := range []string{
		"move_reg", "sbrk", "count_set_bits_64", "count_set_bits_32", "leading_zero_bits_64",
		"leading_zero_bits_32", "trailing_zero_bits_64", "trailing_zero_bits_32", "sign_extend_8",
		"sign_extend_16", "zero_extend_16", "reverse_bytes",
	} {
		def(100+byte(i), n, FormatRegReg)
	}

	for i, n := range []string{
		"store_ind_u8", "store_ind_u16", "store_ind_u32", "store_ind_u64",
		"load_ind_u8", "load_ind_i8", "load_ind_u16", "load_ind_i16", "load_ind_u32", "load_ind_i32", "load_ind_u64",
		"add_imm_32", "and_imm", "xor_imm", "or_imm", "mul_imm_32", "set_lt_u_imm", "set_lt_s_imm",
		"shlo_l_imm_32", "shlo_r_imm_32", "shar_r_imm_32", "neg_add_imm_32", "set_gt_u_imm", "set_gt_s_imm",
		"shlo_l_imm_alt_32", "shlo_r_imm_alt_32", "shar_r_imm_alt_32", "cmov_iz_imm", "cmov_nz_imm",
		"add_imm_64", "mul_imm_64", "shlo_l_imm_64", "shlo_r_imm_64", "shar_r_imm_64", "neg_add_imm_64",
		"shlo_l_imm_alt_64", "shlo_r_imm_alt_64", "shar_r_imm_alt_64",
		"rot_r_64_imm", "rot_r_64_imm_alt", "rot_r_32_imm", "rot_r_32_imm_alt",
	} {
		def(120+byte(i), n, FormatRegRegImm)
	}

	for i, n := range []string{"branch_eq", "branch_ne", "branch_lt_u", "branch_lt_s", "branch_ge_u", "branch_ge_s"} {
		term(170+byte(i), n, FormatRegRegOffset)
	}

	term(180, "load_imm_jump_ind", FormatRegRegImmImm)

	arith := []string{"add", "sub", "mul", "div_u", "div_s", "rem_u", "rem_s", "shlo_l", "shlo_r", "shar_r"}
	for i, n := range arith {
		def(190+byte(i), n+"_32", FormatRegRegReg)
		def(200+byte(i), n+"_64", FormatRegRegReg)
	}
	for i, n := range []string{
		"and", "xor", "or", "mul_upper_s_s", "mul_upper_u_u", "mul_upper_s_u", "set_lt_u", "set_lt_s",
		"cmov_iz", "cmov_nz", "rot_l_64", "rot_l_32", "rot_r_64", "rot_r_32",
		"and_inv", "or_inv", "xnor", "max", "max_u", "min", "min_u",
	} {
		def(210+byte(i), n, FormatRegRegReg)
	}
}

// Lookup returns the opcode for a code byte.
func Lookup(code byte) (*Opcode, bool) {
	op := opcodes[code]
	return op, op != nil
}

// Opcodes lists every defined opcode in code order.
func Opcodes() []*Opcode {
	out := make([]*Opcode, 0, 160)
	for _, op := range opcodes {
		if op != nil {
			out = append(out, op)
		}
	}
	return out
}

// Reg is a register index.
type Reg uint8

// NumRegs is the size of the register file.
const NumRegs = 13

var regNames = [NumRegs]string{"ra", "sp", "t0", "t1", "t2", "s0", "s1", "a0", "a1", "a2", "a3", "a4", "a5"}

func (r Reg) String() string {
	if int(r) < len(regNames) {
		return regNames[r]
	}
	return "r?"
}

// GasCost is the cost charged per executed instruction.
const GasCost = 1
