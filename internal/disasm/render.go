package disasm

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/isa"
)

// Options control rendering.
type Options struct {
	Format   Format
	RawBytes bool
	Gas      bool
}

// DefaultOptions is the guest format with raw bytes and gas shown.
func DefaultOptions() Options {
	return Options{Format: FormatGuest, RawBytes: true, Gas: true}
}

// Render writes the listing as text.
func (l *Listing) Render(w io.Writer, opts Options) error {
	if !opts.Format.Valid() {
		return invalidFormat(opts.Format)
	}
	bw := bufio.NewWriter(w)
	diff := opts.Format == FormatDiffFriendly

	fmt.Fprintf(bw, "// format: %s\n", opts.Format)
	fmt.Fprintf(bw, "// code: %d bytes, %d instructions, %d blocks\n", l.CodeSize, l.Instructions, len(l.Blocks))
	for _, d := range l.Dispatch {
		if !d.Resolved {
			fmt.Fprintf(bw, "// dispatch %d: %s (unresolved)\n", d.Index, d.Symbol)
			continue
		}
		if diff {
			fmt.Fprintf(bw, "// dispatch %d: %s\n", d.Index, d.Symbol)
		} else {
			fmt.Fprintf(bw, "// dispatch %d: %s @%d\n", d.Index, d.Symbol, d.CodeOffset)
		}
	}

	for _, b := range l.Blocks {
		bw.WriteByte('\n')
		for _, label := range b.Labels {
			fmt.Fprintf(bw, "<%s>:\n", label)
		}
		header := "@" + strconv.Itoa(b.Index)
		if !diff {
			header += " [offset " + strconv.Itoa(b.Offset) + "]"
		}
		if opts.Gas {
			header += " (gas: " + strconv.Itoa(b.Gas) + ")"
		}
		bw.WriteString(header + "\n")

		for i := range b.Entries {
			l.renderEntry(bw, &b.Entries[i], opts)
		}
	}
	return bw.Flush()
}

func (l *Listing) renderEntry(w *bufio.Writer, e *Entry, opts Options) {
	guest := e.Mnemonic
	if e.Operands != "" {
		guest += " " + e.Operands
	}

	switch opts.Format {
	case FormatGuest:
		l.line(w, e, opts, guest)
	case FormatGuestAndNative:
		l.line(w, e, opts, guest)
		fmt.Fprintf(w, "%10s%s\n", "", native(e))
	case FormatNative:
		l.line(w, e, opts, native(e))
	case FormatDiffFriendly:
		fmt.Fprintf(w, "    %s\n", guest)
	}
}

func (l *Listing) line(w *bufio.Writer, e *Entry, opts Options, text string) {
	if opts.RawBytes {
		fmt.Fprintf(w, "%6d: %-40s ; %s\n", e.Offset, text, spaced(e.Raw))
		return
	}
	fmt.Fprintf(w, "%6d: %s\n", e.Offset, text)
}

// native renders the encoded fields of an instruction.
func native(e *Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "opcode=%d format=%s length=%d", e.Opcode, e.Format, len(e.Raw)/2)
	inst := &e.inst
	if inst.Invalid() {
		return b.String()
	}
	switch inst.Op.Format {
	case isa.FormatNone:
	case isa.FormatImm:
		fmt.Fprintf(&b, " imm=%d", inst.Imm1)
	case isa.FormatOffset:
		fmt.Fprintf(&b, " target=%d", inst.Target)
	case isa.FormatRegExtImm, isa.FormatRegImm:
		fmt.Fprintf(&b, " ra=%d imm=%d", inst.RegA, inst.Imm1)
	case isa.FormatImmImm:
		fmt.Fprintf(&b, " imm1=%d imm2=%d", inst.Imm1, inst.Imm2)
	case isa.FormatRegImmImm:
		fmt.Fprintf(&b, " ra=%d imm1=%d imm2=%d", inst.RegA, inst.Imm1, inst.Imm2)
	case isa.FormatRegImmOffset:
		fmt.Fprintf(&b, " ra=%d imm=%d target=%d", inst.RegA, inst.Imm1, inst.Target)
	case isa.FormatRegReg:
		fmt.Fprintf(&b, " rd=%d ra=%d", inst.RegD, inst.RegA)
	case isa.FormatRegRegImm:
		fmt.Fprintf(&b, " ra=%d rb=%d imm=%d", inst.RegA, inst.RegB, inst.Imm1)
	case isa.FormatRegRegOffset:
		fmt.Fprintf(&b, " ra=%d rb=%d target=%d", inst.RegA, inst.RegB, inst.Target)
	case isa.FormatRegRegImmImm:
		fmt.Fprintf(&b, " ra=%d rb=%d imm1=%d imm2=%d", inst.RegA, inst.RegB, inst.Imm1, inst.Imm2)
	case isa.FormatRegRegReg:
		fmt.Fprintf(&b, " rd=%d ra=%d rb=%d", inst.RegD, inst.RegA, inst.RegB)
	}
	return b.String()
}

// operands renders guest operands. With a listing, targets that start a
// block are shown as block labels; otherwise as offsets.
func operands(inst *isa.Instruction, l *Listing) string {
	if inst.Invalid() {
		return ""
	}
	target := func() string {
		if l != nil {
			if i, ok := l.BlockAt(int(inst.Target)); ok {
				return "@" + strconv.Itoa(i)
			}
		}
		return "@" + strconv.FormatInt(inst.Target, 10) + "?"
	}
	imm := func(v int64) string { return strconv.FormatInt(v, 10) }

	switch inst.Op.Format {
	case isa.FormatImm:
		return imm(inst.Imm1)
	case isa.FormatOffset:
		return target()
	case isa.FormatRegExtImm, isa.FormatRegImm:
		return join(inst.RegA.String(), imm(inst.Imm1))
	case isa.FormatImmImm:
		return join(imm(inst.Imm1), imm(inst.Imm2))
	case isa.FormatRegImmImm:
		return join(inst.RegA.String(), imm(inst.Imm1), imm(inst.Imm2))
	case isa.FormatRegImmOffset:
		return join(inst.RegA.String(), imm(inst.Imm1), target())
	case isa.FormatRegReg:
		return join(inst.RegD.String(), inst.RegA.String())
	case isa.FormatRegRegImm:
		return join(inst.RegA.String(), inst.RegB.String(), imm(inst.Imm1))
	case isa.FormatRegRegOffset:
		return join(inst.RegA.String(), inst.RegB.String(), target())
	case isa.FormatRegRegImmImm:
		return join(inst.RegA.String(), inst.RegB.String(), imm(inst.Imm1), imm(inst.Imm2))
	case isa.FormatRegRegReg:
		return join(inst.RegD.String(), inst.RegA.String(), inst.RegB.String())
	}
	return ""
}

func join(parts ...string) string {
	return strings.Join(parts, ", ")
}

// spaced turns "3307" into "33 07".
func spaced(h string) string {
	var b strings.Builder
	for i := 0; i < len(h); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(h[i : i+2])
	}
	return b.String()
}
