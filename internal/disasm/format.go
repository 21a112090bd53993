// Package disasm renders a program blob as a line-oriented instruction
// listing grouped into basic blocks.
package disasm

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/errs"
)

// Format selects the listing layout.
type Format int

const (
	// FormatGuest lists guest bytecode instructions.
	FormatGuest Format = iota
	// FormatGuestAndNative lists each guest instruction followed by its
	// encoded fields.
	FormatGuestAndNative
	// FormatNative lists only the encoded fields of each instruction.
	FormatNative
	// FormatDiffFriendly omits offsets and raw bytes so listings of two
	// builds can be compared line by line.
	FormatDiffFriendly
)

var formatNames = map[Format]string{
	FormatGuest:          "guest",
	FormatGuestAndNative: "guest-and-native",
	FormatNative:         "native",
	FormatDiffFriendly:   "diff-friendly",
}

var formatAliases = map[string]Format{
	"guest":            FormatGuest,
	"guest-and-native": FormatGuestAndNative,
	"guest-native":     FormatGuestAndNative,
	"guestnative":      FormatGuestAndNative,
	"native":           FormatNative,
	"diff-friendly":    FormatDiffFriendly,
	"difffriendly":     FormatDiffFriendly,
	"diff":             FormatDiffFriendly,
}

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "unknown"
}

// Valid reports whether f is one of the defined formats.
func (f Format) Valid() bool {
	_, ok := formatNames[f]
	return ok
}

// ParseFormat maps a format name or alias to a Format.
func ParseFormat(s string) (Format, error) {
	if f, ok := formatAliases[strings.TrimSpace(s)]; ok {
		return f, nil
	}
	return 0, errs.New(errs.KindArgument).Stage("disasm").
		Detailf("unknown disassembly format %q (want one of %s)", s, strings.Join(FormatNames(), ", ")).
		Build()
}

// FormatNames lists the canonical format names.
func FormatNames() []string {
	return []string{"guest", "guest-and-native", "native", "diff-friendly"}
}

// Aliases lists the other accepted spellings of f, sorted.
func (f Format) Aliases() []string {
	var out []string
	for alias, g := range formatAliases {
		if g == f && alias != f.String() {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}
