// Package compiler drives the cross compiler for guest sources and the
// pipeline-owned stubs under fixed flag profiles.
package compiler

import (
	"path/filepath"
	"strings"
)

// DefaultCompiler is used when the caller does not name one.
const DefaultCompiler = "riscv64-elf-gcc"

// BaselineFlags pin the instruction subset and calling convention, and
// disable linker relaxation so code offsets stay deterministic.
var BaselineFlags = []string{"-march=rv64imac", "-mabi=lp64", "-mno-relax"}

// FreestandingFlags build without the standard library or builtins.
var FreestandingFlags = []string{"-ffreestanding", "-nostdlib", "-fno-builtin"}

// ReservedRegisters are callee-saved registers the runtime stub keeps its
// cross-call state in. C++ guests must never allocate them.
var ReservedRegisters = []string{"s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"}

var cxxExtensions = map[string]bool{
	".cc":  true,
	".cpp": true,
	".cxx": true,
	".c++": true,
	".C":   true,
}

// IsCXXSource reports whether path has a recognized C++ extension. The
// match is case-sensitive so ".C" is C++ and ".c" is C.
func IsCXXSource(path string) bool {
	return cxxExtensions[filepath.Ext(path)]
}

// CXXFlags are added for C++ guests.
func CXXFlags() []string {
	flags := []string{"-fno-exceptions", "-fno-rtti", "-fno-pic"}
	for _, r := range ReservedRegisters {
		flags = append(flags, "-ffixed-"+r)
	}
	return flags
}

// PairedCXXCompiler maps a C compiler to its C++ driver by name.
func PairedCXXCompiler(cc string) string {
	switch {
	case strings.HasSuffix(cc, "gcc"):
		return strings.TrimSuffix(cc, "gcc") + "g++"
	case strings.HasSuffix(cc, "clang"):
		return cc + "++"
	case strings.HasSuffix(cc, "cc"):
		return strings.TrimSuffix(cc, "cc") + "c++"
	default:
		return cc
	}
}

// GuestFlags returns the profile flags for a guest source, before the
// input and output arguments.
func GuestFlags(cxx bool) []string {
	flags := make([]string, 0, len(BaselineFlags)+len(FreestandingFlags)+13)
	flags = append(flags, BaselineFlags...)
	flags = append(flags, FreestandingFlags...)
	if cxx {
		flags = append(flags, CXXFlags()...)
	}
	return flags
}
