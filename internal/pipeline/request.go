package pipeline

import (
	"bytes"
	"path/filepath"
	"slices"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/errs"
)

// DefaultOutput is the deployment blob path when none is given.
const DefaultOutput = "build/service.pvm"

// debugSuffix is inserted between the output stem and the blob extension.
const debugSuffix = ".debug"

// Request describes one build. It is immutable once created.
type Request struct {
	source   string
	output   string
	metadata []byte
	compiler string
	cflags   []string
}

// NewRequest validates a build request. An empty output selects
// DefaultOutput; nil metadata means zero-length metadata.
func NewRequest(source, output string, metadata []byte) (Request, error) {
	if strings.TrimSpace(source) == "" {
		return Request{}, errs.Argument("no guest source given")
	}
	if output == "" {
		output = DefaultOutput
	}
	if strings.HasSuffix(output, string(filepath.Separator)) {
		return Request{}, errs.Argument("output %q is a directory", output)
	}
	return Request{source: source, output: filepath.Clean(output), metadata: bytes.Clone(metadata)}, nil
}

// Source is the guest source path.
func (r Request) Source() string { return r.source }

// Output is the deployment blob path.
func (r Request) Output() string { return r.output }

// Metadata returns a copy of the blob metadata.
func (r Request) Metadata() []byte { return bytes.Clone(r.metadata) }

// WithToolchain returns a copy of r that builds with compiler and cflags.
// An empty compiler keeps the pipeline's configured one; nil cflags keep
// the configured flags, while an empty non-nil slice clears them.
func (r Request) WithToolchain(compiler string, cflags []string) Request {
	r.compiler = compiler
	r.cflags = slices.Clone(cflags)
	return r
}

// Compiler is the compiler named for this build, or "".
func (r Request) Compiler() string { return r.compiler }

// CFlags returns a copy of the extra compiler flags named for this build.
// Nil means the pipeline's configured flags apply.
func (r Request) CFlags() []string { return slices.Clone(r.cflags) }

// DebugPath is the unstripped blob path for this request.
func (r Request) DebugPath() string { return DebugPath(r.output) }

// DebugPath derives the debug blob path from an output path: the output's
// directory, its file stem, then ".debug.pvm".
func DebugPath(output string) string {
	base := filepath.Base(output)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(filepath.Dir(output), stem+debugSuffix+blob.Extension)
}
