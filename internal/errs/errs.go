// Package errs defines the error taxonomy shared by every build stage.
//
// Every failure surfaced to the top-level caller is an *Error carrying a Kind,
// the stage that produced it and, for external tool failures, the tool's
// captured stdout and stderr verbatim.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes the error
type Kind string

const (
	KindArgument  Kind = "argument"  // malformed caller input, raised before any I/O
	KindCompile   Kind = "compile"   // compiler exited non-zero
	KindLink      Kind = "link"      // linker exited non-zero
	KindTransform Kind = "transform" // ELF to program transformer failed
	KindFormat    Kind = "format"    // program container or blob could not be decoded
	KindIO        Kind = "io"        // filesystem or process spawn failure
)

// Sentinels usable with errors.Is. Matching is by Kind only.
var (
	ErrArgument  = &Error{Kind: KindArgument}
	ErrCompile   = &Error{Kind: KindCompile}
	ErrLink      = &Error{Kind: KindLink}
	ErrTransform = &Error{Kind: KindTransform}
	ErrFormat    = &Error{Kind: KindFormat}
	ErrIO        = &Error{Kind: KindIO}
)

// Error is the structured error type used throughout the pipeline
type Error struct {
	Cause  error
	Kind   Kind
	Stage  string
	Tool   string
	Path   string
	Detail string
	Stdout string
	Stderr string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Kind))
	b.WriteByte(']')

	if e.Stage != "" {
		b.WriteByte(' ')
		b.WriteString(e.Stage)
	}
	if e.Tool != "" {
		b.WriteString(" (")
		b.WriteString(e.Tool)
		b.WriteByte(')')
	}
	if e.Path != "" {
		b.WriteString(" at ")
		b.WriteString(e.Path)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	if e.Stdout != "" || e.Stderr != "" {
		b.WriteString("\nstdout: ")
		b.WriteString(e.Stdout)
		b.WriteString("\nstderr: ")
		b.WriteString(e.Stderr)
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same kind. A target with a
// non-empty Stage must also match the stage.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Stage == "" || t.Stage == e.Stage
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(kind Kind) *Builder {
	return &Builder{err: Error{Kind: kind}}
}

// Stage sets the pipeline stage
func (b *Builder) Stage(stage string) *Builder {
	b.err.Stage = stage
	return b
}

// Tool sets the external tool name
func (b *Builder) Tool(tool string) *Builder {
	b.err.Tool = tool
	return b
}

// Path sets the offending path
func (b *Builder) Path(path string) *Builder {
	b.err.Path = path
	return b
}

// Detail sets the detail message
func (b *Builder) Detail(msg string) *Builder {
	b.err.Detail = msg
	return b
}

// Detailf sets a formatted detail message
func (b *Builder) Detailf(format string, args ...any) *Builder {
	b.err.Detail = fmt.Sprintf(format, args...)
	return b
}

// Output attaches captured tool output
func (b *Builder) Output(stdout, stderr []byte) *Builder {
	b.err.Stdout = string(stdout)
	b.err.Stderr = string(stderr)
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	e := b.err
	return &e
}

// Argument reports malformed caller input.
func Argument(format string, args ...any) *Error {
	return New(KindArgument).Detailf(format, args...).Build()
}

// Format reports a structural problem in encoded data.
func Format(format string, args ...any) *Error {
	return New(KindFormat).Detailf(format, args...).Build()
}

// IO reports a filesystem failure with the offending path attached.
func IO(op, path string, cause error) *Error {
	return New(KindIO).Stage(op).Path(path).Cause(cause).Build()
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
