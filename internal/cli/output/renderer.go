package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Renderer writes command output in the selected mode.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	mode   Mode
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer, detecting whether out is a terminal.
func NewRenderer(out, errOut io.Writer, mode Mode) *Renderer {
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd())) //nolint:gosec // G115: fd fits in int
	}
	return NewRendererWithTTY(out, errOut, mode, isTTY)
}

// NewRendererWithTTY creates a renderer with explicit terminal detection.
func NewRendererWithTTY(out, errOut io.Writer, mode Mode, isTTY bool) *Renderer {
	if mode == "" {
		mode = ModeAuto
	}
	lr := lipgloss.NewRenderer(out)
	f, _ := out.(termenv.File)
	lr.SetColorProfile(colorProfile(f, isTTY))

	return &Renderer{
		out:    out,
		errOut: errOut,
		mode:   mode,
		isTTY:  isTTY,
		styles: newStyles(lr),
	}
}

// Mode is the requested mode.
func (r *Renderer) Mode() Mode { return r.mode }

// EffectiveMode resolves ModeAuto to ModeText.
func (r *Renderer) EffectiveMode() Mode {
	if r.mode == ModeAuto {
		return ModeText
	}
	return r.mode
}

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the renderer's styles. Without a terminal they render
// plain text.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer is the primary output stream.
func (r *Renderer) Writer() io.Writer { return r.out }

// ErrWriter is the diagnostics stream.
func (r *Renderer) ErrWriter() io.Writer { return r.errOut }

// Println writes a line to the primary stream.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the primary stream.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Header writes a level 1 or level 2 heading.
func (r *Renderer) Header(level int, text string) {
	style := r.styles.Header1
	if level > 1 {
		style = r.styles.Header2
	}
	r.Println(style.Render(text))
}

// Success writes a success line.
func (r *Renderer) Success(msg string) {
	r.Println(r.styles.StatusSuccess.String() + " " + r.styles.Success.Render(msg))
}

// Warning writes a warning line to the diagnostics stream.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("warning: "+msg))
}

// Error writes an error line to the diagnostics stream.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.StatusFailed.String()+" "+r.styles.Error.Render(msg))
}

// StatusLine writes "<icon> label: detail" for a status of success,
// failed or skipped.
func (r *Renderer) StatusLine(status, label, detail string) {
	icon := r.styles.StatusSkipped.String()
	switch status {
	case "success", "ok", "succeeded":
		icon = r.styles.StatusSuccess.String()
	case "failed", "error":
		icon = r.styles.StatusFailed.String()
	}
	line := icon + " " + label
	if detail != "" {
		line += ": " + r.styles.Muted.Render(detail)
	}
	r.Println(line)
}

// KeyValue writes an aligned "key: value" line.
func (r *Renderer) KeyValue(key string, value any) {
	r.Printf("  %-18s %v\n", key+":", value)
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table returns a table writer styled for the output.
func (r *Renderer) Table(header ...any) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	if r.isTTY {
		t.SetStyle(table.StyleRounded)
	} else {
		t.SetStyle(table.StyleLight)
		t.Style().Options.DrawBorder = false
	}
	if len(header) > 0 {
		t.AppendHeader(table.Row(header))
	}
	return t
}

// Rule writes a horizontal separator.
func (r *Renderer) Rule(width int) {
	r.Println(r.styles.Muted.Render(strings.Repeat("─", width)))
}
