package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/program"
	"github.com/spf13/cobra"
)

// NewInspectCommand creates the inspect command.
func NewInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <input>",
		Short: "Summarize a program blob",
		Long: `Print the sections of a program blob with their sizes, the dispatch table
and the metadata length.`,
		Example: `  ajanta inspect build/service.pvm
  ajanta inspect build/service.debug.pvm -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd, args[0])
		},
	}
}

// SectionInfo is one row of the section summary.
type SectionInfo struct {
	Name  string `json:"name"`
	Bytes int    `json:"bytes"`
}

// ExportInfo is one exported entry point.
type ExportInfo struct {
	Symbol string `json:"symbol"`
	Offset uint32 `json:"offset"`
}

// InspectOutput is the JSON output for the inspect command.
type InspectOutput struct {
	Path          string                `json:"path"`
	FileBytes     int64                 `json:"file_bytes"`
	MetadataBytes int                   `json:"metadata_bytes"`
	Is64Bit       bool                  `json:"is_64_bit"`
	StackSize     uint32                `json:"stack_size"`
	Sections      []SectionInfo         `json:"sections"`
	Imports       []string              `json:"imports"`
	Exports       []ExportInfo          `json:"exports"`
	Dispatch      program.DispatchTable `json:"dispatch"`
	HasDebugInfo  bool                  `json:"has_debug_info"`
}

func runInspect(cmd *cobra.Command, input string) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	info, err := os.Stat(input)
	if err != nil {
		return errs.IO("stat", input, err)
	}
	b, err := blob.ReadFile(input)
	if err != nil {
		return err
	}

	out := summarize(input, info.Size(), b)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	s := r.Styles()
	r.Header(1, input)
	r.KeyValue("file", fmt.Sprintf("%d bytes", out.FileBytes))
	r.KeyValue("metadata", fmt.Sprintf("%d bytes", out.MetadataBytes))
	r.KeyValue("64-bit", out.Is64Bit)
	r.KeyValue("stack", fmt.Sprintf("%d bytes", out.StackSize))
	r.KeyValue("debug info", out.HasDebugInfo)
	r.Println()

	t := r.Table("Section", "Bytes")
	for _, sec := range out.Sections {
		t.AppendRow(table.Row{sec.Name, sec.Bytes})
	}
	t.Render()
	r.Println()

	r.Header(2, "Dispatch")
	dt := r.Table("Index", "Symbol", "Offset")
	for _, e := range out.Dispatch {
		offset := s.Muted.Render("unresolved")
		if e.Resolved {
			offset = fmt.Sprintf("%d", e.CodeOffset)
		}
		dt.AppendRow(table.Row{e.Index, e.Symbol, offset})
	}
	dt.Render()

	if len(out.Exports) > 0 {
		r.Println()
		r.Header(2, "Exports")
		et := r.Table("Symbol", "Offset")
		for _, e := range out.Exports {
			et.AppendRow(table.Row{e.Symbol, e.Offset})
		}
		et.Render()
	}
	return nil
}

func summarize(path string, size int64, b *blob.Blob) InspectOutput {
	p := b.Program
	out := InspectOutput{
		Path:          path,
		FileBytes:     size,
		MetadataBytes: len(b.Metadata),
		Is64Bit:       p.Is64Bit,
		StackSize:     p.StackSize,
		Imports:       []string{},
		Exports:       []ExportInfo{},
		Dispatch:      program.NewDispatchTable(p.Exports),
		HasDebugInfo:  p.HasDebugInfo(),
		Sections: []SectionInfo{
			{"ro_data", len(p.ROData)},
			{"rw_data", len(p.RWData)},
			{"code", len(p.Code.Instructions)},
			{"jump_table", len(p.Code.JumpTable) * int(p.Code.JumpEntrySize)},
			{"debug_strings", len(p.DebugStrings)},
			{"debug_line_programs", len(p.DebugLinePrograms)},
			{"debug_line_program_ranges", len(p.DebugLineProgramRanges)},
		},
	}
	for _, imp := range p.Imports {
		out.Imports = append(out.Imports, imp.Symbol)
	}
	for _, e := range p.Exports {
		out.Exports = append(out.Exports, ExportInfo{Symbol: e.Symbol, Offset: e.Offset})
	}
	return out
}
