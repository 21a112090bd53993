package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/cli"
	"github.com/leapstack-labs/ajanta/internal/disasm"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errorKinds describes every error kind a command can fail with.
var errorKinds = []struct {
	kind errs.Kind
	when string
}{
	{errs.KindArgument, "Malformed input such as an unknown disassembly format. Nothing is read or run."},
	{errs.KindCompile, "The compiler exited non-zero. Its stdout and stderr are printed verbatim."},
	{errs.KindLink, "The linker exited non-zero. Its stdout and stderr are printed verbatim."},
	{errs.KindTransform, "The ELF to PVM transformer failed or produced an unreadable program."},
	{errs.KindFormat, "A program blob or program container could not be decoded."},
	{errs.KindIO, "A file could not be read or written, or a tool could not be started."},
}

// buildStages are the states a build passes through, in order.
var buildStages = []pipeline.State{
	pipeline.StateCompiling,
	pipeline.StateStubBuilding,
	pipeline.StateLinking,
	pipeline.StateTransforming,
	pipeline.StateEncoding,
	pipeline.StateDone,
}

// commandSections adds pages content that cobra does not know about.
var commandSections = map[string]func(*MarkdownWriter){
	"build":    writeBuildSections,
	"cc-build": writeBuildSections,
	"disasm":   writeFormatSection,
}

// generateCLIDocs writes an index page and one page per visible command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := visibleCommands(root)

	if err := writePage(outDir, "index", cliIndex(root, cmds)); err != nil {
		return err
	}
	for _, cmd := range cmds {
		if err := writePage(outDir, cmd.Name(), commandPage(cmd)); err != nil {
			return err
		}
	}
	return nil
}

func writePage(outDir, name string, w *MarkdownWriter) error {
	path := filepath.Join(outDir, name+".md")
	if err := os.WriteFile(path, w.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Printf("  Generated %s.md", name)
	return nil
}

func visibleCommands(root *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, cmd := range root.Commands() {
		if cmd.IsAvailableCommand() && cmd.Name() != "help" {
			out = append(out, cmd)
		}
	}
	return out
}

func cliIndex(root *cobra.Command, cmds []*cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for ajanta")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("ajanta builds C and C++ guest services into PVM program blobs and inspects the result.")
	w.CodeBlock("bash", "go install github.com/leapstack-labs/ajanta/cmd/ajanta@latest\najanta <command> [options]")

	w.Header(2, "Commands")
	rows := make([][]string, 0, len(cmds))
	for _, cmd := range cmds {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name()),
			cleanDescription(cmd.Short),
		})
	}
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Each configuration key maps to an `AJANTA_` variable. Flags beat variables, which beat `ajanta.yaml`.")
	var env [][]string
	for _, f := range configFields() {
		env = append(env, []string{InlineCode(f.EnvVar()), InlineCode(f.Key)})
	}
	w.Table([]string{"Variable", "Config key"}, env)

	w.Header(2, "Errors")
	w.Paragraph("Every failure exits with status 1 and names its kind. No retry is attempted.")
	var kinds [][]string
	for _, k := range errorKinds {
		kinds = append(kinds, []string{InlineCode(string(k.kind)), k.when})
	}
	w.Table([]string{"Kind", "Raised when"}, kinds)
	return w
}

func commandPage(cmd *cobra.Command) *MarkdownWriter {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	desc := cmd.Long
	if desc == "" {
		desc = cmd.Short
	}
	w.Paragraph(desc)

	w.Header(2, "Usage")
	use := cmd.UseLine()
	if cmd.HasAvailableSubCommands() {
		use = cmd.CommandPath() + " <subcommand> [options]"
	}
	w.CodeBlock("bash", use)

	if len(cmd.Aliases) > 0 {
		w.Paragraph("Aliases: " + joinCode(cmd.Aliases))
	}
	if cmd.HasAvailableSubCommands() {
		w.Header(2, "Subcommands")
		var rows [][]string
		for _, sub := range cmd.Commands() {
			if sub.IsAvailableCommand() {
				rows = append(rows, []string{InlineCode(sub.Name()), cleanDescription(sub.Short)})
			}
		}
		w.Table([]string{"Subcommand", "Description"}, rows)
	}
	if cmd.HasAvailableLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}
	if section, ok := commandSections[cmd.Name()]; ok {
		section(w)
	}
	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", dedent(cmd.Example))
	}
	return w
}

func writeBuildSections(w *MarkdownWriter) {
	w.Header(2, "Outputs")
	w.Paragraph("Both blobs are written only after every stage succeeds. The debug blob sits next to the deployment blob.")
	w.Table([]string{"Artifact", "Default path", "Debug info"}, [][]string{
		{"Deployment blob", InlineCode(pipeline.DefaultOutput), "stripped"},
		{"Debug blob", InlineCode(filepath.ToSlash(pipeline.DebugPath(pipeline.DefaultOutput))), "kept"},
	})

	w.Header(2, "Stages")
	items := make([]string, 0, len(buildStages))
	for _, s := range buildStages {
		items = append(items, InlineCode(s.String()))
	}
	w.Paragraph("A build moves through " + strings.Join(items, ", ") +
		". The first failure moves it to " + InlineCode(pipeline.StateFailed.String()) + ".")
}

func writeFormatSection(w *MarkdownWriter) {
	w.Header(2, "Formats")
	var rows [][]string
	for _, name := range disasm.FormatNames() {
		f, err := disasm.ParseFormat(name)
		if err != nil {
			continue
		}
		rows = append(rows, []string{InlineCode(name), joinCode(f.Aliases())})
	}
	w.Table([]string{"Format", "Also accepted"}, rows)
	w.Paragraph("Any other value is rejected before the blob is opened.")
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name = InlineCode("-"+f.Shorthand) + ", " + name
		}
		def := f.DefValue
		if def != "" && def != "[]" && f.Value.Type() != "bool" {
			def = InlineCode(def)
		} else if def == "[]" {
			def = ""
		}
		rows = append(rows, []string{name, def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Default", "Description"}, rows)
}

func joinCode(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = InlineCode(s)
	}
	return strings.Join(quoted, ", ")
}

// dedent strips the indentation cobra examples carry.
func dedent(s string) string {
	lines := strings.Split(strings.Trim(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, "  ")
	}
	return strings.Join(lines, "\n")
}
