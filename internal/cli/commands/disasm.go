package commands

import (
	"strings"

	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/disasm"
	"github.com/spf13/cobra"
)

// DisasmOptions holds options for the disasm command.
type DisasmOptions struct {
	Format   string
	RawBytes bool
	Gas      bool
}

// NewDisasmCommand creates the disasm command.
func NewDisasmCommand() *cobra.Command {
	opts := &DisasmOptions{}
	cmd := &cobra.Command{
		Use:   "disasm <input>",
		Short: "Disassemble a program blob",
		Long: `Decode a program blob and print its instructions grouped into basic blocks.

Formats:
  guest             offsets, mnemonics and operands (default)
  guest-and-native  guest lines followed by the encoded fields
  native            encoded fields only
  diff-friendly     no offsets or raw bytes, stable across rebuilds

With --output json the decoded listing is printed instead.`,
		Example: `  ajanta disasm build/service.pvm
  ajanta disasm build/service.debug.pvm --format diff-friendly --gas=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDisasm(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Format, "format", "f", "guest", "Listing format: "+strings.Join(disasm.FormatNames(), ", "))
	cmd.Flags().BoolVar(&opts.RawBytes, "raw-bytes", true, "Show raw instruction bytes")
	cmd.Flags().BoolVar(&opts.Gas, "gas", true, "Show per-block gas cost")

	_ = cmd.RegisterFlagCompletionFunc("format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return disasm.FormatNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runDisasm(cmd *cobra.Command, input string, opts *DisasmOptions) error {
	// An unknown format fails before the input is touched.
	format, err := disasm.ParseFormat(opts.Format)
	if err != nil {
		return err
	}

	cc := NewCommandContext(cmd)
	r := cc.Renderer

	if r.EffectiveMode() == output.ModeJSON {
		listing, err := disasm.ListFile(input)
		if err != nil {
			return err
		}
		return r.JSON(listing)
	}

	return disasm.DisassembleFile(r.Writer(), input, disasm.Options{
		Format:   format,
		RawBytes: opts.RawBytes,
		Gas:      opts.Gas,
	})
}
