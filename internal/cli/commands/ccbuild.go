package commands

import (
	"github.com/spf13/cobra"
)

// NewCCBuildCommand creates the cc-build command, which compiles and links
// the guest and stubs with one compiler call.
func NewCCBuildCommand() *cobra.Command {
	opts := &BuildOptions{}
	cmd := &cobra.Command{
		Use:   "cc-build <source>",
		Short: "Build with a single compiler call that also links",
		Long: `Build a guest service using a compiler that compiles the guest and the
runtime stubs and links them in one invocation (polkavm-cc by default).

The transform and blob steps are the same as for build.`,
		Example: `  ajanta cc-build service.c -O build/service.pvm`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts, true)
		},
	}

	addBuildFlags(cmd, opts)

	return cmd
}
