package commands

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/errs"
	"github.com/leapstack-labs/ajanta/internal/pipeline"
	"github.com/leapstack-labs/ajanta/internal/program"
	"github.com/leapstack-labs/ajanta/internal/watch"
	"github.com/spf13/cobra"
)

// BuildOptions holds options for the build and cc-build commands.
type BuildOptions struct {
	Out          string
	Compiler     string
	CFlags       []string
	MetadataFile string
	Watch        bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}
	cmd := &cobra.Command{
		Use:   "build <source>",
		Short: "Compile a guest service into PVM program blobs",
		Long: `Compile a C or C++ guest source with the runtime stubs, link the result
and transform it into two program blobs.

The deployment blob is stripped of debug information. The debug blob keeps it
and is written next to the output as <stem>.debug.pvm. Neither file is written
unless every stage succeeds.`,
		Example: `  # Build into build/service.pvm
  ajanta build service.c

  # Choose the output and embed metadata
  ajanta build service.c -O dist/auth.pvm --metadata-file meta.bin

  # Rebuild whenever the source changes
  ajanta build service.c --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd, args[0], opts, false)
		},
	}

	addBuildFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.MetadataFile, "metadata-file", "", "File whose bytes are embedded as blob metadata")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Rebuild when the source changes")

	return cmd
}

func addBuildFlags(cmd *cobra.Command, opts *BuildOptions) {
	cmd.Flags().StringVarP(&opts.Out, "out", "O", "", "Deployment blob path (default: build/service.pvm)")
	cmd.Flags().StringVar(&opts.Compiler, "compiler", "", "Compiler binary")
	cmd.Flags().StringArrayVar(&opts.CFlags, "cflags", nil, "Extra compiler flags, space separated; repeatable")
}

// splitCFlags splits every --cflags value on whitespace. Commas are kept so
// flags such as -Wl,-z,norelro reach the compiler intact.
func splitCFlags(values []string) []string {
	flags := []string{}
	for _, v := range values {
		flags = append(flags, strings.Fields(v)...)
	}
	return flags
}

// BuildOutput is the JSON output for a build.
type BuildOutput struct {
	Source         string                `json:"source"`
	Output         string                `json:"output"`
	DebugOutput    string                `json:"debug_output"`
	DeployBytes    int                   `json:"deploy_bytes"`
	DebugBytes     int                   `json:"debug_bytes"`
	Dispatch       program.DispatchTable `json:"dispatch"`
	MissingExports []string              `json:"missing_exports,omitempty"`
	DurationMS     int64                 `json:"duration_ms"`
}

func runBuild(cmd *cobra.Command, source string, opts *BuildOptions, singleCall bool) error {
	cc := NewCommandContext(cmd)

	out := cc.Cfg.Build.Output
	if opts.Out != "" {
		out = opts.Out
	}

	metadata, err := readMetadata(opts.MetadataFile)
	if err != nil {
		return err
	}

	req, err := pipeline.NewRequest(source, out, metadata)
	if err != nil {
		return err
	}
	var cflags []string
	if cmd.Flags().Changed("cflags") {
		cflags = splitCFlags(opts.CFlags)
	}
	req = req.WithToolchain(opts.Compiler, cflags)

	p, cleanup, err := cc.newPipeline(cc.Cfg.PipelineOptions())
	if err != nil {
		return err
	}
	defer cleanup()

	build := p.Build
	if singleCall {
		build = p.BuildSingleCall
	}

	once := func(ctx context.Context) error {
		start := time.Now()
		res, err := build(ctx, req)
		if err != nil {
			return err
		}
		return cc.reportBuild(req, res, time.Since(start))
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if !opts.Watch {
		return once(ctx)
	}
	return cc.watchBuild(ctx, source, once)
}

func readMetadata(path string) ([]byte, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
	if err != nil {
		return nil, errs.IO("read metadata", path, err)
	}
	return data, nil
}

func (c *CommandContext) reportBuild(req pipeline.Request, res *pipeline.Result, elapsed time.Duration) error {
	r := c.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(BuildOutput{
			Source:         req.Source(),
			Output:         res.Output,
			DebugOutput:    res.DebugOutput,
			DeployBytes:    len(res.DeployBlob),
			DebugBytes:     len(res.DebugBlob),
			Dispatch:       res.Deploy.Dispatch,
			MissingExports: res.MissingExports,
			DurationMS:     elapsed.Milliseconds(),
		})
	}

	for _, sym := range res.MissingExports {
		r.Warning(fmt.Sprintf("%s is not exported by the guest", sym))
	}
	r.StatusLine("success", "deploy", fmt.Sprintf("%s (%d bytes)", res.Output, len(res.DeployBlob)))
	r.StatusLine("success", "debug", fmt.Sprintf("%s (%d bytes)", res.DebugOutput, len(res.DebugBlob)))
	r.Println(r.Styles().Muted.Render(fmt.Sprintf("built in %s", elapsed.Round(time.Millisecond))))
	return nil
}

// watchBuild builds once, then again after every change to source. Build
// failures are reported and watching continues.
func (c *CommandContext) watchBuild(ctx context.Context, source string, once func(context.Context) error) error {
	w, err := watch.New([]string{source}, c.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	rebuild := func(ctx context.Context) {
		if err := once(ctx); err != nil {
			c.Renderer.Error(err.Error())
		}
	}

	rebuild(ctx)
	c.Renderer.Println(c.Renderer.Styles().Muted.Render("watching " + source + " (Ctrl+C to stop)"))

	return w.Run(ctx, func(ctx context.Context, changed []string) {
		c.Logger.Info("source changed, rebuilding", "paths", changed)
		rebuild(ctx)
	})
}
