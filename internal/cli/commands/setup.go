package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/leapstack-labs/ajanta/internal/cli/config"
	"github.com/leapstack-labs/ajanta/internal/cli/output"
	"github.com/leapstack-labs/ajanta/internal/pipeline"
	"github.com/leapstack-labs/ajanta/internal/state"
	"github.com/leapstack-labs/ajanta/internal/toolchain"
	"github.com/leapstack-labs/ajanta/internal/transform"
	"github.com/spf13/cobra"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the loaded config and
// the logger stored on the command.
func NewCommandContext(cmd *cobra.Command) *CommandContext {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	mode := output.Mode(cfg.OutputFormat)
	r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)

	return &CommandContext{
		Cfg:      cfg,
		Logger:   logger,
		Renderer: r,
	}
}

// getConfig returns the current configuration, or the defaults when no
// config has been loaded.
func getConfig() *config.Config {
	if cfg := config.GetCurrentConfig(); cfg != nil {
		return cfg
	}
	return config.Default()
}

// Tools are the external collaborators a pipeline runs.
type Tools struct {
	Runner      toolchain.Runner
	Transformer transform.Transformer
}

// newTools builds the real toolchain. Tests replace it.
var newTools = func(cfg *config.Config, logger *slog.Logger) Tools {
	runner := toolchain.NewExecRunner(logger)
	return Tools{
		Runner: runner,
		Transformer: &transform.ExecTransformer{
			Runner:    runner,
			Logger:    logger,
			Command:   cfg.Transformer.Command,
			ExtraArgs: cfg.Transformer.ExtraArgs,
		},
	}
}

// newPipeline wires a pipeline for the command. The returned cleanup closes
// the history store and must always be called. History that cannot be
// opened is skipped with a warning.
func (c *CommandContext) newPipeline(opts pipeline.Options) (*pipeline.Pipeline, func(), error) {
	tools := newTools(c.Cfg, c.Logger)
	p := pipeline.New(opts, tools.Runner, tools.Transformer, c.Logger)

	cleanup := func() {}
	if c.Cfg.History.Enabled {
		store, err := openHistory(c.Cfg)
		if err != nil {
			c.Logger.Warn("build history disabled", "path", c.Cfg.History.Path, "error", err)
			c.Renderer.Warning("build history unavailable: " + err.Error())
			return p, cleanup, nil
		}
		p.Recorder = state.NewRecorder(store)
		cleanup = func() { _ = store.Close() }
	}
	return p, cleanup, nil
}

// openHistory opens and migrates the history database, creating its
// directory if needed.
func openHistory(cfg *config.Config) (*state.SQLiteStore, error) {
	path := cfg.History.Path
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, fmt.Errorf("failed to create history directory: %w", err)
			}
		}
	}
	store, err := state.OpenMigrated(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open build history: %w", err)
	}
	return store, nil
}
