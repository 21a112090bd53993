package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/ajanta/internal/cli/config"
	"github.com/spf13/cobra"
)

const exampleService = `#include "ajanta_guest.h"

AJANTA_IMPORT(0, uint64_t, host_log, const char *msg, uint64_t len);

AJANTA_EXPORT(uint64_t, refine_ext, uint64_t input, uint64_t len) {
	static const char msg[] = "refine";
	host_log(msg, sizeof(msg) - 1);
	return input + len;
}

AJANTA_EXPORT(uint64_t, accumulate_ext, uint64_t input, uint64_t len) {
	return input ^ len;
}

AJANTA_EXPORT(uint64_t, on_transfer_ext, uint64_t input, uint64_t len) {
	(void)input;
	(void)len;
	return 0;
}
`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create an ajanta.yaml with the default settings",
		Long: `Write an ajanta.yaml holding every configuration key at its default value.

Use --example to also write service.c, a guest that exports all three
dispatch entry points.`,
		Example: `  # Initialize in current directory
  ajanta init

  # Initialize a new directory with an example guest
  ajanta init my-service --example

  # Force overwrite existing config
  ajanta init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(NewCommandContext(cmd), dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Also write an example guest service")

	return cmd
}

func runInit(cc *CommandContext, dir string, force, example bool) error {
	r := cc.Renderer

	if dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, config.ConfigFileName)
	if err := refuseOverwrite(configPath, force); err != nil {
		return err
	}
	sourcePath := filepath.Join(dir, "service.c")
	if example {
		if err := refuseOverwrite(sourcePath, force); err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config.Default()); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	r.StatusLine("success", "created", configPath)

	if example {
		if err := os.WriteFile(sourcePath, []byte(exampleService), 0600); err != nil {
			return fmt.Errorf("failed to write %s: %w", sourcePath, err)
		}
		r.StatusLine("success", "created", sourcePath)
		r.Println("")
		r.Println("Next: ajanta build " + sourcePath)
	}
	return nil
}

func refuseOverwrite(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}
	return nil
}
