package config

import (
	"fmt"

	"github.com/leapstack-labs/ajanta/internal/cli/output"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Toolchain.Compiler == "" {
		return fmt.Errorf("toolchain.compiler is required")
	}
	if c.Toolchain.Linker == "" {
		return fmt.Errorf("toolchain.linker is required")
	}
	if c.Transformer.Command == "" {
		return fmt.Errorf("transformer.command is required")
	}
	if _, err := output.ParseMode(c.OutputFormat); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.History.Enabled && c.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}
	return nil
}
