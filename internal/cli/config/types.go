// Package config loads CLI configuration from defaults, ajanta.yaml,
// AJANTA_ environment variables and command-line flags.
package config

import (
	"github.com/leapstack-labs/ajanta/internal/compiler"
	"github.com/leapstack-labs/ajanta/internal/linker"
	"github.com/leapstack-labs/ajanta/internal/pipeline"
	"github.com/leapstack-labs/ajanta/internal/transform"
)

// ToolchainConfig names the external compiler and linker binaries.
type ToolchainConfig struct {
	Compiler      string `koanf:"compiler" yaml:"compiler"`
	CXXCompiler   string `koanf:"cxx_compiler" yaml:"cxx_compiler,omitempty"`
	Linker        string `koanf:"linker" yaml:"linker"`
	CCCompiler    string `koanf:"cc_compiler" yaml:"cc_compiler"`
	ParallelStubs bool   `koanf:"parallel_stubs" yaml:"parallel_stubs"`
}

// TransformerConfig names the ELF to bytecode transformer.
type TransformerConfig struct {
	Command   string   `koanf:"command" yaml:"command"`
	ExtraArgs []string `koanf:"extra_args" yaml:"extra_args,omitempty"`
}

// BuildConfig holds build defaults.
type BuildConfig struct {
	Output string   `koanf:"output" yaml:"output"`
	CFlags []string `koanf:"cflags" yaml:"cflags,omitempty"`
}

// HistoryConfig controls the build history database.
type HistoryConfig struct {
	Enabled bool   `koanf:"enabled" yaml:"enabled"`
	Path    string `koanf:"path" yaml:"path"`
}

// Config holds all CLI configuration options.
type Config struct {
	Toolchain    ToolchainConfig   `koanf:"toolchain" yaml:"toolchain"`
	Transformer  TransformerConfig `koanf:"transformer" yaml:"transformer"`
	Build        BuildConfig       `koanf:"build" yaml:"build"`
	History      HistoryConfig     `koanf:"history" yaml:"history"`
	Verbose      bool              `koanf:"verbose" yaml:"verbose"`
	OutputFormat string            `koanf:"output" yaml:"output"`
	LogFormat    string            `koanf:"log_format" yaml:"log_format"`

	// ProjectRoot is the directory relative paths in the config resolve
	// against. It is not read from any source.
	ProjectRoot string `koanf:"-" yaml:"-"`
}

// Default configuration values.
const (
	DefaultHistoryFile = ".ajanta/history.db"
	DefaultOutput      = "auto"
	DefaultLogFormat   = "text"
	ConfigFileName     = "ajanta.yaml"
)

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Toolchain: ToolchainConfig{
			Compiler:   compiler.DefaultCompiler,
			Linker:     linker.DefaultLinker,
			CCCompiler: compiler.DefaultSingleCallCompiler,
		},
		Transformer:  TransformerConfig{Command: transform.DefaultCommand},
		Build:        BuildConfig{Output: pipeline.DefaultOutput},
		History:      HistoryConfig{Enabled: true, Path: DefaultHistoryFile},
		OutputFormat: DefaultOutput,
		LogFormat:    DefaultLogFormat,
	}
}

// defaultsMap is Default flattened to koanf keys.
func defaultsMap() map[string]interface{} {
	d := Default()
	return map[string]interface{}{
		"toolchain.compiler":       d.Toolchain.Compiler,
		"toolchain.cxx_compiler":   d.Toolchain.CXXCompiler,
		"toolchain.linker":         d.Toolchain.Linker,
		"toolchain.cc_compiler":    d.Toolchain.CCCompiler,
		"toolchain.parallel_stubs": d.Toolchain.ParallelStubs,
		"transformer.command":      d.Transformer.Command,
		"transformer.extra_args":   []string{},
		"build.output":             d.Build.Output,
		"build.cflags":             []string{},
		"history.enabled":          d.History.Enabled,
		"history.path":             d.History.Path,
		"verbose":                  false,
		"output":                   d.OutputFormat,
		"log_format":               d.LogFormat,
	}
}

// PipelineOptions maps the toolchain settings onto pipeline options.
func (c *Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		Compiler:           c.Toolchain.Compiler,
		CXXCompiler:        c.Toolchain.CXXCompiler,
		Linker:             c.Toolchain.Linker,
		SingleCallCompiler: c.Toolchain.CCCompiler,
		CFlags:             c.Build.CFlags,
		ParallelStubs:      c.Toolchain.ParallelStubs,
	}
}
