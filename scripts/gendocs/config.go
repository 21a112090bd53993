package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/ajanta/internal/cli/config"
)

// ConfigField documents one configuration key.
type ConfigField struct {
	Key         string
	Type        string
	Default     string
	Description string
}

// EnvVar is the environment variable that sets the key.
func (f ConfigField) EnvVar() string {
	return "AJANTA_" + strings.ToUpper(strings.ReplaceAll(f.Key, ".", "_"))
}

func configFields() []ConfigField {
	d := config.Default()
	str := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	return []ConfigField{
		{"toolchain.compiler", "string", d.Toolchain.Compiler, "C compiler for the guest and the stubs"},
		{"toolchain.cxx_compiler", "string", str(d.Toolchain.CXXCompiler), "C++ compiler for .cc/.cpp/.cxx guests (derived from the C compiler when empty)"},
		{"toolchain.linker", "string", d.Toolchain.Linker, "Relocatable linker"},
		{"toolchain.cc_compiler", "string", d.Toolchain.CCCompiler, "Single-call compiler used by cc-build"},
		{"toolchain.parallel_stubs", "bool", fmt.Sprint(d.Toolchain.ParallelStubs), "Compile the runtime stubs concurrently"},
		{"transformer.command", "string", d.Transformer.Command, "ELF to PVM bytecode transformer"},
		{"transformer.extra_args", "[]string", "-", "Extra arguments passed to the transformer"},
		{"build.output", "string", d.Build.Output, "Deployment blob path; the debug blob is written beside it"},
		{"build.cflags", "[]string", "-", "Compiler flags appended to the defaults"},
		{"history.enabled", "bool", fmt.Sprint(d.History.Enabled), "Record every build in the history database"},
		{"history.path", "string", d.History.Path, "History database, relative to the project root"},
		{"verbose", "bool", "false", "Debug logging"},
		{"output", "string", d.OutputFormat, "Output format: auto, text or json"},
		{"log_format", "string", d.LogFormat, "Log format on stderr: text or json"},
	}
}

// generateConfigDocs writes the configuration reference page.
func generateConfigDocs(outDir string) error {
	log.Printf("Generating config docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	w := NewMarkdownWriter()
	w.Frontmatter("Configuration", "ajanta configuration reference")
	w.GeneratedMarker()

	w.Header(1, "Configuration")
	w.Paragraph("ajanta reads `" + config.ConfigFileName + "` (or `ajanta.yml`) from the working directory or the nearest parent. Run `ajanta init` to write one with every default.")

	headers := []string{"Key", "Type", "Default", "Description"}
	var rows [][]string
	for _, f := range configFields() {
		rows = append(rows, []string{InlineCode(f.Key), f.Type, InlineCode(f.Default), f.Description})
	}
	w.Table(headers, rows)

	w.Header(2, "Precedence")
	w.BulletList([]string{
		"Command-line flags",
		"`AJANTA_` environment variables",
		"`" + config.ConfigFileName + "`",
		"Built-in defaults",
	})

	return os.WriteFile(filepath.Join(outDir, "configuration.md"), w.Bytes(), 0600)
}
