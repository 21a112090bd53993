package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.BoolP("verbose", "v", false, "")
	flags.StringP("output", "o", "", "")
	flags.String("compiler", "", "")
	flags.String("linker", "", "")
	flags.StringP("out", "O", "", "")
	flags.StringSlice("cflags", nil, "")
	flags.Bool("watch", false, "")
	return flags
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "riscv64-elf-gcc", cfg.Toolchain.Compiler)
	assert.Equal(t, "riscv64-elf-ld", cfg.Toolchain.Linker)
	assert.Equal(t, "polkavm-cc", cfg.Toolchain.CCCompiler)
	assert.Equal(t, "polkatool", cfg.Transformer.Command)
	assert.Equal(t, "build/service.pvm", cfg.Build.Output)
	assert.Equal(t, DefaultOutput, cfg.OutputFormat)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.True(t, cfg.History.Enabled)
	assert.False(t, cfg.Toolchain.ParallelStubs)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())

	wantRoot, err := os.Getwd()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(wantRoot, DefaultHistoryFile), cfg.History.Path)
}

func TestLoadConfig_FileUpwardSearch(t *testing.T) {
	ResetConfig()
	root := t.TempDir()
	writeConfig(t, root, `
toolchain:
  compiler: clang
  parallel_stubs: true
build:
  output: out/svc.pvm
  cflags: [-O2, -DNDEBUG]
history:
  path: hist.db
`)
	sub := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	t.Chdir(sub)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "clang", cfg.Toolchain.Compiler)
	assert.True(t, cfg.Toolchain.ParallelStubs)
	assert.Equal(t, "out/svc.pvm", cfg.Build.Output)
	assert.Equal(t, []string{"-O2", "-DNDEBUG"}, cfg.Build.CFlags)
	assert.Equal(t, "riscv64-elf-ld", cfg.Toolchain.Linker, "unset keys keep defaults")

	file := GetConfigFileUsed()
	assert.Equal(t, ConfigFileName, filepath.Base(file))
	assert.Equal(t, filepath.Dir(file), cfg.ProjectRoot)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, "hist.db"), cfg.History.Path)
}

func TestLoadConfig_Precedence(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeConfig(t, dir, `
toolchain:
  compiler: file-cc
  linker: file-ld
transformer:
  command: file-tool
`)

	t.Setenv("AJANTA_TOOLCHAIN_COMPILER", "env-cc")
	t.Setenv("AJANTA_TRANSFORMER_COMMAND", "env-tool")
	t.Setenv("AJANTA_LOG_FORMAT", "json")

	flags := testFlags()
	require.NoError(t, flags.Parse([]string{"--compiler", "flag-cc", "-O", "dist/x.pvm", "--watch"}))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "flag-cc", cfg.Toolchain.Compiler, "flag beats env and file")
	assert.Equal(t, "env-tool", cfg.Transformer.Command, "env beats file")
	assert.Equal(t, "file-ld", cfg.Toolchain.Linker, "file beats default")
	assert.Equal(t, "dist/x.pvm", cfg.Build.Output)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfig_UnchangedFlagsIgnored(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)
	path := writeConfig(t, dir, "toolchain:\n  compiler: file-cc\n")

	flags := testFlags()
	require.NoError(t, flags.Parse(nil))

	cfg, err := LoadConfig(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "file-cc", cfg.Toolchain.Compiler)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errSub  string
	}{
		{"bad output mode", "output: xml\n", "unknown output mode"},
		{"bad log format", "log_format: logfmt\n", "unknown log format"},
		{"empty linker", "toolchain:\n  linker: \"\"\n", "toolchain.linker"},
		{"malformed yaml", "toolchain: [\n", "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetConfig()
			dir := t.TempDir()
			t.Chdir(dir)
			path := writeConfig(t, dir, tt.content)

			_, err := LoadConfig(path, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AJANTA_TOOLCHAIN_CXX_COMPILER", "toolchain.cxx_compiler"},
		{"AJANTA_TOOLCHAIN_PARALLEL_STUBS", "toolchain.parallel_stubs"},
		{"AJANTA_HISTORY_ENABLED", "history.enabled"},
		{"AJANTA_LOG_FORMAT", "log_format"},
		{"AJANTA_VERBOSE", "verbose"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, envKey(tt.in), tt.in)
	}
}

func TestResolvePathRelativeTo(t *testing.T) {
	assert.Empty(t, resolvePathRelativeTo("", "/base"))
	assert.Equal(t, ":memory:", resolvePathRelativeTo(":memory:", "/base"))
	assert.Equal(t, "/abs/h.db", resolvePathRelativeTo("/abs/h.db", "/base"))
	assert.Equal(t, filepath.Join("/base", "h.db"), resolvePathRelativeTo("h.db", "/base"))
}

func TestPipelineOptions(t *testing.T) {
	cfg := Default()
	cfg.Build.CFlags = []string{"-O2"}
	cfg.Toolchain.ParallelStubs = true

	opts := cfg.PipelineOptions()
	assert.Equal(t, cfg.Toolchain.Compiler, opts.Compiler)
	assert.Equal(t, cfg.Toolchain.Linker, opts.Linker)
	assert.Equal(t, cfg.Toolchain.CCCompiler, opts.SingleCallCompiler)
	assert.Equal(t, []string{"-O2"}, opts.CFlags)
	assert.True(t, opts.ParallelStubs)
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))

	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", true)
	ctx := context.WithValue(context.Background(), LoggerKey(), logger)
	GetLogger(ctx).Debug("hello", "k", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)

	buf.Reset()
	NewLogger(&buf, "text", false).Debug("hidden")
	assert.Empty(t, buf.String())
}
