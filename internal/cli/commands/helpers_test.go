package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/ajanta/internal/blob"
	"github.com/leapstack-labs/ajanta/internal/cli/config"
	"github.com/leapstack-labs/ajanta/internal/testutil"
)

// setupProject chdirs into a fresh directory holding ajanta.yaml with
// content and loads it as the current config.
func setupProject(t *testing.T, content string) string {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	dir := t.TempDir()
	t.Chdir(dir)
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, config.ConfigFileName), []byte(content), 0o600))
	}
	_, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	return dir
}

// useFakeTools routes every pipeline the commands build through in-process
// fakes.
func useFakeTools(t *testing.T) (*testutil.FakeToolchain, *testutil.FakeTransformer) {
	t.Helper()
	fake := testutil.NewFakeToolchain()
	tr := testutil.NewFakeTransformer()

	prev := newTools
	newTools = func(*config.Config, *slog.Logger) Tools {
		return Tools{Runner: fake, Transformer: tr}
	}
	t.Cleanup(func() { newTools = prev })
	return fake, tr
}

// writeSampleBlob writes testutil.SampleProgram as a blob in dir.
func writeSampleBlob(t *testing.T, dir string, metadata []byte) string {
	t.Helper()
	data, err := blob.Encode(testutil.SampleProgram(), metadata)
	require.NoError(t, err)
	path := filepath.Join(dir, "sample.pvm")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func writeSource(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "service.c")
	require.NoError(t, os.WriteFile(path, []byte(exampleService), 0o600))
	return "service.c"
}
