package commands

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/leapstack-labs/ajanta/internal/cli/testutil"
	"github.com/leapstack-labs/ajanta/internal/errs"
)

func TestDisasmCommand_Formats(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "default guest",
			want: []string{"// format: guest", "<refine_ext>:", "load_imm a0, 0", "(gas: ", "33 07"},
		},
		{
			name:    "diff friendly",
			args:    []string{"--format", "diff-friendly"},
			want:    []string{"// format: diff-friendly", "// dispatch 0: refine_ext\n", "load_imm a0, 0"},
			notWant: []string{"[offset", "33 07"},
		},
		{
			name:    "no gas no raw bytes",
			args:    []string{"--gas=false", "--raw-bytes=false"},
			want:    []string{"load_imm a0, 0"},
			notWant: []string{"(gas: ", "33 07"},
		},
		{
			name: "native",
			args: []string{"-f", "native"},
			want: []string{"// format: native", "opcode=51"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := setupProject(t, "")
			path := writeSampleBlob(t, dir, nil)

			stdout, _, err := clitest.Execute(NewDisasmCommand(), append([]string{path}, tt.args...)...)
			require.NoError(t, err)
			for _, want := range tt.want {
				assert.Contains(t, stdout, want)
			}
			for _, unwanted := range tt.notWant {
				assert.NotContains(t, stdout, unwanted)
			}
		})
	}
}

func TestDisasmCommand_UnknownFormatBeforeOpen(t *testing.T) {
	setupProject(t, "")

	// The input does not exist; the format error must win.
	_, _, err := clitest.Execute(NewDisasmCommand(), "missing.pvm", "--format", "intel")
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrArgument)
	assert.NotErrorIs(t, err, errs.ErrIO)
}

func TestDisasmCommand_Errors(t *testing.T) {
	dir := setupProject(t, "")
	garbage := filepath.Join(dir, "garbage.pvm")
	require.NoError(t, os.WriteFile(garbage, []byte("not a blob"), 0o600))

	_, _, err := clitest.Execute(NewDisasmCommand(), filepath.Join(dir, "missing.pvm"))
	assert.ErrorIs(t, err, errs.ErrIO)

	_, _, err = clitest.Execute(NewDisasmCommand(), garbage)
	assert.ErrorIs(t, err, errs.ErrFormat)
}

func TestDisasmCommand_JSON(t *testing.T) {
	dir := setupProject(t, "output: json\n")
	path := writeSampleBlob(t, dir, nil)

	stdout, _, err := clitest.Execute(NewDisasmCommand(), path)
	require.NoError(t, err)

	var listing struct {
		CodeSize int `json:"code_size"`
		Blocks   []struct {
			Labels []string `json:"labels"`
		} `json:"blocks"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &listing))
	assert.Equal(t, 5, listing.CodeSize)
	require.NotEmpty(t, listing.Blocks)
	assert.Equal(t, []string{"refine_ext"}, listing.Blocks[0].Labels)
}
