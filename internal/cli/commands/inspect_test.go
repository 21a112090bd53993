package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	clitest "github.com/leapstack-labs/ajanta/internal/cli/testutil"
	"github.com/leapstack-labs/ajanta/internal/errs"
)

func TestInspectCommand_Text(t *testing.T) {
	dir := setupProject(t, "")
	path := writeSampleBlob(t, dir, []byte("meta"))

	stdout, _, err := clitest.Execute(NewInspectCommand(), path)
	require.NoError(t, err)

	for _, want := range []string{"metadata:", "4 bytes", "code", "debug_strings", "refine_ext", "accumulate_ext", "unresolved", "helper"} {
		assert.Contains(t, stdout, want)
	}
	clitest.AssertNoANSI(t, stdout)
}

func TestInspectCommand_JSON(t *testing.T) {
	dir := setupProject(t, "output: json\n")
	path := writeSampleBlob(t, dir, []byte("meta"))

	stdout, _, err := clitest.Execute(NewInspectCommand(), path)
	require.NoError(t, err)

	var out InspectOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, 4, out.MetadataBytes)
	assert.True(t, out.HasDebugInfo)
	assert.Len(t, out.Dispatch, 3)
	assert.True(t, out.Dispatch[0].Resolved)
	assert.False(t, out.Dispatch[1].Resolved)
	assert.Equal(t, []ExportInfo{{Symbol: "refine_ext", Offset: 0}, {Symbol: "helper", Offset: 4}}, out.Exports)

	sections := map[string]int{}
	for _, s := range out.Sections {
		sections[s.Name] = s.Bytes
	}
	assert.Equal(t, 5, sections["code"])
	assert.Positive(t, sections["debug_strings"])
}

func TestInspectCommand_Missing(t *testing.T) {
	setupProject(t, "")
	_, _, err := clitest.Execute(NewInspectCommand(), "nope.pvm")
	assert.ErrorIs(t, err, errs.ErrIO)
}
