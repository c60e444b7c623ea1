package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCleanDefinitions(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "testdata/valid")
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ 2 function(s) valid")
	assert.NotContains(t, stdout, "warning")
}

func TestValidateReportsWarnings(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "testdata/warn")
	require.NoError(t, err)
	assert.Contains(t, stdout, "1 warning(s)")
	assert.Contains(t, stdout, "resolves later")
}

func TestValidateStrictFailsOnWarnings(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "testdata/warn", "--strict")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateStrictPassesWhenClean(t *testing.T) {
	_, _, err := executeCommand(t, "validate", "testdata/valid", "--strict")
	require.NoError(t, err)
}

func TestValidateJSON(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "validate", "testdata/warn")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []ValidationReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Forward reference", resp.Data[0].Name)
	assert.NotEmpty(t, resp.Data[0].Hash)
	require.Len(t, resp.Data[0].Warnings, 1)
	assert.Equal(t, []string{"early", "late"}, resp.Data[0].Warnings[0].Path)
	assert.Equal(t, "warning", resp.Data[0].Warnings[0].Level)
}

func TestValidateInvalidDefinition(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeBody)
}
