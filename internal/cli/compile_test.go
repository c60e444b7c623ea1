package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileWritesScripts(t *testing.T) {
	outDir := t.TempDir()

	stdout, _, err := executeCommand(t, "compile", "testdata/valid", "-o", outDir)
	require.NoError(t, err)
	assert.Contains(t, stdout, "✓ Compiled 2 function(s)")

	banner, err := os.ReadFile(filepath.Join(outDir, "docs-banner.js"))
	require.NoError(t, err)
	assert.Contains(t, string(banner), "(function () {")
	assert.Contains(t, string(banner), "__sfHost.onEvent(")

	greeter, err := os.ReadFile(filepath.Join(outDir, "console-greeter.js"))
	require.NoError(t, err)
	assert.Contains(t, string(greeter), "(function () {")
	assert.NotContains(t, string(greeter), "__sfHost.onEvent(")
}

func TestCompileJSONEmbedsProgram(t *testing.T) {
	stdout, _, err := executeCommand(t, "--format", "json", "compile", "testdata/valid")
	require.NoError(t, err)

	var resp struct {
		Status string             `json:"status"`
		Data   []CompiledFunction `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)

	for _, fn := range resp.Data {
		assert.NotEmpty(t, fn.Hash)
		assert.Contains(t, fn.Program, "(function () {")
		assert.False(t, fn.Cached)
	}
}

func TestCompileCacheRoundTrip(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "artifacts.db")

	first, _, err := executeCommandJSONCompile(t, cachePath)
	require.NoError(t, err)
	for _, fn := range first {
		assert.False(t, fn.Cached, fn.Name)
	}

	second, _, err := executeCommandJSONCompile(t, cachePath)
	require.NoError(t, err)
	require.Len(t, second, len(first))
	for i, fn := range second {
		assert.True(t, fn.Cached, fn.Name)
		assert.Equal(t, first[i].Hash, fn.Hash)
		assert.Equal(t, first[i].Program, fn.Program)
	}
}

func executeCommandJSONCompile(t *testing.T, cachePath string) ([]CompiledFunction, string, error) {
	t.Helper()

	stdout, stderr, err := executeCommand(t, "--format", "json", "compile", "testdata/valid", "--cache", cachePath)
	if err != nil {
		return nil, stderr, err
	}
	var resp struct {
		Data []CompiledFunction `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	return resp.Data, stderr, nil
}

func TestCompileMissingDirectory(t *testing.T) {
	stdout, _, err := executeCommand(t, "compile", "testdata/does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, ErrCodeNotFound)
}

func TestCompileInvalidDefinition(t *testing.T) {
	stdout, _, err := executeCommand(t, "compile", "testdata/invalid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Loading failed")
	assert.Contains(t, stdout, ErrCodeBody)
}

func TestCompileDeterministicAcrossRuns(t *testing.T) {
	first, _, err := executeCommandJSONCompile(t, filepath.Join(t.TempDir(), "a.db"))
	require.NoError(t, err)
	second, _, err := executeCommandJSONCompile(t, filepath.Join(t.TempDir(), "b.db"))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Hash, second[i].Hash)
		assert.Equal(t, first[i].Program, second[i].Program)
	}
}

func TestScriptFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Docs banner", "docs-banner.js"},
		{"UTM Capture v2", "utm-capture-v2.js"},
		{"---", "function.js"},
		{"", "function.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, scriptFileName(tt.name), tt.name)
	}
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abcdef123456", shortHash("abcdef1234567890"))
	assert.Equal(t, "short", shortHash("short"))
}
