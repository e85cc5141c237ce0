package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMissingArgs(t *testing.T) {
	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg")
}

func TestValidateValidScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "death.yaml", deathScenario)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 1 file(s) valid")
}

func TestValidateInvalidScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.yml", "name: bad\ndescription: d\nsteps:\n  - switch: nap_time\nassertions:\n  - type: final_depth\n    depth: 1\n")

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ "+path+" (scenario)")
	assert.Contains(t, out, `unknown state "nap_time"`)
}

func TestValidateConfig(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.cue", "log: level: \"debug\"\nengine: max_depth: 16\n")
	bad := writeFile(t, dir, "bad.cue", "engine: pool_capacity: 0\n")

	_, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), good)
	require.NoError(t, err)

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), bad)
	require.Error(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "config", resp.Data.Errors[0].Kind)
	assert.Equal(t, ErrCodeConfig, resp.Data.Errors[0].Code)
}

func TestValidateUnsupportedExtension(t *testing.T) {
	path := writeFile(t, t.TempDir(), "notes.txt", "hello")

	out, err := execute(NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Contains(t, out, "unsupported file type")
}

func TestValidateMultipleFilesJSON(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.yaml", deathScenario)
	b := writeFile(t, dir, "b.yaml", failingScenario)
	c := writeFile(t, dir, "c.yaml", "name: c\n")

	out, err := execute(NewValidateCommand(&RootOptions{Format: "json"}), a, b, c)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Data.Valid)
	assert.Equal(t, 3, resp.Data.Checked)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, c, resp.Data.Errors[0].Path)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
	assert.Equal(t, "1 of 3 file(s) invalid", resp.Error.Message)
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, validateFile(writeFile(t, dir, "ok.yaml", deathScenario)))

	verr := validateFile(filepath.Join(dir, "absent.cue"))
	require.NotNil(t, verr)
	assert.Equal(t, "config", verr.Kind)
	assert.Equal(t, ErrCodeGeneric, verr.Code)
}
