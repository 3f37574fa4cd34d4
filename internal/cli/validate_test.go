package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeValidate(t *testing.T, opts *RootOptions, dir string) (*bytes.Buffer, *bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs([]string{dir})
	return buf, errBuf, cmd.Execute()
}

func writeModel(t *testing.T, src string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.cue"), []byte(src), 0644))
	return dir
}

func TestValidateValidModel(t *testing.T) {
	buf, _, err := executeValidate(t, &RootOptions{Format: "text"}, filepath.Join(modelsDir, "two_units"))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "✓ Model two_units is valid")
	assert.Contains(t, out, "Variables: 2, constraints: 0, disjunctions: 2")
	assert.Contains(t, out, "unit: small | large")
	assert.Contains(t, out, "route: a | b")
}

func TestValidateValidModelJSON(t *testing.T) {
	buf, _, err := executeValidate(t, &RootOptions{Format: "json"}, filepath.Join(modelsDir, "two_units"))
	require.NoError(t, err)

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "two_units", resp.Data.Model)
	assert.Len(t, resp.Data.Hash, 64)
	assert.Equal(t, []DisjunctionSummary{
		{Name: "unit", Disjuncts: []string{"small", "large"}},
		{Name: "route", Disjuncts: []string{"a", "b"}},
	}, resp.Data.Disjunctions)
}

func TestValidateRejectedModel(t *testing.T) {
	buf, _, err := executeValidate(t, &RootOptions{Format: "json"}, filepath.Join(modelsDir, "multi_objective"))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "MULTIPLE_OBJECTIVES", resp.Error.Code)
}

func TestValidateNonExclusiveDisjunction(t *testing.T) {
	dir := writeModel(t, `
model: {
	var: x: {lower: 0, upper: 1}
	objective: f: linear: {x: 1}
	disjunction: d: {xor: false, disjunct: {a: {}, b: {}}}
}
`)
	buf, _, err := executeValidate(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
	assert.Contains(t, buf.String(), "NON_EXCLUSIVE_DISJUNCTION [d]")
}

func TestValidateDocumentError(t *testing.T) {
	dir := writeModel(t, `
model: {
	var: x: {domain: "complex"}
}
`)
	buf, _, err := executeValidate(t, &RootOptions{Format: "text"}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "E101 [var.x.domain]")
	assert.Contains(t, out, "unknown domain")
}

func TestValidateNonExistentDirectory(t *testing.T) {
	buf, _, err := executeValidate(t, &RootOptions{Format: "text"}, "/nonexistent/path")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}

func TestValidateEmptyDirectory(t *testing.T) {
	buf, _, err := executeValidate(t, &RootOptions{Format: "json"}, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E003", resp.Error.Code)
}

func TestValidateVerboseOutput(t *testing.T) {
	buf, errBuf, err := executeValidate(t, &RootOptions{Format: "json", Verbose: true}, filepath.Join(modelsDir, "two_units"))
	require.NoError(t, err)
	assert.Contains(t, errBuf.String(), "Compiled model two_units")

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp), "verbose logs must not corrupt JSON")
}
