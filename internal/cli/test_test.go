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

func executeTest(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

// scenarioDir writes a scenario directory whose scenarios point at the
// shared test models.
func scenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	models, err := filepath.Abs(modelsDir)
	require.NoError(t, err)
	for name, body := range scenarios {
		src := "name: " + name + "\ndescription: " + name + "\nmodel: " + filepath.Join(models, "two_units") + "\n" + body
		require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(src), 0644))
	}
	return dir
}

const passingExpect = `expect:
  status: optimal
  objective: 4
`

const failingExpect = `expect:
  status: optimal
  objective: 5
`

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := executeTest(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := executeTest(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, err := executeTest(t, "text", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, err := executeTest(t, "json", t.TempDir())
	require.NoError(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandRepositoryScenarios(t *testing.T) {
	buf, err := executeTest(t, "text", scenariosDir)
	require.NoError(t, err, buf.String())
	assert.Contains(t, buf.String(), "✓ two_units")
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

func TestTestCommandFailure(t *testing.T) {
	dir := scenarioDir(t, map[string]string{
		"good": passingExpect,
		"bad":  failingExpect,
	})

	buf, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	out := buf.String()
	assert.Contains(t, out, "✓ good")
	assert.Contains(t, out, "✗ bad")
	assert.Contains(t, out, "objective: expected 5")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommandFailureJSON(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"bad": failingExpect})

	buf, err := executeTest(t, "json", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0644))

	buf, err := executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken")
	assert.Contains(t, buf.String(), "failed to load scenario")
}

func TestTestCommandGoldenUpdateAndCompare(t *testing.T) {
	dir := scenarioDir(t, map[string]string{"golden_case": passingExpect})
	goldenPath := filepath.Join(dir, "golden", "golden_case.golden")

	buf, err := executeTest(t, "text", dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "golden updated")

	golden := readFile(t, goldenPath)
	assert.Contains(t, golden, "scenario: golden_case")
	assert.Contains(t, golden, "accepted seq=6")

	_, err = executeTest(t, "text", dir)
	require.NoError(t, err, "a fresh golden file matches")

	require.NoError(t, os.WriteFile(goldenPath, []byte("stale\n"), 0644))
	buf, err = executeTest(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestFindScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "d.yaml"), []byte("x"), 0644))

	files, err := findScenarioFiles(dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)

	files, err = findScenarioFiles(dir, "b*")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "b.yml")}, files)

	_, err = findScenarioFiles(dir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t,
		filepath.Join("scenarios", "golden", "two_units.golden"),
		goldenFilePath(filepath.Join("scenarios", "two_units.yaml")))
}
