package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenarios directory not found")
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandPassingScenario(t *testing.T) {
	goldenDir := t.TempDir()

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--golden", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.NoFileExists(t, filepath.Join(goldenDir, "adults.golden"), "golden files are only written with --update")
}

func TestTestCommandGoldenRoundTrip(t *testing.T) {
	goldenDir := t.TempDir()
	goldenPath := filepath.Join(goldenDir, "adults.golden")

	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--golden", goldenDir, "--update")
	require.NoError(t, err)
	require.FileExists(t, goldenPath)

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rows":[{"Name":"Ada"},{"Name":"Chen"}]`)
	assert.Contains(t, string(data), `"error":"group join into ks: no SQL translation"`)

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--golden", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ adults")

	require.NoError(t, os.WriteFile(goldenPath, []byte(`{"scenario":"adults"}`), 0644))
	out, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--golden", goldenDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "outcomes do not match golden file")
}

func TestTestCommandFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--golden", t.TempDir(), "--filter", "kitchen*")
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	out, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "testdata/scenarios", "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "invalid filter pattern")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	queries, err := filepath.Abs("testdata/queries/kitchen.cue")
	require.NoError(t, err)
	scenario := `
name: wrong
description: "Expects the wrong rows"
queries:
  - ` + queries + `
tables:
  - name: cooks
    columns:
      - {name: ID, type: INTEGER}
      - {name: Name, type: TEXT}
      - {name: Age, type: INTEGER}
run:
  - query: adults
    expect:
      count: 3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: broken\n"), 0644))

	out, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), dir, "--golden", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "2 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Failed)

	byName := map[string]ScenarioResult{}
	for _, s := range resp.Data.Scenarios {
		byName[s.Name] = s
	}
	assert.Equal(t, []string{"run[0] adults: expected 3 rows, got 0"}, byName["wrong"].Errors)
	require.Len(t, byName["broken.yml"].Errors, 1)
	assert.Contains(t, byName["broken.yml"].Errors[0], "failed to load scenario")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("testdata", "golden", "adults.golden"), goldenFilePath(filepath.Join("testdata", "golden"), "adults"))
}
