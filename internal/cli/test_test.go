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

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

const failingScenario = `name: wrong_fee
setup:
  - op: instantiate
    caller: owner
    args: { fee: "0.02" }
flow:
  - op: change_fee
    caller: stranger
    args: { fee: "0.5" }
    expect:
      events: { action: change_fee }
`

func newTestRoot(format string, args ...string) (*bytes.Buffer, func() error) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--format", format, "test"}, args...))
	return buf, cmd.Execute
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, execute := newTestRoot("text")

	err := execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, execute := newTestRoot("text", "/nonexistent/scenarios")

	err := execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf, execute := newTestRoot("text", t.TempDir())

	require.NoError(t, execute())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf, execute := newTestRoot("json", t.TempDir())

	require.NoError(t, execute())

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	buf, execute := newTestRoot("text", harnessScenarios, "--golden", harnessGolden)

	require.NoError(t, execute())
	out := buf.String()
	assert.Contains(t, out, "✓ buy_with_fee")
	assert.Contains(t, out, "✓ rent_and_end")
	assert.Contains(t, out, "Test Summary: 8 passed, 0 failed, 8 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	buf, execute := newTestRoot("json", harnessScenarios, "--golden", harnessGolden, "--filter", "rent*")

	require.NoError(t, execute())

	var response struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	assert.Equal(t, 1, response.Data.Total)
	assert.Equal(t, "rent_and_end", response.Data.Scenarios[0].Name)
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_fee.yaml"), []byte(failingScenario), 0644))

	buf, execute := newTestRoot("text", dir)

	err := execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ wrong_fee")
	assert.Contains(t, buf.String(), "1 failed")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong_fee.yaml"), []byte(failingScenario), 0644))

	buf, execute := newTestRoot("json", dir)

	err := execute()
	require.Error(t, err)

	var response CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "error", response.Status)
	require.NotNil(t, response.Error)
	assert.Equal(t, "E_TEST_FAILED", response.Error.Code)
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	src, err := os.ReadFile(filepath.Join(harnessScenarios, "buy_with_fee.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "buy_with_fee.yaml"), src, 0644))

	buf, execute := newTestRoot("text", dir, "--update")
	require.NoError(t, execute())
	assert.Contains(t, buf.String(), "✓ buy_with_fee (golden updated)")

	written, err := os.ReadFile(filepath.Join(dir, "golden", "buy_with_fee.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(harnessGolden, "buy_with_fee.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	// A tampered golden file fails the comparison.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "buy_with_fee.golden"), []byte("{}\n"), 0644))
	buf, execute = newTestRoot("text", dir)
	err = execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestTestHelpText(t *testing.T) {
	buf, execute := newTestRoot("text", "--help")

	require.NoError(t, execute())

	output := buf.String()
	assert.Contains(t, output, "scenarios")
	assert.Contains(t, output, "--update")
	assert.Contains(t, output, "--filter")
	assert.Contains(t, output, "--golden")
	assert.Contains(t, output, "scenarios-dir")
}

func TestFindScenarioFiles(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "buy.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "rent.yml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "notes.txt"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestFindScenarioFilesWithFilter(t *testing.T) {
	tmpDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "rent-expiry.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "rent-clawback.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "buy-fee.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "rent-*")
	require.NoError(t, err)
	assert.Len(t, files, 2)

	for _, f := range files {
		assert.Contains(t, filepath.Base(f), "rent-")
	}
}

func TestFindScenarioFilesInvalidFilter(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "buy.yaml"), []byte(""), 0644))

	_, err := findScenarioFiles(tmpDir, "[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestFindScenarioFilesSubdirectories(t *testing.T) {
	tmpDir := t.TempDir()
	subDir := filepath.Join(tmpDir, "rentals")
	require.NoError(t, os.MkdirAll(subDir, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "buy.yaml"), []byte(""), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(subDir, "rent.yaml"), []byte(""), 0644))

	files, err := findScenarioFiles(tmpDir, "")
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestGoldenFilePath(t *testing.T) {
	testCases := []struct {
		goldenDir string
		file      string
		name      string
		expected  string
	}{
		{"", "/path/to/scenario.yaml", "scenario", "/path/to/golden/scenario.golden"},
		{"", "scenarios/test.yml", "renamed", "scenarios/golden/renamed.golden"},
		{"testdata/golden", "testdata/scenarios/buy.yaml", "buy_with_fee", "testdata/golden/buy_with_fee.golden"},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, goldenFilePath(tc.goldenDir, tc.file, tc.name))
	}
}
