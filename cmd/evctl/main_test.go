package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evcharge/internal/core"
)

func run(t *testing.T, csvPath string, args ...string) (string, error) {
	t.Helper()
	out, _, err := execute(t, append([]string{"--backend", "csv", "--csv", csvPath}, args...)...)
	return out, err
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func unsetenv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))
}

func TestEvctlRecordLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")

	out, err := run(t, path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No charging sessions recorded")

	out, err = run(t, path, "add", "--date", "2024-01-03", "--energy", "10", "--cost", "100", "--percent", "50")
	require.NoError(t, err)
	assert.Contains(t, out, "position 0")

	_, err = run(t, path, "add", "--date", "2024-02-10", "--energy", "20", "--cost", "150", "--location", "Office")
	require.NoError(t, err)

	out, err = run(t, path, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-02-10")
	assert.Contains(t, out, "Total: 30.00 kWh, 250.00 cost (2 sessions)")

	out, err = run(t, path, "summary", "--json")
	require.NoError(t, err)
	var rows []core.SummaryRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)
	assert.Equal(t, core.TotalKey, rows[2].MonthKey)
	assert.InDelta(t, 250.0/30.0, rows[2].CostPerKwh, 1e-9)

	_, err = run(t, path, "update", "1", "--date", "2024-02-11", "--energy", "25", "--cost", "150")
	require.NoError(t, err)

	_, err = run(t, path, "delete", "0")
	require.NoError(t, err)

	out, err = run(t, path, "export")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[1], "2024-02-11,25"))
}

func TestEvctlRejectsInvalidInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")

	_, err := run(t, path, "add", "--date", "2024-01-03", "--energy", "0", "--cost", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_energy")

	_, err = run(t, path, "delete", "3")
	require.Error(t, err)

	_, err = run(t, path, "delete", "x")
	require.Error(t, err)

	_, err = run(t, path, "chart", "--kind", "line")
	assert.ErrorIs(t, err, core.ErrUnknownChartKind)
}

func TestEvctlImportAndChart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.csv")
	src := filepath.Join(dir, "import.csv")
	require.NoError(t, os.WriteFile(src, []byte(
		"Tarih;Tüketim (kWh);Maliyet (₺);Lokasyon\n"+
			"2024-01-01;10;100;Ev\n"+
			"2024-01-02;abc;100;Ev\n"+
			"2024-02-01;5;40;\n"), 0o644))

	out, err := run(t, path, "import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 of 3 rows")
	assert.Contains(t, out, "line 3")

	out, err = run(t, path, "chart", "--view", "monthly", "--kind", "bar")
	require.NoError(t, err)
	var chart core.Chart
	require.NoError(t, json.Unmarshal([]byte(out), &chart))
	assert.Equal(t, []string{"2024-01", "2024-02"}, chart.Labels)
}

func TestEvctlDefaultsToCSVBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.csv")
	unsetenv(t, "DATA_BACKEND")
	unsetenv(t, "CONFIG_FILE")
	t.Setenv("CSV_FILE_PATH", path)

	_, _, err := execute(t, "add", "--date", "2024-01-03", "--energy", "10", "--cost", "100")
	require.NoError(t, err)
	_, _, err = execute(t, "add", "--date", "2024-01-04", "--energy", "5", "--cost", "50")
	require.NoError(t, err)

	out, stderr, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "(2 sessions)", "records must survive between invocations")
	assert.NotContains(t, stderr, "warning")
	assert.FileExists(t, path)
}

func TestEvctlWarnsOnMemoryBackend(t *testing.T) {
	unsetenv(t, "CONFIG_FILE")

	out, stderr, err := execute(t, "--backend", "memory", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No charging sessions recorded")
	assert.Contains(t, stderr, "changes are lost when evctl exits")
}
