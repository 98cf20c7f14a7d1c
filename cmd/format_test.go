package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/gchange/internal/export"
	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/pipeline"
)

func writeInput(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOutputFormat(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"out.xlsx", "xlsx"},
		{"OUT.CSV", "csv"},
		{"result.json", "json"},
		{"noext", "xlsx"},
		{export.DefaultFileName, "xlsx"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, outputFormat(tt.path), tt.path)
	}
}

func TestFormatFile_XLSX(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	in := writeInput(t, dir, "dump.csv", dumpCSV)
	out := filepath.Join(dir, "out.xlsx")

	res, err := formatFile(context.Background(), env.Pipeline, in, out, "clientA.yaml", "auto", true)
	require.NoError(t, err)
	assert.Equal(t, "dump.csv", res.Source)
	assert.Len(t, res.Kept, 1)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	assert.Equal(t, []string{export.KeptSheet, export.ExcludedSheet}, f.GetSheetList())
}

func TestFormatFile_CSVAndJSON(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	in := writeInput(t, dir, "dump.csv", dumpCSV)

	csvOut := filepath.Join(dir, "out.csv")
	_, err := formatFile(context.Background(), env.Pipeline, in, csvOut, "", "", false)
	require.NoError(t, err)
	data, err := os.ReadFile(csvOut)
	require.NoError(t, err)
	assert.Contains(t, string(data), "企業名,業種,住所,電話番号")
	assert.Equal(t, 3, strings.Count(string(data), "\n"))

	jsonOut := filepath.Join(dir, "out.json")
	_, err = formatFile(context.Background(), env.Pipeline, in, jsonOut, "", "", false)
	require.NoError(t, err)
	data, err = os.ReadFile(jsonOut)
	require.NoError(t, err)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(data, &res))
	assert.Equal(t, model.LayoutFlat, res.Layout)
	assert.Len(t, res.Kept, 2)
}

func TestFormatFile_Errors(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	in := writeInput(t, dir, "dump.csv", dumpCSV)
	out := filepath.Join(dir, "out.xlsx")

	_, err := formatFile(context.Background(), env.Pipeline, in, out, "", "diagonal", false)
	assert.Error(t, err)

	_, err = formatFile(context.Background(), env.Pipeline, filepath.Join(dir, "missing.csv"), out, "", "", false)
	assert.Error(t, err)

	_, err = formatFile(context.Background(), env.Pipeline, in, out, "nope.yaml", "", false)
	assert.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	res := &pipeline.Result{
		Source: "dump.csv", Layout: model.LayoutFlat, Total: 2, NGList: "clientA.yaml", Filtered: true,
		Kept: []model.Record{{Name: "A"}}, Excluded: []model.Record{{Name: "B"}},
	}
	printSummary(&buf, res, "out.xlsx")
	assert.Equal(t, "dump.csv: 2 records (flat), nglist clientA.yaml: kept 1, excluded 1 -> out.xlsx\n", buf.String())
}

func TestBatchOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("out", "dump_整形済み.xlsx"), batchOutputPath("out", "/data/dump.csv"))
}

func TestBatchOutputPaths_SameBaseName(t *testing.T) {
	got := batchOutputPaths("out", []string{"a/list.xlsx", "b/list.xlsx", "c/LIST.csv", "d/other.xlsx"})
	assert.Equal(t, []string{
		filepath.Join("out", "list_整形済み.xlsx"),
		filepath.Join("out", "list_2_整形済み.xlsx"),
		filepath.Join("out", "LIST_3_整形済み.xlsx"),
		filepath.Join("out", "other_整形済み.xlsx"),
	}, got)
}

func TestProcessBatch_SameBaseNameInputs(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "formatted")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "a"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "b"), 0o755))
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	inputs := []string{
		writeInput(t, filepath.Join(dir, "a"), "list.csv", dumpCSV),
		writeInput(t, filepath.Join(dir, "b"), "list.csv", "DEF株式会社\n03-9999-0000\n"),
	}
	require.NoError(t, processBatch(context.Background(), env.Pipeline, inputs, outDir, 2))

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestProcessBatch(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "formatted")
	require.NoError(t, os.MkdirAll(outDir, 0o755))

	inputs := []string{
		writeInput(t, dir, "a.csv", dumpCSV),
		writeInput(t, dir, "b.csv", "DEF株式会社\n03-9999-0000\n"),
	}
	require.NoError(t, processBatch(context.Background(), env.Pipeline, inputs, outDir, 2))

	for _, in := range inputs {
		_, err := os.Stat(batchOutputPath(outDir, in))
		assert.NoError(t, err, in)
	}
}

func TestProcessBatch_PartialFailure(t *testing.T) {
	env := newTestEnv(t)
	dir := t.TempDir()

	inputs := []string{
		writeInput(t, dir, "a.csv", dumpCSV),
		filepath.Join(dir, "missing.csv"),
	}
	err := processBatch(context.Background(), env.Pipeline, inputs, dir, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 inputs failed")

	_, statErr := os.Stat(batchOutputPath(dir, inputs[0]))
	assert.NoError(t, statErr)
}
