package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDataset = "medqa-usmle-sample"

func TestLoadEmbeddedDataset(t *testing.T) {
	ds, err := Load(sampleDataset, "")
	require.NoError(t, err)

	assert.Equal(t, "MedQA USMLE sample", ds.Name)
	assert.Equal(t, "1", ds.Version)
	assert.Equal(t, FormatJSONL, ds.Format)
	assert.Len(t, ds.Pairs, 40)

	first := ds.Pairs[0]
	assert.Equal(t, 0, first.Index)
	assert.Contains(t, first.Question, "goiter")
	assert.Equal(t, "Graves disease", first.Answer)

	for i, p := range ds.Pairs {
		assert.Equal(t, i, p.Index)
	}
}

func TestLoadNonexistentDataset(t *testing.T) {
	_, err := Load("nonexistent-dataset", "")
	assert.Error(t, err)
}

func TestLoadRejectsNamesOutsideDatasetsDir(t *testing.T) {
	root := t.TempDir()
	datasetsDir := filepath.Join(root, "datasets")
	require.NoError(t, os.MkdirAll(datasetsDir, 0o755))

	// A readable dataset one level above the datasets directory.
	outside := filepath.Join(root, "private")
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "config.yaml"),
		[]byte("name: private\nfile: data.jsonl\nformat: jsonl\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "data.jsonl"),
		[]byte(`{"question": "q", "answer": "a"}`+"\n"), 0o644))

	tests := []struct {
		name    string
		in      string
		wantErr string
	}{
		{"parent reference", "../private", "path separators"},
		{"dot dot", "..", "path traversal"},
		{"absolute", outside, "path separators"},
		{"backslash", `..\private`, "path separators"},
		{"empty", " ", "required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.in, datasetsDir)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestListDatasets(t *testing.T) {
	names, err := List("")
	require.NoError(t, err)
	assert.Contains(t, names, sampleDataset)
}

func TestListIgnoresMissingExternalDir(t *testing.T) {
	names, err := List(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Contains(t, names, sampleDataset)
}

func writeDataset(t *testing.T, dir, name, config, file, content string) {
	t.Helper()
	dsDir := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(dsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dsDir, "config.yaml"), []byte(config), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dsDir, file), []byte(content), 0o644))
}

func TestLoadExternalCSVDataset(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "local", `
name: Local
file: items.csv
question_field: Question
answer_field: ExpectedAnswer
`, "items.csv", "ID,Question,ExpectedAnswer\n1,\"Fever, rash?\",Measles\n2,Joint pain?,Gout\n")

	ds, err := Load("local", dir)
	require.NoError(t, err)
	assert.Equal(t, "Local", ds.Name)
	assert.Equal(t, FormatCSV, ds.Format)
	require.Len(t, ds.Pairs, 2)
	assert.Equal(t, "Fever, rash?", ds.Pairs[0].Question)
	assert.Equal(t, "Gout", ds.Pairs[1].Answer)
	assert.Equal(t, 1, ds.Pairs[1].Index)

	names, err := List(dir)
	require.NoError(t, err)
	assert.Contains(t, names, "local")
}

func TestExternalDatasetShadowsEmbedded(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, sampleDataset, "name: Override\n", "questions.jsonl",
		`{"question": "Q?", "answer": "A"}`+"\n")

	ds, err := Load(sampleDataset, dir)
	require.NoError(t, err)
	assert.Equal(t, "Override", ds.Name)
	assert.Len(t, ds.Pairs, 1)

	names, err := List(dir)
	require.NoError(t, err)
	count := 0
	for _, n := range names {
		if n == sampleDataset {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestLoadFileJSONLCustomFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	content := `{"prompt": "What causes scurvy?", "target": "Vitamin C deficiency"}

{"prompt": "What causes rickets?", "target": "Vitamin D deficiency"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	ds, err := LoadFile(path, FileOptions{QuestionField: "prompt", AnswerField: "target"})
	require.NoError(t, err)
	assert.Equal(t, "corpus", ds.Name)
	assert.Equal(t, FormatJSONL, ds.Format)
	require.Len(t, ds.Pairs, 2)
	assert.Equal(t, "Vitamin D deficiency", ds.Pairs[1].Answer)
}

func TestLoadFileErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"missing field", "a.jsonl", `{"question": "Q"}`, `missing field "answer"`},
		{"non-string field", "b.jsonl", `{"question": "Q", "answer": 3}`, `field "answer" is not a string`},
		{"empty field", "c.jsonl", `{"question": " ", "answer": "A"}`, `field "question" is empty`},
		{"invalid json", "d.jsonl", `{"question":`, "line 1: invalid JSON"},
		{"missing csv column", "e.csv", "question,other\nQ,A\n", "missing required CSV column: answer"},
		{"empty csv answer", "f.csv", "question,answer\nQ,\n", "CSV row 2 has an empty question or answer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			_, err := LoadFile(path, FileOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadFileUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := LoadFile(path, FileOptions{Format: "parquet"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported corpus format")
}
