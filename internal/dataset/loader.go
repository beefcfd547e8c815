package dataset

import (
	"bufio"
	"embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed all:testdata
var embeddedDatasets embed.FS

// ValidateName reports whether name is a single path element, so that it
// cannot address anything outside the datasets directory.
func ValidateName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("dataset name is required")
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("invalid dataset name %q: path separators are not allowed", name)
	case name == "." || name == "..":
		return fmt.Errorf("invalid dataset name %q: path traversal is not allowed", name)
	}
	return nil
}

// Load loads a dataset by name, searching first in the external directory
// (if provided), then in the embedded datasets.
func Load(name string, externalDir string) (*Dataset, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if externalDir != "" {
		dir := filepath.Join(externalDir, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return loadFromFS(os.DirFS(dir), name)
		}
	}

	// embed.FS always uses forward slashes.
	subFS, err := fs.Sub(embeddedDatasets, path.Join("testdata", name))
	if err != nil {
		return nil, fmt.Errorf("dataset %q not found: %w", name, err)
	}
	return loadFromFS(subFS, name)
}

// List returns the names of all available datasets. External datasets shadow
// embedded ones of the same name.
func List(externalDir string) ([]string, error) {
	seen := make(map[string]bool)
	var names []string

	entries, err := fs.ReadDir(embeddedDatasets, "testdata")
	if err == nil {
		for _, e := range entries {
			if e.IsDir() {
				seen[e.Name()] = true
				names = append(names, e.Name())
			}
		}
	}

	if externalDir != "" {
		entries, err := os.ReadDir(externalDir)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read datasets directory: %w", err)
		}
		for _, e := range entries {
			if e.IsDir() && !seen[e.Name()] {
				names = append(names, e.Name())
			}
		}
	}

	return names, nil
}

// LoadFile loads an ad hoc corpus file that has no config.yaml next to it.
func LoadFile(filename string, opts FileOptions) (*Dataset, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus file: %w", err)
	}
	defer f.Close()

	opts = opts.withDefaults(filename)
	pairs, err := readPairs(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}

	return &Dataset{
		Name:          strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename)),
		Source:        filename,
		File:          filepath.Base(filename),
		Format:        opts.Format,
		QuestionField: opts.QuestionField,
		AnswerField:   opts.AnswerField,
		Pairs:         pairs,
	}, nil
}

func loadFromFS(fsys fs.FS, name string) (*Dataset, error) {
	configData, err := fs.ReadFile(fsys, "config.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read config.yaml for dataset %q: %w", name, err)
	}

	var ds Dataset
	if err := yaml.Unmarshal(configData, &ds); err != nil {
		return nil, fmt.Errorf("failed to parse config.yaml for dataset %q: %w", name, err)
	}

	if ds.Name == "" {
		ds.Name = name
	}
	if ds.File == "" {
		ds.File = "questions.jsonl"
	}
	opts := FileOptions{
		Format:        ds.Format,
		QuestionField: ds.QuestionField,
		AnswerField:   ds.AnswerField,
	}.withDefaults(ds.File)
	ds.Format = opts.Format
	ds.QuestionField = opts.QuestionField
	ds.AnswerField = opts.AnswerField

	f, err := fsys.Open(ds.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s for dataset %q: %w", ds.File, name, err)
	}
	defer f.Close()

	pairs, err := readPairs(f, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to load pairs for dataset %q: %w", name, err)
	}
	ds.Pairs = pairs

	return &ds, nil
}

func readPairs(r io.Reader, opts FileOptions) ([]Pair, error) {
	switch opts.Format {
	case FormatJSONL:
		return readJSONL(r, opts)
	case FormatCSV:
		return readCSV(r, opts)
	default:
		return nil, fmt.Errorf("unsupported corpus format %q (supported: jsonl, csv)", opts.Format)
	}
}

func readJSONL(r io.Reader, opts FileOptions) ([]Pair, error) {
	scanner := bufio.NewScanner(r)
	// MedQA vignettes with options easily exceed the default 64KiB token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var pairs []Pair
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNum, err)
		}

		question, err := stringField(record, opts.QuestionField)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		answer, err := stringField(record, opts.AnswerField)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		pairs = append(pairs, Pair{Index: len(pairs), Question: question, Answer: answer})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan corpus: %w", err)
	}

	return pairs, nil
}

func stringField(record map[string]any, field string) (string, error) {
	raw, ok := record[field]
	if !ok {
		return "", fmt.Errorf("missing field %q", field)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("field %q is not a string", field)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("field %q is empty", field)
	}
	return value, nil
}

func readCSV(r io.Reader, opts FileOptions) ([]Pair, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	qCol, ok := colIndex[opts.QuestionField]
	if !ok {
		return nil, fmt.Errorf("missing required CSV column: %s", opts.QuestionField)
	}
	aCol, ok := colIndex[opts.AnswerField]
	if !ok {
		return nil, fmt.Errorf("missing required CSV column: %s", opts.AnswerField)
	}
	minCols := max(qCol, aCol) + 1

	var pairs []Pair
	for lineNum := 2; ; lineNum++ { // 1-indexed, after header
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", lineNum, err)
		}
		if len(record) < minCols {
			return nil, fmt.Errorf("CSV row %d has %d columns, expected at least %d", lineNum, len(record), minCols)
		}

		question := strings.TrimSpace(record[qCol])
		answer := strings.TrimSpace(record[aCol])
		if question == "" || answer == "" {
			return nil, fmt.Errorf("CSV row %d has an empty question or answer", lineNum)
		}

		pairs = append(pairs, Pair{Index: len(pairs), Question: question, Answer: answer})
	}

	return pairs, nil
}

func formatFromName(filename string) string {
	if strings.EqualFold(filepath.Ext(filename), ".csv") {
		return FormatCSV
	}
	return FormatJSONL
}
