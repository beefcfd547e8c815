// Package report reads and writes the per-item results table of an
// experiment. The CSV has four fixed columns followed by a prompt, response
// and verdict column for every strategy:
//
//	id,question,answer,layperson_question,baseline_prompt,baseline_response,baseline_verdict,...
package report

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

var fixedColumns = []string{"id", "question", "answer", "layperson_question"}

const (
	promptSuffix   = "_prompt"
	responseSuffix = "_response"
	verdictSuffix  = "_verdict"
)

// StrategyResult is one strategy's output for one item.
type StrategyResult struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
	// Verdict is empty until the item has been judged.
	Verdict string `json:"verdict,omitempty"`
}

// Row is one sampled item with the output of every strategy.
type Row struct {
	ID                int                       `json:"id"`
	Question          string                    `json:"question"`
	Answer            string                    `json:"answer"`
	LaypersonQuestion string                    `json:"layperson_question"`
	Results           map[string]StrategyResult `json:"results"`
}

// Table is the full results file: the strategy column order plus the rows.
type Table struct {
	Strategies []string
	Rows       []Row
}

// Header returns the CSV header for the given strategies.
func Header(strategies []string) []string {
	header := append([]string{}, fixedColumns...)
	for _, s := range strategies {
		header = append(header, s+promptSuffix, s+responseSuffix, s+verdictSuffix)
	}
	return header
}

// WriteCSV writes the table to w.
func WriteCSV(w io.Writer, table *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(table.Strategies)); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, row := range table.Rows {
		record := []string{strconv.Itoa(row.ID), row.Question, row.Answer, row.LaypersonQuestion}
		for _, s := range table.Strategies {
			r := row.Results[s]
			record = append(record, r.Prompt, r.Response, r.Verdict)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", row.ID, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path, replacing any existing file.
func WriteCSVFile(path string, table *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	if err := WriteCSV(f, table); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadCSV parses a results table. Strategy names are recovered from the
// `<strategy>_response` columns in header order.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("results file is empty")
		}
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range fixedColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("missing required CSV column: %s", name)
		}
	}

	table := &Table{}
	for _, h := range header {
		h = strings.TrimSpace(h)
		if name, ok := strings.CutSuffix(h, responseSuffix); ok && name != "" {
			table.Strategies = append(table.Strategies, name)
		}
	}

	field := func(record []string, name string) string {
		if i, ok := col[name]; ok && i < len(record) {
			return record[i]
		}
		return ""
	}

	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		id, err := strconv.Atoi(field(record, "id"))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid id %q", line, field(record, "id"))
		}

		row := Row{
			ID:                id,
			Question:          field(record, "question"),
			Answer:            field(record, "answer"),
			LaypersonQuestion: field(record, "layperson_question"),
			Results:           make(map[string]StrategyResult, len(table.Strategies)),
		}
		for _, s := range table.Strategies {
			row.Results[s] = StrategyResult{
				Prompt:   field(record, s+promptSuffix),
				Response: field(record, s+responseSuffix),
				Verdict:  field(record, s+verdictSuffix),
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// ReadCSVFile reads a results table from path.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	return ReadCSV(f)
}
