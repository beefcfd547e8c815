package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/giantswarm/survey-eval/internal/report"
	"github.com/giantswarm/survey-eval/internal/sampler"
)

// Sample output file names.
const (
	SampleFileName = "sample.csv"
	TraceFileName  = "sample.json"
)

// SampleTrace is the persisted record of a sampling call.
type SampleTrace struct {
	Dataset   string         `json:"dataset"`
	Timestamp time.Time      `json:"timestamp"`
	Seed      int64          `json:"seed"`
	Requested int            `json:"requested"`
	Accepted  []int          `json:"accepted"`
	Draws     []sampler.Draw `json:"draws"`
}

// SampleOutput lists the files written by WriteSample.
type SampleOutput struct {
	ID        string
	Dir       string
	SampleCSV string
	TraceJSON string
}

// WriteSample stores a sampled set and its draw trace in a new directory
// under outputDir.
func WriteSample(outputDir, datasetName string, res *sampler.Result) (*SampleOutput, error) {
	ts := time.Now()
	id, dir, err := createRunDir(outputDir, NewRunID(datasetName, ts), "_sample")
	if err != nil {
		return nil, err
	}

	table := &report.Table{Rows: make([]report.Row, 0, len(res.Accepted))}
	trace := SampleTrace{
		Dataset:   datasetName,
		Timestamp: ts,
		Seed:      res.Seed,
		Requested: res.Requested,
		Accepted:  make([]int, 0, len(res.Accepted)),
		Draws:     res.Draws,
	}
	for _, p := range res.Accepted {
		table.Rows = append(table.Rows, report.Row{ID: p.Index, Question: p.Question, Answer: p.Answer})
		trace.Accepted = append(trace.Accepted, p.Index)
	}

	out := &SampleOutput{
		ID:        id,
		Dir:       dir,
		SampleCSV: filepath.Join(dir, SampleFileName),
		TraceJSON: filepath.Join(dir, TraceFileName),
	}

	if err := report.WriteCSVFile(out.SampleCSV, table); err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draw trace: %w", err)
	}
	if err := os.WriteFile(out.TraceJSON, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write draw trace: %w", err)
	}

	return out, nil
}
