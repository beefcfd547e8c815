// Package pipeline runs a full experiment over a sampled evaluation set:
// every item is rephrased into a layperson question, answered by each
// configured strategy, graded, and written to a run directory.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/judge"
	"github.com/giantswarm/survey-eval/internal/llm"
	"github.com/giantswarm/survey-eval/internal/parallel"
	"github.com/giantswarm/survey-eval/internal/report"
	"github.com/giantswarm/survey-eval/internal/sampler"
	"github.com/giantswarm/survey-eval/internal/strategy"
)

// Output file names inside a run directory.
const (
	ResultsFileName  = "results.csv"
	MetadataFileName = "resultset.json"
)

// StageRephrase is the progress stage name of the rephrasing step. Strategy
// stages are reported under the strategy name and grading as StageJudge.
const (
	StageRephrase = "rephrase"
	StageJudge    = "judge"
)

// ProgressFunc is called after each item of a stage completes. It may be
// called from several goroutines but never concurrently.
type ProgressFunc func(stage string, done, total int)

// Input is what a run operates on.
type Input struct {
	Dataset     string
	Sample      *sampler.Result
	OracleModel string
}

// Run describes a completed experiment.
type Run struct {
	ID          string
	Dataset     string
	Timestamp   time.Time
	Duration    time.Duration
	OutputPath  string
	ResultsFile string
	ScoresFile  string
	Table       *report.Table
	Scores      *judge.ScoreOutput
	Stages      map[string]time.Duration
}

// Runner orchestrates experiment runs.
type Runner struct {
	client      llm.Client
	model       string
	strategies  []strategy.Strategy
	judge       *judge.Judge // optional; nil skips grading
	outputDir   string
	concurrency int

	mu       sync.Mutex
	progress ProgressFunc
}

// NewRunner creates a runner that answers with model using the given
// strategies.
func NewRunner(client llm.Client, model string, strategies []strategy.Strategy, outputDir string) *Runner {
	return &Runner{
		client:      client,
		model:       model,
		strategies:  strategies,
		outputDir:   outputDir,
		concurrency: parallel.DefaultLimit,
	}
}

// SetProgressFunc sets the progress callback.
func (r *Runner) SetProgressFunc(fn ProgressFunc) {
	r.progress = fn
}

// SetJudge enables grading of every strategy after the responses are in.
func (r *Runner) SetJudge(j *judge.Judge) {
	r.judge = j
}

// SetConcurrency bounds the number of in-flight LLM calls per stage.
func (r *Runner) SetConcurrency(n int) {
	if n > 0 {
		r.concurrency = n
	}
}

// Run executes the experiment and writes its results. Any failed LLM call
// fails the run; no partial results are written.
func (r *Runner) Run(ctx context.Context, in Input) (*Run, error) {
	if in.Sample == nil || len(in.Sample.Accepted) == 0 {
		return nil, fmt.Errorf("no sampled items to evaluate")
	}
	if len(r.strategies) == 0 {
		return nil, fmt.Errorf("no strategies specified for experiment")
	}

	timestamp := time.Now()
	runID, outputPath, err := createRunDir(r.outputDir, NewRunID(in.Dataset, timestamp), "")
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:          runID,
		Dataset:     in.Dataset,
		Timestamp:   timestamp,
		OutputPath:  outputPath,
		ResultsFile: filepath.Join(outputPath, ResultsFileName),
		Stages:      make(map[string]time.Duration),
	}

	pairs := in.Sample.Accepted
	slog.Info("running experiment",
		"run_id", runID,
		"items", len(pairs),
		"strategies", len(r.strategies),
		"model", r.model,
	)

	stageStart := time.Now()
	items, err := parallel.Map(ctx, r.concurrency, pairs, tracked(r, StageRephrase, len(pairs),
		func(ctx context.Context, _ int, p dataset.Pair) (strategy.Item, error) {
			q, err := strategy.Rephrase(ctx, r.client, r.model, p.Question)
			if err != nil {
				return strategy.Item{}, fmt.Errorf("item %d: %w", p.Index, err)
			}
			return strategy.Item{Pair: p, LaypersonQuestion: q}, nil
		}))
	if err != nil {
		return nil, fmt.Errorf("rephrase stage failed: %w", err)
	}
	run.Stages[StageRephrase] = time.Since(stageStart)

	table := &report.Table{Rows: make([]report.Row, len(items))}
	for i, it := range items {
		table.Rows[i] = report.Row{
			ID:                it.Pair.Index,
			Question:          it.Pair.Question,
			Answer:            it.Pair.Answer,
			LaypersonQuestion: it.LaypersonQuestion,
			Results:           make(map[string]report.StrategyResult, len(r.strategies)),
		}
	}

	for _, s := range r.strategies {
		name := s.Name()
		table.Strategies = append(table.Strategies, name)

		stageStart = time.Now()
		responses, err := parallel.Map(ctx, r.concurrency, items, tracked(r, name, len(items),
			func(ctx context.Context, _ int, it strategy.Item) (*strategy.Response, error) {
				resp, err := s.Respond(ctx, r.client, r.model, it)
				if err != nil {
					return nil, fmt.Errorf("item %d: %w", it.Pair.Index, err)
				}
				return resp, nil
			}))
		if err != nil {
			return nil, fmt.Errorf("strategy %s failed: %w", name, err)
		}
		run.Stages[name] = time.Since(stageStart)

		for i, resp := range responses {
			table.Rows[i].Results[name] = report.StrategyResult{
				Prompt:   resp.Prompt,
				Response: resp.Answer,
			}
		}
		slog.Info("strategy complete", "strategy", name, "duration", run.Stages[name])
	}

	if r.judge != nil {
		stageStart = time.Now()
		r.report(StageJudge, 0, 1)
		scores, err := r.judge.Score(ctx, table, run.ResultsFile)
		if err != nil {
			return nil, fmt.Errorf("grading failed: %w", err)
		}
		r.report(StageJudge, 1, 1)
		run.Stages[StageJudge] = time.Since(stageStart)
		run.Scores = scores

		run.ScoresFile, err = judge.WriteScoreFile(scores, run.ResultsFile)
		if err != nil {
			return nil, err
		}
	}

	if err := report.WriteCSVFile(run.ResultsFile, table); err != nil {
		return nil, err
	}
	run.Table = table
	run.Duration = time.Since(timestamp)

	if err := writeRunMetadata(outputPath, r, run, in); err != nil {
		return nil, fmt.Errorf("failed to write run metadata: %w", err)
	}

	return run, nil
}

// tracked wraps a per-item task so that its completion is reported.
func tracked[T, R any](r *Runner, stage string, total int, fn func(context.Context, int, T) (R, error)) func(context.Context, int, T) (R, error) {
	var done int
	return func(ctx context.Context, i int, item T) (R, error) {
		out, err := fn(ctx, i, item)
		if err == nil {
			r.mu.Lock()
			done++
			if r.progress != nil {
				r.progress(stage, done, total)
			}
			r.mu.Unlock()
		}
		return out, err
	}
}

func (r *Runner) report(stage string, done, total int) {
	if r.progress == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress(stage, done, total)
}

// NewRunID builds a run identifier from the dataset name and a timestamp.
func NewRunID(datasetName string, ts time.Time) string {
	name := sanitizeFilename(strings.ReplaceAll(datasetName, " ", "_"))
	if name == "" {
		name = "run"
	}
	return fmt.Sprintf("%s_%s", name, ts.Format("20060102-150405"))
}

// maxRunDirAttempts bounds the numbered variants tried by createRunDir.
const maxRunDirAttempts = 1000

// createRunDir creates a new directory <base><suffix> under outputDir. When
// that name is taken it tries <base>-2<suffix>, <base>-3<suffix> and so on,
// so concurrent runs started within the same second never share a directory.
func createRunDir(outputDir, base, suffix string) (string, string, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", "", fmt.Errorf("failed to create output directory: %w", err)
	}
	for attempt := 1; attempt <= maxRunDirAttempts; attempt++ {
		id := base + suffix
		if attempt > 1 {
			id = fmt.Sprintf("%s-%d%s", base, attempt, suffix)
		}
		dir := filepath.Join(outputDir, id)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return id, dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", "", fmt.Errorf("failed to create run directory: %w", err)
		}
	}
	return "", "", fmt.Errorf("no free run directory for %q after %d attempts", base, maxRunDirAttempts)
}

// sanitizeFilename replaces characters unsafe for filenames with underscores.
func sanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// Metadata is the resultset.json manifest of a run.
type Metadata struct {
	ID             string                   `json:"id"`
	Dataset        string                   `json:"dataset"`
	Timestamp      time.Time                `json:"timestamp"`
	FullDuration   float64                  `json:"full_duration"`
	Model          string                   `json:"model"`
	OracleModel    string                   `json:"oracle_model,omitempty"`
	JudgeModel     string                   `json:"judge_model,omitempty"`
	Seed           int64                    `json:"seed"`
	SampleSize     int                      `json:"sample_size"`
	Strategies     []string                 `json:"strategies"`
	ResultsFile    string                   `json:"results_file"`
	ScoresFile     string                   `json:"scores_file,omitempty"`
	StageDurations map[string]float64       `json:"stage_durations"`
	Summaries      map[string]judge.Summary `json:"summaries,omitempty"`
	Draws          []sampler.Draw           `json:"draws"`
}

func writeRunMetadata(outputPath string, r *Runner, run *Run, in Input) error {
	meta := Metadata{
		ID:             run.ID,
		Dataset:        run.Dataset,
		Timestamp:      run.Timestamp,
		FullDuration:   run.Duration.Seconds(),
		Model:          r.model,
		OracleModel:    in.OracleModel,
		Seed:           in.Sample.Seed,
		SampleSize:     len(in.Sample.Accepted),
		Strategies:     run.Table.Strategies,
		ResultsFile:    run.ResultsFile,
		ScoresFile:     run.ScoresFile,
		StageDurations: make(map[string]float64, len(run.Stages)),
		Draws:          in.Sample.Draws,
	}
	for stage, d := range run.Stages {
		meta.StageDurations[stage] = d.Seconds()
	}
	if r.judge != nil {
		meta.JudgeModel = r.judge.Config().Model
	}
	if run.Scores != nil {
		meta.Summaries = make(map[string]judge.Summary, len(run.Scores.Strategies))
		for _, s := range run.Scores.Strategies {
			meta.Summaries[s.Strategy] = s.Summary
		}
	}

	data, err := json.MarshalIndent(meta, "", "    ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(outputPath, MetadataFileName), data, 0o644)
}

// ReadMetadata loads the manifest of a run directory.
func ReadMetadata(runDir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(runDir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read run metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to parse run metadata: %w", err)
	}
	return &meta, nil
}
