// Package judge grades strategy responses against the benchmark answer with
// an LLM acting as examiner. Each strategy is graded Repetitions times to
// expose judge variance; the per-item verdict written back to the results
// table is the majority over those passes.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/giantswarm/survey-eval/internal/llm"
	"github.com/giantswarm/survey-eval/internal/parallel"
	"github.com/giantswarm/survey-eval/internal/report"
)

// DefaultModel is the default model used for grading.
const DefaultModel = "gpt-4o"

// DefaultRepetitions is the number of grading passes per strategy.
const DefaultRepetitions = 3

// Verdict is the judge's decision for one response.
type Verdict string

const (
	Accurate   Verdict = "accurate"
	Inaccurate Verdict = "inaccurate"
)

// ParseVerdict maps raw judge output to a Verdict. Only the single token
// "accurate" counts; anything else, including "inaccurate" and malformed
// output, is Inaccurate.
func ParseVerdict(raw string) Verdict {
	if llm.NormalizeToken(raw) == string(Accurate) {
		return Accurate
	}
	return Inaccurate
}

// Config holds grading configuration.
type Config struct {
	Model       string
	Repetitions int
	Concurrency int
}

// RunScore is the result of one grading pass over one strategy.
type RunScore struct {
	Pass     int     `json:"pass"`
	Accurate int     `json:"accurate"`
	Total    int     `json:"total"`
	Percent  float64 `json:"percentage"`
}

// Summary holds aggregate statistics over the passes of one strategy.
type Summary struct {
	MeanAccurate float64 `json:"mean_accurate"`
	MeanPercent  float64 `json:"mean_percentage"`
	MinAccurate  int     `json:"min_accurate"`
	MaxAccurate  int     `json:"max_accurate"`
	Variance     float64 `json:"variance"`
	// MajorityAccurate counts items whose majority verdict is accurate.
	MajorityAccurate int `json:"majority_accurate"`
}

// StrategyScore groups the passes and summary of one strategy.
type StrategyScore struct {
	Strategy string     `json:"strategy"`
	Runs     []RunScore `json:"runs"`
	Summary  Summary    `json:"summary"`
}

// ScoreOutput is the full structured grading output.
type ScoreOutput struct {
	Metadata   ScoreMetadata   `json:"metadata"`
	Strategies []StrategyScore `json:"strategies"`
}

// ScoreMetadata holds information about the grading run.
type ScoreMetadata struct {
	Timestamp    string `json:"timestamp"`
	ResultsFile  string `json:"results_file"`
	ScoringModel string `json:"scoring_model"`
	Repetitions  int    `json:"repetitions"`
	Items        int    `json:"items"`
}

// Judge grades responses using an LLM.
type Judge struct {
	client llm.Client
	config Config
}

// NewJudge creates a Judge, filling in defaults for unset fields.
func NewJudge(client llm.Client, config Config) *Judge {
	if config.Repetitions <= 0 {
		config.Repetitions = DefaultRepetitions
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	if config.Concurrency <= 0 {
		config.Concurrency = parallel.DefaultLimit
	}
	return &Judge{client: client, config: config}
}

// Config returns the effective configuration.
func (j *Judge) Config() Config {
	return j.config
}

// Evaluate grades a single response.
func (j *Judge) Evaluate(ctx context.Context, groundTruth, response string) (Verdict, error) {
	text, err := llm.Complete(ctx, j.client, llm.ChatRequest{
		Model:         j.config.Model,
		SystemMessage: EvaluationPrompt,
		UserMessage:   evaluationInput(groundTruth, response),
		Temperature:   llm.Float64Ptr(0),
	})
	if err != nil {
		return "", fmt.Errorf("evaluation failed: %w", err)
	}
	return ParseVerdict(text), nil
}

type task struct {
	strategy int
	row      int
	pass     int
}

// Score grades every strategy column of the table. Majority verdicts are
// written into the table's rows. Any judge call failure aborts the batch.
func (j *Judge) Score(ctx context.Context, table *report.Table, resultsFile string) (*ScoreOutput, error) {
	reps := j.config.Repetitions

	var tasks []task
	for si := range table.Strategies {
		for ri := range table.Rows {
			for p := 0; p < reps; p++ {
				tasks = append(tasks, task{strategy: si, row: ri, pass: p})
			}
		}
	}

	slog.Info("grading responses",
		"strategies", len(table.Strategies),
		"items", len(table.Rows),
		"repetitions", reps,
		"model", j.config.Model,
	)

	verdicts, err := parallel.Map(ctx, j.config.Concurrency, tasks, func(ctx context.Context, _ int, t task) (Verdict, error) {
		row := table.Rows[t.row]
		name := table.Strategies[t.strategy]
		response := row.Results[name].Response
		if strings.TrimSpace(response) == "" {
			return Inaccurate, nil
		}
		v, err := j.Evaluate(ctx, row.Answer, response)
		if err != nil {
			return "", fmt.Errorf("grading %s for item %d: %w", name, row.ID, err)
		}
		return v, nil
	})
	if err != nil {
		return nil, err
	}

	// votes[strategy][row] counts accurate passes.
	votes := make([][]int, len(table.Strategies))
	runs := make([][]RunScore, len(table.Strategies))
	for si := range table.Strategies {
		votes[si] = make([]int, len(table.Rows))
		runs[si] = make([]RunScore, reps)
		for p := range runs[si] {
			runs[si][p] = RunScore{Pass: p + 1, Total: len(table.Rows)}
		}
	}
	for i, t := range tasks {
		if verdicts[i] == Accurate {
			votes[t.strategy][t.row]++
			runs[t.strategy][t.pass].Accurate++
		}
	}

	output := &ScoreOutput{
		Metadata: ScoreMetadata{
			Timestamp:    time.Now().Format(time.RFC3339),
			ResultsFile:  resultsFile,
			ScoringModel: j.config.Model,
			Repetitions:  reps,
			Items:        len(table.Rows),
		},
		Strategies: make([]StrategyScore, 0, len(table.Strategies)),
	}

	for si, name := range table.Strategies {
		for p := range runs[si] {
			runs[si][p].Percent = percent(runs[si][p].Accurate, runs[si][p].Total)
		}

		majority := 0
		for ri := range table.Rows {
			v := Inaccurate
			if votes[si][ri]*2 > reps {
				v = Accurate
				majority++
			}
			r := table.Rows[ri].Results[name]
			r.Verdict = string(v)
			if table.Rows[ri].Results == nil {
				table.Rows[ri].Results = make(map[string]report.StrategyResult)
			}
			table.Rows[ri].Results[name] = r
		}

		summary := calculateStatistics(runs[si])
		summary.MajorityAccurate = majority
		output.Strategies = append(output.Strategies, StrategyScore{
			Strategy: name,
			Runs:     runs[si],
			Summary:  summary,
		})

		slog.Info("strategy graded",
			"strategy", name,
			"mean_percentage", summary.MeanPercent,
			"majority_accurate", majority,
			"items", len(table.Rows),
		)
	}

	return output, nil
}

// ScoreFile re-grades an existing results CSV and rewrites its verdict
// columns in place.
func (j *Judge) ScoreFile(ctx context.Context, resultsFile string) (*ScoreOutput, error) {
	table, err := report.ReadCSVFile(resultsFile)
	if err != nil {
		return nil, err
	}
	if len(table.Strategies) == 0 {
		return nil, fmt.Errorf("no strategy columns in %s", resultsFile)
	}

	output, err := j.Score(ctx, table, resultsFile)
	if err != nil {
		return nil, err
	}

	if err := report.WriteCSVFile(resultsFile, table); err != nil {
		return nil, fmt.Errorf("failed to update verdicts: %w", err)
	}
	return output, nil
}

// ScoresPath returns the path of the scores file belonging to a results CSV.
func ScoresPath(resultsFile string) string {
	return strings.TrimSuffix(resultsFile, ".csv") + "_scores.json"
}

// WriteScoreFile writes the score output as JSON next to the results file.
func WriteScoreFile(output *ScoreOutput, resultsFile string) (string, error) {
	scoresFile := ScoresPath(resultsFile)

	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal scores: %w", err)
	}

	if err := os.WriteFile(scoresFile, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write scores file: %w", err)
	}

	return scoresFile, nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*10000) / 100
}

func calculateStatistics(runs []RunScore) Summary {
	if len(runs) == 0 {
		return Summary{}
	}

	counts := make([]int, 0, len(runs))
	percents := make([]float64, 0, len(runs))
	for _, r := range runs {
		counts = append(counts, r.Accurate)
		percents = append(percents, r.Percent)
	}

	mean := meanInt(counts)
	return Summary{
		MeanAccurate: round2(mean),
		MeanPercent:  round2(meanFloat(percents)),
		MinAccurate:  slices.Min(counts),
		MaxAccurate:  slices.Max(counts),
		Variance:     round2(variance(counts, mean)),
	}
}

// round2 rounds to two decimals for reporting.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func meanInt(vals []int) float64 {
	sum := 0
	for _, v := range vals {
		sum += v
	}
	return float64(sum) / float64(len(vals))
}

func meanFloat(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// variance is the population variance of vals around the unrounded mean.
func variance(vals []int, mean float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		d := float64(v) - mean
		sum += d * d
	}
	return sum / float64(len(vals))
}
