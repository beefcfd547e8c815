package judge

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/survey-eval/internal/llm"
	"github.com/giantswarm/survey-eval/internal/report"
	"github.com/giantswarm/survey-eval/internal/testutil"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		input string
		want  Verdict
	}{
		{"accurate", Accurate},
		{"Accurate", Accurate},
		{"  ACCURATE.\n", Accurate},
		{`"accurate"`, Accurate},
		{"**accurate**", Accurate},
		{"inaccurate", Inaccurate},
		{"Inaccurate.", Inaccurate},
		{"The response is accurate", Inaccurate},
		{"", Inaccurate},
		{"yes", Inaccurate},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseVerdict(tt.input))
		})
	}
}

func TestNewJudgeDefaults(t *testing.T) {
	j := NewJudge(&testutil.MockLLMClient{}, Config{})
	cfg := j.Config()
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultRepetitions, cfg.Repetitions)
	assert.Positive(t, cfg.Concurrency)
}

func TestEvaluate(t *testing.T) {
	client := &testutil.MockLLMClient{DefaultResponse: "Accurate"}
	j := NewJudge(client, Config{Model: "judge-model"})

	v, err := j.Evaluate(context.Background(), "Graves disease", "Likely Graves disease.")
	require.NoError(t, err)
	assert.Equal(t, Accurate, v)

	req := client.LastRequest()
	assert.Equal(t, "judge-model", req.Model)
	assert.Equal(t, EvaluationPrompt, req.SystemMessage)
	assert.Equal(t, "Ground truth answer: Graves disease. Response: Likely Graves disease.", req.UserMessage)
	require.NotNil(t, req.Temperature)
	assert.Equal(t, 0.0, *req.Temperature)
}

func TestEvaluateError(t *testing.T) {
	j := NewJudge(&testutil.MockLLMClient{Err: errors.New("timeout")}, Config{})

	_, err := j.Evaluate(context.Background(), "a", "b")
	assert.ErrorContains(t, err, "evaluation failed")
}

func testTable() *report.Table {
	return &report.Table{
		Strategies: []string{"baseline", "survey"},
		Rows: []report.Row{
			{ID: 1, Answer: "Asthma", Results: map[string]report.StrategyResult{
				"baseline": {Response: "right"},
				"survey":   {Response: "right"},
			}},
			{ID: 2, Answer: "Gout", Results: map[string]report.StrategyResult{
				"baseline": {Response: "wrong"},
				"survey":   {Response: "flaky"},
			}},
			{ID: 3, Answer: "Lupus", Results: map[string]report.StrategyResult{
				"baseline": {Response: ""},
				"survey":   {Response: "right"},
			}},
		},
	}
}

// flakyHandler answers "accurate" for "right", "inaccurate" for "wrong" and
// alternates for "flaky", starting with accurate.
func flakyHandler() func(llm.ChatRequest) (string, error) {
	var mu sync.Mutex
	flips := 0
	return func(req llm.ChatRequest) (string, error) {
		switch {
		case strings.HasSuffix(req.UserMessage, "Response: right"):
			return "accurate", nil
		case strings.HasSuffix(req.UserMessage, "Response: flaky"):
			mu.Lock()
			defer mu.Unlock()
			flips++
			if flips%2 == 1 {
				return "accurate", nil
			}
			return "inaccurate", nil
		}
		return "inaccurate", nil
	}
}

func TestScore(t *testing.T) {
	client := &testutil.MockLLMClient{Handler: flakyHandler()}
	j := NewJudge(client, Config{Model: "m", Repetitions: 3, Concurrency: 4})

	table := testTable()
	out, err := j.Score(context.Background(), table, "results.csv")
	require.NoError(t, err)

	// The empty baseline response is not sent to the judge.
	assert.Equal(t, 3*(2+3), client.Calls())

	assert.Equal(t, 3, out.Metadata.Repetitions)
	assert.Equal(t, 3, out.Metadata.Items)
	require.Len(t, out.Strategies, 2)

	baseline := out.Strategies[0]
	assert.Equal(t, "baseline", baseline.Strategy)
	require.Len(t, baseline.Runs, 3)
	for _, r := range baseline.Runs {
		assert.Equal(t, 1, r.Accurate)
		assert.Equal(t, 3, r.Total)
		assert.InDelta(t, 33.33, r.Percent, 0.001)
	}
	assert.Equal(t, 1.0, baseline.Summary.MeanAccurate)
	assert.Equal(t, 0.0, baseline.Summary.Variance)
	assert.Equal(t, 1, baseline.Summary.MajorityAccurate)

	// Survey: items 1 and 3 always accurate; item 2 accurate in 2 of 3 passes.
	survey := out.Strategies[1]
	total := 0
	for _, r := range survey.Runs {
		total += r.Accurate
	}
	assert.Equal(t, 8, total)
	assert.Equal(t, 3, survey.Summary.MajorityAccurate)
	assert.Equal(t, 2, survey.Summary.MinAccurate)
	assert.Equal(t, 3, survey.Summary.MaxAccurate)

	assert.Equal(t, "accurate", table.Rows[0].Results["baseline"].Verdict)
	assert.Equal(t, "inaccurate", table.Rows[1].Results["baseline"].Verdict)
	assert.Equal(t, "inaccurate", table.Rows[2].Results["baseline"].Verdict)
	assert.Equal(t, "accurate", table.Rows[1].Results["survey"].Verdict)
}

func TestScoreFailsOnJudgeError(t *testing.T) {
	client := &testutil.MockLLMClient{
		Handler: func(req llm.ChatRequest) (string, error) {
			if strings.Contains(req.UserMessage, "Gout") {
				return "", errors.New("judge unavailable")
			}
			return "accurate", nil
		},
	}
	j := NewJudge(client, Config{Repetitions: 1})

	out, err := j.Score(context.Background(), testTable(), "")
	assert.ErrorContains(t, err, "judge unavailable")
	assert.Nil(t, out)
}

func TestCalculateStatistics(t *testing.T) {
	runs := []RunScore{
		{Accurate: 50, Total: 100, Percent: 50},
		{Accurate: 60, Total: 100, Percent: 60},
		{Accurate: 70, Total: 100, Percent: 70},
	}

	stats := calculateStatistics(runs)
	assert.InDelta(t, 60.0, stats.MeanAccurate, 0.001)
	assert.InDelta(t, 60.0, stats.MeanPercent, 0.001)
	assert.Equal(t, 50, stats.MinAccurate)
	assert.Equal(t, 70, stats.MaxAccurate)
	// ((100+0+100)/3) = 66.67
	assert.InDelta(t, 66.67, stats.Variance, 0.01)

	assert.Equal(t, Summary{}, calculateStatistics(nil))
}

func TestCalculateStatisticsUsesUnroundedMean(t *testing.T) {
	// Mean 11.1351...; around the mean rounded to 11.14 the variance would
	// report as 28.23.
	counts := []int{0, 1, 2, 4, 5, 5, 6, 7, 7, 7, 7, 8, 8, 9, 10, 10, 10, 11, 11, 11,
		12, 13, 14, 14, 15, 15, 15, 16, 16, 17, 17, 17, 17, 18, 18, 19, 20}
	runs := make([]RunScore, 0, len(counts))
	for i, c := range counts {
		runs = append(runs, RunScore{Pass: i + 1, Accurate: c, Total: 20, Percent: percent(c, 20)})
	}

	stats := calculateStatistics(runs)
	assert.Equal(t, 11.14, stats.MeanAccurate)
	assert.Equal(t, 28.22, stats.Variance)
}

func TestScoreFileAndWriteScoreFile(t *testing.T) {
	dir := t.TempDir()
	resultsFile := filepath.Join(dir, "results.csv")
	require.NoError(t, report.WriteCSVFile(resultsFile, testTable()))

	client := &testutil.MockLLMClient{Handler: flakyHandler()}
	j := NewJudge(client, Config{Repetitions: 1})

	out, err := j.ScoreFile(context.Background(), resultsFile)
	require.NoError(t, err)
	assert.Equal(t, resultsFile, out.Metadata.ResultsFile)

	// Verdict columns are rewritten in place.
	table, err := report.ReadCSVFile(resultsFile)
	require.NoError(t, err)
	assert.Equal(t, "accurate", table.Rows[0].Results["survey"].Verdict)
	assert.Equal(t, "inaccurate", table.Rows[1].Results["baseline"].Verdict)

	scoresFile, err := WriteScoreFile(out, resultsFile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "results_scores.json"), scoresFile)

	data, err := os.ReadFile(scoresFile)
	require.NoError(t, err)
	var decoded ScoreOutput
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded.Strategies, 2)
}

func TestScoreFileWithoutStrategies(t *testing.T) {
	resultsFile := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(resultsFile, []byte("id,question,answer,layperson_question\n1,q,a,l\n"), 0o644))

	_, err := NewJudge(&testutil.MockLLMClient{}, Config{}).ScoreFile(context.Background(), resultsFile)
	assert.ErrorContains(t, err, "no strategy columns")
}
