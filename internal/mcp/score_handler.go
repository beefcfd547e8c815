package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/survey-eval/internal/judge"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/server"
)

func handleScoreResults(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.LLMClient == nil {
		return mcp.NewToolResultError("LLM client is not configured"), nil
	}

	resultsFile := request.GetString("results_file", "")
	runID := request.GetString("run_id", "")
	if resultsFile == "" && runID == "" {
		return mcp.NewToolResultError("either 'run_id' or 'results_file' is required"), nil
	}

	var (
		path string
		err  error
	)
	if runID != "" {
		var runPath string
		runPath, err = resolveRunPath(sc.OutputDir(), runID)
		if err == nil {
			path = joinRunFile(runPath, pipeline.ResultsFileName)
		}
	} else {
		path, err = resolveResultFilePath(sc.OutputDir(), resultsFile)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid results location: %v", err)), nil
	}

	cfg := judge.Config{
		Model:       request.GetString("scoring_model", sc.Config.JudgeModel()),
		Repetitions: request.GetInt("repetitions", sc.Config.Judge.Repetitions),
		Concurrency: sc.Config.Concurrency,
	}
	j := judge.NewJudge(sc.LLMClient, cfg)

	output, err := j.ScoreFile(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scoring failed: %v", err)), nil
	}

	scoresFile, err := judge.WriteScoreFile(output, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to write scores: %v", err)), nil
	}

	summaries := make(map[string]judge.Summary, len(output.Strategies))
	for _, s := range output.Strategies {
		summaries[s.Strategy] = s.Summary
	}

	return jsonResult(map[string]any{
		"results_file": path,
		"scores_file":  scoresFile,
		"repetitions":  output.Metadata.Repetitions,
		"summaries":    summaries,
	})
}
