package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/survey-eval/internal/judge"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/server"
	"github.com/giantswarm/survey-eval/internal/strategy"
)

func registerExperimentTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	runTool := mcp.NewTool("run_experiment",
		mcp.WithDescription("Sample a dataset, answer every item with each strategy, grade the answers and save the results"),
		mcp.WithString("dataset",
			mcp.Description("Dataset name (default: from config)"),
		),
		mcp.WithNumber("size",
			mcp.Description("Number of pairs to evaluate (default: from config)"),
		),
		mcp.WithString("seed",
			mcp.Description(seedDescription),
		),
		mcp.WithString("strategies",
			mcp.Description("Comma-separated strategies: "+strings.Join(strategy.Names, ", ")+" (default: from config)"),
		),
		mcp.WithString("model",
			mcp.Description("Answering model (default: from config)"),
		),
		mcp.WithBoolean("score",
			mcp.Description("Grade the answers with the judge model (default: true)"),
		),
	)
	s.AddTool(runTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleRunExperiment(ctx, request, sc)
	})

	scoreTool := mcp.NewTool("score_results",
		mcp.WithDescription("Re-grade a completed run using an LLM as judge"),
		mcp.WithString("run_id",
			mcp.Description("Run ID whose results.csv should be graded"),
		),
		mcp.WithString("results_file",
			mcp.Description("Path to a results CSV inside the output directory"),
		),
		mcp.WithString("scoring_model",
			mcp.Description("Model to use for grading (default: from config)"),
		),
		mcp.WithNumber("repetitions",
			mcp.Description("Number of grading passes per strategy (default: from config)"),
		),
	)
	s.AddTool(scoreTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleScoreResults(ctx, request, sc)
	})

	getResultsTool := mcp.NewTool("get_results",
		mcp.WithDescription("Retrieve metadata and scores for past runs"),
		mcp.WithString("run_id",
			mcp.Description("Specific run ID to retrieve (optional, lists all if omitted)"),
		),
	)
	s.AddTool(getResultsTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGetResults(ctx, request, sc)
	})
}

func handleRunExperiment(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.LLMClient == nil {
		return mcp.NewToolResultError("LLM client is not configured"), nil
	}
	cfg := sc.Config

	names := cfg.Strategies
	if raw := request.GetString("strategies", ""); raw != "" {
		names = strings.Split(raw, ",")
	}
	strategies, err := strategy.Resolve(names)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	p, err := sampleParamsFromRequest(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ds, sample, err := drawSample(ctx, sc, p)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sampling failed: %v", err)), nil
	}

	model := request.GetString("model", cfg.LLM.Model)
	r := pipeline.NewRunner(sc.LLMClient, model, strategies, sc.OutputDir())
	r.SetConcurrency(cfg.Concurrency)
	if request.GetBool("score", true) {
		r.SetJudge(judge.NewJudge(sc.LLMClient, judge.Config{
			Model:       cfg.JudgeModel(),
			Repetitions: cfg.Judge.Repetitions,
			Concurrency: cfg.Concurrency,
		}))
	}

	run, err := r.Run(ctx, pipeline.Input{
		Dataset:     ds.Name,
		Sample:      sample,
		OracleModel: cfg.OracleModel(),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("experiment failed: %v", err)), nil
	}

	summary := map[string]any{
		"run_id":       run.ID,
		"dataset":      run.Dataset,
		"items":        len(run.Table.Rows),
		"strategies":   run.Table.Strategies,
		"duration":     run.Duration.String(),
		"results_file": run.ResultsFile,
	}
	if run.Scores != nil {
		scores := make(map[string]judge.Summary, len(run.Scores.Strategies))
		for _, s := range run.Scores.Strategies {
			scores[s.Strategy] = s.Summary
		}
		summary["scores_file"] = run.ScoresFile
		summary["scores"] = scores
	}

	return jsonResult(summary)
}
