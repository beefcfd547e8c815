package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/giantswarm/survey-eval/internal/judge"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/server"
)

func handleGetResults(_ context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if runID := request.GetString("run_id", ""); runID != "" {
		return getSpecificRun(sc.OutputDir(), runID)
	}
	return listRuns(sc.OutputDir())
}

func listRuns(outputDir string) (*mcp.CallToolResult, error) {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mcp.NewToolResultText("[]"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to read results directory: %v", err)), nil
	}

	type runInfo struct {
		ID         string   `json:"id"`
		Dataset    string   `json:"dataset"`
		Timestamp  string   `json:"timestamp"`
		Model      string   `json:"model"`
		SampleSize int      `json:"sample_size"`
		Strategies []string `json:"strategies"`
		Scored     bool     `json:"scored"`
	}

	runs := make([]runInfo, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		runDir := filepath.Join(outputDir, e.Name())
		meta, err := pipeline.ReadMetadata(runDir)
		if err != nil {
			// Sample-only directories have no run manifest.
			continue
		}
		_, statErr := os.Stat(judge.ScoresPath(filepath.Join(runDir, pipeline.ResultsFileName)))
		runs = append(runs, runInfo{
			ID:         meta.ID,
			Dataset:    meta.Dataset,
			Timestamp:  meta.Timestamp.Format(time.RFC3339),
			Model:      meta.Model,
			SampleSize: meta.SampleSize,
			Strategies: meta.Strategies,
			Scored:     statErr == nil,
		})
	}

	if len(runs) == 0 {
		return mcp.NewToolResultText("[]"), nil
	}
	return jsonResult(runs)
}

func getSpecificRun(outputDir, runID string) (*mcp.CallToolResult, error) {
	runPath, err := resolveRunPath(outputDir, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid run_id: %v", err)), nil
	}

	data, err := os.ReadFile(joinRunFile(runPath, pipeline.MetadataFileName))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("run %q not found: %v", runID, err)), nil
	}

	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse run metadata: %v", err)), nil
	}

	// The draw trace can be long; report its size instead.
	if draws, ok := metadata["draws"].([]any); ok {
		metadata["draws"] = len(draws)
	}

	files, _ := os.ReadDir(runPath)
	scores := make(map[string]any)
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), "_scores.json") {
			continue
		}
		scoreData, err := os.ReadFile(joinRunFile(runPath, f.Name()))
		if err != nil {
			continue
		}
		var scoreObj any
		if json.Unmarshal(scoreData, &scoreObj) == nil {
			scores[f.Name()] = scoreObj
		}
	}
	if len(scores) > 0 {
		metadata["scores"] = scores
	}

	return jsonResult(metadata)
}
