package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/oracle"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/sampler"
	"github.com/giantswarm/survey-eval/internal/server"
)

func registerDatasetTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	listTool := mcp.NewTool("list_datasets",
		mcp.WithDescription("List available benchmark datasets with metadata"),
	)
	s.AddTool(listTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListDatasets(ctx, request, sc)
	})

	sampleTool := mcp.NewTool("sample_dataset",
		mcp.WithDescription("Draw a reproducible evaluation set whose answers are single diagnosable diseases, and save it with its draw trace"),
		mcp.WithString("dataset",
			mcp.Description("Dataset name (default: from config)"),
		),
		mcp.WithNumber("size",
			mcp.Description("Number of pairs to accept (default: from config)"),
		),
		mcp.WithString("seed",
			mcp.Description(seedDescription),
		),
	)
	s.AddTool(sampleTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSampleDataset(ctx, request, sc)
	})
}

func handleListDatasets(_ context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	names, err := dataset.List(sc.DatasetsDir())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list datasets: %v", err)), nil
	}

	type datasetInfo struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		Version     string `json:"version"`
		Source      string `json:"source,omitempty"`
		PairCount   int    `json:"pair_count"`
	}

	datasets := make([]datasetInfo, 0, len(names))
	for _, name := range names {
		ds, err := dataset.Load(name, sc.DatasetsDir())
		if err != nil {
			slog.Warn("skipping unreadable dataset", "dataset", name, "error", err)
			continue
		}
		datasets = append(datasets, datasetInfo{
			ID:          name,
			Name:        ds.Name,
			Description: ds.Description,
			Version:     ds.Version,
			Source:      ds.Source,
			PairCount:   len(ds.Pairs),
		})
	}

	return jsonResult(datasets)
}

// sampleParams are the sampling arguments shared by sample_dataset and
// run_experiment.
type sampleParams struct {
	Dataset string
	Size    int
	Seed    int64
}

const seedDescription = "Sampling seed as a decimal integer string; integral numbers up to 2^53 are also accepted (default: from config)"

// maxExactSeed is the largest integer a JSON number carries without loss.
const maxExactSeed = 1 << 53

func sampleParamsFromRequest(request mcp.CallToolRequest, sc *server.ServerContext) (sampleParams, error) {
	cfg := sc.Config.Sampling
	seed, err := seedArgument(request.GetArguments()["seed"], cfg.Seed)
	if err != nil {
		return sampleParams{}, err
	}
	return sampleParams{
		Dataset: request.GetString("dataset", cfg.Dataset),
		Size:    request.GetInt("size", cfg.Size),
		Seed:    seed,
	}, nil
}

// seedArgument reads the seed without passing it through float64, so every
// int64 seed reaches the sampler exactly. Numbers are accepted only while
// they are integral and exactly representable.
func seedArgument(raw any, def int64) (int64, error) {
	switch v := raw.(type) {
	case nil:
		return def, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return def, nil
		}
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("seed must be a decimal integer: %w", err)
		}
		return seed, nil
	case json.Number:
		seed, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("seed must be an integer: %w", err)
		}
		return seed, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("seed must be an integer, got %v", v)
		}
		if math.Abs(v) > maxExactSeed {
			return 0, fmt.Errorf("seed %v cannot be represented exactly as a number; pass it as a string", v)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	}
	return 0, fmt.Errorf("seed must be an integer or a decimal string, got %T", raw)
}

// drawSample loads the dataset and runs the disease-entity sampler on it.
func drawSample(ctx context.Context, sc *server.ServerContext, p sampleParams) (*dataset.Dataset, *sampler.Result, error) {
	if err := dataset.ValidateName(p.Dataset); err != nil {
		return nil, nil, err
	}
	ds, err := dataset.Load(p.Dataset, sc.DatasetsDir())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	o := oracle.New(sc.LLMClient, oracle.Config{Model: sc.Config.OracleModel()})
	res, err := sampler.Sample(ctx, p.Size, ds.Pairs, p.Seed, o.Classify)
	if err != nil {
		return nil, nil, err
	}
	return ds, res, nil
}

func handleSampleDataset(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.LLMClient == nil {
		return mcp.NewToolResultError("LLM client is not configured"), nil
	}

	p, err := sampleParamsFromRequest(request, sc)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ds, res, err := drawSample(ctx, sc, p)
	if err != nil {
		var insufficient *sampler.InsufficientCandidatesError
		if errors.As(err, &insufficient) {
			return mcp.NewToolResultError(fmt.Sprintf("dataset %q has too few disease answers: %v", p.Dataset, err)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("sampling failed: %v", err)), nil
	}

	out, err := pipeline.WriteSample(sc.OutputDir(), ds.Name, res)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save sample: %v", err)), nil
	}

	accepted := make([]int, 0, len(res.Accepted))
	for _, pair := range res.Accepted {
		accepted = append(accepted, pair.Index)
	}

	return jsonResult(map[string]any{
		"sample_id":  out.ID,
		"dataset":    ds.Name,
		"seed":       res.Seed,
		"requested":  res.Requested,
		"accepted":   accepted,
		"draws":      len(res.Draws),
		"sample_csv": out.SampleCSV,
		"trace_json": out.TraceJSON,
	})
}
