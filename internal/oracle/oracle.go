// Package oracle implements the LLM-backed predicate used to filter the
// corpus during sampling.
package oracle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/llm"
)

// Config holds oracle settings.
type Config struct {
	// Model overrides the client's default model when set.
	Model string
	// SystemPrompt overrides DiseaseEntityPrompt when set.
	SystemPrompt string
}

// DiseaseOracle classifies pairs by asking an LLM whether the answer is a
// single diagnosable disease entity.
type DiseaseOracle struct {
	client llm.Client
	config Config
}

// New creates a DiseaseOracle.
func New(client llm.Client, config Config) *DiseaseOracle {
	if config.SystemPrompt == "" {
		config.SystemPrompt = DiseaseEntityPrompt
	}
	return &DiseaseOracle{client: client, config: config}
}

// Classify reports whether pair.Answer is a single diagnosable disease. Its
// signature matches sampler.Predicate. Call failures are returned without
// retrying.
func (o *DiseaseOracle) Classify(ctx context.Context, pair dataset.Pair) (bool, error) {
	resp, err := o.client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         o.config.Model,
		SystemMessage: o.config.SystemPrompt,
		UserMessage:   fmt.Sprintf("Answer: %s", pair.Answer),
		Temperature:   llm.Float64Ptr(0),
	})
	if err != nil {
		return false, fmt.Errorf("disease classification failed: %w", err)
	}

	ok := ParseAffirmative(resp.Content)
	slog.Debug("oracle classification",
		"index", pair.Index,
		"answer", pair.Answer,
		"raw", resp.Content,
		"accepted", ok,
	)
	return ok, nil
}

// ParseAffirmative turns free-form model output into a strict boolean. Only
// the single token "yes" (any case, ignoring surrounding whitespace, quotes
// and a trailing period) is true; everything else, including empty or
// malformed output, is false.
func ParseAffirmative(text string) bool {
	return llm.NormalizeToken(text) == "yes"
}
