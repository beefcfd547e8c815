package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/giantswarm/survey-eval/internal/llm"
)

// Rephrase rewrites a benchmark vignette into a layperson question.
func Rephrase(ctx context.Context, client llm.Client, model, question string) (string, error) {
	text, err := ask(ctx, client, model, RephrasePrompt, question)
	if err != nil {
		return "", fmt.Errorf("failed to rephrase question: %w", err)
	}
	return text, nil
}

// ClinicalStrategy answers the original exam vignette. It is the control
// that shows how much the layperson rephrasing alone costs.
type ClinicalStrategy struct{}

func (s *ClinicalStrategy) Name() string {
	return "clinical"
}

func (s *ClinicalStrategy) Respond(ctx context.Context, client llm.Client, model string, item Item) (*Response, error) {
	return respondDirect(ctx, client, model, s.Name(), item.Pair.Question)
}

// BaselineStrategy answers the layperson question as asked.
type BaselineStrategy struct{}

func (s *BaselineStrategy) Name() string {
	return "baseline"
}

func (s *BaselineStrategy) Respond(ctx context.Context, client llm.Client, model string, item Item) (*Response, error) {
	return respondDirect(ctx, client, model, s.Name(), item.LaypersonQuestion)
}

func respondDirect(ctx context.Context, client llm.Client, model, name, inquiry string) (*Response, error) {
	start := time.Now()

	text, err := answer(ctx, client, model, inquiry)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to answer inquiry: %w", name, err)
	}

	return &Response{
		Strategy: name,
		Prompt:   inquiry,
		Answer:   text,
		Duration: time.Since(start),
	}, nil
}
