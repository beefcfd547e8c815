// Package strategy holds the prompt-engineering strategies compared by an
// experiment. Every strategy receives the same sampled item, already
// rephrased into a layperson question, and produces one free-text answer
// that is later graded against the benchmark answer.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/llm"
)

// Item is one sampled pair together with its layperson phrasing.
type Item struct {
	Pair              dataset.Pair
	LaypersonQuestion string
}

// Response is the outcome of running one strategy on one item.
type Response struct {
	Strategy string
	// Prompt is the final inquiry sent to the answering model.
	Prompt   string
	Answer   string
	Duration time.Duration
}

// Strategy produces an answer for an item.
type Strategy interface {
	// Name returns the strategy identifier (e.g. "survey").
	Name() string

	// Respond runs the strategy's call sequence for one item.
	Respond(ctx context.Context, client llm.Client, model string, item Item) (*Response, error)
}

// Names lists every registered strategy in a stable order.
var Names = []string{"clinical", "baseline", "survey", "structured"}

// DefaultNames are the strategies run when none are configured.
var DefaultNames = []string{"baseline", "survey"}

// GetStrategy returns the Strategy registered under name.
func GetStrategy(name string) (Strategy, error) {
	switch name {
	case "clinical":
		return &ClinicalStrategy{}, nil
	case "baseline", "":
		return &BaselineStrategy{}, nil
	case "survey":
		return &SurveyStrategy{}, nil
	case "structured":
		return NewStructuredStrategy(), nil
	default:
		return nil, &UnsupportedStrategyError{Name: name}
	}
}

// Resolve looks up several strategies, dropping duplicates and keeping the
// given order. An empty list resolves to DefaultNames.
func Resolve(names []string) ([]Strategy, error) {
	if len(names) == 0 {
		names = DefaultNames
	}

	seen := make(map[string]bool)
	var out []Strategy
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		s, err := GetStrategy(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no strategies selected")
	}
	return out, nil
}

// UnsupportedStrategyError is returned when an unknown strategy is requested.
type UnsupportedStrategyError struct {
	Name string
}

func (e *UnsupportedStrategyError) Error() string {
	return "unsupported strategy: " + e.Name + " (supported: " + strings.Join(Names, ", ") + ")"
}

func ask(ctx context.Context, client llm.Client, model, system, user string) (string, error) {
	resp, err := client.ChatCompletion(ctx, llm.ChatRequest{
		Model:         model,
		SystemMessage: system,
		UserMessage:   user,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// answer sends the final inquiry to the answering model.
func answer(ctx context.Context, client llm.Client, model, inquiry string) (string, error) {
	text, err := llm.Complete(ctx, client, llm.ChatRequest{
		Model:         model,
		SystemMessage: AnswerPrompt,
		UserMessage:   inquiry,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
