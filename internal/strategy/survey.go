package strategy

import (
	"context"
	"fmt"
	"time"

	"github.com/giantswarm/survey-eval/internal/llm"
)

// SurveyStrategy simulates a clarifying-question round before answering:
// the model drafts intake questions, a simulated patient who has the
// benchmark condition answers them, and the completed survey is appended to
// the original question.
type SurveyStrategy struct{}

func (s *SurveyStrategy) Name() string {
	return "survey"
}

func (s *SurveyStrategy) Respond(ctx context.Context, client llm.Client, model string, item Item) (*Response, error) {
	start := time.Now()

	questions, err := ask(ctx, client, model, SurveyQuestionsPrompt, item.LaypersonQuestion)
	if err != nil {
		return nil, fmt.Errorf("survey: failed to draft questions: %w", err)
	}

	filled, err := ask(ctx, client, model, SurveyAnswersPrompt(item.Pair.Answer), questions)
	if err != nil {
		return nil, fmt.Errorf("survey: failed to fill in survey: %w", err)
	}

	inquiry := item.LaypersonQuestion + "\n\n" + filled

	text, err := answer(ctx, client, model, inquiry)
	if err != nil {
		return nil, fmt.Errorf("survey: failed to answer inquiry: %w", err)
	}

	return &Response{
		Strategy: s.Name(),
		Prompt:   inquiry,
		Answer:   text,
		Duration: time.Since(start),
	}, nil
}
