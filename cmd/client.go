package cmd

import (
	"github.com/giantswarm/survey-eval/internal/config"
	"github.com/giantswarm/survey-eval/internal/llm"
)

// newLLMClient creates the LLM client for a resolved configuration. The API
// key has already fallen back to OPENAI_API_KEY during config loading.
func newLLMClient(cfg *config.Config) llm.Client {
	return llm.NewOpenAIClient(cfg.ClientOptions()...)
}
