package server

import (
	"github.com/giantswarm/survey-eval/internal/config"
	"github.com/giantswarm/survey-eval/internal/llm"
)

// ServerContext holds shared dependencies for MCP tool handlers.
type ServerContext struct {
	LLMClient llm.Client
	Config    *config.Config
}

// OutputDir returns the directory that run results are confined to.
func (sc *ServerContext) OutputDir() string {
	if sc.Config == nil || sc.Config.OutputDir == "" {
		return "results"
	}
	return sc.Config.OutputDir
}

// DatasetsDir returns the external datasets directory, if any.
func (sc *ServerContext) DatasetsDir() string {
	if sc.Config == nil {
		return ""
	}
	return sc.Config.DatasetsDir
}
