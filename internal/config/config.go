// Package config resolves the runtime configuration from defaults, an
// optional YAML file, SURVEY_EVAL_* environment variables and command flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/giantswarm/survey-eval/internal/llm"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "SURVEY_EVAL"

// Config is the resolved configuration.
type Config struct {
	LLM         LLMConfig      `mapstructure:"llm"`
	Oracle      ModelConfig    `mapstructure:"oracle"`
	Judge       JudgeConfig    `mapstructure:"judge"`
	Sampling    SamplingConfig `mapstructure:"sampling"`
	Concurrency int            `mapstructure:"concurrency"`
	OutputDir   string         `mapstructure:"output_dir"`
	DatasetsDir string         `mapstructure:"datasets_dir"`
	Strategies  []string       `mapstructure:"strategies"`

	// ConfigFile is the file the values were read from, if any.
	ConfigFile string `mapstructure:"-"`
}

// LLMConfig configures the OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL      string  `mapstructure:"base_url"`
	APIKey       string  `mapstructure:"api_key"`
	Organization string  `mapstructure:"organization"`
	Model        string  `mapstructure:"model"`
	Temperature  float64 `mapstructure:"temperature"`
}

// ModelConfig selects the model for a helper role. An empty Model falls back
// to the answering model.
type ModelConfig struct {
	Model string `mapstructure:"model"`
}

// JudgeConfig configures grading.
type JudgeConfig struct {
	Model       string `mapstructure:"model"`
	Repetitions int    `mapstructure:"repetitions"`
}

// SamplingConfig configures the evaluation set.
type SamplingConfig struct {
	Dataset string `mapstructure:"dataset"`
	Seed    int64  `mapstructure:"seed"`
	Size    int    `mapstructure:"size"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.organization", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.0)
	v.SetDefault("oracle.model", "")
	v.SetDefault("judge.model", "")
	v.SetDefault("judge.repetitions", 3)
	v.SetDefault("sampling.dataset", "medqa-usmle-sample")
	v.SetDefault("sampling.seed", 100)
	v.SetDefault("sampling.size", 20)
	v.SetDefault("concurrency", 8)
	v.SetDefault("output_dir", "results")
	v.SetDefault("datasets_dir", "")
	v.SetDefault("strategies", []string{"baseline", "survey"})
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads path into v when it is set and decodes the result. A missing
// default config file is not an error; a missing explicit one is.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		v.SetConfigName("survey-eval")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to load config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()
	cfg.Strategies = splitList(cfg.Strategies)

	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	return &cfg, nil
}

// splitList flattens comma-separated entries, which is how a list arrives
// from an environment variable or a single flag value.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.LLM.Model == "":
		return fmt.Errorf("llm.model must be set")
	case c.Sampling.Size < 0:
		return fmt.Errorf("sampling.size must not be negative, got %d", c.Sampling.Size)
	case c.Concurrency <= 0:
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	case c.Judge.Repetitions <= 0:
		return fmt.Errorf("judge.repetitions must be positive, got %d", c.Judge.Repetitions)
	case c.OutputDir == "":
		return fmt.Errorf("output_dir must be set")
	}
	return nil
}

// OracleModel returns the model used for disease classification.
func (c *Config) OracleModel() string {
	if c.Oracle.Model != "" {
		return c.Oracle.Model
	}
	return c.LLM.Model
}

// JudgeModel returns the model used for grading.
func (c *Config) JudgeModel() string {
	if c.Judge.Model != "" {
		return c.Judge.Model
	}
	return c.LLM.Model
}

// ClientOptions converts the endpoint settings into llm client options.
func (c *Config) ClientOptions() []llm.Option {
	opts := []llm.Option{
		llm.WithModel(c.LLM.Model),
		llm.WithTemperature(c.LLM.Temperature),
	}
	if c.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(c.LLM.BaseURL))
	}
	if c.LLM.APIKey != "" {
		opts = append(opts, llm.WithAPIKey(c.LLM.APIKey))
	}
	if c.LLM.Organization != "" {
		opts = append(opts, llm.WithOrganization(c.LLM.Organization))
	}
	return opts
}

// Redacted returns a copy that is safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.LLM.APIKey != "" {
		out.LLM.APIKey = "<redacted>"
	}
	return out
}
