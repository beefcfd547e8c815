package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/giantswarm/survey-eval/internal/config"
)

var (
	v             = config.New()
	cfgFile       string
	currentConfig *config.Config
)

// flagKeys maps command-line flags onto configuration keys. A flag only
// overrides the configuration when it is set explicitly.
var flagKeys = map[string]string{
	"base-url":     "llm.base_url",
	"api-key":      "llm.api_key",
	"model":        "llm.model",
	"temperature":  "llm.temperature",
	"oracle-model": "oracle.model",
	"judge-model":  "judge.model",
	"repetitions":  "judge.repetitions",
	"dataset":      "sampling.dataset",
	"seed":         "sampling.seed",
	"size":         "sampling.size",
	"concurrency":  "concurrency",
	"output-dir":   "output_dir",
	"datasets-dir": "datasets_dir",
	"strategies":   "strategies",
}

var rootCmd = &cobra.Command{
	Use:   "survey-eval",
	Short: "Measure how prompting strategies change LLM accuracy on medical questions",
	Long: `survey-eval draws a reproducible evaluation set from a medical benchmark,
keeping only questions whose answer is a single diagnosable disease, rewrites each
question the way a patient would ask it, answers it with several prompting
strategies and grades the answers with an LLM judge.

All functionality is also exposed as MCP tools via 'survey-eval serve'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}

		var bindErr error
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if key, ok := flagKeys[f.Name]; ok && bindErr == nil {
				bindErr = v.BindPFlag(key, f)
			}
		})
		if bindErr != nil {
			return fmt.Errorf("bind flags: %w", bindErr)
		}

		cfg, err := config.Load(v, cfgFile)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		currentConfig = cfg
		slog.Debug("configuration loaded", "file", cfg.ConfigFile)
		return nil
	},
}

var (
	buildCommit = "unknown"
	buildDate   = "unknown"
)

// SetVersion sets the version for the root command.
func SetVersion(ver string) {
	rootCmd.Version = ver
}

// SetBuildInfo sets the commit and build date for the version command.
func SetBuildInfo(commit, date string) {
	buildCommit = commit
	buildDate = date
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "survey-eval version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSampleCmd())
	rootCmd.AddCommand(newScoreCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newConfigCmd())

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "Config file (default: ./survey-eval.yaml if present)")
	pf.BoolP("verbose", "v", false, "Enable verbose output")
	pf.String("base-url", "", "OpenAI-compatible API base URL")
	pf.String("api-key", "", "API key (or set OPENAI_API_KEY)")
	pf.String("model", "", "Answering model")
	pf.Float64("temperature", 0, "Temperature for answering")
	pf.String("output-dir", "", "Directory for results (default: results)")
	pf.String("datasets-dir", "", "External datasets directory")
	pf.Int("concurrency", 0, "Maximum in-flight LLM calls per stage (default: 8)")
}
