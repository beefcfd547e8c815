package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/giantswarm/survey-eval/internal/judge"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/strategy"
)

func newRunCmd() *cobra.Command {
	var (
		noScore bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sample a dataset and compare prompting strategies on it",
		Long: `Run a full experiment: sample disease questions, rewrite them as a patient
would ask, answer them with each strategy and grade the answers.

Results are written to <output-dir>/<run-id>/ as results.csv, results_scores.json
and a resultset.json manifest that includes the sampling draw trace.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			cfg := currentConfig
			out := cmd.OutOrStdout()

			strategies, err := strategy.Resolve(cfg.Strategies)
			if err != nil {
				return err
			}

			client := newLLMClient(cfg)
			ds, sample, err := drawSample(ctx, cfg, client, out)
			if err != nil {
				return err
			}

			r := pipeline.NewRunner(client, cfg.LLM.Model, strategies, cfg.OutputDir)
			r.SetConcurrency(cfg.Concurrency)
			if !noScore {
				r.SetJudge(judge.NewJudge(client, judge.Config{
					Model:       cfg.JudgeModel(),
					Repetitions: cfg.Judge.Repetitions,
					Concurrency: cfg.Concurrency,
				}))
			}
			r.SetProgressFunc(func(stage string, done, total int) {
				printProgress(out, stage, done, total)
			})

			names := make([]string, 0, len(strategies))
			for _, s := range strategies {
				names = append(names, s.Name())
			}
			fmt.Fprintf(out, "\nModel: %s\n", cfg.LLM.Model)
			fmt.Fprintf(out, "Strategies: %s\n\n", strings.Join(names, ", "))

			run, err := r.Run(ctx, pipeline.Input{
				Dataset:     ds.Name,
				Sample:      sample,
				OracleModel: cfg.OracleModel(),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\n%s\n", headline("Experiment completed."))
			fmt.Fprintf(out, "Run ID: %s\n", run.ID)
			fmt.Fprintf(out, "Duration: %s\n", run.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "Results: %s\n", run.ResultsFile)
			if run.Scores != nil {
				fmt.Fprintf(out, "Scores: %s\n", run.ScoresFile)
				printScores(out, run.Scores)
			}

			slog.Info("experiment complete", "run_id", run.ID)
			return nil
		},
	}

	addSamplingFlags(cmd)
	cmd.Flags().StringSlice("strategies", nil, "Strategies to compare: "+strings.Join(strategy.Names, ", ")+" (default: baseline,survey)")
	cmd.Flags().String("judge-model", "", "Model that grades answers (default: --model)")
	cmd.Flags().Int("repetitions", 0, "Grading passes per strategy (default: 3)")
	cmd.Flags().BoolVar(&noScore, "no-score", false, "Skip grading")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall timeout for the run (e.g. 30m, 1h). 0 means no timeout")

	return cmd
}
