package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/giantswarm/survey-eval/internal/judge"
)

func newScoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score <results.csv>",
		Short: "Re-grade a results file using an LLM as judge",
		Long: `Grade every strategy column of an existing results.csv. Each strategy is
graded --repetitions times; the majority verdict is written back into the CSV
and per-pass statistics go to <results>_scores.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resultsFile := args[0]
			if _, err := os.Stat(resultsFile); errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("results file not found: %s", resultsFile)
			}

			cfg := currentConfig
			j := judge.NewJudge(newLLMClient(cfg), judge.Config{
				Model:       cfg.JudgeModel(),
				Repetitions: cfg.Judge.Repetitions,
				Concurrency: cfg.Concurrency,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Scoring: %s\n", resultsFile)
			fmt.Fprintf(out, "Model: %s\n", j.Config().Model)
			fmt.Fprintf(out, "Repetitions: %d\n", j.Config().Repetitions)

			output, err := j.ScoreFile(cmd.Context(), resultsFile)
			if err != nil {
				return err
			}

			scoresFile, err := judge.WriteScoreFile(output, resultsFile)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nScores written to: %s\n", scoresFile)
			printScores(out, output)
			return nil
		},
	}

	cmd.Flags().String("judge-model", "", "Model that grades answers (default: --model)")
	cmd.Flags().Int("repetitions", 0, "Grading passes per strategy (default: 3)")

	return cmd
}
