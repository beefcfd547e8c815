package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/giantswarm/survey-eval/internal/config"
	"github.com/giantswarm/survey-eval/internal/dataset"
	"github.com/giantswarm/survey-eval/internal/llm"
	"github.com/giantswarm/survey-eval/internal/oracle"
	"github.com/giantswarm/survey-eval/internal/pipeline"
	"github.com/giantswarm/survey-eval/internal/sampler"
)

func addSamplingFlags(cmd *cobra.Command) {
	cmd.Flags().String("dataset", "", "Dataset name (default: medqa-usmle-sample)")
	cmd.Flags().Int("size", 0, "Number of disease questions to sample (default: from config)")
	cmd.Flags().Int64("seed", 0, "Sampling seed (default: 100)")
	cmd.Flags().String("oracle-model", "", "Model that classifies answers (default: --model)")
}

func newSampleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Draw an evaluation set without running the experiment",
		Long: `Draw questions from the dataset in seeded random order and keep those whose
answer the oracle model classifies as a single diagnosable disease.

The sampled set is written as CSV together with a JSON trace of every draw.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := currentConfig
			out := cmd.OutOrStdout()

			ds, res, err := drawSample(cmd.Context(), cfg, newLLMClient(cfg), out)
			if err != nil {
				return err
			}

			files, err := pipeline.WriteSample(cfg.OutputDir, ds.Name, res)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "\nAccepted %s of %d draws.\n", good(len(res.Accepted)), len(res.Draws))
			fmt.Fprintf(out, "Sample: %s\n", files.SampleCSV)
			fmt.Fprintf(out, "Trace:  %s\n", files.TraceJSON)
			return nil
		},
	}

	addSamplingFlags(cmd)
	return cmd
}

// drawSample loads the configured dataset and samples it with the disease
// oracle, reporting each draw on w.
func drawSample(ctx context.Context, cfg *config.Config, client llm.Client, w io.Writer) (*dataset.Dataset, *sampler.Result, error) {
	ds, err := dataset.Load(cfg.Sampling.Dataset, cfg.DatasetsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	fmt.Fprintf(w, "Dataset: %s (%d pairs)\n", ds.Name, len(ds.Pairs))
	fmt.Fprintf(w, "Sampling %d disease questions with seed %d (oracle: %s)\n",
		cfg.Sampling.Size, cfg.Sampling.Seed, cfg.OracleModel())

	o := oracle.New(client, oracle.Config{Model: cfg.OracleModel()})
	res, err := sampler.Sample(ctx, cfg.Sampling.Size, ds.Pairs, cfg.Sampling.Seed, o.Classify,
		sampler.WithDrawFunc(func(d sampler.Draw, accepted, requested int) {
			printProgress(w, "sample", accepted, requested)
		}),
	)
	if err != nil {
		var insufficient *sampler.InsufficientCandidatesError
		if errors.As(err, &insufficient) {
			return nil, nil, fmt.Errorf("dataset %q cannot supply %d disease questions: %w",
				ds.Name, cfg.Sampling.Size, err)
		}
		return nil, nil, fmt.Errorf("sampling failed: %w", err)
	}
	return ds, res, nil
}
