package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/giantswarm/survey-eval/internal/judge"
)

var (
	headline = color.New(color.Bold).SprintFunc()
	good     = color.New(color.FgGreen).SprintFunc()
	bad      = color.New(color.FgRed).SprintFunc()
	faint    = color.New(color.Faint).SprintFunc()
)

// printScores writes one summary line per strategy.
func printScores(w io.Writer, output *judge.ScoreOutput) {
	fmt.Fprintf(w, "\n%s (%d items, %d passes, judge %s)\n",
		headline("Summary"),
		output.Metadata.Items,
		output.Metadata.Repetitions,
		output.Metadata.ScoringModel,
	)

	for _, s := range output.Strategies {
		pct := fmt.Sprintf("%6.2f%%", s.Summary.MeanPercent)
		if s.Summary.MeanPercent >= 50 {
			pct = good(pct)
		} else {
			pct = bad(pct)
		}
		fmt.Fprintf(w, "  %-12s %s  mean %.2f  range %d-%d  variance %.2f  majority %d/%d\n",
			s.Strategy,
			pct,
			s.Summary.MeanAccurate,
			s.Summary.MinAccurate,
			s.Summary.MaxAccurate,
			s.Summary.Variance,
			s.Summary.MajorityAccurate,
			output.Metadata.Items,
		)
	}
}

// printProgress redraws a single progress line.
func printProgress(w io.Writer, stage string, done, total int) {
	fmt.Fprintf(w, "\r  %s %d/%d   ", faint("["+stage+"]"), done, total)
	if done == total {
		fmt.Fprintln(w)
	}
}
