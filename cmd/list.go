package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/giantswarm/survey-eval/internal/dataset"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available datasets",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := currentConfig.DatasetsDir
			names, err := dataset.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list datasets: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No datasets found.")
				return nil
			}

			fmt.Fprintf(out, "Available datasets:\n\n")
			for _, name := range names {
				ds, err := dataset.Load(name, dir)
				if err != nil {
					fmt.Fprintf(out, "  - %s (error loading: %v)\n", name, err)
					continue
				}
				fmt.Fprintf(out, "  - %s\n", name)
				fmt.Fprintf(out, "    Name: %s\n", ds.Name)
				fmt.Fprintf(out, "    Description: %s\n", ds.Description)
				fmt.Fprintf(out, "    Version: %s\n", ds.Version)
				if ds.Source != "" {
					fmt.Fprintf(out, "    Source: %s\n", ds.Source)
				}
				fmt.Fprintf(out, "    Pairs: %d\n\n", len(ds.Pairs))
			}

			return nil
		},
	}
}
