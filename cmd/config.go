package cmd

import (
	"fmt"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Show the configuration after defaults, the config file, SURVEY_EVAL_*
environment variables and flags have been applied. The API key is redacted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if currentConfig.ConfigFile != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Config file: %s\n", currentConfig.ConfigFile)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Config file: none (defaults and environment)")
			}

			_, err := pp.Fprintln(cmd.OutOrStdout(), currentConfig.Redacted())
			return err
		},
	}
}
