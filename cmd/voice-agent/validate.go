package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the configuration is complete",
		Long: `Load the configuration from the environment (and .env when present) and
report every required variable that is missing. Exits 1 when anything is
missing or invalid.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr(), overrides{})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (environment=%s, database=%s, interaction_store=%s)\n",
				cfg.Environment, cfg.Database.LogString(), cfg.Pipeline.InteractionStore)
			return nil
		},
	}
}
