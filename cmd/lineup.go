package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLineupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lineup <match-id>",
		Short: "Scrapes one match lineup and prints it as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			lineup, err := appInstance.Lineups().Scrape(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("scrape lineup %s: %w", args[0], err)
			}
			return printJSON(cmd.OutOrStdout(), lineup)
		},
	}
}
