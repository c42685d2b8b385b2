package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovalfantasy/ovalsync/internal/storage/postgres"
)

// migrate is replaceable in tests.
var migrate = postgres.Migrate

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "migrate",
		Short:       "Applies pending database migrations",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipApp: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := resolveConfig(cmd.Context())
			if err != nil {
				return err
			}
			if cfg.DB.DSN == "" {
				return fmt.Errorf("migrate: db.dsn (or DATABASE_URL) is not set")
			}
			if err := migrate(cmd.Context(), cfg.DB.DSN); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}
