package cli

import (
	"fmt"

	"barakahAPI/internal/config"
	"barakahAPI/internal/logger"
	"barakahAPI/internal/store/postgres"

	"github.com/spf13/cobra"
)

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(func(c *config.Config) { c.Store = config.StorePostgres })
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				logger.Error().Err(err).Msg("migration failed")
				return err
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "Schema is up to date")
				return nil
			}
			for _, version := range applied {
				fmt.Fprintf(out, "Applied %s\n", version)
			}
			return nil
		},
	}
}
