package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"pawbook/backend/internal/config"
	"pawbook/backend/internal/store/postgres"
)

func newMigrateCmd(opts *options) *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:     "migrate",
		Short:   "Apply pending database migrations",
		GroupID: "admin",
		Args:    cobra.NoArgs,
		Long: `Apply the embedded schema migrations to the database named by
PAWBOOK_DATABASE_URL. Concurrent runs serialize on an advisory lock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := postgres.Open(cfg.DatabaseURL, postgres.PoolConfig{MaxOpenConns: 2})
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer func() { _ = postgres.Close(db) }()

			out := cmd.OutOrStdout()
			if statusOnly {
				pending, err := postgres.PendingMigrations(cmd.Context(), db)
				if err != nil {
					return err
				}
				if opts.jsonOutput {
					return printJSON(out, map[string][]string{"pending": pending})
				}
				if len(pending) == 0 {
					printSuccess(out, "Schema is up to date.")
					return nil
				}
				printWarning(out, fmt.Sprintf("%d pending migration(s):", len(pending)))
				for _, v := range pending {
					printEmptyState(out, v)
				}
				return nil
			}

			applied, err := postgres.Migrate(cmd.Context(), db)
			if err != nil {
				return err
			}
			if opts.jsonOutput {
				return printJSON(out, map[string][]string{"applied": applied})
			}
			if len(applied) == 0 {
				printSuccess(out, "Schema is up to date.")
				return nil
			}
			for _, v := range applied {
				printSuccess(out, "Applied "+v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&statusOnly, "status", false, "list pending migrations without applying them")
	return cmd
}
