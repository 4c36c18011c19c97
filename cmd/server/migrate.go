package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"marketroles/internal/platform/postgres"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	var status bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if a.db == nil {
				return errors.New("migrate requires postgres storage")
			}
			if status {
				migrations, err := postgres.MigrationStatus(cmd.Context(), a.db)
				if err != nil {
					return err
				}
				for _, m := range migrations {
					fmt.Fprintf(cmd.OutOrStdout(), "%-8d %-10s %s\n", m.Source.Version, m.State, m.Source.Path)
				}
				return nil
			}
			if err := postgres.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			a.logger.InfoContext(cmd.Context(), "migrations applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "print the migration status instead of migrating")
	return cmd
}
