package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.openDB(); err != nil {
				return err
			}
			if err := postgres.Migrate(context.Background(), a.db); err != nil {
				return err
			}
			a.log.Info("schema applied")
			return nil
		},
	}
}
