package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dverbeek/carwise/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long:  `Bring the configured database schema up to the expected version.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// initStorage migrates as part of opening the store.
			store, err := initStorage(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			defer func() { _ = store.Close() }()

			slog.Info(cli.FormatSuccess("Database schema is up to date"))
			return nil
		},
	}
}
