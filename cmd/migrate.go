package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"raceday-api/config"
	"raceday-api/database"
)

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			setupLogging(cfg)

			provider, err := secretsProvider(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			db, err := openDatabase(cmd.Context(), cfg, provider)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}

			if err := database.Migrate(db); err != nil {
				return fmt.Errorf("migrate database: %w", err)
			}
			slog.Info("database schema is up to date")
			return nil
		},
	}
}
