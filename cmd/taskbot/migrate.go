package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.CloseDB(db)

		version, dirty, err := database.MigrationVersion(db.DB)
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty=%t)\n", version, dirty)
		return nil
	},
}
