package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/student-portal/internal/config"
	"github.com/example/student-portal/internal/logging"
	"github.com/example/student-portal/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger, err := logging.NewLogger(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		defer logger.Sync() //nolint:errcheck

		db, err := repository.Open(cmd.Context(), cfg.DBDriver, cfg.DatabaseDSN, false, logger)
		if err != nil {
			return err
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		return repository.Migrate(cmd.Context(), db, logger)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
