package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/eventease/internal/database"
)

var (
	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE:  migrateUp,
	}

	rollbackSteps int
)

func init() {
	migrateCmd.Flags().IntVar(&rollbackSteps, "down", 0, "roll back this many migrations instead of applying")
}

func migrateUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pool, err := database.NewPool(cmd.Context(), cfg.DB)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if rollbackSteps > 0 {
		return database.Rollback(cmd.Context(), pool, rollbackSteps)
	}
	return database.Migrate(cmd.Context(), pool)
}
