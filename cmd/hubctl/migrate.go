package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/reunite/hub/pkg/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply the hub's embedded SQL migrations, then River's job queue schema.
Already applied migrations are skipped, so the command is safe to re-run.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	e, err := connect(ctx, false)
	if err != nil {
		return err
	}
	defer e.close()

	if err := database.Migrate(ctx, e.db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")

	return nil
}
