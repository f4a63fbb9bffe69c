package main

import (
	"encoding/json"
	"fmt"

	"storage-sync/internal/db"

	"github.com/spf13/cobra"
)

// migrateCmd applies pending database migrations and exits
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return db.RunMigrations(cfg.Database.URL, cfg.Database.MigrationsPath)
	},
}

// reconcileCmd runs a single pass and prints its summary
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconciliation pass and print the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		result, err := a.sync.RunPass(ctx)
		if err != nil {
			return fmt.Errorf("reconciliation pass failed: %w", err)
		}
		return printJSON(cmd, result)
	},
}

// statusCmd prints the job state and the most recent passes without
// migrating or writing anything
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the reconciliation job state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := connectApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close(ctx)

		limit, err := cmd.Flags().GetInt32("passes")
		if err != nil {
			return err
		}

		status, err := a.sync.Status(ctx)
		if err != nil {
			return err
		}
		passes, err := a.sync.ListPasses(ctx, limit, 0)
		if err != nil {
			return err
		}

		return printJSON(cmd, map[string]any{
			"status": status,
			"passes": passes,
		})
	},
}

func init() {
	statusCmd.Flags().Int32("passes", 5, "number of recent passes to show")
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
