package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"huddle/api/internal/config"
	"huddle/api/internal/store"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Long: `Apply or roll back database migrations.

The database and migrations directory come from the same configuration as
the API server (HUDDLE_CONFIG_FILE, DATABASE_URL, HUDDLE_MIGRATIONS_DIR).`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg config.Config, db *sql.DB) error {
				if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			})
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(cmd, func(ctx context.Context, cfg config.Config, db *sql.DB) error {
				if err := store.RollbackMigrations(ctx, db, cfg.MigrationsDir, steps); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 rolls back all)")
	cmd.AddCommand(down)

	return cmd
}

func withDatabase(cmd *cobra.Command, fn func(context.Context, config.Config, *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(ctx, cfg.DatabaseURL, 2)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, cfg, db)
}
