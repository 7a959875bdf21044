// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	authpg "github.com/keyline/keyline/internal/auth/postgres"
	"github.com/keyline/keyline/internal/config"
	"github.com/keyline/keyline/internal/store"
)

// NewCleanupCmd creates the cleanup subcommand. Expired sessions and reset
// tokens already fail validation; this sweep only reclaims storage and is
// safe to run from cron at any interval.
func NewCleanupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired sessions and reset tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			pool, err := store.Connect(ctx, cfg.Database.URL, slog.Default())
			if err != nil {
				return err
			}
			defer pool.Close()

			sessions, err := authpg.NewSessionRepository(pool.Pgx()).DeleteExpired(ctx)
			if err != nil {
				return err
			}
			resets, err := authpg.NewPasswordResetRepository(pool.Pgx()).DeleteExpired(ctx)
			if err != nil {
				return err
			}

			cmd.Printf("Removed %d expired session(s) and %d expired reset token(s)\n", sessions, resets)
			return nil
		},
	}

	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	return cmd
}
