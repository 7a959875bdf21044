// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyline Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Keyline CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyline",
		Short: "Keyline - session authentication for multi-tenant platforms",
		Long: `Keyline is the authentication core of a multi-tenant account
platform: credential verification, session issuance and revocation,
and the password-reset token lifecycle.`,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	// Add subcommands
	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewCleanupCmd())

	return cmd
}
