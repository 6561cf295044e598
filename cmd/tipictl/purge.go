// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/logging"
	"github.com/runtipi-contrib/tipictl/internal/runtipi"
)

var flagPurgeYes bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all Runtipi data, including apps and backups",
	Long: `Delete the entire Runtipi data directory: env file, state, installed
apps, application data, and every backup archive. This is irreversible.
The stack is stopped first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !flagPurgeYes {
			prompt := fmt.Sprintf("This will permanently delete everything under %s, backups included.", cfg.Runtipi.Dir)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
				return fmt.Errorf("purge aborted: not confirmed")
			}
		}

		cli := runtipi.NewClient(cfg.Runtipi.CLIPath, cfg.Runtipi.Dir)
		if err := cli.Stop(cmd.Context()); err != nil {
			logging.Warn().Err(err).Msg("Stop before purge failed, continuing")
		}

		entries, err := os.ReadDir(cfg.Runtipi.Dir)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", cfg.Runtipi.Dir, err)
		}
		for _, entry := range entries {
			path := filepath.Join(cfg.Runtipi.Dir, entry.Name())
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("failed to remove %s: %w", path, err)
			}
		}

		statusf(cmd, "Purged %s", cfg.Runtipi.Dir)
		return nil
	},
}

func init() {
	purgeCmd.Flags().BoolVarP(&flagPurgeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}
