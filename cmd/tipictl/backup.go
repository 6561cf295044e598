// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/backup"
)

var (
	flagBackupFull bool
	flagBackupDest string
	flagBackupKeep int
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Archive the Runtipi state directories",
	Long: `Archive the Runtipi state directories into a timestamped tar.gz.

The standard backup covers the env file, state, traefik, and user-config.
With --full it also includes app-data, installed apps, and repository
mirrors, which can be very large. Older archives beyond the retention
count are pruned after a successful backup.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if flagBackupKeep != 0 {
			cfg.Backup.Keep = flagBackupKeep
		}

		items := cfg.DefaultBackupItems()
		if flagBackupFull {
			items = cfg.FullBackupItems()
		}

		m := newBackupManager()
		archivePath, err := m.CreateArchive(cmd.Context(), cfg.Runtipi.Dir, items, flagBackupDest, backup.TagBackup)
		if err != nil {
			return err
		}

		if info, err := os.Stat(archivePath); err == nil {
			statusf(cmd, "Backup created: %s (%s)", archivePath, humanize.Bytes(uint64(info.Size()))) //nolint:gosec // G115: file sizes are non-negative
		} else {
			statusf(cmd, "Backup created: %s", archivePath)
		}
		return nil
	},
}

func init() {
	backupCmd.Flags().BoolVar(&flagBackupFull, "full", false, "include app-data, apps, and repos")
	backupCmd.Flags().StringVar(&flagBackupDest, "dest", "", "destination directory (default: configured backup dir)")
	backupCmd.Flags().IntVar(&flagBackupKeep, "keep", 0, "archives to retain (default: configured retention)")
	rootCmd.AddCommand(backupCmd)
}
