// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/backup"
)

var (
	flagRestoreList   bool
	flagRestoreDryRun bool
	flagRestoreFile   string
	flagRestoreYes    bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore a backup archive over the Runtipi state",
	Long: `Restore a backup archive over the Runtipi state directories.

Without --file the most recent backup archive is used. Extraction is an
overlay: files present in the archive overwrite their counterparts, files
that only exist locally survive. A pre-restore safety snapshot of the
current state is attempted first. Stop the stack before restoring.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m := newBackupManager()

		if flagRestoreList {
			return listBackups(cmd, m)
		}

		opts := backup.RestoreOptions{DryRun: flagRestoreDryRun}

		if !flagRestoreDryRun && !flagRestoreYes {
			prompt := fmt.Sprintf("This will overwrite Runtipi state under %s.", cfg.Runtipi.Dir)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), prompt) {
				return fmt.Errorf("restore aborted: not confirmed")
			}
		}

		result, err := m.RestoreArchive(cmd.Context(), flagRestoreFile, cfg.Runtipi.Dir, opts)
		if err != nil {
			return err
		}

		if flagRestoreDryRun {
			statusf(cmd, "Archive %s contains %d entries:", result.ArchivePath, len(result.Entries))
			for _, entry := range result.Entries {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+entry)
			}
			return nil
		}

		statusf(cmd, "Restored %d files from %s in %s", result.FilesRestored, result.ArchivePath, result.Duration.Round(timeRound))
		if result.SafetyArchivePath != "" {
			statusf(cmd, "Pre-restore snapshot: %s", result.SafetyArchivePath)
		}
		for _, warning := range result.Warnings {
			statusf(cmd, "Warning: %s", warning)
		}
		return nil
	},
}

// listBackups prints every archive in the backup directory, newest first.
func listBackups(cmd *cobra.Command, m *backup.Manager) error {
	archives, err := m.List("")
	if err != nil {
		return err
	}
	if len(archives) == 0 {
		statusf(cmd, "No archives in %s", cfg.Backup.Dir)
		return nil
	}

	for _, a := range archives {
		fmt.Fprintf(cmd.OutOrStdout(), "%s  %8s  %s\n",
			a.CreatedAt.Format("2006-01-02 15:04:05"),
			humanize.Bytes(uint64(a.Size)), //nolint:gosec // G115: file sizes are non-negative
			a.Name)
	}
	return nil
}

func init() {
	restoreCmd.Flags().BoolVar(&flagRestoreList, "list", false, "list available archives and exit")
	restoreCmd.Flags().BoolVar(&flagRestoreDryRun, "dry-run", false, "list archive contents without extracting")
	restoreCmd.Flags().StringVar(&flagRestoreFile, "file", "", "archive to restore (default: most recent backup)")
	restoreCmd.Flags().BoolVarP(&flagRestoreYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(restoreCmd)
}
