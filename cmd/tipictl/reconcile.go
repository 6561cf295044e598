// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Merge Runtipi settings into the env file",
	Long: `Merge the values Runtipi persisted to state/settings.json into the
env file. Only the allow-listed keys are considered and only keys already
present in the env file are updated. The env file is backed up first.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		r, err := reconcile.NewReconciler(reconcile.DefaultKeyMappings, cfg.Backup.EnvBackupKeep)
		if err != nil {
			return err
		}

		result, err := r.Reconcile(cfg.SettingsPath(), cfg.EnvFilePath())
		if err != nil {
			return err
		}

		if len(result.Changes) == 0 {
			statusf(cmd, "Env file already up to date")
			return nil
		}
		for _, change := range result.Changes {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", change.Key, change.OldValue, change.NewValue)
		}
		statusf(cmd, "Updated %d key(s), backup at %s", len(result.Changes), result.BackupPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
