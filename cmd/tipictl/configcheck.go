// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configCheckCmd = &cobra.Command{
	Use:   "config-check",
	Short: "Validate the configuration and show resolved paths",
	RunE: func(cmd *cobra.Command, _ []string) error {
		// Loading already validated; anything invalid failed before we got
		// here. What remains is checking the paths point at a real install.
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "install_dir:       %s\n", cfg.InstallDir)
		fmt.Fprintf(out, "runtipi.dir:       %s\n", cfg.Runtipi.Dir)
		fmt.Fprintf(out, "runtipi.cli_path:  %s\n", cfg.Runtipi.CLIPath)
		fmt.Fprintf(out, "backup.dir:        %s\n", cfg.Backup.Dir)
		fmt.Fprintf(out, "backup.keep:       %d\n", cfg.Backup.Keep)
		fmt.Fprintf(out, "env file:          %s\n", cfg.EnvFilePath())
		fmt.Fprintf(out, "settings:          %s\n", cfg.SettingsPath())

		problems := 0
		checks := []struct {
			name string
			path string
		}{
			{"runtipi directory", cfg.Runtipi.Dir},
			{"runtipi-cli", cfg.Runtipi.CLIPath},
			{"env file", cfg.EnvFilePath()},
		}
		for _, check := range checks {
			if _, err := os.Stat(check.path); err != nil {
				fmt.Fprintf(out, "PROBLEM: %s not found at %s\n", check.name, check.path)
				problems++
			}
		}

		if problems > 0 {
			return fmt.Errorf("configuration check found %d problem(s)", problems)
		}
		statusf(cmd, "Configuration OK")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCheckCmd)
}
