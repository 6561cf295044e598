// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/runtipi"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the Runtipi installation",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "Install dir:   %s\n", cfg.InstallDir)
		fmt.Fprintf(out, "Runtipi dir:   %s\n", cfg.Runtipi.Dir)

		version := "unknown"
		if data, err := os.ReadFile(cfg.VersionFilePath()); err == nil {
			version = strings.TrimSpace(string(data))
		}
		fmt.Fprintf(out, "Version:       %s\n", version)

		cli := runtipi.NewClient(cfg.Runtipi.CLIPath, cfg.Runtipi.Dir)
		if cliVersion, err := cli.Version(cmd.Context()); err == nil {
			fmt.Fprintf(out, "CLI version:   %s\n", cliVersion)
		} else {
			fmt.Fprintf(out, "CLI version:   unavailable (%v)\n", err)
		}

		envState := "missing"
		if _, err := os.Stat(cfg.EnvFilePath()); err == nil {
			envState = "present"
		}
		fmt.Fprintf(out, "Env file:      %s\n", envState)

		archives, err := newBackupManager().List("")
		if err != nil {
			return err
		}
		var total int64
		for _, a := range archives {
			total += a.Size
		}
		fmt.Fprintf(out, "Backups:       %d (%s)\n", len(archives), humanize.Bytes(uint64(total))) //nolint:gosec // G115: file sizes are non-negative
		if len(archives) > 0 {
			fmt.Fprintf(out, "Latest backup: %s\n", archives[0].Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
