// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/hooks"
)

var hookCmd = &cobra.Command{
	Use:       "hook <event>",
	Short:     "Run an App Central lifecycle event",
	Long:      "Run one lifecycle event. App Central's hook scripts call this with the event name; the exit code is reported back to the framework.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: hooks.Events,
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := hooks.NewRunner(cfg)
		if err != nil {
			return err
		}
		return runner.Run(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(hookCmd)
}
