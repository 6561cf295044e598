// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// tipictl packages Runtipi for ASUSTOR App Central: it implements the App
// Central lifecycle hooks and the operator commands (backup, restore, status,
// config-check, purge, reconcile) around a Runtipi installation.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
