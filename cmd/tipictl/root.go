// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/runtipi-contrib/tipictl/internal/backup"
	"github.com/runtipi-contrib/tipictl/internal/config"
	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// timeRound trims durations in status output to something readable.
const timeRound = 10 * time.Millisecond

var (
	cfg *config.Config

	flagQuiet    bool
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:           "tipictl",
	Short:         "Runtipi lifecycle tooling for ASUSTOR App Central",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		logCfg := logging.Config{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			Quiet:  cfg.Logging.Quiet || flagQuiet,
		}
		if flagLogLevel != "" {
			logCfg.Level = flagLogLevel
		}
		logging.Init(logCfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress status output")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
}

// newBackupManager builds the archive manager from the loaded configuration.
func newBackupManager() *backup.Manager {
	return backup.NewManager(backup.Config{
		Dir:              cfg.Backup.Dir,
		Keep:             cfg.Backup.Keep,
		CompressionLevel: cfg.Backup.CompressionLevel,
		GuardFile:        ".env",
		SafetyItems:      cfg.DefaultBackupItems(),
		SensitiveFiles:   []string{".env", "state/settings.json"},
	})
}

// statusf prints an operator status line unless quiet mode is set.
func statusf(cmd *cobra.Command, format string, args ...any) {
	if flagQuiet || cfg.Logging.Quiet {
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
}

// confirm asks the operator to type "yes" before a destructive operation.
// Anything else, including EOF, withholds consent.
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s Type 'yes' to continue: ", prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
