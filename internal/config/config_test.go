// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.InstallDir != "/usr/local/AppCentral/io.runtipi" {
		t.Errorf("unexpected default install_dir: %s", cfg.InstallDir)
	}
	if cfg.Backup.Keep != 5 {
		t.Errorf("expected backup.keep=5, got %d", cfg.Backup.Keep)
	}
	if cfg.Backup.EnvBackupKeep != 5 {
		t.Errorf("expected backup.env_backup_keep=5, got %d", cfg.Backup.EnvBackupKeep)
	}
	if cfg.Backup.CompressionLevel != 6 {
		t.Errorf("expected backup.compression_level=6, got %d", cfg.Backup.CompressionLevel)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "console" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
}

func TestApplyDerivedPaths(t *testing.T) {
	cfg := defaultConfig()
	cfg.InstallDir = "/volume1/AppCentral/io.runtipi"
	cfg.applyDerivedPaths()

	if cfg.Runtipi.Dir != "/volume1/AppCentral/io.runtipi/runtipi" {
		t.Errorf("unexpected derived runtipi dir: %s", cfg.Runtipi.Dir)
	}
	if cfg.Runtipi.CLIPath != filepath.Join(cfg.Runtipi.Dir, "runtipi-cli") {
		t.Errorf("unexpected derived cli path: %s", cfg.Runtipi.CLIPath)
	}
	if cfg.Backup.Dir != filepath.Join(cfg.Runtipi.Dir, "backup") {
		t.Errorf("unexpected derived backup dir: %s", cfg.Backup.Dir)
	}
}

func TestApplyDerivedPathsRespectsOverrides(t *testing.T) {
	cfg := defaultConfig()
	cfg.Runtipi.Dir = "/data/runtipi"
	cfg.Backup.Dir = "/mnt/usb/backups"
	cfg.applyDerivedPaths()

	if cfg.Runtipi.Dir != "/data/runtipi" {
		t.Errorf("override lost: %s", cfg.Runtipi.Dir)
	}
	if cfg.Backup.Dir != "/mnt/usb/backups" {
		t.Errorf("backup dir override lost: %s", cfg.Backup.Dir)
	}
	if cfg.Runtipi.CLIPath != "/data/runtipi/runtipi-cli" {
		t.Errorf("cli path should derive from overridden dir: %s", cfg.Runtipi.CLIPath)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "relative install dir",
			mutate:  func(c *Config) { c.InstallDir = "relative/path" },
			wantErr: true,
		},
		{
			name:    "zero keep count",
			mutate:  func(c *Config) { c.Backup.Keep = 0 },
			wantErr: true,
		},
		{
			name:    "compression level out of range",
			mutate:  func(c *Config) { c.Backup.CompressionLevel = 12 },
			wantErr: true,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.applyDerivedPaths()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"APKG_PKG_DIR", "install_dir"},
		{"RUNTIPI_BACKUP_ROOT", "backup.dir"},
		{"TIPICTL_LOG_LEVEL", "logging.level"},
		{"TIPICTL_QUIET", "logging.quiet"},
		{"PATH", ""},
		{"HOME", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.key); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestLoadWithEnvOverride(t *testing.T) {
	t.Setenv("APKG_PKG_DIR", "/volume1/.@plugins/AppCentral/io.runtipi")
	t.Setenv("RUNTIPI_BACKUP_ROOT", "/volume1/backups/runtipi")
	t.Setenv("TIPICTL_BACKUP_KEEP", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.InstallDir != "/volume1/.@plugins/AppCentral/io.runtipi" {
		t.Errorf("APKG_PKG_DIR not applied: %s", cfg.InstallDir)
	}
	if cfg.Backup.Dir != "/volume1/backups/runtipi" {
		t.Errorf("RUNTIPI_BACKUP_ROOT not applied: %s", cfg.Backup.Dir)
	}
	if cfg.Backup.Keep != 9 {
		t.Errorf("TIPICTL_BACKUP_KEEP not applied: %d", cfg.Backup.Keep)
	}
	if cfg.EnvFilePath() != filepath.Join(cfg.Runtipi.Dir, ".env") {
		t.Errorf("unexpected env file path: %s", cfg.EnvFilePath())
	}
}

func TestLoadWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "tipictl.yaml")
	content := []byte("backup:\n  keep: 3\nlogging:\n  level: debug\n")
	if err := os.WriteFile(configPath, content, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Backup.Keep != 3 {
		t.Errorf("config file keep not applied: %d", cfg.Backup.Keep)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("config file log level not applied: %s", cfg.Logging.Level)
	}
}

func TestBackupItemSets(t *testing.T) {
	cfg := defaultConfig()

	def := cfg.DefaultBackupItems()
	full := cfg.FullBackupItems()

	if len(full) <= len(def) {
		t.Errorf("full set should extend default set: %d vs %d", len(full), len(def))
	}

	seen := make(map[string]bool)
	for _, item := range full {
		if seen[item] {
			t.Errorf("duplicate item in full set: %s", item)
		}
		seen[item] = true
	}
	for _, item := range def {
		if !seen[item] {
			t.Errorf("default item %s missing from full set", item)
		}
	}
}
