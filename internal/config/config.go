// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package config defines the tipictl configuration and loads it with Koanf v2
// layered sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
//
// The resulting Config struct is constructed once in main and passed into each
// component; no component reads the process environment on its own.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where a config file is searched in order
// of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"tipictl.yaml",
	"/usr/local/AppCentral/io.runtipi/tipictl.yaml",
	"/etc/tipictl/config.yaml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "TIPICTL_CONFIG"

// Config is the complete tipictl configuration.
type Config struct {
	// InstallDir is the package installation directory provided by App
	// Central in APKG_PKG_DIR.
	InstallDir string `koanf:"install_dir" validate:"required"`

	Runtipi RuntipiConfig `koanf:"runtipi"`
	Backup  BackupConfig  `koanf:"backup"`
	Logging LoggingConfig `koanf:"logging"`
}

// RuntipiConfig locates the managed Runtipi installation.
type RuntipiConfig struct {
	// Dir is the Runtipi data directory. Empty means <install_dir>/runtipi.
	Dir string `koanf:"dir"`

	// CLIPath is the platform CLI binary. Empty means <dir>/runtipi-cli.
	CLIPath string `koanf:"cli_path"`
}

// BackupConfig controls archive creation and retention.
type BackupConfig struct {
	// Dir is where archives are written. Empty means <runtipi dir>/backup.
	// Overridable via RUNTIPI_BACKUP_ROOT, the single backup-root override
	// required by the filesystem contract.
	Dir string `koanf:"dir"`

	// Keep is how many archives to retain per tag.
	Keep int `koanf:"keep" validate:"min=1"`

	// EnvBackupKeep is how many pre-reconcile copies of the env file to keep.
	EnvBackupKeep int `koanf:"env_backup_keep" validate:"min=1"`

	// CompressionLevel is the gzip level for archives (1-9).
	CompressionLevel int `koanf:"compression_level" validate:"min=1,max=9"`
}

// LoggingConfig mirrors logging.Config for the koanf layer.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled"`
	Format string `koanf:"format" validate:"oneof=console json"`
	Quiet  bool   `koanf:"quiet"`
}

// defaultConfig returns a Config with all default values. Defaults are applied
// first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		InstallDir: "/usr/local/AppCentral/io.runtipi",
		Runtipi: RuntipiConfig{
			Dir:     "",
			CLIPath: "",
		},
		Backup: BackupConfig{
			Dir:              "",
			Keep:             5,
			EnvBackupKeep:    5,
			CompressionLevel: 6,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Quiet:  false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it and resolves derived paths.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.applyDerivedPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unknown variables map to the empty string and are ignored, so unrelated
// process environment never leaks into the configuration.
//
// Examples:
//   - APKG_PKG_DIR -> install_dir (the App Central hook contract)
//   - RUNTIPI_BACKUP_ROOT -> backup.dir
//   - TIPICTL_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	mappings := map[string]string{
		"apkg_pkg_dir":        "install_dir",
		"runtipi_dir":         "runtipi.dir",
		"runtipi_cli_path":    "runtipi.cli_path",
		"runtipi_backup_root": "backup.dir",
		"tipictl_backup_keep": "backup.keep",
		"tipictl_env_backups": "backup.env_backup_keep",
		"tipictl_gzip_level":  "backup.compression_level",
		"tipictl_log_level":   "logging.level",
		"tipictl_log_format":  "logging.format",
		"tipictl_quiet":       "logging.quiet",
	}
	return mappings[strings.ToLower(key)]
}

// applyDerivedPaths fills in paths that default relative to other settings.
func (c *Config) applyDerivedPaths() {
	if c.Runtipi.Dir == "" {
		c.Runtipi.Dir = filepath.Join(c.InstallDir, "runtipi")
	}
	if c.Runtipi.CLIPath == "" {
		c.Runtipi.CLIPath = filepath.Join(c.Runtipi.Dir, "runtipi-cli")
	}
	if c.Backup.Dir == "" {
		c.Backup.Dir = filepath.Join(c.Runtipi.Dir, "backup")
	}
}

// Well-known locations inside the Runtipi data directory. The layout is fixed
// by the platform: logs/, backup/, state/, traefik/, user-config/ at the root,
// the env file and settings document at the paths below.
const (
	envFileName     = ".env"
	settingsRelPath = "state/settings.json"
	versionFileName = "VERSION"
)

// EnvFilePath is the environment file consumed by the Runtipi launcher.
func (c *Config) EnvFilePath() string {
	return filepath.Join(c.Runtipi.Dir, envFileName)
}

// SettingsPath is the JSON settings document maintained by Runtipi.
func (c *Config) SettingsPath() string {
	return filepath.Join(c.Runtipi.Dir, settingsRelPath)
}

// VersionFilePath holds the installed Runtipi version string.
func (c *Config) VersionFilePath() string {
	return filepath.Join(c.Runtipi.Dir, versionFileName)
}

// StateDirs lists the top-level entries of the data directory created at
// install time.
func (c *Config) StateDirs() []string {
	return []string{"logs", "backup", "state", "traefik", "user-config"}
}

// DefaultBackupItems are the entries included in a standard backup.
func (c *Config) DefaultBackupItems() []string {
	return []string{".env", "state", "traefik", "user-config"}
}

// FullBackupItems extends the standard set with application data, installed
// apps, and repository mirrors.
func (c *Config) FullBackupItems() []string {
	return append(c.DefaultBackupItems(), "app-data", "apps", "repos")
}

// Validate checks the configuration using struct tags plus cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if !filepath.IsAbs(c.InstallDir) {
		return fmt.Errorf("install_dir must be an absolute path, got: %s", c.InstallDir)
	}
	if !filepath.IsAbs(c.Runtipi.Dir) {
		return fmt.Errorf("runtipi.dir must be an absolute path, got: %s", c.Runtipi.Dir)
	}
	if !filepath.IsAbs(c.Backup.Dir) {
		return fmt.Errorf("backup.dir must be an absolute path, got: %s", c.Backup.Dir)
	}

	return nil
}
