// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package hooks

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/runtipi-contrib/tipictl/internal/backup"
	"github.com/runtipi-contrib/tipictl/internal/config"
	"github.com/runtipi-contrib/tipictl/internal/envfile"
)

// newTestRunner wires a runner against a throwaway installation with a stub
// CLI that always succeeds.
func newTestRunner(t *testing.T) (*Runner, *config.Config) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}

	installDir := t.TempDir()
	runtipiDir := filepath.Join(installDir, "runtipi")
	if err := os.MkdirAll(runtipiDir, 0o750); err != nil {
		t.Fatal(err)
	}

	cliPath := filepath.Join(installDir, "runtipi-cli")
	if err := os.WriteFile(cliPath, []byte("#!/bin/sh\nexit 0\n"), 0o755); err != nil { //nolint:gosec // G306: stub must be executable
		t.Fatal(err)
	}

	cfg := &config.Config{
		InstallDir: installDir,
		Runtipi: config.RuntipiConfig{
			Dir:     runtipiDir,
			CLIPath: cliPath,
		},
		Backup: config.BackupConfig{
			Dir:              filepath.Join(runtipiDir, "backup"),
			Keep:             5,
			EnvBackupKeep:    5,
			CompressionLevel: 6,
		},
	}

	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r, cfg
}

func readEnv(t *testing.T, cfg *config.Config) *envfile.File {
	t.Helper()
	env, err := envfile.Load(cfg.EnvFilePath())
	if err != nil {
		t.Fatalf("load env file: %v", err)
	}
	return env
}

func TestInstallCreatesSkeleton(t *testing.T) {
	r, cfg := newTestRunner(t)

	if err := r.Run(context.Background(), EventInstall); err != nil {
		t.Fatalf("install: %v", err)
	}

	for _, dir := range cfg.StateDirs() {
		info, err := os.Stat(filepath.Join(cfg.Runtipi.Dir, dir))
		if err != nil || !info.IsDir() {
			t.Errorf("state directory %s missing", dir)
		}
	}

	env := readEnv(t, cfg)
	if got, _ := env.Get("NGINX_PORT"); got != "8880" {
		t.Errorf("NGINX_PORT = %q, want 8880", got)
	}
	if got, _ := env.Get("NGINX_PORT_SSL"); got != "8443" {
		t.Errorf("NGINX_PORT_SSL = %q, want 8443", got)
	}
	for _, key := range generatedSecretKeys {
		secret, ok := env.Get(key)
		if !ok || len(secret) != 64 {
			t.Errorf("%s = %q, want a 64-char generated secret", key, secret)
		}
	}

	info, err := os.Stat(cfg.EnvFilePath())
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("env file mode = %o, want 600", perm)
	}
}

func TestInstallIdempotentPreservesSecrets(t *testing.T) {
	r, cfg := newTestRunner(t)

	if err := r.Install(context.Background()); err != nil {
		t.Fatalf("first install: %v", err)
	}
	first := readEnv(t, cfg)
	firstSecret, _ := first.Get("JWT_SECRET")

	if err := r.Install(context.Background()); err != nil {
		t.Fatalf("second install: %v", err)
	}
	second := readEnv(t, cfg)
	secondSecret, _ := second.Get("JWT_SECRET")

	if firstSecret != secondSecret {
		t.Error("reinstall regenerated JWT_SECRET")
	}
}

func TestStartReconcilesSettings(t *testing.T) {
	r, cfg := newTestRunner(t)
	if err := r.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Runtipi adjusted the port through its web UI while stopped.
	if err := os.WriteFile(cfg.SettingsPath(), []byte(`{"port": 9000}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background(), EventStart); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got, _ := readEnv(t, cfg).Get("NGINX_PORT"); got != "9000" {
		t.Errorf("NGINX_PORT = %q, want 9000 after start reconcile", got)
	}
}

func TestStopReconcilesSettings(t *testing.T) {
	r, cfg := newTestRunner(t)
	if err := r.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.SettingsPath(), []byte(`{"timeZone": "Europe/Berlin"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background(), EventStop); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if got, _ := readEnv(t, cfg).Get("TZ"); got != "Europe/Berlin" {
		t.Errorf("TZ = %q, want Europe/Berlin after stop reconcile", got)
	}
}

func TestPreUpgradeCreatesSnapshot(t *testing.T) {
	r, cfg := newTestRunner(t)
	if err := r.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background(), EventPreUpgrade); err != nil {
		t.Fatalf("pre-upgrade: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Backup.Dir, backup.TagPreUpgrade+"-*.tar.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Errorf("pre-upgrade archives = %d, want 1", len(matches))
	}
}

func TestPostUpgradeRepinsForcedKeys(t *testing.T) {
	r, cfg := newTestRunner(t)
	if err := r.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Simulate an upgrade that reset the pinned web port.
	env := readEnv(t, cfg)
	env.Set("NGINX_PORT", "80")
	if err := env.WriteAtomic(); err != nil {
		t.Fatal(err)
	}

	if err := r.Run(context.Background(), EventPostUpgrade); err != nil {
		t.Fatalf("post-upgrade: %v", err)
	}

	if got, _ := readEnv(t, cfg).Get("NGINX_PORT"); got != "8880" {
		t.Errorf("NGINX_PORT = %q, want 8880 re-pinned", got)
	}
}

func TestPeriodicPrunesArchives(t *testing.T) {
	r, cfg := newTestRunner(t)
	if err := r.Install(context.Background()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 8; i++ {
		name := backup.TagBackup + "-2025010100000" + string(rune('0'+i)) + ".tar.gz"
		if err := os.WriteFile(filepath.Join(cfg.Backup.Dir, name), []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Run(context.Background(), EventPeriodic); err != nil {
		t.Fatalf("periodic: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(cfg.Backup.Dir, backup.TagBackup+"-*.tar.gz"))
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != cfg.Backup.Keep {
		t.Errorf("archives after periodic = %d, want %d", len(matches), cfg.Backup.Keep)
	}
}

func TestRunUnknownEvent(t *testing.T) {
	r, _ := newTestRunner(t)

	err := r.Run(context.Background(), "defrag")
	if err == nil || !strings.Contains(err.Error(), "unknown lifecycle event") {
		t.Errorf("err = %v, want unknown lifecycle event", err)
	}
}

func TestUninstallToleratesStoppedStack(t *testing.T) {
	r, cfg := newTestRunner(t)

	// CLI that always fails, as if the stack is already gone.
	if err := os.WriteFile(cfg.Runtipi.CLIPath, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil { //nolint:gosec // G306: stub must be executable
		t.Fatal(err)
	}

	if err := r.Run(context.Background(), EventUninstall); err != nil {
		t.Errorf("uninstall: %v", err)
	}
}
