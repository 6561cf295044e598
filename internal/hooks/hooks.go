// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package hooks implements the App Central lifecycle entry points. App
// Central invokes `tipictl hook <event>` at fixed points of a package's
// life; each event maps to one method here. Exit code 0 reports success to
// the framework, anything else surfaces as a failed operation in its UI.
package hooks

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/runtipi-contrib/tipictl/internal/backup"
	"github.com/runtipi-contrib/tipictl/internal/config"
	"github.com/runtipi-contrib/tipictl/internal/envfile"
	"github.com/runtipi-contrib/tipictl/internal/logging"
	"github.com/runtipi-contrib/tipictl/internal/reconcile"
	"github.com/runtipi-contrib/tipictl/internal/runtipi"
)

// Lifecycle event names as App Central passes them.
const (
	EventInstall     = "install"
	EventStart       = "start"
	EventStop        = "stop"
	EventUninstall   = "uninstall"
	EventPreUpgrade  = "pre-upgrade"
	EventPostUpgrade = "post-upgrade"
	EventPeriodic    = "periodic"
)

// Events lists every supported lifecycle event, in lifecycle order.
var Events = []string{
	EventInstall,
	EventStart,
	EventStop,
	EventUninstall,
	EventPreUpgrade,
	EventPostUpgrade,
	EventPeriodic,
}

// Forced env values re-applied on install and after every upgrade. The web UI
// ports are pinned so Runtipi's nginx never collides with the NAS's own web
// server on 80/443.
var forcedEnvDefaults = map[string]string{
	"NGINX_PORT":     "8880",
	"NGINX_PORT_SSL": "8443",
}

// Secrets generated once at install and then left alone.
var generatedSecretKeys = []string{
	"JWT_SECRET",
	"POSTGRES_PASSWORD",
	"REDIS_PASSWORD",
}

// Runner executes lifecycle events against one installation.
type Runner struct {
	cfg        *config.Config
	backups    *backup.Manager
	reconciler *reconcile.Reconciler
	cli        *runtipi.Client
}

// NewRunner wires a runner from the loaded configuration.
func NewRunner(cfg *config.Config) (*Runner, error) {
	reconciler, err := reconcile.NewReconciler(reconcile.DefaultKeyMappings, cfg.Backup.EnvBackupKeep)
	if err != nil {
		return nil, err
	}

	return &Runner{
		cfg: cfg,
		backups: backup.NewManager(backup.Config{
			Dir:              cfg.Backup.Dir,
			Keep:             cfg.Backup.Keep,
			CompressionLevel: cfg.Backup.CompressionLevel,
			GuardFile:        ".env",
			SafetyItems:      cfg.DefaultBackupItems(),
			SensitiveFiles:   []string{".env", "state/settings.json"},
		}),
		reconciler: reconciler,
		cli:        runtipi.NewClient(cfg.Runtipi.CLIPath, cfg.Runtipi.Dir),
	}, nil
}

// Run dispatches one lifecycle event.
func (r *Runner) Run(ctx context.Context, event string) error {
	logging.Info().Str("event", event).Msg("Lifecycle hook invoked")

	switch event {
	case EventInstall:
		return r.Install(ctx)
	case EventStart:
		return r.Start(ctx)
	case EventStop:
		return r.Stop(ctx)
	case EventUninstall:
		return r.Uninstall(ctx)
	case EventPreUpgrade:
		return r.PreUpgrade(ctx)
	case EventPostUpgrade:
		return r.PostUpgrade(ctx)
	case EventPeriodic:
		return r.Periodic(ctx)
	default:
		return fmt.Errorf("unknown lifecycle event %q", event)
	}
}

// Install lays out the Runtipi data directory skeleton and seeds the env
// file. Re-running on an existing installation is safe: existing secrets and
// operator edits survive, only the forced keys are re-pinned.
func (r *Runner) Install(_ context.Context) error {
	for _, dir := range r.cfg.StateDirs() {
		path := filepath.Join(r.cfg.Runtipi.Dir, dir)
		if err := os.MkdirAll(path, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
	}

	return r.seedEnvFile()
}

// Start reconciles settings changed while the stack was down, then brings
// the stack up.
func (r *Runner) Start(ctx context.Context) error {
	if _, err := r.reconciler.Reconcile(r.cfg.SettingsPath(), r.cfg.EnvFilePath()); err != nil {
		return err
	}
	return r.cli.Start(ctx)
}

// Stop shuts the stack down, then reconciles so settings adjusted through
// the web UI survive into the env file before the next start.
func (r *Runner) Stop(ctx context.Context) error {
	if err := r.cli.Stop(ctx); err != nil {
		return err
	}
	_, err := r.reconciler.Reconcile(r.cfg.SettingsPath(), r.cfg.EnvFilePath())
	return err
}

// Uninstall stops the stack. Data removal is a separate, confirmed purge
// operation; uninstalling the package keeps user data in place.
func (r *Runner) Uninstall(ctx context.Context) error {
	if err := r.cli.Stop(ctx); err != nil {
		// The stack may already be down or the CLI already removed.
		logging.Warn().Err(err).Msg("Stop during uninstall failed, continuing")
	}
	return nil
}

// PreUpgrade snapshots the state directories so a failed upgrade can be
// rolled back by hand.
func (r *Runner) PreUpgrade(ctx context.Context) error {
	_, err := r.backups.CreateArchive(ctx, r.cfg.Runtipi.Dir, r.cfg.DefaultBackupItems(), "", backup.TagPreUpgrade)
	return err
}

// PostUpgrade re-pins the forced env keys the upgrade may have reset and
// reconciles current settings.
func (r *Runner) PostUpgrade(_ context.Context) error {
	if err := r.seedEnvFile(); err != nil {
		return err
	}
	_, err := r.reconciler.Reconcile(r.cfg.SettingsPath(), r.cfg.EnvFilePath())
	return err
}

// Periodic runs scheduled maintenance: reconcile settings and prune each
// archive tag to the retention bound.
func (r *Runner) Periodic(_ context.Context) error {
	if _, err := r.reconciler.Reconcile(r.cfg.SettingsPath(), r.cfg.EnvFilePath()); err != nil {
		return err
	}

	for _, tag := range []string{backup.TagBackup, backup.TagPreUpgrade, backup.TagPreRestore} {
		if _, err := r.backups.PruneTag(tag); err != nil {
			logging.Warn().Err(err).Str("tag", tag).Msg("Periodic pruning failed")
		}
	}
	return nil
}

// seedEnvFile creates the env file if absent and brings it to a runnable
// baseline: forced keys pinned, secrets generated when missing.
func (r *Runner) seedEnvFile() error {
	envPath := r.cfg.EnvFilePath()

	env, err := envfile.Load(envPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		env = envfile.New(envPath)
	}

	defaults := map[string]string{
		"APP_NAME": "runtipi",
		"TZ":       "Etc/UTC",
	}
	for _, key := range generatedSecretKeys {
		if !env.Has(key) {
			secret, err := randomSecret()
			if err != nil {
				return fmt.Errorf("failed to generate %s: %w", key, err)
			}
			defaults[key] = secret
		}
	}

	if changed := env.EnsureDefaults(forcedEnvDefaults, defaults); !changed {
		return nil
	}

	if err := env.WriteAtomic(); err != nil {
		return fmt.Errorf("failed to write env file: %w", err)
	}
	logging.Info().Str("file", envPath).Msg("Env file seeded")
	return nil
}

// randomSecret returns 32 random bytes hex-encoded.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
