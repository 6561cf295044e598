// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package reconcile merges Runtipi's settings.json into the package env file.
//
// Runtipi writes user-adjusted settings (port, domain, theme flags) to
// state/settings.json but reads its startup configuration from the env file;
// the reconciler carries changed values across per a fixed key mapping. The
// merge is one-way and conservative: only allow-listed keys are considered,
// only keys already present in the env file are updated, and a null, missing,
// or "undefined" settings value never erases an env value. The env file is
// backed up before any mutation; a failed backup aborts the run.
package reconcile

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/runtipi-contrib/tipictl/internal/backup"
	"github.com/runtipi-contrib/tipictl/internal/envfile"
	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// Sentinel errors. Callers match with errors.Is.
var (
	// ErrMalformedSettings means settings.json is not a JSON object.
	ErrMalformedSettings = errors.New("malformed settings document")

	// ErrBackupFailed means the pre-mutation env file backup could not be
	// written. The reconciler fails closed: no mutation is attempted.
	ErrBackupFailed = errors.New("env file backup failed")
)

// backupTimestampFormat matches archive naming so lexicographic order of
// backup names equals chronological order.
const backupTimestampFormat = "20060102150405"

// Change records one env key rewritten during reconciliation.
type Change struct {
	Key      string
	OldValue string
	NewValue string
}

// Result reports what a reconciliation run did.
type Result struct {
	// Changes lists rewritten keys in mapping order.
	Changes []Change

	// BackupPath is the pre-mutation copy of the env file, empty when the
	// run ended before taking one (missing env or settings file).
	BackupPath string
}

// Reconciler merges settings documents into env files. Construct with
// NewReconciler; the zero value is not usable.
type Reconciler struct {
	mappings   []Mapping
	backupKeep int
}

// NewReconciler validates the mapping table and returns a reconciler that
// retains backupKeep env file backups per directory. backupKeep below 1 is
// clamped to 1.
func NewReconciler(mappings []Mapping, backupKeep int) (*Reconciler, error) {
	if err := validateMappings(mappings); err != nil {
		return nil, fmt.Errorf("invalid key mapping table: %w", err)
	}
	if backupKeep < 1 {
		backupKeep = 1
	}
	return &Reconciler{mappings: mappings, backupKeep: backupKeep}, nil
}

// Reconcile merges the settings document at settingsPath into the env file at
// envPath. A missing env file or settings document is a no-op success, not an
// error: there is nothing meaningful to merge. Otherwise the env file is
// backed up first (fail-closed with ErrBackupFailed), the document parsed
// (ErrMalformedSettings aborts with the env file untouched), and each mapped
// key that exists in the env file with a differing value is rewritten. The
// rewrite replaces the whole file atomically.
func (r *Reconciler) Reconcile(settingsPath, envPath string) (*Result, error) {
	result := &Result{}

	if _, err := os.Stat(envPath); err != nil {
		logging.Warn().Str("file", envPath).Msg("Env file missing, nothing to reconcile")
		return result, nil
	}
	settingsData, err := os.ReadFile(settingsPath) //nolint:gosec // G304: path comes from config
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return result, fmt.Errorf("failed to read settings document: %w", err)
		}
		logging.Warn().Str("file", settingsPath).Msg("Settings document missing, nothing to reconcile")
		return result, nil
	}

	backupPath, err := r.backupEnvFile(envPath)
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrBackupFailed, err)
	}
	result.BackupPath = backupPath

	var settings map[string]any
	if err := json.Unmarshal(settingsData, &settings); err != nil {
		return result, fmt.Errorf("%w: %v", ErrMalformedSettings, err)
	}
	// A bare JSON null unmarshals into a nil map without error; it is valid
	// JSON but not an object.
	if settings == nil {
		return result, fmt.Errorf("%w: document is null", ErrMalformedSettings)
	}

	env, err := envfile.Load(envPath)
	if err != nil {
		return result, fmt.Errorf("failed to load env file: %w", err)
	}

	for _, m := range r.mappings {
		value, ok := normalizeValue(settings[m.SettingsKey])
		if !ok {
			continue
		}
		// Updating only, never introducing: unknown env keys belong to
		// initial configuration, not reconciliation.
		current, exists := env.Get(m.EnvKey)
		if !exists || current == value {
			continue
		}
		env.Set(m.EnvKey, value)
		result.Changes = append(result.Changes, Change{Key: m.EnvKey, OldValue: current, NewValue: value})
		logging.Info().
			Str("key", m.EnvKey).
			Str("old", current).
			Str("new", value).
			Msg("Reconciled setting")
	}

	if len(result.Changes) > 0 {
		if err := env.WriteAtomic(); err != nil {
			return result, fmt.Errorf("failed to rewrite env file: %w", err)
		}
	}

	return result, nil
}

// backupEnvFile copies the env file aside with a timestamp suffix and prunes
// older copies. Pruning is best-effort; the copy itself is not.
func (r *Reconciler) backupEnvFile(envPath string) (string, error) {
	data, err := os.ReadFile(envPath) //nolint:gosec // G304: path comes from config
	if err != nil {
		return "", err
	}

	backupPath := envPath + ".bak-" + time.Now().Format(backupTimestampFormat)
	if err := os.WriteFile(backupPath, data, envfile.FileMode); err != nil {
		return "", err
	}

	pattern := filepath.Base(envPath) + ".bak-*"
	if _, err := backup.Prune(filepath.Dir(envPath), pattern, r.backupKeep); err != nil {
		logging.Warn().Err(err).Msg("Env backup pruning failed")
	}

	return backupPath, nil
}

// normalizeValue renders a settings value as an env file string. Booleans
// become lowercase true/false, integral numbers lose their JSON float form.
// Null, "undefined", and non-scalar values report ok=false and are skipped.
func normalizeValue(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		if value == "undefined" {
			return "", false
		}
		return value, true
	case bool:
		return strconv.FormatBool(value), true
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1<<53 {
			return strconv.FormatInt(int64(value), 10), true
		}
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		// Arrays and nested objects have no env file representation.
		return "", false
	}
}
