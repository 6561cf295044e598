// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package backup archives Runtipi state directories into timestamped tar.gz
// files and maintains a count-based retention policy over them.
//
// Archive naming:
//
//	<tag>-<YYYYMMDDHHMMSS>.tar.gz
//
// The timestamp is zero-padded second granularity, so a lexicographic sort of
// filenames equals chronological order; retention pruning and newest-archive
// resolution rely on exactly that ordering.
//
// Tags encode the purpose of an archive:
//
//	backup       operator-requested or periodic backup
//	pre-upgrade  automatic snapshot before a package upgrade
//	pre-restore  safety snapshot taken before overwriting state on restore
//
// Restore is an overlay extraction: files in the archive overwrite their
// counterparts under the target directory, files absent from the archive
// survive. If extraction fails partway the target may be left partially
// overlaid; there is no rollback. The pre-restore safety snapshot exists to
// make that recoverable by hand.
//
// Concurrent invocations are not locked against each other. Overlapping runs
// can race on a same-second archive name or prune toward the same target
// state; both are harmless for a low-frequency operator tool and accepted.
package backup

import (
	"errors"
	"time"
)

// Purpose tags for archive names.
const (
	TagBackup     = "backup"
	TagPreUpgrade = "pre-upgrade"
	TagPreRestore = "pre-restore"
)

// timestampFormat renders archive timestamps. Zero-padded so lexicographic
// order equals chronological order.
const timestampFormat = "20060102150405"

// archiveSuffix is the archive file extension.
const archiveSuffix = ".tar.gz"

// Sentinel errors for the failure taxonomy. Callers match with errors.Is.
var (
	// ErrNothingToBackup means none of the requested items exist under the
	// source directory.
	ErrNothingToBackup = errors.New("nothing to back up")

	// ErrNoBackupFound means no archive matched when resolving the most
	// recent backup.
	ErrNoBackupFound = errors.New("no backup archive found")

	// ErrArchiveWrite means archive creation failed; no partial archive is
	// left behind.
	ErrArchiveWrite = errors.New("archive write failed")

	// ErrRestoreFailed means extraction failed; the target directory may be
	// partially overlaid.
	ErrRestoreFailed = errors.New("restore failed")
)

// Config holds backup manager configuration. It is built from the application
// config in main and passed in; the manager itself never reads the process
// environment.
type Config struct {
	// Dir is the default archive directory.
	Dir string

	// Keep is how many archives to retain per tag after a successful backup.
	Keep int

	// CompressionLevel is the gzip level (1-9).
	CompressionLevel int

	// GuardFile is a path relative to the restore target whose existence
	// marks live state worth snapshotting before a restore (the env file).
	GuardFile string

	// SafetyItems are the items included in the pre-restore safety archive.
	SafetyItems []string

	// SensitiveFiles are paths relative to the restore target that get
	// their permissions re-tightened to 0600 after extraction.
	SensitiveFiles []string
}

// ArchiveInfo describes one archive on disk.
type ArchiveInfo struct {
	// Name is the bare filename, e.g. backup-20250101120000.tar.gz.
	Name string

	// Path is the absolute location of the archive.
	Path string

	// Size is the file size in bytes.
	Size int64

	// CreatedAt is parsed from the timestamp embedded in the name.
	CreatedAt time.Time

	// Tag is the purpose prefix of the name.
	Tag string
}

// RestoreOptions configures a restore operation.
type RestoreOptions struct {
	// DryRun lists the archive's member paths without extracting.
	DryRun bool

	// SkipSafetySnapshot disables the pre-restore archive. Used by purge
	// flows that are about to delete the state anyway.
	SkipSafetySnapshot bool
}

// RestoreResult reports what a restore did.
type RestoreResult struct {
	// ArchivePath is the archive that was (or would be) extracted.
	ArchivePath string

	// Entries are the member paths, populated on dry runs.
	Entries []string

	// FilesRestored counts regular files written to the target.
	FilesRestored int

	// SafetyArchivePath is the pre-restore snapshot, if one was taken.
	SafetyArchivePath string

	// Warnings collects best-effort steps that failed without aborting
	// the restore.
	Warnings []string

	// Duration of the whole operation.
	Duration time.Duration
}

// Manager performs archive creation, restore, listing, and pruning.
type Manager struct {
	cfg Config
}

// NewManager creates a backup manager. The zero values of optional Config
// fields are filled with defaults.
func NewManager(cfg Config) *Manager {
	if cfg.Keep < 1 {
		cfg.Keep = 1
	}
	if cfg.CompressionLevel < 1 || cfg.CompressionLevel > 9 {
		cfg.CompressionLevel = 6
	}
	return &Manager{cfg: cfg}
}

// archiveName builds the canonical filename for a tag and creation time.
func archiveName(tag string, at time.Time) string {
	return tag + "-" + at.Format(timestampFormat) + archiveSuffix
}

// tagPattern is the glob matching all archives of one tag.
func tagPattern(tag string) string {
	return tag + "-*" + archiveSuffix
}
