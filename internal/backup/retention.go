// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// Prune deletes all but the maxKeep most recent files matching pattern in
// dir. Filenames embed zero-padded timestamps, so a lexicographic descending
// sort is the chronological descending order and is used as the tie-break-free
// deterministic ordering. maxKeep below 1 is clamped to 1: pruning never
// deletes the newest file.
//
// Individual deletion failures are logged and skipped; a stuck file must not
// prevent freeing the rest. Returns the number of files removed.
func Prune(dir, pattern string, maxKeep int) (int, error) {
	if maxKeep < 1 {
		maxKeep = 1
	}

	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return 0, fmt.Errorf("invalid prune pattern %q: %w", pattern, err)
	}

	if len(matches) <= maxKeep {
		return 0, nil
	}

	// Newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))

	removed := 0
	for _, path := range matches[maxKeep:] {
		if err := os.Remove(path); err != nil {
			logging.Warn().Err(err).Str("file", path).Msg("Failed to delete old backup")
			continue
		}
		logging.Debug().Str("file", path).Msg("Pruned old backup")
		removed++
	}

	return removed, nil
}

// ListArchives returns metadata for all archives in dir matching pattern,
// newest first. A missing directory yields an empty result, not an error.
func ListArchives(dir, pattern string) ([]ArchiveInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid archive pattern %q: %w", pattern, err)
	}

	var archives []ArchiveInfo
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		name := filepath.Base(path)
		tag, createdAt, ok := parseArchiveName(name)
		if !ok {
			continue
		}

		archives = append(archives, ArchiveInfo{
			Name:      name,
			Path:      path,
			Size:      info.Size(),
			CreatedAt: createdAt,
			Tag:       tag,
		})
	}

	// Lexicographic descending on the name equals chronological descending.
	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Name > archives[j].Name
	})

	return archives, nil
}

// parseArchiveName splits <tag>-<timestamp>.tar.gz into its parts. Tags may
// themselves contain dashes (pre-upgrade), so the timestamp is taken from the
// last dash.
func parseArchiveName(name string) (tag string, createdAt time.Time, ok bool) {
	if !strings.HasSuffix(name, archiveSuffix) {
		return "", time.Time{}, false
	}
	stem := strings.TrimSuffix(name, archiveSuffix)

	dash := strings.LastIndex(stem, "-")
	if dash <= 0 {
		return "", time.Time{}, false
	}

	ts, err := time.ParseInLocation(timestampFormat, stem[dash+1:], time.Local)
	if err != nil {
		return "", time.Time{}, false
	}

	return stem[:dash], ts, true
}

// List returns all archives of a tag in the configured backup directory,
// newest first. An empty tag lists every parseable archive.
func (m *Manager) List(tag string) ([]ArchiveInfo, error) {
	pattern := "*" + archiveSuffix
	if tag != "" {
		pattern = tagPattern(tag)
	}
	return ListArchives(m.cfg.Dir, pattern)
}

// LatestArchive resolves the most recent archive of a tag in the configured
// backup directory. Fails with ErrNoBackupFound when none exists.
func (m *Manager) LatestArchive(tag string) (ArchiveInfo, error) {
	archives, err := m.List(tag)
	if err != nil {
		return ArchiveInfo{}, err
	}
	if len(archives) == 0 {
		return ArchiveInfo{}, fmt.Errorf("%w: no %s archives in %s", ErrNoBackupFound, tag, m.cfg.Dir)
	}
	return archives[0], nil
}

// PruneTag prunes the configured backup directory for one tag with the
// configured keep count.
func (m *Manager) PruneTag(tag string) (int, error) {
	return Prune(m.cfg.Dir, tagPattern(tag), m.cfg.Keep)
}
