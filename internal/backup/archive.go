// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package backup

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// archiveWriters holds the writer stack for archive creation.
type archiveWriters struct {
	tarWriter *tar.Writer
	closers   []io.Closer
}

// Close closes all writers in reverse order, returning the first error.
func (aw *archiveWriters) Close() error {
	var firstErr error
	for i := len(aw.closers) - 1; i >= 0; i-- {
		if err := aw.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// setupArchiveWriters creates the file, gzip, and tar writers.
//
//nolint:gosec // G304: path is built from internal backup configuration
func (m *Manager) setupArchiveWriters(path string) (*archiveWriters, error) {
	outFile, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}

	aw := &archiveWriters{closers: []io.Closer{outFile}}

	gzWriter, err := gzip.NewWriterLevel(outFile, m.cfg.CompressionLevel)
	if err != nil {
		outFile.Close() //nolint:errcheck // Best effort cleanup on error
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	aw.closers = append(aw.closers, gzWriter)

	aw.tarWriter = tar.NewWriter(gzWriter)
	aw.closers = append(aw.closers, aw.tarWriter)

	return aw, nil
}

// CreateArchive archives the named top-level items of sourceDir into a
// timestamped tar.gz in destDir and prunes older archives of the same tag.
// Items that do not exist are skipped; if none exist the call fails with
// ErrNothingToBackup. An empty destDir means the configured backup directory.
// The archive appears under its final name only once fully written.
func (m *Manager) CreateArchive(ctx context.Context, sourceDir string, items []string, destDir, tag string) (string, error) {
	if destDir == "" {
		destDir = m.cfg.Dir
	}
	if tag == "" {
		tag = TagBackup
	}

	if _, err := os.Stat(sourceDir); err != nil {
		return "", fmt.Errorf("source directory unavailable: %w", err)
	}

	existing := m.existingItems(sourceDir, items)
	if len(existing) == 0 {
		return "", fmt.Errorf("%w: no items present under %s", ErrNothingToBackup, sourceDir)
	}

	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: cannot create %s: %v", ErrArchiveWrite, destDir, err)
	}

	finalPath := filepath.Join(destDir, archiveName(tag, time.Now()))
	// Unique temp name so a concurrent run never observes (or collides with)
	// a half-written archive.
	tempPath := finalPath + ".partial-" + uuid.NewString()[:8]

	if err := m.writeArchive(ctx, tempPath, sourceDir, existing); err != nil {
		os.Remove(tempPath) //nolint:errcheck // Best effort cleanup on error
		return "", fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath) //nolint:errcheck // Best effort cleanup on error
		return "", fmt.Errorf("%w: %v", ErrArchiveWrite, err)
	}

	logging.Info().
		Str("archive", finalPath).
		Strs("items", existing).
		Msg("Archive created")

	if _, err := Prune(destDir, tagPattern(tag), m.cfg.Keep); err != nil {
		// The archive itself succeeded; retention is best-effort here.
		logging.Warn().Err(err).Str("dir", destDir).Msg("Retention pruning failed")
	}

	return finalPath, nil
}

// existingItems filters items down to those present under sourceDir.
func (m *Manager) existingItems(sourceDir string, items []string) []string {
	var existing []string
	for _, item := range items {
		if _, err := os.Stat(filepath.Join(sourceDir, item)); err == nil {
			existing = append(existing, item)
		} else {
			logging.Debug().Str("item", item).Msg("Skipping missing backup item")
		}
	}
	return existing
}

// writeArchive writes the selected items into a tar.gz at path.
func (m *Manager) writeArchive(ctx context.Context, path, sourceDir string, items []string) (err error) {
	aw, err := m.setupArchiveWriters(path)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := aw.Close()
		if err == nil {
			err = closeErr
		}
	}()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := m.addTreeToArchive(aw.tarWriter, sourceDir, item); err != nil {
			return err
		}
	}

	return nil
}

// addTreeToArchive adds one top-level item (file or directory tree) to the
// archive with paths relative to sourceDir.
func (m *Manager) addTreeToArchive(tw *tar.Writer, sourceDir, item string) error {
	root := filepath.Join(sourceDir, item)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case info.Mode().IsDir():
			return writeDirHeader(tw, rel, info)
		case info.Mode()&fs.ModeSymlink != 0:
			return writeSymlinkHeader(tw, path, rel, info)
		case info.Mode().IsRegular():
			return writeFileEntry(tw, path, rel, info)
		default:
			// Sockets, devices, pipes: nothing Runtipi state should contain.
			logging.Debug().Str("path", rel).Msg("Skipping irregular file")
			return nil
		}
	})
}

func writeDirHeader(tw *tar.Writer, rel string, info fs.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", rel, err)
	}
	header.Name = rel + "/"
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", rel, err)
	}
	return nil
}

func writeSymlinkHeader(tw *tar.Writer, path, rel string, info fs.FileInfo) error {
	target, err := os.Readlink(path)
	if err != nil {
		return fmt.Errorf("failed to read symlink %s: %w", rel, err)
	}
	header, err := tar.FileInfoHeader(info, target)
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", rel, err)
	}
	header.Name = rel
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", rel, err)
	}
	return nil
}

//nolint:gosec // G304: path stays within the walked source tree
func writeFileEntry(tw *tar.Writer, path, rel string, info fs.FileInfo) error {
	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to create tar header for %s: %w", rel, err)
	}
	header.Name = rel

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write tar header for %s: %w", rel, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", rel, err)
	}
	defer file.Close() //nolint:errcheck // Best effort cleanup

	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to copy %s to archive: %w", rel, err)
	}

	return nil
}
