// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/runtipi-contrib/tipictl/internal/logging"
)

// maxExtractFileSize caps a single extracted file to guard against
// decompression bombs in hand-imported archives.
const maxExtractFileSize int64 = 8 << 30

// RestoreArchive extracts archivePath over targetDir. An empty archivePath
// resolves to the most recent backup-tagged archive in the configured backup
// directory; if none exists the call fails with ErrNoBackupFound.
//
// When live state is present at the target (cfg.GuardFile exists) a safety
// archive tagged pre-restore is attempted first; its failure is logged as a
// warning but never blocks the restore.
//
// Extraction is an overlay: files not present in the archive survive. On
// extraction error the target may be left partially overlaid; no rollback is
// attempted.
func (m *Manager) RestoreArchive(ctx context.Context, archivePath, targetDir string, opts RestoreOptions) (*RestoreResult, error) {
	start := time.Now()
	result := &RestoreResult{}

	if archivePath == "" {
		latest, err := m.LatestArchive(TagBackup)
		if err != nil {
			return result, err
		}
		archivePath = latest.Path
	}
	result.ArchivePath = archivePath

	if _, err := os.Stat(archivePath); err != nil {
		return result, fmt.Errorf("%w: %s", ErrNoBackupFound, archivePath)
	}

	if opts.DryRun {
		entries, err := listArchiveEntries(archivePath)
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
		}
		result.Entries = entries
		result.Duration = time.Since(start)
		return result, nil
	}

	m.takeSafetySnapshot(ctx, targetDir, opts, result)

	restored, err := m.extractOverlay(ctx, archivePath, targetDir)
	result.FilesRestored = restored
	if err != nil {
		return result, fmt.Errorf("%w: %v", ErrRestoreFailed, err)
	}

	m.tightenSensitivePerms(targetDir, result)

	result.Duration = time.Since(start)
	logging.Info().
		Str("archive", archivePath).
		Int("files", restored).
		Msg("Restore completed")

	return result, nil
}

// takeSafetySnapshot archives current state before it gets overwritten.
// Best effort: a failed snapshot is a warning, not an abort - restore must
// not be blocked by an inability to protect against itself.
func (m *Manager) takeSafetySnapshot(ctx context.Context, targetDir string, opts RestoreOptions, result *RestoreResult) {
	if opts.SkipSafetySnapshot || m.cfg.GuardFile == "" {
		return
	}
	if _, err := os.Stat(filepath.Join(targetDir, m.cfg.GuardFile)); err != nil {
		return // no live state to protect
	}

	safetyPath, err := m.CreateArchive(ctx, targetDir, m.cfg.SafetyItems, m.cfg.Dir, TagPreRestore)
	if err != nil {
		logging.Warn().Err(err).Msg("Pre-restore snapshot failed, continuing with restore")
		result.Warnings = append(result.Warnings, fmt.Sprintf("pre-restore snapshot failed: %v", err))
		return
	}
	result.SafetyArchivePath = safetyPath
}

// tightenSensitivePerms re-applies restrictive permissions to files that may
// have been extracted with looser modes from an older archive.
func (m *Manager) tightenSensitivePerms(targetDir string, result *RestoreResult) {
	for _, rel := range m.cfg.SensitiveFiles {
		path := filepath.Join(targetDir, rel)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := os.Chmod(path, 0o600); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("failed to restrict %s: %v", rel, err))
		}
	}
}

// openArchiveReader opens an archive and returns a tar reader over it.
// The caller closes the returned closers in reverse order.
//
//nolint:gosec // G304: path comes from the backup directory or the operator
func openArchiveReader(path string) (*tar.Reader, []io.Closer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	closers := []io.Closer{file}
	var reader io.Reader = file

	if strings.HasSuffix(path, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close() //nolint:errcheck // Best effort cleanup on error
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		closers = append(closers, gzReader)
		reader = gzReader
	}

	return tar.NewReader(reader), closers, nil
}

// closeAll closes all closers in reverse order.
func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close() //nolint:errcheck // Best effort cleanup
	}
}

// listArchiveEntries returns the member paths of an archive without
// extracting anything.
func listArchiveEntries(path string) ([]string, error) {
	tarReader, closers, err := openArchiveReader(path)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)

	var entries []string
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar entry: %w", err)
		}
		entries = append(entries, header.Name)
	}
	return entries, nil
}

// extractOverlay extracts every archive member into targetDir, overwriting
// existing files and leaving everything else in place.
func (m *Manager) extractOverlay(ctx context.Context, archivePath, targetDir string) (int, error) {
	tarReader, closers, err := openArchiveReader(archivePath)
	if err != nil {
		return 0, err
	}
	defer closeAll(closers)

	if err := os.MkdirAll(targetDir, 0o750); err != nil {
		return 0, fmt.Errorf("failed to create target directory: %w", err)
	}

	restored := 0
	for {
		if err := ctx.Err(); err != nil {
			return restored, err
		}

		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return restored, fmt.Errorf("failed to read tar entry: %w", err)
		}

		destPath, err := validateDestPath(targetDir, header.Name)
		if err != nil {
			return restored, err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(destPath, header.FileInfo().Mode().Perm()); err != nil {
				return restored, fmt.Errorf("failed to create directory %s: %w", header.Name, err)
			}
		case tar.TypeSymlink:
			if err := restoreSymlink(destPath, header); err != nil {
				return restored, err
			}
		case tar.TypeReg:
			if err := extractFile(tarReader, destPath, header); err != nil {
				return restored, fmt.Errorf("failed to extract %s: %w", header.Name, err)
			}
			restored++
		default:
			logging.Debug().Str("entry", header.Name).Msg("Skipping unsupported tar entry type")
		}
	}

	return restored, nil
}

// validateDestPath joins the entry name onto targetDir and rejects path
// traversal out of the target.
func validateDestPath(targetDir, name string) (string, error) {
	destPath := filepath.Join(targetDir, name)
	if !strings.HasPrefix(destPath, filepath.Clean(targetDir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return destPath, nil
}

// restoreSymlink replaces any existing entry at destPath with the archived
// symlink.
func restoreSymlink(destPath string, header *tar.Header) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", header.Name, err)
	}
	if err := os.RemoveAll(destPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", header.Name, err)
	}
	if err := os.Symlink(header.Linkname, destPath); err != nil {
		return fmt.Errorf("failed to restore symlink %s: %w", header.Name, err)
	}
	return nil
}

// extractFile writes one regular file from the tar stream.
//
//nolint:gosec // G110: size is capped, G304: destPath is traversal-checked
func extractFile(reader io.Reader, destPath string, header *tar.Header) error {
	if header.Size > maxExtractFileSize {
		return fmt.Errorf("file too large: %d bytes (max %d)", header.Size, maxExtractFileSize)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return err
	}

	outFile, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, header.FileInfo().Mode().Perm())
	if err != nil {
		return err
	}

	_, err = io.Copy(outFile, io.LimitReader(reader, header.Size+1))
	closeErr := outFile.Close()

	if err != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return err
	}
	if closeErr != nil {
		os.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return closeErr
	}

	return nil
}
