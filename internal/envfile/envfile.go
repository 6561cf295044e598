// tipictl - Runtipi lifecycle tooling for ASUSTOR App Central
// Copyright 2026 runtipi-contrib
// SPDX-License-Identifier: GPL-3.0-or-later
// https://github.com/runtipi-contrib/tipictl

// Package envfile models the flat KEY=VALUE environment file consumed by the
// Runtipi process launcher.
//
// The file is an ordered sequence of text lines. Lines matching KEY=VALUE are
// addressable by key (the first occurrence of a key is authoritative); all
// other lines - comments, blanks, anything malformed - are preserved verbatim
// and never touched. Writes go through a temp file in the target directory
// followed by a rename, so readers never observe a torn file.
package envfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileMode is the permission applied to the env file on write. The file
// carries secrets (database passwords, session keys) and must not be
// group- or world-readable.
const FileMode os.FileMode = 0o600

// line is one physical line of the file. Pairs keep key and value split so
// they can be rewritten; raw lines round-trip untouched.
type line struct {
	raw    string
	key    string
	value  string
	isPair bool
}

// File is an in-memory, order-preserving view of an environment file.
type File struct {
	path  string
	lines []line

	// noFinalNewline records that the source content did not end with a
	// newline, so String can reproduce it byte-identically.
	noFinalNewline bool
}

// New returns an empty file that will be written to path.
func New(path string) *File {
	return &File{path: path}
}

// Load reads and parses the environment file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}
	return Parse(path, string(data)), nil
}

// Parse builds a File from raw content. The path is retained for WriteAtomic.
func Parse(path, content string) *File {
	f := &File{path: path}
	if content != "" && !strings.HasSuffix(content, "\n") {
		f.noFinalNewline = true
	}

	raw := strings.Split(content, "\n")
	// A trailing newline produces one empty trailing element; drop it so the
	// file round-trips byte-identically.
	if n := len(raw); n > 0 && raw[n-1] == "" {
		raw = raw[:n-1]
	}

	for _, text := range raw {
		f.lines = append(f.lines, parseLine(text))
	}
	return f
}

// parseLine classifies a single line. Only KEY=VALUE with a valid shell-style
// identifier on the left participates in reconciliation.
func parseLine(text string) line {
	eq := strings.Index(text, "=")
	if eq <= 0 {
		return line{raw: text}
	}

	key := text[:eq]
	if !validKey(key) {
		return line{raw: text}
	}

	return line{key: key, value: text[eq+1:], isPair: true}
}

// validKey reports whether s is a valid environment variable name.
func validKey(s string) bool {
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return len(s) > 0
}

// Path returns the file path this File was loaded from.
func (f *File) Path() string {
	return f.path
}

// Get returns the value of the first occurrence of key.
func (f *File) Get(key string) (string, bool) {
	for _, l := range f.lines {
		if l.isPair && l.key == key {
			return l.value, true
		}
	}
	return "", false
}

// Has reports whether key is present.
func (f *File) Has(key string) bool {
	_, ok := f.Get(key)
	return ok
}

// Set updates the first occurrence of key in place and reports whether the
// key existed. It never introduces a new key; use Append for that.
func (f *File) Set(key, value string) bool {
	for i, l := range f.lines {
		if l.isPair && l.key == key {
			f.lines[i].value = value
			return true
		}
	}
	return false
}

// Append adds a new KEY=VALUE line at the end of the file. The caller is
// responsible for not duplicating an existing key.
func (f *File) Append(key, value string) {
	f.lines = append(f.lines, line{key: key, value: value, isPair: true})
}

// SetOrAppend updates key if present, otherwise appends it.
func (f *File) SetOrAppend(key, value string) {
	if !f.Set(key, value) {
		f.Append(key, value)
	}
}

// Keys returns the keys of all pairs in file order, first occurrences only.
func (f *File) Keys() []string {
	var keys []string
	seen := make(map[string]bool)
	for _, l := range f.lines {
		if l.isPair && !seen[l.key] {
			keys = append(keys, l.key)
			seen[l.key] = true
		}
	}
	return keys
}

// String renders the file content. Lines are newline-terminated except that a
// source file lacking a final newline reproduces without one, so unmodified
// content round-trips byte-identically.
func (f *File) String() string {
	var b strings.Builder
	for i, l := range f.lines {
		if l.isPair {
			b.WriteString(l.key)
			b.WriteString("=")
			b.WriteString(l.value)
		} else {
			b.WriteString(l.raw)
		}
		if f.noFinalNewline && i == len(f.lines)-1 {
			break
		}
		b.WriteString("\n")
	}
	return b.String()
}

// WriteAtomic writes the file content to a temp file in the same directory,
// fsyncs it, and renames it over the original path with restricted
// permissions.
func (f *File) WriteAtomic() error {
	dir := filepath.Dir(f.path)

	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("failed to create temp env file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(f.String()); err != nil {
		tmp.Close()        //nolint:errcheck // Best effort cleanup on error
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to write temp env file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()        //nolint:errcheck // Best effort cleanup on error
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to sync temp env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to close temp env file: %w", err)
	}

	if err := os.Chmod(tmpPath, FileMode); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to set env file permissions: %w", err)
	}

	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath) //nolint:errcheck // Best effort cleanup on error
		return fmt.Errorf("failed to replace env file: %w", err)
	}

	return nil
}

// EnsureDefaults applies the initial-configuration rules to the file: forced
// keys are always overwritten (or added), default keys are only added when
// missing. Existing values for default keys - generated secrets in
// particular - are preserved. Returns true if the file was modified.
func (f *File) EnsureDefaults(forced, defaults map[string]string) bool {
	changed := false

	for _, key := range sortedKeys(forced) {
		value := forced[key]
		if current, ok := f.Get(key); !ok || current != value {
			f.SetOrAppend(key, value)
			changed = true
		}
	}

	for _, key := range sortedKeys(defaults) {
		if !f.Has(key) {
			f.Append(key, defaults[key])
			changed = true
		}
	}

	return changed
}

// sortedKeys returns map keys in sorted order so EnsureDefaults appends
// deterministically.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
