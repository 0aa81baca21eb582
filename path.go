// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts an archive/internal path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(path string) string {
	path = strings.TrimSpace(path)
	path = strings.ReplaceAll(path, `\`, `/`)
	path = strings.TrimPrefix(path, "./")
	return path
}

// validateEntryPath checks an archive entry path read from an entry record.
// Paths are relative, slash-separated, case-sensitive byte strings with no
// empty or dot-dot segments.
func validateEntryPath(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidEntryPath)
	}
	if strings.ContainsRune(raw, 0) {
		return fmt.Errorf("%w: %q contains NUL", ErrInvalidEntryPath, raw)
	}
	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, `\`) {
		return fmt.Errorf("%w: %q is absolute", ErrInvalidEntryPath, raw)
	}

	for _, part := range strings.Split(raw, "/") {
		switch part {
		case "":
			return fmt.Errorf("%w: %q has empty segment", ErrInvalidEntryPath, raw)
		case ".", "..":
			return fmt.Errorf("%w: %q has dot segment", ErrInvalidEntryPath, raw)
		}
	}

	return nil
}

// normalizeArchiveEntryPath converts a pack input path to canonical archive form.
func normalizeArchiveEntryPath(raw string) (string, error) {
	normalized := NormalizePath(raw)
	if normalized == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPath, raw)
	}

	if err := validateEntryPath(normalized); err != nil {
		return "", err
	}

	if len(normalized) > maxNameLen {
		return "", fmt.Errorf("%w: %d bytes", ErrNameTooLong, len(normalized))
	}

	return normalized, nil
}
