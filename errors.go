// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import "errors"

// Sentinel errors for PAK operations. Use errors.Is in callers.
var (
	// ErrFormat means the archive image is malformed, truncated, or has a
	// bad magic/version. Parsing aborts entirely on this error.
	ErrFormat = errors.New("invalid PAK file: malformed or truncated data")
	// ErrIntegrity means a decompressed payload does not match its declared
	// size or checksum.
	ErrIntegrity = errors.New("entry payload fails integrity check")
	// ErrUnsupportedCompression means an entry carries an unknown compression mode tag.
	ErrUnsupportedCompression = errors.New("unknown compression mode tag")
	// ErrPattern means a glob or regex search pattern failed to compile.
	ErrPattern = errors.New("invalid search pattern")
	// ErrNotFound means a path did not resolve to a node in the archive tree.
	ErrNotFound = errors.New("path not found in archive")
	// ErrConflict means one path is claimed as both a file and a directory.
	ErrConflict = errors.New("path claimed as both file and directory")
	// ErrNilArchive means the archive is nil.
	ErrNilArchive = errors.New("archive is nil")
	// ErrEmptyInputs means no regular files were found to pack.
	ErrEmptyInputs = errors.New("no files found to pack")
	// ErrSizeOverflow means a size exceeds the uint32 PAK field limit.
	ErrSizeOverflow = errors.New("size exceeds uint32 PAK field limit")
	// ErrNameTooLong means an entry path exceeds the maximum length.
	ErrNameTooLong = errors.New("entry path exceeds maximum length")
	// ErrInvalidEntryPath means an entry path is empty or invalid after normalization.
	ErrInvalidEntryPath = errors.New("invalid entry path")
	// ErrDuplicateEntryPath means two pack inputs resolve to the same archive path.
	ErrDuplicateEntryPath = errors.New("duplicate entry path")
	// ErrInvalidCompressPattern means one or more compression rules are invalid.
	ErrInvalidCompressPattern = errors.New("invalid compress rules")
	// ErrInvalidExtractPath means an archive entry path is not safe as an
	// extraction destination (absolute, traversing, or empty).
	ErrInvalidExtractPath = errors.New("entry path is not safe for extraction")
)
