// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Editor accumulates archive edit operations and applies them on Commit
// as a single archive rewrite.
type Editor struct {
	path string
	ops  []editOperation
	opts EditOptions
}

// editOperation stores one staged editor operation.
type editOperation struct {
	data []byte
	path string
	kind editOperationKind
}

// editOperationKind identifies a staged edit action type.
type editOperationKind uint8

const (
	// editOperationAdd appends a new entry and fails on an existing path.
	editOperationAdd editOperationKind = iota + 1
	// editOperationReplace rewrites an existing entry.
	editOperationReplace
	// editOperationDelete removes one exact path.
	editOperationDelete
	// editOperationDeleteDir removes entries by directory prefix.
	editOperationDeleteDir
)

// OpenEditor creates a staged editor for the file-based rewrite workflow.
// The archive file itself is not opened until Commit.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, ErrInvalidEntryPath
	}

	opts.applyDefaults()

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]editOperation, 0, 8),
	}, nil
}

// Add schedules adding a new entry; commit fails if the path already exists.
func (e *Editor) Add(path string, data []byte) error {
	return e.stage(editOperationAdd, path, data)
}

// Replace schedules rewriting an existing entry; commit fails if it is missing.
func (e *Editor) Replace(path string, data []byte) error {
	return e.stage(editOperationReplace, path, data)
}

// Delete schedules removal of exact entry paths; commit fails on a miss.
func (e *Editor) Delete(paths ...string) error {
	for _, path := range paths {
		if err := e.stage(editOperationDelete, path, nil); err != nil {
			return err
		}
	}

	return nil
}

// DeleteDir schedules removal of every entry under the directory prefix.
// Removing an empty prefix set is a no-op, not an error.
func (e *Editor) DeleteDir(prefix string) error {
	return e.stage(editOperationDeleteDir, prefix, nil)
}

// stage validates and appends one operation.
func (e *Editor) stage(kind editOperationKind, path string, data []byte) error {
	normalized, err := normalizeArchiveEntryPath(path)
	if err != nil {
		return err
	}

	e.ops = append(e.ops, editOperation{kind: kind, path: normalized, data: data})
	return nil
}

// stagedEntry is one planned output entry: either payload bytes from an
// edit operation or an entry carried over from the source archive.
type stagedEntry struct {
	data   []byte
	source *EntryInfo
}

// Commit opens the archive, applies staged operations in order, and
// rewrites the file. Entries carried over unchanged keep their stored
// (still-compressed) payload when the format version is unchanged; a
// version change re-reads and repacks them. The previous file is kept as a
// rotated backup per EditOptions.BackupKeep.
func (e *Editor) Commit(ctx context.Context) (*PackResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	archive, err := Open(e.path)
	if err != nil {
		return nil, err
	}

	plan, err := e.applyOps(archive)
	if err != nil {
		return nil, err
	}

	if len(plan) == 0 {
		return nil, ErrEmptyInputs
	}

	image, result, err := e.rewrite(ctx, archive, plan)
	if err != nil {
		return nil, err
	}

	if err := e.writeWithBackup(image); err != nil {
		return nil, err
	}

	return result, nil
}

// applyOps folds staged operations over the source entry set.
func (e *Editor) applyOps(archive *Archive) (map[string]*stagedEntry, error) {
	plan := make(map[string]*stagedEntry, len(archive.entries))
	for i := range archive.entries {
		entry := &archive.entries[i]
		plan[entry.Path] = &stagedEntry{source: entry}
	}

	for _, op := range e.ops {
		switch op.kind {
		case editOperationAdd:
			if _, exists := plan[op.path]; exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateEntryPath, op.path)
			}

			plan[op.path] = &stagedEntry{data: op.data}
		case editOperationReplace:
			if _, exists := plan[op.path]; !exists {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, op.path)
			}

			plan[op.path] = &stagedEntry{data: op.data}
		case editOperationDelete:
			if _, exists := plan[op.path]; !exists {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, op.path)
			}

			delete(plan, op.path)
		case editOperationDeleteDir:
			prefix := op.path + "/"
			for path := range plan {
				if path == op.path || strings.HasPrefix(path, prefix) {
					delete(plan, path)
				}
			}
		default:
			return nil, fmt.Errorf("unknown edit operation kind %d", op.kind)
		}
	}

	return plan, nil
}

// rewrite assembles the new archive image from the staged plan.
func (e *Editor) rewrite(ctx context.Context, archive *Archive, plan map[string]*stagedEntry) ([]byte, *PackResult, error) {
	opts := e.opts.PackOptions
	if opts.Version < VersionLegacy || opts.Version > VersionChecksum {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, opts.Version)
	}

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("compile compress rules: %w", err)
	}

	paths := make([]string, 0, len(plan))
	for path := range plan {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	keepStored := opts.Version == archive.header.Version

	result := &PackResult{}
	packed := make([]packedEntry, 0, len(paths))
	var cursor uint32

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		staged := plan[path]

		var entry packedEntry
		switch {
		case staged.source != nil && keepStored:
			entry, err = carryStoredEntry(archive, staged.source, cursor)
		case staged.source != nil:
			var raw []byte
			raw, err = archive.ReadEntryInfo(*staged.source)
			if err == nil {
				entry, err = packOneBuffer(opts, matcher, path, raw, cursor)
			}
		default:
			entry, err = packOneBuffer(opts, matcher, path, staged.data, cursor)
		}
		if err != nil {
			return nil, nil, err
		}

		recordPackStats(result, &entry)
		packed = append(packed, entry)
		cursor += entry.info.StoredSize
	}

	result.WrittenEntries = len(packed)
	image, err := serializeArchive(opts.Version, opts.DefaultMode, packed)
	if err != nil {
		return nil, nil, err
	}
	result.IndexSize = int64(len(image)) - result.DataSize

	if opts.Obfuscate || archive.obfuscated {
		obfuscate(image)
	}

	return image, result, nil
}

// carryStoredEntry copies one source entry in stored form at a new offset.
func carryStoredEntry(archive *Archive, source *EntryInfo, cursor uint32) (packedEntry, error) {
	if err := validateEntryBounds(source, int64(len(archive.payload))); err != nil {
		return packedEntry{}, err
	}

	storedSize, err := checkedDataSize(source.Path, int64(source.StoredSize), cursor)
	if err != nil {
		return packedEntry{}, err
	}

	info := *source
	info.Offset = cursor
	info.StoredSize = storedSize

	return packedEntry{
		stored: archive.payload[source.Offset : int64(source.Offset)+int64(source.StoredSize)],
		info:   info,
	}, nil
}

// writeWithBackup rotates existing backups, writes the new image, and
// drops the fresh backup when BackupKeep is zero.
func (e *Editor) writeWithBackup(image []byte) error {
	keep := e.opts.BackupKeep
	rotations := keep
	if rotations < 1 {
		rotations = 1
	}

	for i := rotations - 1; i >= 1; i-- {
		src := backupName(e.path, i-1)
		dst := backupName(e.path, i)
		if _, err := os.Stat(src); err == nil {
			if err := os.Rename(src, dst); err != nil {
				return fmt.Errorf("rotate backup %s: %w", src, err)
			}
		}
	}

	backup := backupName(e.path, 0)
	if err := os.Rename(e.path, backup); err != nil {
		return fmt.Errorf("create backup: %w", err)
	}

	if err := os.WriteFile(e.path, image, 0o600); err != nil {
		// Best effort restore so a failed commit keeps the original file.
		_ = os.Rename(backup, e.path)
		return fmt.Errorf("write PAK file: %w", err)
	}

	if keep == 0 {
		_ = os.Remove(backup)
	}

	return nil
}

// backupName returns the rotated backup file name for one generation.
func backupName(path string, generation int) string {
	if generation == 0 {
		return path + ".bak"
	}

	return fmt.Sprintf("%s.bak.%d", path, generation)
}
