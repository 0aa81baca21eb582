// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// ExtractFailure records one entry that could not be written.
type ExtractFailure struct {
	// Err is the failure cause with the offending path attached.
	Err error `json:"-" yaml:"-"`
	// Path is the archive entry path that failed.
	Path string `json:"path" yaml:"path"`
}

// ExtractReport summarizes one extraction batch. Per-entry failures never
// abort the batch: an archive with one unwritable entry still extracts the
// rest and reports exactly that failure.
type ExtractReport struct {
	// Failures lists failed entries in selection order.
	Failures []ExtractFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	// Extracted is the number of entries written successfully.
	Extracted int `json:"extracted" yaml:"extracted"`
}

// Ok reports whether every selected entry was written.
func (r *ExtractReport) Ok() bool {
	return len(r.Failures) == 0
}

// extractWorkItem stores one selected entry with its prepared output path.
type extractWorkItem struct {
	relPath string
	relDir  string
	entry   EntryInfo
	index   int
}

// Extract writes selected entries to dstDir, decompressing as needed and
// preserving archive-relative directory structure. Extraction is
// parallelized by MaxWorkers. The returned error covers setup failures and
// context cancellation only; per-entry failures land in the report.
func (a *Archive) Extract(ctx context.Context, dstDir string, opts ExtractOptions) (*ExtractReport, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers < 1 {
		workers = 1
	}

	entries := a.entries
	if opts.Entries != nil {
		entries = opts.Entries
	}

	report := &ExtractReport{}
	if len(entries) == 0 {
		return report, nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return nil, fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// Entries whose paths are unsafe for the filesystem become failures up
	// front; the rest proceed to the worker pool.
	results := make([]error, len(entries))
	done := make([]bool, len(entries))
	workItems := make([]extractWorkItem, 0, len(entries))
	for i, entry := range entries {
		item, err := prepareExtractWorkItem(entry, i)
		if err != nil {
			results[i] = err
			continue
		}

		workItems = append(workItems, item)
	}

	taskCh := make(chan extractWorkItem)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Go(func() {
			for task := range taskCh {
				err := a.extractPreparedEntry(ctx, dstRootAbs, task, opts.OnEntryDone)

				mu.Lock()
				results[task.index] = err
				done[task.index] = err == nil
				mu.Unlock()
			}
		})
	}

	var ctxErr error
dispatch:
	for _, task := range workItems {
		select {
		case <-ctx.Done():
			ctxErr = ctx.Err()
			break dispatch
		case taskCh <- task:
		}
	}

	close(taskCh)
	wg.Wait()

	for i := range entries {
		switch {
		case results[i] != nil:
			report.Failures = append(report.Failures, ExtractFailure{
				Path: entries[i].Path,
				Err:  results[i],
			})
		case done[i]:
			report.Extracted++
		}
	}

	if ctxErr != nil {
		return report, ctxErr
	}

	return report, nil
}

// ExtractEntry writes one entry's decompressed content to destPath,
// creating parent directories as needed. Pre-existing directories and
// files are not an error; existing files are overwritten.
func (a *Archive) ExtractEntry(entry EntryInfo, destPath string) error {
	if a == nil {
		return ErrNilArchive
	}

	data, err := a.ReadEntryInfo(entry)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(destPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory for %s: %w", destPath, err)
		}
	}

	if err := os.WriteFile(destPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", destPath, err)
	}

	return nil
}

// prepareExtractWorkItem validates one entry path and prepares its relative
// filesystem location.
func prepareExtractWorkItem(entry EntryInfo, index int) (extractWorkItem, error) {
	normalized, err := normalizeExtractEntryPath(entry.Path)
	if err != nil {
		return extractWorkItem{}, fmt.Errorf("normalize entry path %s: %w", entry.Path, err)
	}

	relPath := filepath.FromSlash(normalized)
	relDir := filepath.Dir(relPath)
	if relDir == "." {
		relDir = ""
	}

	return extractWorkItem{
		entry:   entry,
		relPath: relPath,
		relDir:  relDir,
		index:   index,
	}, nil
}

// extractPreparedEntry writes one prepared work item below the root.
// Directory creation is idempotent, so concurrent workers may race on
// shared parents safely.
func (a *Archive) extractPreparedEntry(
	ctx context.Context,
	dstRootAbs string,
	task extractWorkItem,
	onEntryDone func(entry EntryInfo, written int64, outputPath string),
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	data, err := a.ReadEntryInfo(task.entry)
	if err != nil {
		return err
	}

	if task.relDir != "" {
		if err := os.MkdirAll(filepath.Join(dstRootAbs, task.relDir), 0o750); err != nil {
			return fmt.Errorf("create directory for %s: %w", task.entry.Path, err)
		}
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", task.entry.Path, err)
	}

	if onEntryDone != nil {
		onEntryDone(task.entry, int64(len(data)), outPath)
	}

	return nil
}

// normalizeExtractEntryPath normalizes an entry path and rejects
// absolute/traversal inputs so extraction can never escape the root.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with a drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether b is an ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
