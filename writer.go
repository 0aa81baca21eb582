// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"context"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// packSource is one regular file selected by the source walk.
type packSource struct {
	archivePath string
	fsPath      string
}

// packedEntry pairs final entry metadata with its stored payload block.
type packedEntry struct {
	stored    []byte
	info      EntryInfo
	candidate bool
}

// Pack walks sourceDir, builds entries with the configured compression
// policy, and returns a complete archive image. For a fixed filesystem
// snapshot and fixed options the output is byte-identical across runs:
// sources are sorted lexicographically by archive path and offsets are a
// running cursor over the payload region.
func Pack(ctx context.Context, sourceDir string, opts PackOptions) ([]byte, *PackResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	if opts.Version < VersionLegacy || opts.Version > VersionChecksum {
		return nil, nil, fmt.Errorf("%w: unsupported version %d", ErrFormat, opts.Version)
	}

	matcher, err := newCompressMatcher(opts.Compress, opts.CompressMatcherOptions)
	if err != nil {
		return nil, nil, fmt.Errorf("compile compress rules: %w", err)
	}

	sources, err := collectPackSources(sourceDir, opts)
	if err != nil {
		return nil, nil, err
	}

	if len(sources) == 0 {
		return nil, nil, ErrEmptyInputs
	}

	sort.Slice(sources, func(i, j int) bool {
		return sources[i].archivePath < sources[j].archivePath
	})

	if err := validateUniqueSourcePaths(sources); err != nil {
		return nil, nil, err
	}

	result := &PackResult{}
	packed := make([]packedEntry, 0, len(sources))
	var cursor uint32

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		raw, err := os.ReadFile(src.fsPath)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", src.fsPath, err)
		}

		entry, err := packOneBuffer(opts, matcher, src.archivePath, raw, cursor)
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

	if opts.Obfuscate {
		obfuscate(image)
	}

	return image, result, nil
}

// PackFile packs sourceDir and writes the archive image to outPath.
func PackFile(ctx context.Context, outPath string, sourceDir string, opts PackOptions) (*PackResult, error) {
	image, result, err := Pack(ctx, sourceDir, opts)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outPath, image, 0o600); err != nil {
		return nil, fmt.Errorf("write PAK file: %w", err)
	}

	return result, nil
}

// packOneBuffer converts one raw payload into a stored entry according to
// the compression policy. Compression is written only when the result is
// smaller than the source; otherwise the candidate is stored raw.
func packOneBuffer(
	opts PackOptions,
	matcher *compressMatcher,
	archivePath string,
	raw []byte,
	cursor uint32,
) (packedEntry, error) {
	if int64(len(raw)) > int64(math.MaxUint32) {
		return packedEntry{}, fmt.Errorf("%w: entry %s is %d bytes", ErrSizeOverflow, archivePath, len(raw))
	}

	originalSize := uint32(len(raw))
	stored := raw
	mode := ModeNone

	candidate := opts.DefaultMode != ModeNone && shouldCompress(opts, matcher, archivePath, originalSize)
	if candidate {
		compressed, err := compressPayload(opts.DefaultMode, raw)
		if err != nil {
			return packedEntry{}, fmt.Errorf("compress %s: %w", archivePath, err)
		}

		if len(compressed) < len(raw) {
			stored = compressed
			mode = opts.DefaultMode
		}
	}

	storedSize, err := checkedDataSize(archivePath, int64(len(stored)), cursor)
	if err != nil {
		return packedEntry{}, err
	}

	entry := packedEntry{
		stored:    stored,
		candidate: candidate,
		info: EntryInfo{
			Path:         archivePath,
			Offset:       cursor,
			StoredSize:   storedSize,
			OriginalSize: originalSize,
			Mode:         mode,
		},
	}

	if opts.Version >= VersionChecksum {
		entry.info.Checksum = xxhash.Sum64(raw)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(PackEntryProgress{
			Path:                 archivePath,
			Offset:               cursor,
			StoredSize:           storedSize,
			OriginalSize:         originalSize,
			Mode:                 mode,
			CompressionCandidate: candidate,
			Compressed:           mode != ModeNone,
		})
	}

	return entry, nil
}

// recordPackStats accumulates per-entry statistics into the pack result.
func recordPackStats(result *PackResult, entry *packedEntry) {
	result.DataSize += int64(entry.info.StoredSize)
	if entry.info.Mode != ModeNone {
		result.CompressedEntries++
		result.CompressedBytes += int64(entry.info.StoredSize)
		return
	}

	result.RawBytes += int64(entry.info.StoredSize)
	if entry.candidate {
		result.SkippedCompressionEntries++
	}
}

// serializeArchive lays out header, entry table, then concatenated payload
// blocks in entry order. Same entries and payloads always produce a
// byte-identical image.
func serializeArchive(version uint32, defaultMode CompressionMode, packed []packedEntry) ([]byte, error) {
	indexSize := baseHeaderSize
	if version >= VersionChecksum {
		indexSize++
	}

	var dataSize int
	for i := range packed {
		indexSize += len(packed[i].info.Path) + entryRecordMinSize(version)
		dataSize += len(packed[i].stored)
	}

	w := newByteWriter(indexSize + dataSize)
	w.uint32(Magic)
	w.uint32(version)
	w.uint32(uint32(len(packed)))
	if version >= VersionChecksum {
		w.uint8(uint8(defaultMode))
	}

	for i := range packed {
		info := &packed[i].info
		if err := w.lenPrefixedString(info.Path); err != nil {
			return nil, err
		}
		w.uint32(info.Offset)
		w.uint32(info.StoredSize)
		w.uint32(info.OriginalSize)
		w.uint8(uint8(info.Mode))
		if version >= VersionChecksum {
			w.uint64(info.Checksum)
		}
	}

	for i := range packed {
		w.raw(packed[i].stored)
	}

	return w.bytes(), nil
}

// collectPackSources walks the source directory and selects regular files.
// Symlinks are skipped unless FollowSymlinks is set; followed symlink
// directories are tracked by resolved path so cycles are skipped, never
// followed. Every skip is reported through OnSkip.
func collectPackSources(root string, opts PackOptions) ([]packSource, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("pack source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pack source %s: not a directory", root)
	}

	skip := func(path, reason string) {
		if opts.OnSkip != nil {
			opts.OnSkip(path, reason)
		}
	}

	visited := make(map[string]struct{})
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		visited[resolved] = struct{}{}
	}

	var sources []packSource
	var walk func(dir string, rel string) error
	walk = func(dir string, rel string) error {
		dirEntries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("read directory %s: %w", dir, err)
		}

		for _, de := range dirEntries {
			full := filepath.Join(dir, de.Name())
			relPath := de.Name()
			if rel != "" {
				relPath = rel + "/" + de.Name()
			}

			mode := de.Type()
			switch {
			case mode.IsRegular():
				archivePath, err := normalizeArchiveEntryPath(relPath)
				if err != nil {
					return err
				}

				sources = append(sources, packSource{archivePath: archivePath, fsPath: full})
			case mode.IsDir():
				if err := walk(full, relPath); err != nil {
					return err
				}
			case mode&fs.ModeSymlink != 0:
				if !opts.FollowSymlinks {
					skip(full, "symlink")
					continue
				}

				if err := walkSymlink(full, relPath, visited, skip, walk, &sources); err != nil {
					return err
				}
			default:
				skip(full, "special file")
			}
		}

		return nil
	}

	if err := walk(root, ""); err != nil {
		return nil, err
	}

	return sources, nil
}

// walkSymlink resolves one symlink during the source walk. Directory
// targets already seen are cycle-skipped; file targets become sources.
func walkSymlink(
	full string,
	relPath string,
	visited map[string]struct{},
	skip func(path, reason string),
	walk func(dir string, rel string) error,
	sources *[]packSource,
) error {
	resolved, err := filepath.EvalSymlinks(full)
	if err != nil {
		skip(full, "broken symlink")
		return nil
	}

	info, err := os.Stat(resolved)
	if err != nil {
		skip(full, "broken symlink")
		return nil
	}

	switch {
	case info.IsDir():
		if _, seen := visited[resolved]; seen {
			skip(full, "symlink cycle")
			return nil
		}

		visited[resolved] = struct{}{}
		return walk(full, relPath)
	case info.Mode().IsRegular():
		archivePath, err := normalizeArchiveEntryPath(relPath)
		if err != nil {
			return err
		}

		*sources = append(*sources, packSource{archivePath: archivePath, fsPath: full})
		return nil
	default:
		skip(full, "special file")
		return nil
	}
}

// validateUniqueSourcePaths ensures no two sources claim one archive path.
// The source list must already be sorted by archive path.
func validateUniqueSourcePaths(sources []packSource) error {
	for i := 1; i < len(sources); i++ {
		if sources[i].archivePath == sources[i-1].archivePath {
			return fmt.Errorf("%w: %q", ErrDuplicateEntryPath, sources[i].archivePath)
		}
	}

	return nil
}

// checkedDataSize validates an entry size against uint32 fields and the
// running payload cursor.
func checkedDataSize(path string, size int64, cursor uint32) (uint32, error) {
	if size < 0 || size > int64(math.MaxUint32) {
		return 0, fmt.Errorf("%w: entry %s size %d is out of uint32 range", ErrSizeOverflow, path, size)
	}

	if size > int64(math.MaxUint32)-int64(cursor) {
		return 0, fmt.Errorf("%w: entry %s would push payload past 4 GiB", ErrSizeOverflow, path)
	}

	return uint32(size), nil
}
