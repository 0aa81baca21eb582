// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// Internal binary layout and format limits.
const (
	// Magic identifies a PAK archive image (stored little-endian).
	Magic uint32 = 0xBAC04AC0
	// obfuscatedMagic is Magic after whole-file XOR with obfuscationKey.
	obfuscatedMagic uint32 = Magic ^ 0xF7F7F7F7
	// obfuscationKey is the per-byte XOR key of obfuscated archive variants.
	obfuscationKey byte = 0xF7

	baseHeaderSize = 12  // magic + version + entry count
	checksumSize   = 8   // xxhash64 per-entry checksum in v2 records
	maxNameLen     = 512 // max entry path length in bytes
)

// Supported format versions.
const (
	// VersionLegacy archives carry no global compression flag and no
	// per-entry checksums; the archive mode is detected from entry tags.
	VersionLegacy uint32 = 1
	// VersionChecksum archives declare a default compression mode in the
	// header and store an xxhash64 checksum per entry.
	VersionChecksum uint32 = 2
)

// Default packer tuning values.
const (
	DefaultMinCompressSize = 512
	DefaultMaxCompressSize = 16 * 1024 * 1024
)

// CompressionMode is a closed set of payload encodings used by different
// game versions. Unknown tags are rejected at parse time.
type CompressionMode uint8

// Compression mode tags as stored in entry records.
const (
	// ModeNone stores payload bytes verbatim.
	ModeNone CompressionMode = 0
	// ModeLZSS stores an LZSS-compressed block.
	ModeLZSS CompressionMode = 1
	// ModeZlib stores a zlib-compressed block.
	ModeZlib CompressionMode = 2
)

// known reports whether the mode tag belongs to the supported set.
func (m CompressionMode) known() bool {
	switch m {
	case ModeNone, ModeLZSS, ModeZlib:
		return true
	default:
		return false
	}
}

// String returns a short human-readable mode name.
func (m CompressionMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeLZSS:
		return "lzss"
	case ModeZlib:
		return "zlib"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Header describes the fixed archive header.
type Header struct {
	// Version is the archive format version.
	Version uint32 `json:"version" yaml:"version"`
	// EntryCount is the declared number of entry records.
	EntryCount uint32 `json:"entry_count" yaml:"entry_count"`
	// DefaultMode is the archive-wide compression mode. For legacy
	// archives it is detected from entry tags rather than stored.
	DefaultMode CompressionMode `json:"default_mode" yaml:"default_mode"`
}

// EntryInfo describes a single parsed PAK entry.
type EntryInfo struct {
	// Path is the entry path in normalized slash-separated form.
	Path string `json:"path" yaml:"path"`
	// Checksum is the xxhash64 of uncompressed payload (v2 archives only).
	Checksum uint64 `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	// Offset is the payload byte offset relative to the payload region start.
	Offset uint32 `json:"offset" yaml:"offset"`
	// StoredSize is the stored (possibly compressed) payload size in bytes.
	StoredSize uint32 `json:"stored_size" yaml:"stored_size"`
	// OriginalSize is the uncompressed payload size in bytes.
	OriginalSize uint32 `json:"original_size" yaml:"original_size"`
	// Mode is the entry compression mode tag.
	Mode CompressionMode `json:"mode" yaml:"mode"`
}

// IsCompressed reports whether this entry's stored payload is encoded.
func (e *EntryInfo) IsCompressed() bool {
	return e.Mode != ModeNone
}

// ArchiveInfo is a summary of an opened archive.
type ArchiveInfo struct {
	// Modes lists compression modes present across entries, ascending by tag.
	Modes []CompressionMode `json:"modes" yaml:"modes"`
	// StoredBytes is the total stored payload size.
	StoredBytes int64 `json:"stored_bytes" yaml:"stored_bytes"`
	// OriginalBytes is the total uncompressed payload size.
	OriginalBytes int64 `json:"original_bytes" yaml:"original_bytes"`
	// Entries is the number of entries.
	Entries int `json:"entries" yaml:"entries"`
	// Version is the archive format version.
	Version uint32 `json:"version" yaml:"version"`
	// Obfuscated reports whether the source image was XOR-obfuscated.
	Obfuscated bool `json:"obfuscated,omitempty" yaml:"obfuscated,omitempty"`
}

// PackEntryProgress contains one completed entry write event from pack flow.
type PackEntryProgress struct {
	// Path is the entry path written to the archive.
	Path string `json:"path" yaml:"path"`
	// Offset is the payload offset relative to the payload region.
	Offset uint32 `json:"offset" yaml:"offset"`
	// StoredSize is the stored payload size in bytes.
	StoredSize uint32 `json:"stored_size" yaml:"stored_size"`
	// OriginalSize is the uncompressed payload size in bytes.
	OriginalSize uint32 `json:"original_size" yaml:"original_size"`
	// Mode is the stored compression mode tag.
	Mode CompressionMode `json:"mode" yaml:"mode"`
	// CompressionCandidate reports whether compression was attempted for this entry.
	CompressionCandidate bool `json:"compression_candidate,omitempty" yaml:"compression_candidate,omitempty"`
	// Compressed reports whether a compressed payload was actually written.
	Compressed bool `json:"compressed,omitempty" yaml:"compressed,omitempty"`
}

// PackOptions configures pack behavior.
type PackOptions struct {
	// OnEntryDone is called after one entry payload is assembled.
	OnEntryDone func(entry PackEntryProgress) `json:"-" yaml:"-"`
	// OnSkip is called for every source skipped by the walk policy
	// (symlinks, symlink cycles, special files).
	OnSkip func(path string, reason string) `json:"-" yaml:"-"`
	// Compress defines ordered path rules for compression candidate selection.
	// An empty rule set means no compression.
	Compress []pathrules.Rule `json:"compress,omitempty" yaml:"compress,omitempty"`
	// CompressMatcherOptions control compression path rule matching.
	CompressMatcherOptions pathrules.MatcherOptions `json:"compress_matcher_options,omitzero" yaml:"compress_matcher_options,omitzero"`
	// Version selects the output format version. Default is VersionChecksum.
	Version uint32 `json:"version,omitempty" yaml:"version,omitempty"`
	// MinCompressSize disables compression for entries smaller than this size.
	// Default is 512 bytes.
	MinCompressSize uint32 `json:"min_compress_size,omitempty" yaml:"min_compress_size,omitempty"`
	// MaxCompressSize disables compression for entries larger than this size.
	// Default is 16 MiB.
	MaxCompressSize uint32 `json:"max_compress_size,omitempty" yaml:"max_compress_size,omitempty"`
	// DefaultMode is the algorithm applied to compression candidates.
	// Default is ModeZlib when compress rules are present.
	DefaultMode CompressionMode `json:"default_mode,omitempty" yaml:"default_mode,omitempty"`
	// Obfuscate applies whole-file XOR obfuscation to the output image.
	Obfuscate bool `json:"obfuscate,omitempty" yaml:"obfuscate,omitempty"`
	// FollowSymlinks resolves symlinks during the source walk instead of
	// skipping them. Cycles are detected and skipped, never followed.
	FollowSymlinks bool `json:"follow_symlinks,omitempty" yaml:"follow_symlinks,omitempty"`
}

// PackResult contains pack output statistics.
type PackResult struct {
	// WrittenEntries is the number of entries written to the archive.
	WrittenEntries int `json:"written_entries" yaml:"written_entries"`
	// DataSize is total payload bytes written.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// IndexSize is total header plus entry table bytes written.
	IndexSize int64 `json:"index_size" yaml:"index_size"`
	// RawBytes is total bytes written for uncompressed payload entries.
	RawBytes int64 `json:"raw_bytes,omitempty" yaml:"raw_bytes,omitempty"`
	// CompressedBytes is total bytes written for compressed payload entries.
	CompressedBytes int64 `json:"compressed_bytes,omitempty" yaml:"compressed_bytes,omitempty"`
	// CompressedEntries is the number of entries written with compressed payload.
	CompressedEntries int `json:"compressed_entries,omitempty" yaml:"compressed_entries,omitempty"`
	// SkippedCompressionEntries is the number of candidates stored raw
	// because compression did not shrink them.
	SkippedCompressionEntries int `json:"skipped_compression_entries,omitempty" yaml:"skipped_compression_entries,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnEntryDone is called after one entry is fully written to disk.
	OnEntryDone func(entry EntryInfo, written int64, outputPath string) `json:"-" yaml:"-"`
	// Entries limits extraction to a selected metadata list; nil means all
	// parsed entries.
	Entries []EntryInfo `json:"-" yaml:"-"`
	// MaxWorkers is the number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// EditOptions configures file-based archive edit flow.
type EditOptions struct {
	// PackOptions are applied for added/replaced entries during commit.
	PackOptions PackOptions `json:"pack_options,omitzero" yaml:"pack_options,omitzero"`
	// BackupKeep controls how many backup generations are kept after a
	// successful commit. 0 removes the backup, 1 keeps only <archive>.bak,
	// N keeps .bak + .bak.1..N-1.
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// applyDefaults fills zero-valued pack options with defaults.
func (opts *PackOptions) applyDefaults() {
	if opts.Version == 0 {
		opts.Version = VersionChecksum
	}

	if opts.MinCompressSize == 0 {
		opts.MinCompressSize = DefaultMinCompressSize
	}

	if opts.MaxCompressSize == 0 || opts.MaxCompressSize <= opts.MinCompressSize {
		opts.MaxCompressSize = DefaultMaxCompressSize
	}

	if opts.DefaultMode == ModeNone && len(opts.Compress) > 0 {
		opts.DefaultMode = ModeZlib
	}

	if opts.CompressMatcherOptions == (pathrules.MatcherOptions{}) {
		opts.CompressMatcherOptions = pathrules.MatcherOptions{
			CaseInsensitive: true,
			DefaultAction:   pathrules.ActionExclude,
		}
	}

	if opts.CompressMatcherOptions.DefaultAction == pathrules.ActionUnknown {
		opts.CompressMatcherOptions.DefaultAction = pathrules.ActionExclude
	}
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	opts.PackOptions.applyDefaults()

	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}
