// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
)

// Archive provides read-only access to a parsed PAK image. The header,
// entry table, and virtual file tree are immutable after Parse, so any
// number of searches and extractions may run concurrently over one Archive.
type Archive struct {
	// tree is the virtual directory tree built from the flat entry list.
	tree *Tree
	// header stores parsed fixed header fields.
	header Header
	// entries stores parsed immutable entry metadata in table order.
	entries []EntryInfo
	// payload is the payload region of the (de-obfuscated) image.
	payload []byte
	// obfuscated reports whether the source image was XOR-obfuscated.
	obfuscated bool
}

// Open reads a PAK file from disk and parses it.
func Open(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open PAK: %w", err)
	}

	return Parse(data)
}

// Parse parses a PAK image from memory. The input slice is not retained:
// obfuscated images are decoded into a copy, plain images are copied before
// the payload region is sliced.
func Parse(data []byte) (*Archive, error) {
	hdr, entries, payload, obfuscated, err := parseImage(data)
	if err != nil {
		return nil, err
	}

	tree, err := buildTree(entries)
	if err != nil {
		return nil, err
	}

	return &Archive{
		header:     hdr,
		entries:    entries,
		payload:    payload,
		tree:       tree,
		obfuscated: obfuscated,
	}, nil
}

// parseImage validates the header and entry table and returns parsed
// metadata plus the payload region. All reads are bounds-checked; malformed
// or adversarial input fails with ErrFormat, never an out-of-range access.
func parseImage(data []byte) (Header, []EntryInfo, []byte, bool, error) {
	var hdr Header

	if len(data) < baseHeaderSize {
		return hdr, nil, nil, false, fmt.Errorf("%w: %d bytes is too short for header", ErrFormat, len(data))
	}

	obfuscated := false
	if binary.LittleEndian.Uint32(data) == obfuscatedMagic {
		data = deobfuscate(data)
		obfuscated = true
	} else {
		clone := make([]byte, len(data))
		copy(clone, data)
		data = clone
	}

	r := newByteReader(data)

	magic, err := r.uint32()
	if err != nil {
		return hdr, nil, nil, false, err
	}
	if magic != Magic {
		return hdr, nil, nil, false, fmt.Errorf("%w: bad magic 0x%08X", ErrFormat, magic)
	}

	if hdr.Version, err = r.uint32(); err != nil {
		return hdr, nil, nil, false, err
	}
	if hdr.Version < VersionLegacy || hdr.Version > VersionChecksum {
		return hdr, nil, nil, false, fmt.Errorf("%w: unsupported version %d", ErrFormat, hdr.Version)
	}

	if hdr.EntryCount, err = r.uint32(); err != nil {
		return hdr, nil, nil, false, err
	}

	if hdr.Version >= VersionChecksum {
		tag, err := r.uint8()
		if err != nil {
			return hdr, nil, nil, false, err
		}

		hdr.DefaultMode = CompressionMode(tag)
		if !hdr.DefaultMode.known() {
			return hdr, nil, nil, false, fmt.Errorf("%w: header mode %d", ErrUnsupportedCompression, tag)
		}
	}

	// An entry count that cannot fit in the remaining bytes fails before
	// any record allocation.
	recordMin := entryRecordMinSize(hdr.Version)
	if int64(hdr.EntryCount)*int64(recordMin) > int64(r.remaining()) {
		return hdr, nil, nil, false, fmt.Errorf("%w: entry count %d exceeds buffer", ErrFormat, hdr.EntryCount)
	}

	entries := make([]EntryInfo, 0, hdr.EntryCount)
	for i := uint32(0); i < hdr.EntryCount; i++ {
		entry, err := parseEntryRecord(r, hdr.Version)
		if err != nil {
			return hdr, nil, nil, false, fmt.Errorf("entry %d: %w", i, err)
		}

		entries = append(entries, entry)
	}

	payload := r.rest()
	for i := range entries {
		if err := validateEntryBounds(&entries[i], int64(len(payload))); err != nil {
			return hdr, nil, nil, false, err
		}
	}

	if hdr.Version == VersionLegacy {
		hdr.DefaultMode = detectLegacyMode(entries)
	}

	return hdr, entries, payload, obfuscated, nil
}

// entryRecordMinSize returns the smallest possible record size for a version.
func entryRecordMinSize(version uint32) int {
	// nameLen + offset + storedSize + originalSize + mode
	size := 2 + 4 + 4 + 4 + 1
	if version >= VersionChecksum {
		size += checksumSize
	}

	return size
}

// parseEntryRecord reads and validates one entry record.
func parseEntryRecord(r *byteReader, version uint32) (EntryInfo, error) {
	var e EntryInfo

	// A table with a malformed path is a malformed table: path errors
	// keep their own sentinel but also satisfy errors.Is(err, ErrFormat).
	path, err := r.lenPrefixedString(maxNameLen)
	if err != nil {
		if !errors.Is(err, ErrFormat) {
			err = fmt.Errorf("%w: %w", ErrFormat, err)
		}

		return e, err
	}
	if err := validateEntryPath(path); err != nil {
		return e, fmt.Errorf("%w: %w", ErrFormat, err)
	}

	e.Path = path
	if e.Offset, err = r.uint32(); err != nil {
		return e, err
	}
	if e.StoredSize, err = r.uint32(); err != nil {
		return e, err
	}
	if e.OriginalSize, err = r.uint32(); err != nil {
		return e, err
	}

	tag, err := r.uint8()
	if err != nil {
		return e, err
	}

	e.Mode = CompressionMode(tag)
	if !e.Mode.known() {
		return e, fmt.Errorf("%w: entry %s mode %d", ErrUnsupportedCompression, e.Path, tag)
	}

	if e.Mode == ModeNone && e.StoredSize != e.OriginalSize {
		return e, fmt.Errorf("%w: entry %s is uncompressed but stored size %d != original size %d",
			ErrFormat, e.Path, e.StoredSize, e.OriginalSize)
	}

	if version >= VersionChecksum {
		if e.Checksum, err = r.uint64(); err != nil {
			return e, err
		}
	}

	return e, nil
}

// validateEntryBounds rejects entries whose stored region escapes the payload.
func validateEntryBounds(e *EntryInfo, payloadLen int64) error {
	end := int64(e.Offset) + int64(e.StoredSize)
	if end > payloadLen {
		return fmt.Errorf("%w: entry %s spans [%d, %d) past payload end %d",
			ErrFormat, e.Path, e.Offset, end, payloadLen)
	}

	return nil
}

// detectLegacyMode derives the archive-wide mode of a legacy image from
// per-entry tags. Unknown tags were already rejected during record parse.
func detectLegacyMode(entries []EntryInfo) CompressionMode {
	for i := range entries {
		if entries[i].Mode != ModeNone {
			return entries[i].Mode
		}
	}

	return ModeNone
}

// deobfuscate undoes whole-file XOR obfuscation into a fresh buffer.
func deobfuscate(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ obfuscationKey
	}

	return out
}

// obfuscate applies whole-file XOR obfuscation in place.
func obfuscate(data []byte) {
	for i := range data {
		data[i] ^= obfuscationKey
	}
}

// Header returns parsed fixed header fields.
func (a *Archive) Header() Header {
	if a == nil {
		return Header{}
	}

	return a.header
}

// Entries returns a copy of parsed entries in table order.
func (a *Archive) Entries() []EntryInfo {
	if a == nil {
		return nil
	}

	entries := make([]EntryInfo, len(a.entries))
	copy(entries, a.entries)
	return entries
}

// Tree returns the virtual file tree built from the entry list.
func (a *Archive) Tree() *Tree {
	if a == nil {
		return nil
	}

	return a.tree
}

// Obfuscated reports whether the source image was XOR-obfuscated.
func (a *Archive) Obfuscated() bool {
	return a != nil && a.obfuscated
}
