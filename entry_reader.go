// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ReadEntry reads full decompressed content of the entry at path.
// The path may be absolute or root-relative in normalized slash form.
func (a *Archive) ReadEntry(path string) ([]byte, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	node, err := a.tree.Resolve(nil, path)
	if err != nil {
		return nil, err
	}

	if node.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	return a.ReadEntryInfo(*node.Entry())
}

// ReadEntryInfo reads decompressed content for already resolved entry
// metadata. The declared uncompressed size and, for checksum archives, the
// stored xxhash64 are verified; mismatches fail with ErrIntegrity.
func (a *Archive) ReadEntryInfo(e EntryInfo) ([]byte, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	if err := validateEntryBounds(&e, int64(len(a.payload))); err != nil {
		return nil, err
	}

	stored := a.payload[e.Offset : int64(e.Offset)+int64(e.StoredSize)]
	raw, err := decompressPayload(e.Mode, stored, int(e.OriginalSize))
	if err != nil {
		return nil, fmt.Errorf("decompress entry %s: %w", e.Path, err)
	}

	if len(raw) != int(e.OriginalSize) {
		return nil, fmt.Errorf("%w: entry %s decompressed to %d bytes, declared %d",
			ErrIntegrity, e.Path, len(raw), e.OriginalSize)
	}

	if a.header.Version >= VersionChecksum {
		if sum := xxhash.Sum64(raw); sum != e.Checksum {
			return nil, fmt.Errorf("%w: entry %s checksum %016x, declared %016x",
				ErrIntegrity, e.Path, sum, e.Checksum)
		}
	}

	return raw, nil
}
