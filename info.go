// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"
	"os"
	"sort"
)

// Info returns a summary of the opened archive: entry count, aggregate
// sizes, and the set of compression modes in use.
func (a *Archive) Info() ArchiveInfo {
	if a == nil {
		return ArchiveInfo{}
	}

	info := ArchiveInfo{
		Entries:    len(a.entries),
		Version:    a.header.Version,
		Obfuscated: a.obfuscated,
	}

	seen := make(map[CompressionMode]struct{})
	for i := range a.entries {
		e := &a.entries[i]
		info.StoredBytes += int64(e.StoredSize)
		info.OriginalBytes += int64(e.OriginalSize)
		seen[e.Mode] = struct{}{}
	}

	info.Modes = make([]CompressionMode, 0, len(seen))
	for mode := range seen {
		info.Modes = append(info.Modes, mode)
	}

	sort.Slice(info.Modes, func(i, j int) bool {
		return info.Modes[i] < info.Modes[j]
	})

	return info
}

// ReadHeader opens a PAK file and returns only the parsed header without
// building the virtual file tree.
func ReadHeader(path string) (Header, error) {
	data, err := readImage(path)
	if err != nil {
		return Header{}, err
	}

	hdr, _, _, _, err := parseImage(data)
	return hdr, err
}

// ListEntries opens a PAK file and returns entry metadata without building
// the virtual file tree.
func ListEntries(path string) ([]EntryInfo, error) {
	data, err := readImage(path)
	if err != nil {
		return nil, err
	}

	_, entries, _, _, err := parseImage(data)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

// readImage reads a whole archive file with a uniform error wrap.
func readImage(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open PAK: %w", err)
	}

	return data, nil
}
