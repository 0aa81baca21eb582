// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cespare/xxhash/v2"
)

// manualRecord describes one hand-built entry record. Fields are written
// verbatim so tests can craft invalid tables.
type manualRecord struct {
	path         string
	checksum     uint64
	offset       uint32
	storedSize   uint32
	originalSize uint32
	mode         uint8
}

// manualImage builds a raw archive image byte-by-byte, independent of the
// pack code path.
func manualImage(version uint32, defaultMode uint8, records []manualRecord, payload []byte) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	_ = binary.Write(&buf, le, Magic)
	_ = binary.Write(&buf, le, version)
	_ = binary.Write(&buf, le, uint32(len(records)))
	if version >= VersionChecksum {
		buf.WriteByte(defaultMode)
	}

	for _, rec := range records {
		_ = binary.Write(&buf, le, uint16(len(rec.path)))
		buf.WriteString(rec.path)
		_ = binary.Write(&buf, le, rec.offset)
		_ = binary.Write(&buf, le, rec.storedSize)
		_ = binary.Write(&buf, le, rec.originalSize)
		buf.WriteByte(rec.mode)
		if version >= VersionChecksum {
			_ = binary.Write(&buf, le, rec.checksum)
		}
	}

	buf.Write(payload)
	return buf.Bytes()
}

// rawRecord builds a valid uncompressed record for payload bytes at offset.
func rawRecord(path string, offset uint32, payload []byte) manualRecord {
	return manualRecord{
		path:         path,
		offset:       offset,
		storedSize:   uint32(len(payload)),
		originalSize: uint32(len(payload)),
		mode:         uint8(ModeNone),
		checksum:     xxhash.Sum64(payload),
	}
}

func TestParse_ManualImage(t *testing.T) {
	t.Parallel()

	payload := []byte("helloworld")
	image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("a.txt", 0, payload[:5]),
		rawRecord("dir/b.txt", 5, payload[5:]),
	}, payload)

	a, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	hdr := a.Header()
	if hdr.Version != VersionChecksum || hdr.EntryCount != 2 {
		t.Fatalf("header: version=%d entries=%d", hdr.Version, hdr.EntryCount)
	}

	entries := a.Entries()
	if len(entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(entries))
	}
	if entries[0].Path != "a.txt" || entries[0].OriginalSize != 5 {
		t.Errorf("entry 0: path=%q size=%d", entries[0].Path, entries[0].OriginalSize)
	}

	data, err := a.ReadEntry("dir/b.txt")
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if string(data) != "world" {
		t.Errorf("data: got %q, want %q", data, "world")
	}
}

func TestOpen_FromDisk(t *testing.T) {
	t.Parallel()

	payload := []byte("content")
	image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("readme.txt", 0, payload),
	}, payload)

	path := filepath.Join(t.TempDir(), "manual.pak")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	data, err := a.ReadEntry("readme.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "content" {
		t.Errorf("data: got %q", data)
	}
}

func TestParse_MalformedImages(t *testing.T) {
	t.Parallel()

	payload := []byte("0123456789")

	testCases := []struct {
		name    string
		image   []byte
		wantErr error
	}{
		{
			name:    "empty",
			image:   nil,
			wantErr: ErrFormat,
		},
		{
			name:    "short header",
			image:   []byte{0xC0, 0x4A, 0xC0},
			wantErr: ErrFormat,
		},
		{
			name: "bad magic",
			image: func() []byte {
				img := manualImage(VersionChecksum, uint8(ModeNone), nil, nil)
				img[0] ^= 0xFF
				return img
			}(),
			wantErr: ErrFormat,
		},
		{
			name:    "unsupported version",
			image:   manualImage(9, uint8(ModeNone), nil, nil),
			wantErr: ErrFormat,
		},
		{
			name: "entry count exceeds buffer",
			image: func() []byte {
				img := manualImage(VersionChecksum, uint8(ModeNone), nil, nil)
				binary.LittleEndian.PutUint32(img[8:12], 0xFFFFFFFF)
				return img
			}(),
			wantErr: ErrFormat,
		},
		{
			name: "truncated entry table",
			image: func() []byte {
				img := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
					rawRecord("a.txt", 0, payload),
				}, payload)
				return img[:baseHeaderSize+1+4]
			}(),
			wantErr: ErrFormat,
		},
		{
			name: "entry past payload end",
			image: manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
				{path: "a.txt", offset: 8, storedSize: 100, originalSize: 100, mode: uint8(ModeNone)},
			}, payload),
			wantErr: ErrFormat,
		},
		{
			name: "uncompressed size mismatch",
			image: manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
				{path: "a.txt", offset: 0, storedSize: 4, originalSize: 10, mode: uint8(ModeNone)},
			}, payload),
			wantErr: ErrFormat,
		},
		{
			name: "unknown entry mode",
			image: manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
				{path: "a.txt", offset: 0, storedSize: 10, originalSize: 10, mode: 7},
			}, payload),
			wantErr: ErrUnsupportedCompression,
		},
		{
			name:    "unknown header mode",
			image:   manualImage(VersionChecksum, 9, nil, nil),
			wantErr: ErrUnsupportedCompression,
		},
		{
			name: "absolute entry path",
			image: manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
				rawRecord("/etc/passwd", 0, payload),
			}, payload),
			wantErr: ErrInvalidEntryPath,
		},
		{
			name: "dot-dot entry path",
			image: manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
				rawRecord("../a.txt", 0, payload),
			}, payload),
			wantErr: ErrInvalidEntryPath,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			if _, err := Parse(tc.image); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Parse: err=%v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestParse_PathErrorsAreFormatErrors(t *testing.T) {
	t.Parallel()

	payload := []byte("0123456789")

	t.Run("invalid path", func(t *testing.T) {
		t.Parallel()

		image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
			rawRecord("../a.txt", 0, payload),
		}, payload)

		_, err := Parse(image)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("err=%v, want ErrFormat", err)
		}
		if !errors.Is(err, ErrInvalidEntryPath) {
			t.Fatalf("err=%v, want ErrInvalidEntryPath", err)
		}
	})

	t.Run("overlong name", func(t *testing.T) {
		t.Parallel()

		image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
			rawRecord(strings.Repeat("n", maxNameLen+1), 0, payload),
		}, payload)

		_, err := Parse(image)
		if !errors.Is(err, ErrFormat) {
			t.Fatalf("err=%v, want ErrFormat", err)
		}
		if !errors.Is(err, ErrNameTooLong) {
			t.Fatalf("err=%v, want ErrNameTooLong", err)
		}
	})
}

func TestParse_ObfuscatedImage(t *testing.T) {
	t.Parallel()

	payload := []byte("secret payload")
	image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("data.bin", 0, payload),
	}, payload)

	obfuscated := make([]byte, len(image))
	copy(obfuscated, image)
	obfuscate(obfuscated)

	if bytes.Equal(obfuscated, image) {
		t.Fatal("obfuscation is a no-op")
	}
	if binary.LittleEndian.Uint32(obfuscated) != obfuscatedMagic {
		t.Fatalf("obfuscated magic: got 0x%08X", binary.LittleEndian.Uint32(obfuscated))
	}

	a, err := Parse(obfuscated)
	if err != nil {
		t.Fatalf("Parse obfuscated: %v", err)
	}
	if !a.Obfuscated() {
		t.Error("Obfuscated: got false")
	}

	data, err := a.ReadEntry("data.bin")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, payload) {
		t.Errorf("data: got %q", data)
	}
}

func TestParse_InputNotRetained(t *testing.T) {
	t.Parallel()

	payload := []byte("stable")
	image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("a.txt", 0, payload),
	}, payload)

	a, err := Parse(image)
	if err != nil {
		t.Fatal(err)
	}

	// Clobbering the caller's buffer must not affect later reads.
	for i := range image {
		image[i] = 0xAA
	}

	data, err := a.ReadEntry("a.txt")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "stable" {
		t.Errorf("data: got %q", data)
	}
}

func TestParse_LegacyModeDetection(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte("legacy data "), 64)
	compressed, err := compressPayload(ModeZlib, raw)
	if err != nil {
		t.Fatal(err)
	}

	payload := append(append([]byte(nil), compressed...), 'x')
	image := manualImage(VersionLegacy, 0, []manualRecord{
		{
			path:         "a.dat",
			offset:       0,
			storedSize:   uint32(len(compressed)),
			originalSize: uint32(len(raw)),
			mode:         uint8(ModeZlib),
		},
		{path: "b.dat", offset: uint32(len(compressed)), storedSize: 1, originalSize: 1, mode: uint8(ModeNone)},
	}, payload)

	a, err := Parse(image)
	if err != nil {
		t.Fatalf("Parse legacy: %v", err)
	}

	hdr := a.Header()
	if hdr.Version != VersionLegacy {
		t.Fatalf("version: got %d", hdr.Version)
	}
	if hdr.DefaultMode != ModeZlib {
		t.Errorf("detected mode: got %v, want %v", hdr.DefaultMode, ModeZlib)
	}

	data, err := a.ReadEntry("a.dat")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, raw) {
		t.Error("legacy compressed entry does not round-trip")
	}
}

func TestReadEntry_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	payload := []byte("checked bytes")
	rec := rawRecord("a.txt", 0, payload)
	rec.checksum ^= 1

	a, err := Parse(manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{rec}, payload))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.ReadEntry("a.txt"); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("ReadEntry: err=%v, want ErrIntegrity", err)
	}
}

func TestReadEntry_Missing(t *testing.T) {
	t.Parallel()

	payload := []byte("x")
	a, err := Parse(manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("dir/a.txt", 0, payload),
	}, payload))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.ReadEntry("dir/missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing file: err=%v, want ErrNotFound", err)
	}
	// A directory has no payload to read.
	if _, err := a.ReadEntry("dir"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("directory: err=%v, want ErrNotFound", err)
	}
}

func TestReadHeaderAndListEntries(t *testing.T) {
	t.Parallel()

	payload := []byte("abcdef")
	image := manualImage(VersionChecksum, uint8(ModeNone), []manualRecord{
		rawRecord("a.txt", 0, payload[:3]),
		rawRecord("b.txt", 3, payload[3:]),
	}, payload)

	path := filepath.Join(t.TempDir(), "meta.pak")
	if err := os.WriteFile(path, image, 0o600); err != nil {
		t.Fatal(err)
	}

	hdr, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if hdr.EntryCount != 2 || hdr.Version != VersionChecksum {
		t.Errorf("header: %+v", hdr)
	}

	entries, err := ListEntries(path)
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(entries) != 2 || entries[0].Path != "a.txt" || entries[1].Path != "b.txt" {
		t.Errorf("entries: %+v", entries)
	}
}

func TestArchiveInfo(t *testing.T) {
	t.Parallel()

	raw := bytes.Repeat([]byte("info "), 200)
	compressed, err := compressPayload(ModeZlib, raw)
	if err != nil {
		t.Fatal(err)
	}

	payload := append([]byte("plain"), compressed...)
	a, err := Parse(manualImage(VersionChecksum, uint8(ModeZlib), []manualRecord{
		rawRecord("a.txt", 0, []byte("plain")),
		{
			path:         "b.dat",
			offset:       5,
			storedSize:   uint32(len(compressed)),
			originalSize: uint32(len(raw)),
			mode:         uint8(ModeZlib),
			checksum:     xxhash.Sum64(raw),
		},
	}, payload))
	if err != nil {
		t.Fatal(err)
	}

	info := a.Info()
	if info.Entries != 2 {
		t.Fatalf("entries: got %d", info.Entries)
	}
	if info.OriginalBytes != int64(5+len(raw)) {
		t.Errorf("original bytes: got %d", info.OriginalBytes)
	}
	if info.StoredBytes != int64(5+len(compressed)) {
		t.Errorf("stored bytes: got %d", info.StoredBytes)
	}
	if len(info.Modes) != 2 || info.Modes[0] != ModeNone || info.Modes[1] != ModeZlib {
		t.Errorf("modes: %v", info.Modes)
	}
}
