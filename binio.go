// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"encoding/binary"
	"fmt"
)

// byteReader is a bounds-checked little-endian cursor over an archive image.
// Every out-of-range access becomes ErrFormat with the failing offset.
type byteReader struct {
	data []byte
	off  int
}

// newByteReader wraps a byte slice for sequential reads.
func newByteReader(data []byte) *byteReader {
	return &byteReader{data: data}
}

// remaining returns the number of unread bytes.
func (r *byteReader) remaining() int {
	return len(r.data) - r.off
}

// need fails with ErrFormat when fewer than n bytes remain.
func (r *byteReader) need(n int) error {
	if n < 0 || r.remaining() < n {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrFormat, n, r.off, r.remaining())
	}

	return nil
}

// uint8 reads one byte.
func (r *byteReader) uint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}

	v := r.data[r.off]
	r.off++
	return v, nil
}

// uint16 reads a little-endian uint16.
func (r *byteReader) uint16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v, nil
}

// uint32 reads a little-endian uint32.
func (r *byteReader) uint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v, nil
}

// uint64 reads a little-endian uint64.
func (r *byteReader) uint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}

	v := binary.LittleEndian.Uint64(r.data[r.off:])
	r.off += 8
	return v, nil
}

// bytes reads a raw span of n bytes. The returned slice aliases the image.
func (r *byteReader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}

	v := r.data[r.off : r.off+n]
	r.off += n
	return v, nil
}

// lenPrefixedString reads a uint16 length-prefixed string bounded by max.
func (r *byteReader) lenPrefixedString(max int) (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}

	if int(n) > max {
		return "", fmt.Errorf("%w: %d bytes at offset %d", ErrNameTooLong, n, r.off)
	}

	raw, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

// rest returns all unread bytes without advancing the cursor.
func (r *byteReader) rest() []byte {
	return r.data[r.off:]
}

// byteWriter assembles a little-endian archive image in memory.
type byteWriter struct {
	buf []byte
}

// newByteWriter creates a writer with preallocated capacity.
func newByteWriter(capacity int) *byteWriter {
	if capacity < 0 {
		capacity = 0
	}

	return &byteWriter{buf: make([]byte, 0, capacity)}
}

// bytes returns the assembled image.
func (w *byteWriter) bytes() []byte {
	return w.buf
}

// uint8 appends one byte.
func (w *byteWriter) uint8(v uint8) {
	w.buf = append(w.buf, v)
}

// uint16 appends a little-endian uint16.
func (w *byteWriter) uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// uint32 appends a little-endian uint32.
func (w *byteWriter) uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// uint64 appends a little-endian uint64.
func (w *byteWriter) uint64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

// raw appends a byte span verbatim.
func (w *byteWriter) raw(b []byte) {
	w.buf = append(w.buf, b...)
}

// lenPrefixedString appends a uint16 length-prefixed string.
func (w *byteWriter) lenPrefixedString(s string) error {
	if len(s) > maxNameLen {
		return fmt.Errorf("%w: %q is %d bytes", ErrNameTooLong, s, len(s))
	}

	w.uint16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}
