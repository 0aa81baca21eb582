// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/woozymasta/lzss"
	"github.com/woozymasta/pathrules"
)

// decompressPayload decodes one stored block according to its declared mode.
// This is the single dispatch point over the closed compression mode set.
func decompressPayload(mode CompressionMode, stored []byte, originalSize int) ([]byte, error) {
	switch mode {
	case ModeNone:
		out := make([]byte, len(stored))
		copy(out, stored)
		return out, nil
	case ModeLZSS:
		var buf bytes.Buffer
		buf.Grow(originalSize)
		if _, err := lzss.DecompressToWriter(&buf, bytes.NewReader(stored), originalSize, nil); err != nil {
			return nil, fmt.Errorf("lzss: %w", err)
		}

		return buf.Bytes(), nil
	case ModeZlib:
		zr, err := zlib.NewReader(bytes.NewReader(stored))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}

		// Read one byte past the declared size so oversized streams are
		// caught by the caller's size check instead of ballooning memory.
		out, err := io.ReadAll(io.LimitReader(zr, int64(originalSize)+1))
		closeErr := zr.Close()
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if closeErr != nil {
			return nil, fmt.Errorf("zlib: %w", closeErr)
		}

		return out, nil
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedCompression, uint8(mode))
	}
}

// compressPayload encodes one payload block with the selected mode.
func compressPayload(mode CompressionMode, raw []byte) ([]byte, error) {
	switch mode {
	case ModeNone:
		return raw, nil
	case ModeLZSS:
		return lzss.Compress(raw, lzss.DefaultCompressOptions())
	case ModeZlib:
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			_ = zw.Close()
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}

		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("%w: mode %d", ErrUnsupportedCompression, uint8(mode))
	}
}

// compressMatcher holds compiled allow-list rules for compression.
type compressMatcher struct {
	matcher *pathrules.Matcher
}

// newCompressMatcher compiles compression path rules.
func newCompressMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*compressMatcher, error) {
	rules = normalizeCompressRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidCompressPattern, err)
	}

	return &compressMatcher{matcher: matcher}, nil
}

// normalizeCompressRules normalizes rule patterns and drops empty patterns.
func normalizeCompressRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is included by at least one compress rule.
func (m *compressMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// shouldCompress returns true if path and size pass compression policy.
func shouldCompress(opts PackOptions, matcher *compressMatcher, path string, size uint32) bool {
	if !shouldCompressBySize(opts, size) {
		return false
	}

	if matcher == nil {
		return false
	}

	return matcher.Match(path)
}

// shouldCompressBySize reports whether payload size fits compression boundaries.
func shouldCompressBySize(opts PackOptions, size uint32) bool {
	if size > opts.MaxCompressSize || size < opts.MinCompressSize {
		return false
	}

	return true
}
