// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"context"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternKind selects one of the three search modes.
type PatternKind uint8

// Search pattern kinds.
const (
	// PatternExact matches node leaf names byte-for-byte.
	PatternExact PatternKind = iota + 1
	// PatternGlob matches with *, ?, and bracket character classes.
	PatternGlob
	// PatternRegex matches the full normalized path with a regular expression.
	PatternRegex
)

// String returns the kind name used in errors.
func (k PatternKind) String() string {
	switch k {
	case PatternExact:
		return "exact"
	case PatternGlob:
		return "glob"
	case PatternRegex:
		return "regex"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Pattern is a compiled, immutable search pattern. Matching is always
// case-sensitive regardless of host filesystem behavior.
type Pattern struct {
	re   *regexp.Regexp
	text string
	kind PatternKind
	// fullPath selects matching against the full normalized path instead
	// of the leaf name. Globs switch to full-path mode when the pattern
	// contains a slash; regex patterns always use the full path.
	fullPath bool
}

// Kind returns the pattern kind.
func (p Pattern) Kind() PatternKind {
	return p.kind
}

// CompilePattern builds a pattern of the given kind from expr.
// Malformed globs (such as an unterminated character class) and invalid
// regular expressions fail with ErrPattern. An empty glob matches nothing.
func CompilePattern(kind PatternKind, expr string) (Pattern, error) {
	switch kind {
	case PatternExact:
		return Pattern{kind: kind, text: expr}, nil
	case PatternGlob:
		if expr == "" {
			return Pattern{kind: kind}, nil
		}

		if !doublestar.ValidatePattern(expr) {
			return Pattern{}, fmt.Errorf("%w: malformed glob %q", ErrPattern, expr)
		}

		return Pattern{
			kind:     kind,
			text:     expr,
			fullPath: strings.Contains(expr, "/"),
		}, nil
	case PatternRegex:
		re, err := regexp.Compile(expr)
		if err != nil {
			return Pattern{}, fmt.Errorf("%w: %v", ErrPattern, err)
		}

		return Pattern{kind: kind, text: expr, re: re, fullPath: true}, nil
	default:
		return Pattern{}, fmt.Errorf("%w: unknown pattern kind %d", ErrPattern, uint8(kind))
	}
}

// Matches reports whether the pattern matches one tree node.
func (p Pattern) Matches(n *Node) bool {
	switch p.kind {
	case PatternExact:
		return p.text != "" && n.Name() == p.text
	case PatternGlob:
		if p.text == "" {
			return false
		}

		subject := n.Name()
		if p.fullPath {
			subject = n.Path()
		}

		ok, err := doublestar.Match(p.text, subject)
		return err == nil && ok
	case PatternRegex:
		return p.re.MatchString(n.Path())
	default:
		return false
	}
}

// Find yields nodes matching the pattern in deterministic tree traversal
// order (depth-first, directories before files, children sorted by name).
// The sequence is lazy and restartable, so callers can stop early without
// paying for the remaining traversal.
func (t *Tree) Find(p Pattern) iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for node := range t.Walk() {
			if !p.Matches(node) {
				continue
			}

			if !yield(node) {
				return
			}
		}
	}
}

// FindAll materializes all matches of the pattern in traversal order.
func (t *Tree) FindAll(p Pattern) []*Node {
	var out []*Node
	for node := range t.Find(p) {
		out = append(out, node)
	}

	return out
}

// Search compiles a pattern of the given kind and materializes all matches.
func (a *Archive) Search(kind PatternKind, expr string) ([]*Node, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	pattern, err := CompilePattern(kind, expr)
	if err != nil {
		return nil, err
	}

	return a.tree.FindAll(pattern), nil
}

// FindExtract composes search with extraction: every matched file, and
// every file under a matched directory, is written below dstDir with its
// archive-relative directory structure preserved. Per-entry failures are
// collected into the report rather than aborting the batch.
func (a *Archive) FindExtract(ctx context.Context, p Pattern, dstDir string, opts ExtractOptions) (*ExtractReport, error) {
	if a == nil {
		return nil, ErrNilArchive
	}

	opts.Entries = selectEntries(a.tree.FindAll(p))
	return a.Extract(ctx, dstDir, opts)
}

// selectEntries expands matched nodes into a deduplicated entry list in
// traversal order. Matched directories contribute every file beneath them.
func selectEntries(nodes []*Node) []EntryInfo {
	seen := make(map[*EntryInfo]struct{})
	out := make([]EntryInfo, 0, len(nodes))

	var add func(n *Node)
	add = func(n *Node) {
		if n.IsDir() {
			for _, child := range n.sortedChildren() {
				add(child)
			}

			return
		}

		entry := n.Entry()
		if _, dup := seen[entry]; dup {
			return
		}

		seen[entry] = struct{}{}
		out = append(out, *entry)
	}

	for _, node := range nodes {
		add(node)
	}

	return out
}
