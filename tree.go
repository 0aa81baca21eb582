// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"
	"iter"
	"sort"
	"strings"
)

// NodeKind distinguishes directory and file tree nodes.
type NodeKind uint8

// Tree node kinds.
const (
	// KindDirectory is an inner node synthesized from entry path segments.
	KindDirectory NodeKind = iota
	// KindFile is a leaf node owning exactly one archive entry.
	KindFile
)

// String returns a short kind name for listings.
func (k NodeKind) String() string {
	if k == KindFile {
		return "file"
	}

	return "dir"
}

// Node is one directory or file in the virtual file tree. Nodes are owned
// exclusively by the tree and immutable after build.
type Node struct {
	parent   *Node
	children map[string]*Node
	entry    *EntryInfo
	name     string
	kind     NodeKind
}

// Name returns the node leaf name. The root has an empty name.
func (n *Node) Name() string {
	return n.name
}

// Kind returns the node kind.
func (n *Node) Kind() NodeKind {
	return n.kind
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool {
	return n.kind == KindDirectory
}

// Entry returns the archive entry owned by a file node, nil for directories.
func (n *Node) Entry() *EntryInfo {
	return n.entry
}

// Child returns the named child of a directory node, nil when absent.
func (n *Node) Child(name string) *Node {
	return n.children[name]
}

// Path returns the canonical slash-separated path from the root.
// The root itself yields "".
func (n *Node) Path() string {
	if n.parent == nil {
		return ""
	}

	names := n.location()
	return strings.Join(names, "/")
}

// location returns the sequence of names from the root to this node.
func (n *Node) location() []string {
	depth := 0
	for cur := n; cur.parent != nil; cur = cur.parent {
		depth++
	}

	names := make([]string, depth)
	for cur := n; cur.parent != nil; cur = cur.parent {
		depth--
		names[depth] = cur.name
	}

	return names
}

// sortedChildren returns children in deterministic listing order:
// directories first, then files, each group in byte-wise name order.
func (n *Node) sortedChildren() []*Node {
	out := make([]*Node, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, child)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].kind != out[j].kind {
			return out[i].kind == KindDirectory
		}

		return out[i].name < out[j].name
	})

	return out
}

// ListItem is one row of a directory listing.
type ListItem struct {
	// Name is the child leaf name.
	Name string `json:"name" yaml:"name"`
	// Size is the uncompressed size for files, zero for directories.
	Size uint32 `json:"size" yaml:"size"`
	// Kind is the child node kind.
	Kind NodeKind `json:"kind" yaml:"kind"`
}

// List returns the directory contents in deterministic order. Listing a
// file node returns nil.
func (n *Node) List() []ListItem {
	if !n.IsDir() {
		return nil
	}

	children := n.sortedChildren()
	out := make([]ListItem, 0, len(children))
	for _, child := range children {
		item := ListItem{Name: child.name, Kind: child.kind}
		if child.entry != nil {
			item.Size = child.entry.OriginalSize
		}

		out = append(out, item)
	}

	return out
}

// Tree is the virtual directory hierarchy reconstructed from the archive's
// flat entry list. It is immutable after build.
type Tree struct {
	root *Node
}

// Root returns the tree root directory.
func (t *Tree) Root() *Node {
	return t.root
}

// buildTree inserts every entry into a directory hierarchy. Duplicate paths
// resolve last-write-wins; a path claimed as both a file and a directory
// fails with ErrConflict.
func buildTree(entries []EntryInfo) (*Tree, error) {
	root := &Node{kind: KindDirectory, children: make(map[string]*Node)}

	for i := range entries {
		entry := &entries[i]
		segments := strings.Split(entry.Path, "/")

		cur := root
		for _, segment := range segments[:len(segments)-1] {
			child := cur.children[segment]
			if child == nil {
				child = &Node{
					name:     segment,
					parent:   cur,
					kind:     KindDirectory,
					children: make(map[string]*Node),
				}
				cur.children[segment] = child
			} else if child.kind == KindFile {
				return nil, fmt.Errorf("%w: %s", ErrConflict, child.Path())
			}

			cur = child
		}

		leaf := segments[len(segments)-1]
		if existing := cur.children[leaf]; existing != nil && existing.kind == KindDirectory {
			return nil, fmt.Errorf("%w: %s", ErrConflict, existing.Path())
		}

		cur.children[leaf] = &Node{
			name:   leaf,
			parent: cur,
			kind:   KindFile,
			entry:  entry,
		}
	}

	return &Tree{root: root}, nil
}

// Resolve walks a path reference against the tree. The reference may be
// absolute (leading "/") or relative to base, and supports "." and ".."
// segments; ".." above the root is clamped to the root, not an error.
// Base is a name sequence from the root, typically NavState.Location().
func (t *Tree) Resolve(base []string, ref string) (*Node, error) {
	ref = strings.TrimSpace(strings.ReplaceAll(ref, `\`, "/"))

	cur := t.root
	if !strings.HasPrefix(ref, "/") {
		for _, name := range base {
			next := cur.Child(name)
			if next == nil || !next.IsDir() {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.Join(base, "/"))
			}

			cur = next
		}
	}

	for _, segment := range strings.Split(ref, "/") {
		switch segment {
		case "", ".":
			continue
		case "..":
			if cur.parent != nil {
				cur = cur.parent
			}
		default:
			if !cur.IsDir() {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
			}

			next := cur.Child(segment)
			if next == nil {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
			}

			cur = next
		}
	}

	return cur, nil
}

// Walk yields every node except the root in depth-first order: at each
// directory, subdirectories before files, each in byte-wise name order.
// The sequence is lazy and restartable; traversal stops as soon as the
// consumer stops.
func (t *Tree) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		walkNode(t.root, yield)
	}
}

// walkNode recurses one directory level; returns false to stop traversal.
func walkNode(n *Node, yield func(*Node) bool) bool {
	for _, child := range n.sortedChildren() {
		if !yield(child) {
			return false
		}

		if child.kind == KindDirectory && !walkNode(child, yield) {
			return false
		}
	}

	return true
}
