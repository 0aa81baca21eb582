// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

package pak

import (
	"fmt"
	"strings"
)

// NavState is a browsing session's current-directory cursor. It stores a
// name sequence rather than a node reference, so it stays valid if the
// owning session reopens or rebuilds the archive tree.
type NavState struct {
	path []string
}

// NewNavState returns a cursor positioned at the tree root.
func NewNavState() *NavState {
	return &NavState{}
}

// Location returns a copy of the current directory name sequence.
func (s *NavState) Location() []string {
	out := make([]string, len(s.path))
	copy(out, s.path)
	return out
}

// Path returns the current directory in display form, "/" for the root.
func (s *NavState) Path() string {
	if len(s.path) == 0 {
		return "/"
	}

	return "/" + strings.Join(s.path, "/")
}

// Change resolves ref against the tree and moves the cursor there.
// The target must be a directory; ".." above the root stays at the root.
func (s *NavState) Change(t *Tree, ref string) error {
	node, err := t.Resolve(s.path, ref)
	if err != nil {
		return err
	}

	if !node.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrNotFound, ref)
	}

	s.path = node.location()
	return nil
}
