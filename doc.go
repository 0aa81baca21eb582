// SPDX-License-Identifier: MIT
// Copyright (c) 2026 axh-xecoy
// Source: github.com/axh-xecoy/pvz-pak-tool

/*
Package pak provides read, search, extract, pack, and edit operations for
PAK container archives. An archive is parsed once into an entry table plus
a virtual directory tree; entry payloads are decoded on demand.

Compression rules (summary):
  - path decision must include entry via PackOptions.Compress rules;
  - entry size must be within [MinCompressSize, MaxCompressSize];
  - compression is written only when result is smaller than source.

# Reading

Open a PAK and list or read entries:

	a, err := pak.Open("main.pak")
	if err != nil {
	    return err
	}
	for _, e := range a.Entries() {
	    data, _ := a.ReadEntry(e.Path)
	    // use data
	}

For metadata-only scans, use fast helpers without creating a full archive:

	header, err := pak.ReadHeader("main.pak")
	if err != nil {
	    return err
	}
	entries, err := pak.ListEntries("main.pak")
	if err != nil {
	    return err
	}
	_, _ = header, entries

Obfuscated images (whole file XOR-ed with a fixed key) are detected and
decoded transparently; Archive.Obfuscated reports the original state.

# Navigating and searching

The tree supports shell-like navigation and three pattern kinds:

	tree := a.Tree()
	nav := pak.NewNavState()
	if err := nav.Change(tree, "images/plants"); err != nil {
	    return err
	}

	nodes, err := a.Search(pak.PatternGlob, "*.xml")
	if err != nil {
	    return err
	}
	for _, n := range nodes {
	    // matched files and directories, directories first
	    _ = n.Path()
	}

Tree.Find returns a lazy iterator for early-exit scans:

	p, err := pak.CompilePattern(pak.PatternRegex, `^audio/.*\.ogg$`)
	if err != nil {
	    return err
	}
	for n := range tree.Find(p) {
	    _ = n
	    break
	}

# Extracting

Extract all entries to a directory (parallel workers):

	report, err := a.Extract(ctx, "out/", pak.ExtractOptions{MaxWorkers: 4})
	if err != nil {
	    return err
	}
	for _, f := range report.Failures {
	    // per-entry failures do not stop the rest of the batch
	    _ = f
	}

Extract only entries matched by a pattern:

	report, err = a.FindExtract(ctx, p, "out/", pak.ExtractOptions{})

# Packing

Pack a directory tree (order is deterministic by path):
examples below use github.com/woozymasta/pathrules for compression filters:

	res, err := pak.PackFile(ctx, "main.pak", "src/", pak.PackOptions{
	    Compress: []pathrules.Rule{
	        {Action: pathrules.ActionInclude, Pattern: "*.xml"},
	        {Action: pathrules.ActionInclude, Pattern: "images/**"},
	    },
	    CompressMatcherOptions: pathrules.MatcherOptions{
	        CaseInsensitive: true,
	        DefaultAction:   pathrules.ActionExclude,
	    },
	    OnEntryDone: func(entry pak.PackEntryProgress) {
	        // progress callback per written entry
	    },
	})
	_ = res.CompressedEntries
	_ = res.SkippedCompressionEntries

To edit an existing archive in one transaction:

	editor, err := pak.OpenEditor("main.pak", pak.EditOptions{
	    BackupKeep: 1,
	})
	if err != nil {
	    return err
	}
	if err := editor.Replace("properties/config.xml", data); err != nil {
	    return err
	}
	if _, err := editor.Commit(ctx); err != nil {
	    return err
	}
*/
package pak
