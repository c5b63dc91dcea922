// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package packfile provides pure Go support for reading and writing Total War
PackFile containers and the DB tables stored inside them.

A PackFile is a flat container of named entries. It starts with a four byte
preamble naming its revision (PFH0, PFH2 through PFH6), followed by a header,
a dependency index listing containers it builds on, an entry index and the
entry payloads in index order. This package decodes every known revision,
including encrypted indexes and payloads and per-entry compression on PFH5
and PFH6, and encodes containers back byte for byte when they are unedited.

# Basic Usage

Decoding a container:

	data, err := os.ReadFile("data.pack")
	if err != nil {
		log.Fatal(err)
	}
	c, err := packfile.Decode(ctx, data)
	if err != nil {
		log.Fatal(err)
	}
	for _, e := range c.Entries() {
		if err := e.Err(); err != nil {
			log.Printf("%s: %v", e.Path(), err)
		}
	}

Editing a DB table and writing the container:

	t, err := c.Table("db/units_tables/data__", reg)
	if err != nil {
		log.Fatal(err)
	}
	_ = t.Set(0, "cost", table.Int(900))
	out, err := c.Encode(ctx)

Files are handled through a [Handle], which tracks whether the container has
unsaved edits and replaces the file atomically on Save.

# Variants

Layout differences between revisions are described by [Variant] values held
in a [Variants] registry. [DefaultVariants] returns the known revisions; pass
a different registry with [WithVariants] to decode revisions this package
does not know about.

# Errors

Problems in the header or index abort decoding with a [FormatError], or an
[UnsupportedVariantError] for flags the revision cannot carry. A payload that
fails to decrypt or decompress only affects its own entry: the entry records
an [EntryError], keeps its stored bytes and is written back unchanged.

# Path Conventions

Entry paths use forward slashes. Lookups ignore case and accept backslashes,
so both of these find the same entry:

	c.Entry("db/units_tables/data__")
	c.Entry("DB\\Units_Tables\\data__")

# Limitations

  - Only zlib, zstd, snappy and minlz compression frames are built in; register
    other codecs with [WithCodecs]
  - PFH5 containers with both an extended header and an encrypted index are rejected
*/
package packfile
