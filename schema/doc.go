// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package schema holds the versioned table layouts used to decode DB tables.

Each table embeds the version of the layout it was written with. A [Registry]
maps (table, version) pairs to [Definition]s and resolves them by exact match
only: table layouts change between game releases without any compatibility
guarantee, so a missing version is reported as [ErrUnknownSchema] rather than
guessed from a neighbour.

A registry targets one game release. Fields marked Optional are part of the
layout only for the releases listed on them, and are skipped by both the
decoder and the encoder everywhere else.

Registries are populated once, usually with [Load] from a definition file:

	reg, err := schema.Load(f, schema.WithRelease("warhammer_2"))
	if err != nil {
		log.Fatal(err)
	}
	def, err := reg.Resolve("units_tables", 3)

The first Resolve freezes the registry. After that it is safe for concurrent
use and Register fails with [ErrFrozen].
*/
package schema
