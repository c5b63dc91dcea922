// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package loadorder merges the DB tables of several containers the way the game
applies them.

A LoadOrder lists container identifiers from lowest to highest precedence.
Resolve folds every copy of a table across that order: a row replaces the row
with the same key from any lower container, and a tombstone row removes the
key altogether. Tables whose layout version differs from the highest
precedence copy are converted to it by field name.

Resolution never fails. Missing containers, undecodable tables, version
conversions and duplicate keys within one container are reported as
Warnings on the result and logged.

	r := &loadorder.Resolver{Registry: reg, Logger: logger}
	merged := r.Resolve(loadorder.LoadOrder{"data.pack", "my_mod.pack"}, set, "units_tables")
	for _, row := range merged.Rows {
		fmt.Println(row.Source.Container, row.Row.Values[0])
	}

A Chain gives the same precedence view over whole entries, and Optimize
strips rows of a mod table that do not change the merged result.
*/
package loadorder
