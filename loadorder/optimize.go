// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"github.com/suprsokr/go-packfile/table"
)

// Optimize removes the rows of t that do not change the result of merging t
// over base, where base is the merged table of every lower precedence
// container. It removes:
//
//   - rows shadowed by a later row with the same key in t
//   - rows identical to the base row with the same key
//   - tombstones for keys base does not define
//
// It returns the number of rows removed. Undecodable tables are left alone.
func Optimize(base *MergedTable, t *table.Table) int {
	if !t.Decodable() {
		return 0
	}
	def := t.Definition()
	rows := t.Rows()
	last := make(map[table.Key]int, len(rows))
	for i := range rows {
		last[t.Key(i)] = i
	}

	var drop []int
	for i, row := range rows {
		k := t.Key(i)
		if last[k] != i {
			drop = append(drop, i)
			continue
		}
		if redundant(base, def.Version, row, k) {
			drop = append(drop, i)
		}
	}
	for n := len(drop) - 1; n >= 0; n-- {
		// Indexes come from t and are removed back to front.
		_ = t.RemoveRow(drop[n])
	}
	return len(drop)
}

// redundant reports whether row, the last row for k, leaves base unchanged.
func redundant(base *MergedTable, version int32, row table.Row, k table.Key) bool {
	if base == nil || base.Definition == nil {
		return false
	}
	// Keys and values only compare within one layout.
	if base.Definition.Version != version {
		return false
	}
	got, ok := base.Lookup(k)
	if row.Tombstone {
		return !ok
	}
	return ok && got.Row.Equal(row)
}
