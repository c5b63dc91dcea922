// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import "github.com/suprsokr/go-packfile/schema"

// ConvertRow maps r from the layout of from onto the layout of to by field
// name. Fields with the same name and type are copied; the rest get their
// defaults. It reports how many fields of to were defaulted.
func ConvertRow(from, to *schema.Definition, r Row) (Row, int) {
	src := from.Fields()
	dst := to.Fields()
	out := Row{Values: make([]Value, len(dst)), Tombstone: r.Tombstone}
	defaulted := 0
	for i := range dst {
		j := from.FieldIndex(dst[i].Name)
		if j >= 0 && src[j].Type == dst[i].Type && Check(dst[i], r.Values[j]) == nil {
			out.Values[i] = retarget(dst[i], r.Values[j])
			continue
		}
		out.Values[i] = Default(dst[i])
		defaulted++
	}
	if tomb := to.TombstoneIndex(); tomb >= 0 {
		out.Values[tomb] = Bool(r.Tombstone)
	}
	return out, defaulted
}

// retarget rewrites string values so their reference matches f.
func retarget(f schema.FieldDef, v Value) Value {
	if v.kind != KindString && v.kind != KindRef {
		return v
	}
	if f.Ref != nil {
		return Ref(v.str, *f.Ref)
	}
	return String(v.str)
}
