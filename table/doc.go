// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

/*
Package table decodes and encodes the DB table blobs stored under
db/<table>/ in a container.

A blob starts with an optional GUID marker, an optional version marker, a
header byte and the row count, followed by the rows laid out field by field
as the resolved [schema.Definition] describes.

	t, err := table.Decode("units_tables", blob, reg)
	if err != nil {
		// t still holds the blob; t.Decodable() is false.
	}
	_ = t.Set(0, "cost", table.Int(450))
	out, err := t.Encode()

Decoding consumes the blob exactly. A blob that is one byte short or long
fails with a [DecodeError] naming the row and field; rows are never padded
or dropped. Cells are [Value]s tagged with their kind, and floats keep the
bit pattern they were read with, so encoding an unedited table reproduces
its bytes.
*/
package table
