// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package schema

import (
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

const definitions = `
release: warhammer_2
tables:
  units_tables:
    - version: 2
      fields:
        - {name: key, type: StringU8, key: true}
        - {name: cost, type: I32, default: 100}
    - version: 3
      fields:
        - {name: key, type: StringU8, key: true}
        - {name: cost, type: I32}
        - {name: caste, type: OptionalStringU16}
        - name: class
          type: StringU8
          ref: {table: unit_classes_tables, column: key}
        - {name: elite, type: Boolean, optional: true, releases: [warhammer_2]}
        - {name: code, type: FixedStringU8, width: 4}
        - {name: removed, type: Bool, tombstone: true}
  unit_classes_tables:
    - version: 0
      fields:
        - {name: key, type: StringU16, key: true}
`

func TestLoad(t *testing.T) {
	reg, err := Load(strings.NewReader(definitions))
	require.NoError(t, err)
	require.Equal(t, "warhammer_2", reg.Release())
	require.False(t, reg.Frozen())
	require.Equal(t, []string{"unit_classes_tables", "units_tables"}, reg.Tables())
	require.Equal(t, []int32{2, 3}, reg.Versions("units_tables"))

	d, err := reg.Resolve("units_tables", 3)
	require.NoError(t, err)
	require.Len(t, d.Fields(), 7)
	require.Equal(t, &Reference{Table: "unit_classes_tables", Column: "key"}, d.Fields()[3].Ref)
	require.Equal(t, Bool, d.Fields()[4].Type)
	require.Equal(t, 4, d.Fields()[5].Width)
	require.Equal(t, 6, d.TombstoneIndex())

	d, err = reg.Resolve("units_tables", 2)
	require.NoError(t, err)
	require.Equal(t, "100", d.Fields()[1].Default)
}

func TestLoadReleaseOverride(t *testing.T) {
	reg, err := Load(strings.NewReader(definitions), WithRelease("troy"))
	require.NoError(t, err)
	require.Equal(t, "troy", reg.Release())

	d, err := reg.Resolve("units_tables", 3)
	require.NoError(t, err)
	require.Len(t, d.Fields(), 6)
	require.Equal(t, -1, d.FieldIndex("elite"))
	require.Len(t, d.Declared(), 7)
}

func TestLoadErrors(t *testing.T) {
	for _, test := range []struct {
		name string
		doc  string
		msg  string
	}{
		{"unknown key", "tables: {}\nextra: 1\n", "parse schema definitions"},
		{"unknown type", "tables:\n  t:\n    - version: 1\n      fields:\n        - {name: a, type: Sequence}\n", "unknown field type"},
		{"duplicate version", "tables:\n  t:\n    - {version: 1, fields: [{name: a, type: I32}]}\n    - {version: 1, fields: [{name: a, type: I32}]}\n", "duplicate schema version"},
		{"invalid field", "tables:\n  t:\n    - {version: 1, fields: [{name: a, type: I32, tombstone: true}]}\n", "must be Bool"},
	} {
		t.Run(test.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(test.doc))
			require.Error(t, err)
			require.Contains(t, err.Error(), test.msg)
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	reg, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	require.Empty(t, reg.Tables())

	_, err = reg.Resolve("t", 0)
	require.True(t, errors.Is(err, ErrUnknownSchema))
}
