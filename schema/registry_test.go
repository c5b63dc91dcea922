// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package schema

import (
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func unitFields() []FieldDef {
	return []FieldDef{
		{Name: "key", Type: StringU8, Key: true},
		{Name: "cost", Type: I32, Default: "100"},
		{Name: "elite", Type: Bool, Optional: true, Releases: []string{"warhammer_2"}},
		{Name: "class", Type: StringU8, Ref: &Reference{Table: "unit_classes_tables", Column: "key"}},
		{Name: "removed", Type: Bool, Tombstone: true},
	}
}

func TestResolveExactMatch(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("units_tables", 3, unitFields()))
	require.NoError(t, reg.Register("units_tables", 5, unitFields()))

	d, err := reg.Resolve("units_tables", 3)
	require.NoError(t, err)
	require.Equal(t, int32(3), d.Version)

	for _, v := range []int32{0, 2, 4, 6} {
		_, err := reg.Resolve("units_tables", v)
		require.True(t, errors.Is(err, ErrUnknownSchema), "version %d: %v", v, err)

		var use *UnknownSchemaError
		require.True(t, errors.As(err, &use))
		require.Equal(t, "units_tables", use.Table)
		require.Equal(t, v, use.Version)
	}

	_, err = reg.Resolve("missing_tables", 3)
	require.True(t, errors.Is(err, ErrUnknownSchema))
}

func TestOptionalFieldsFollowRelease(t *testing.T) {
	for _, test := range []struct {
		release string
		want    []string
	}{
		{"warhammer_2", []string{"key", "cost", "elite", "class", "removed"}},
		{"three_kingdoms", []string{"key", "cost", "class", "removed"}},
		{"", []string{"key", "cost", "class", "removed"}},
	} {
		t.Run(test.release, func(t *testing.T) {
			reg := NewRegistry(WithRelease(test.release))
			require.NoError(t, reg.Register("units_tables", 1, unitFields()))
			d, err := reg.Resolve("units_tables", 1)
			require.NoError(t, err)

			var got []string
			for _, f := range d.Fields() {
				got = append(got, f.Name)
			}
			require.Equal(t, test.want, got)
			require.Len(t, d.Declared(), 5)
			require.Equal(t, []int{0}, d.KeyIndexes())
			require.Equal(t, len(test.want)-1, d.TombstoneIndex())
			require.Equal(t, 1, d.FieldIndex("cost"))
			require.Equal(t, -1, d.FieldIndex("nope"))
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields []FieldDef
		errMsg string
	}{
		{"empty name", []FieldDef{{Type: I32}}, "name is required"},
		{"invalid type", []FieldDef{{Name: "a"}}, "invalid type"},
		{"duplicate", []FieldDef{{Name: "a", Type: I32}, {Name: "a", Type: I16}}, "duplicate name"},
		{"fixed without width", []FieldDef{{Name: "a", Type: FixedStringU8}}, "positive width"},
		{"width on int", []FieldDef{{Name: "a", Type: I32, Width: 4}}, "only applies"},
		{"tombstone not bool", []FieldDef{{Name: "a", Type: I32, Tombstone: true}}, "must be Bool"},
		{"tombstone key", []FieldDef{{Name: "a", Type: Bool, Tombstone: true, Key: true}}, "cannot be a key"},
		{"two tombstones", []FieldDef{{Name: "a", Type: Bool, Tombstone: true}, {Name: "b", Type: Bool, Tombstone: true}}, "second tombstone"},
		{"ref on int", []FieldDef{{Name: "a", Type: I32, Ref: &Reference{Table: "t", Column: "c"}}}, "string type"},
		{"ref without column", []FieldDef{{Name: "a", Type: StringU8, Ref: &Reference{Table: "t"}}}, "table and a column"},
		{"optional without releases", []FieldDef{{Name: "a", Type: I32, Optional: true}}, "no releases"},
		{"bad default", []FieldDef{{Name: "a", Type: I16, Default: "70000"}}, "default"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := NewRegistry().Register("t", 1, test.fields)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), test.errMsg), "got %v", err)
		})
	}
}

func TestRegisterDuplicateVersion(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("t", 1, []FieldDef{{Name: "a", Type: I32}}))
	err := reg.Register("t", 1, []FieldDef{{Name: "a", Type: I32}})
	require.True(t, errors.Is(err, ErrDuplicateVersion))
}

func TestFreezeOnResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register("t", 1, []FieldDef{{Name: "a", Type: I32}}))
	require.False(t, reg.Frozen())

	_, _ = reg.Resolve("t", 1)
	require.True(t, reg.Frozen())

	err := reg.Register("t", 2, []FieldDef{{Name: "a", Type: I32}})
	require.True(t, errors.Is(err, ErrFrozen))
}

func TestConcurrentResolve(t *testing.T) {
	reg := NewRegistry()
	for v := int32(0); v < 10; v++ {
		require.NoError(t, reg.Register("t", v, []FieldDef{{Name: "a", Type: I32}}))
	}
	reg.Freeze()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := int32(0); v < 20; v++ {
				_, err := reg.Resolve("t", v)
				if v < 10 {
					require.NoError(t, err)
				} else {
					require.True(t, errors.Is(err, ErrUnknownSchema))
				}
			}
		}()
	}
	wg.Wait()
}

func TestVersionsAndLatest(t *testing.T) {
	reg := NewRegistry()
	for _, v := range []int32{4, 1, 9} {
		require.NoError(t, reg.Register("b_tables", v, []FieldDef{{Name: "a", Type: I32}}))
	}
	require.NoError(t, reg.Register("a_tables", 0, []FieldDef{{Name: "a", Type: I32}}))

	require.Equal(t, []int32{1, 4, 9}, reg.Versions("b_tables"))
	d, ok := reg.Latest("b_tables")
	require.True(t, ok)
	require.Equal(t, int32(9), d.Version)
	_, ok = reg.Latest("c_tables")
	require.False(t, ok)
	require.Equal(t, []string{"a_tables", "b_tables"}, reg.Tables())
	require.True(t, reg.Has("a_tables"))
	require.False(t, reg.Has("c_tables"))
}

func TestParseFieldType(t *testing.T) {
	for _, test := range []struct {
		in   string
		want FieldType
	}{
		{"StringU8", StringU8},
		{"stringu16", StringU16},
		{"Boolean", Bool},
		{"float", F32},
		{"double", F64},
		{"OptionalStringU8", OptionalStringU8},
	} {
		got, err := ParseFieldType(test.in)
		require.NoError(t, err)
		require.Equal(t, test.want, got)
	}
	_, err := ParseFieldType("SequenceU32")
	require.Error(t, err)
	_, err = ParseFieldType("Invalid")
	require.Error(t, err)
}
