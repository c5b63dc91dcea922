// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/suprsokr/go-packfile/schema"
	"github.com/suprsokr/go-packfile/table"
)

const (
	costsPath = "db/unit_costs_tables/data__"
	namesPath = "db/unit_names_tables/data__"
)

func tableRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	fields := []schema.FieldDef{
		{Name: "key", Type: schema.StringU8, Key: true},
		{Name: "value", Type: schema.I32},
	}
	require.NoError(t, reg.Register("unit_costs_tables", 1, fields))
	require.NoError(t, reg.Register("unit_names_tables", 1, fields))
	return reg
}

func tableBlob(t *testing.T, reg *schema.Registry, name string, rows map[string]int64) []byte {
	t.Helper()
	def, err := reg.Resolve(name, 1)
	require.NoError(t, err)
	tbl := table.New(def)
	for _, key := range []string{"a", "b", "c"} {
		v, ok := rows[key]
		if !ok {
			continue
		}
		r := tbl.NewRow()
		r.Values[0] = table.String(key)
		r.Values[1] = table.Int(v)
		require.NoError(t, tbl.AddRow(r))
	}
	b, err := tbl.Flush()
	require.NoError(t, err)
	return b
}

func tableContainer(t *testing.T, reg *schema.Registry, opts ...Option) *Container {
	t.Helper()
	ctx := context.Background()
	c, err := Create("PFH5", Mod, opts...)
	require.NoError(t, err)
	require.NoError(t, c.AddEntry(costsPath, tableBlob(t, reg, "unit_costs_tables", map[string]int64{"a": 1, "b": 2})))
	require.NoError(t, c.AddEntry(namesPath, tableBlob(t, reg, "unit_names_tables", map[string]int64{"c": 3})))
	require.NoError(t, c.AddEntry("db/unknown_tables/data__", tableBlob(t, reg, "unit_names_tables", nil)))
	require.NoError(t, c.SetCompressed(costsPath, true))
	data, err := c.Encode(ctx)
	require.NoError(t, err)
	d, err := Decode(ctx, data, opts...)
	require.NoError(t, err)
	return d
}

func TestTableView(t *testing.T) {
	ctx := context.Background()
	reg := tableRegistry(t)
	c := tableContainer(t, reg)
	before, err := c.Encode(ctx)
	require.NoError(t, err)

	tbl, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	again, err := c.Table("DB\\Unit_Costs_Tables\\data__", reg)
	require.NoError(t, err)
	require.Same(t, tbl, again)
	require.False(t, c.Dirty())

	// Reading a table does not change the encoding.
	out, err := c.Encode(ctx)
	require.NoError(t, err)
	require.Equal(t, before, out)

	require.NoError(t, tbl.Set(1, "value", table.Int(20)))
	require.True(t, c.Dirty())
	out, err = c.Encode(ctx)
	require.NoError(t, err)
	require.False(t, c.Dirty())
	require.False(t, tbl.Dirty())

	d, err := Decode(ctx, out)
	require.NoError(t, err)
	e, _ := d.Entry(costsPath)
	require.True(t, e.Compressed())
	got, err := d.Table(costsPath, reg)
	require.NoError(t, err)
	v, err := got.Get(1, "value")
	require.NoError(t, err)
	require.Equal(t, int64(20), v.AsInt())
}

func TestTableViewInvalidation(t *testing.T) {
	reg := tableRegistry(t)
	c := tableContainer(t, reg)

	tbl, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	require.NoError(t, c.ReplaceEntry(costsPath, tableBlob(t, reg, "unit_costs_tables", map[string]int64{"c": 9})))

	fresh, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	require.NotSame(t, tbl, fresh)
	require.Equal(t, 1, fresh.Len())

	// A different registry decodes again.
	other, err := c.Table(costsPath, tableRegistry(t))
	require.NoError(t, err)
	require.NotSame(t, fresh, other)
}

func TestTableViewEviction(t *testing.T) {
	reg := tableRegistry(t)
	c := tableContainer(t, reg, WithTableCacheSize(1))

	costs, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	require.NoError(t, costs.Set(0, "value", table.Int(100)))

	// Loading a second table evicts the first, writing its edit back.
	_, err = c.Table(namesPath, reg)
	require.NoError(t, err)
	e, _ := c.Entry(costsPath)
	require.True(t, e.Modified())
	require.True(t, c.Dirty())

	reloaded, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	v, err := reloaded.Get(0, "value")
	require.NoError(t, err)
	require.Equal(t, int64(100), v.AsInt())
}

func TestTableEditAfterEviction(t *testing.T) {
	ctx := context.Background()
	reg := tableRegistry(t)
	c := tableContainer(t, reg, WithTableCacheSize(1))

	costs, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	// Evicts costs while it is clean.
	_, err = c.Table(namesPath, reg)
	require.NoError(t, err)
	require.False(t, c.Dirty())

	require.NoError(t, costs.Set(0, "value", table.Int(777)))
	require.True(t, c.Dirty())

	again, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	require.Same(t, costs, again)

	out, err := c.Encode(ctx)
	require.NoError(t, err)
	require.False(t, c.Dirty())
	d, err := Decode(ctx, out)
	require.NoError(t, err)
	got, err := d.Table(costsPath, reg)
	require.NoError(t, err)
	v, err := got.Get(0, "value")
	require.NoError(t, err)
	require.Equal(t, int64(777), v.AsInt())

	// A table detached by a replace no longer reaches the container.
	require.NoError(t, c.ReplaceEntry(costsPath, tableBlob(t, reg, "unit_costs_tables", map[string]int64{"c": 9})))
	_, err = c.Encode(ctx)
	require.NoError(t, err)
	require.NoError(t, costs.Set(0, "value", table.Int(1)))
	require.False(t, c.Dirty())
}

func TestTableRenameFlushes(t *testing.T) {
	reg := tableRegistry(t)
	c := tableContainer(t, reg)

	costs, err := c.Table(costsPath, reg)
	require.NoError(t, err)
	require.NoError(t, costs.Set(0, "value", table.Int(42)))
	require.NoError(t, c.RenameEntry(costsPath, "db/unit_costs_tables/mod__"))

	moved, err := c.Table("db/unit_costs_tables/mod__", reg)
	require.NoError(t, err)
	v, err := moved.Get(0, "value")
	require.NoError(t, err)
	require.Equal(t, int64(42), v.AsInt())
}

func TestTables(t *testing.T) {
	reg := tableRegistry(t)
	c := tableContainer(t, reg)

	_, err := c.Table("text/db/units.loc", reg)
	require.Error(t, err)
	_, err = c.Table("db/missing_tables/data__", reg)
	require.True(t, errors.Is(err, ErrNotFound))

	infos := c.Tables(reg)
	require.Len(t, infos, 3)
	require.Equal(t, TableInfo{Path: costsPath, Name: "unit_costs_tables", Version: 1, Rows: 2, Decodable: true}, infos[0])
	require.Equal(t, 1, infos[1].Rows)

	unknown := infos[2]
	require.Equal(t, "unknown_tables", unknown.Name)
	require.False(t, unknown.Decodable)
	require.True(t, errors.Is(unknown.Err, schema.ErrUnknownSchema))
}

func TestSetTable(t *testing.T) {
	ctx := context.Background()
	reg := tableRegistry(t)
	c, err := Create("PFH4", Mod)
	require.NoError(t, err)

	def, err := reg.Resolve("unit_names_tables", 1)
	require.NoError(t, err)
	tbl := table.New(def)
	r := tbl.NewRow()
	r.Values[0] = table.String("x")
	require.NoError(t, tbl.AddRow(r))

	require.Error(t, c.SetTable("script/x.lua", tbl))
	require.NoError(t, c.SetTable(namesPath, tbl))
	out, err := c.Encode(ctx)
	require.NoError(t, err)

	d, err := Decode(ctx, out)
	require.NoError(t, err)
	got, err := d.Table(namesPath, reg)
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
}
