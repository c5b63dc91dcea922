// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"context"
	"path"
	"strconv"
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"
	"github.com/suprsokr/go-packfile"
	"github.com/suprsokr/go-packfile/schema"
	"github.com/suprsokr/go-packfile/table"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const unitsPath = "db/units_tables/data__"

var (
	unitsV1 = []schema.FieldDef{
		{Name: "key", Type: schema.StringU8, Key: true},
		{Name: "cost", Type: schema.I32},
	}
	unitsV2 = []schema.FieldDef{
		{Name: "key", Type: schema.StringU8, Key: true},
		{Name: "cost", Type: schema.I32},
		{Name: "removed", Type: schema.Bool, Tombstone: true},
	}
	unitsV3 = []schema.FieldDef{
		{Name: "key", Type: schema.StringU8, Key: true},
		{Name: "cost", Type: schema.I32},
		{Name: "upkeep", Type: schema.I32, Default: "5"},
		{Name: "removed", Type: schema.Bool, Tombstone: true},
	}
	plainV1 = []schema.FieldDef{
		{Name: "name", Type: schema.StringU8},
		{Name: "value", Type: schema.I32},
	}
)

func testRegistry(tb testing.TB) *schema.Registry {
	reg := schema.NewRegistry()
	for _, d := range []struct {
		table   string
		version int32
		fields  []schema.FieldDef
	}{
		{"units_tables", 1, unitsV1},
		{"units_tables", 2, unitsV2},
		{"units_tables", 3, unitsV3},
		{"plain_tables", 1, plainV1},
	} {
		if err := reg.Register(d.table, d.version, d.fields); err != nil {
			tb.Fatal(err)
		}
	}
	return reg
}

// authoringRegistry also knows a version the resolver's registry does not,
// to produce undecodable tables.
func authoringRegistry(tb testing.TB) *schema.Registry {
	reg := testRegistry(tb)
	if err := reg.Register("units_tables", 9, unitsV2); err != nil {
		tb.Fatal(err)
	}
	return reg
}

func unitsDef(tb testing.TB, reg *schema.Registry, version int32) *schema.Definition {
	def, err := reg.Resolve("units_tables", version)
	if err != nil {
		tb.Fatal(err)
	}
	return def
}

// parseRow builds a row from space separated values of the non-tombstone
// fields. A leading '-' makes a tombstone for the given key.
func parseRow(t *testing.T, tbl *table.Table, line string) table.Row {
	def := tbl.Definition()
	r := tbl.NewRow()
	if strings.HasPrefix(line, "-") {
		line = line[1:]
		r.Tombstone = true
	}
	vals := strings.Fields(line)
	fields := def.Fields()
	n := 0
	for i, f := range fields {
		if i == def.TombstoneIndex() || n >= len(vals) {
			continue
		}
		s := vals[n]
		n++
		switch {
		case f.Type.IsString():
			r.Values[i] = table.String(s)
		case f.Type.IsInteger():
			v, err := strconv.ParseInt(s, 10, 64)
			require.NoError(t, err)
			r.Values[i] = table.Int(v)
		case f.Type == schema.Bool:
			r.Values[i] = table.Bool(s == "true")
		default:
			t.Fatalf("unsupported field type %s", f.Type)
		}
	}
	require.Equal(t, len(vals), n, "too many values in %q", line)
	return r
}

// buildPack encodes a container from blocks of the form
//
//	<table> v=<version> [entry=<name>]
//	<row>...
//
// and decodes it again.
func buildPack(t *testing.T, reg *schema.Registry, input string) *packfile.Container {
	ctx := context.Background()
	c, err := packfile.Create("PFH5", packfile.Mod)
	require.NoError(t, err)

	var tbl *table.Table
	var entry string
	flush := func() {
		if tbl != nil {
			require.NoError(t, c.SetTable(entry, tbl))
		}
	}
	for _, line := range strings.Split(input, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasSuffix(strings.Fields(line)[0], "_tables") {
			flush()
			parts := strings.Fields(line)
			name, version, file := parts[0], int64(0), "data__"
			for _, arg := range parts[1:] {
				k, v, _ := strings.Cut(arg, "=")
				switch k {
				case "v":
					version, err = strconv.ParseInt(v, 10, 32)
					require.NoError(t, err)
				case "entry":
					file = v
				}
			}
			def, err := reg.Resolve(name, int32(version))
			require.NoError(t, err)
			tbl = table.New(def)
			entry = path.Join("db", name, file)
			continue
		}
		require.NotNil(t, tbl, "row before table header: %q", line)
		require.NoError(t, tbl.AddRow(parseRow(t, tbl, line)))
	}
	flush()

	data, err := c.Encode(ctx)
	require.NoError(t, err)
	d, err := packfile.Decode(ctx, data)
	require.NoError(t, err)
	return d
}

func formatMerged(m *MergedTable) string {
	var b strings.Builder
	for _, r := range m.Rows {
		var vals []string
		for i, v := range r.Row.Values {
			if i != m.Definition.TombstoneIndex() {
				vals = append(vals, v.String())
			}
		}
		b.WriteString(strings.Join(vals, " "))
		b.WriteString(" <- " + r.Source.Container + ":" + path.Base(r.Source.Entry) + "\n")
	}
	for _, w := range m.Warnings {
		b.WriteString("warning: " + w.String() + "\n")
	}
	if b.Len() == 0 {
		return "(empty)\n"
	}
	return b.String()
}

func TestResolveDataDriven(t *testing.T) {
	authoring := authoringRegistry(t)
	set := make(Set)
	r := &Resolver{Registry: testRegistry(t)}

	datadriven.RunTest(t, "testdata/resolve", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "pack":
			var id string
			for _, arg := range d.CmdArgs {
				if arg.Key == "id" {
					id = arg.Vals[0]
				}
			}
			set[id] = buildPack(t, authoring, d.Input)
			return ""

		case "resolve":
			var order LoadOrder
			var name string
			for _, arg := range d.CmdArgs {
				switch arg.Key {
				case "order":
					order = arg.Vals
				case "table":
					name = arg.Vals[0]
				}
			}
			return formatMerged(r.Resolve(order, set, name))

		default:
			return "unknown command: " + d.Cmd
		}
	})
}

func TestResolveScenario(t *testing.T) {
	reg := testRegistry(t)
	set := Set{
		"base":  buildPack(t, reg, "units_tables v=2\nK1 100\nK2 200"),
		"mod_a": buildPack(t, reg, "units_tables v=2\nK1 150"),
		"mod_b": buildPack(t, reg, "units_tables v=2\nK1 175"),
		"mod_c": buildPack(t, reg, "units_tables v=2\n-K1"),
	}
	r := &Resolver{Registry: reg}
	k1 := table.KeyOf(unitsDef(t, reg, 2), table.Row{Values: []table.Value{table.String("K1"), table.Int(0), table.Bool(false)}})

	m := r.Resolve(LoadOrder{"base", "mod_a", "mod_b"}, set, "units_tables")
	got, ok := m.Lookup(k1)
	require.True(t, ok)
	require.Equal(t, int64(175), got.Row.Values[1].AsInt())
	require.Equal(t, Source{Container: "mod_b", Entry: unitsPath}, got.Source)
	require.Empty(t, m.Warnings)

	m = r.Resolve(LoadOrder{"base", "mod_a", "mod_b", "mod_c"}, set, "units_tables")
	require.False(t, m.Has(k1))
	require.Equal(t, 1, m.Len())

	merged, err := m.Table()
	require.NoError(t, err)
	require.Equal(t, 1, merged.Len())
	v, err := merged.Get(0, "key")
	require.NoError(t, err)
	require.Equal(t, "K2", v.AsString())
}

func TestResolveMatchesTableNameCaseInsensitively(t *testing.T) {
	reg := testRegistry(t)
	c, err := packfile.Create("PFH5", packfile.Mod)
	require.NoError(t, err)
	tbl := table.New(unitsDef(t, reg, 2))
	require.NoError(t, tbl.AddRow(parseRow(t, tbl, "K1 100")))
	require.NoError(t, c.SetTable("DB/Units_Tables/my_mod", tbl))

	r := &Resolver{Registry: reg}
	for _, name := range []string{"units_tables", "Units_Tables"} {
		m := r.Resolve(LoadOrder{"mod"}, Set{"mod": c}, name)
		require.Empty(t, m.Warnings, name)
		require.Equal(t, 1, m.Len(), name)
		require.Equal(t, "mod", m.Rows[0].Source.Container)
	}
}

func TestMergedTableRejectsInvalidRows(t *testing.T) {
	reg := testRegistry(t)
	m := &MergedTable{
		Name:       "units_tables",
		Definition: unitsDef(t, reg, 2),
		Rows: []MergedRow{{
			Row:    table.Row{Values: []table.Value{table.Int(1), table.Int(2), table.Bool(false)}},
			Source: Source{Container: "mod", Entry: unitsPath},
		}},
	}
	_, err := m.Table()
	require.Error(t, err)
	require.Contains(t, err.Error(), "merged units_tables row 0 from mod")
}

func TestResolveIsPure(t *testing.T) {
	ctx := context.Background()
	reg := testRegistry(t)
	set := Set{
		"base": buildPack(t, reg, "units_tables v=2\nK1 100\nK2 200\nK2 201"),
		"mod":  buildPack(t, reg, "units_tables v=3\n-K1\nK3 3 4"),
	}
	before := make(map[string][]byte)
	for id, c := range set {
		data, err := c.Encode(ctx)
		require.NoError(t, err)
		before[id] = data
	}

	r := &Resolver{Registry: reg}
	order := LoadOrder{"base", "mod"}
	first := r.Resolve(order, set, "units_tables")
	second := r.Resolve(order, set, "units_tables")
	require.Equal(t, first, second)
	require.Len(t, first.Warnings, 2)

	// Merged rows do not alias the source tables.
	first.Rows[0].Row.Values[1] = table.Int(-1)
	third := r.Resolve(order, set, "units_tables")
	require.Equal(t, second, third)

	for id, c := range set {
		require.False(t, c.Dirty())
		data, err := c.Encode(ctx)
		require.NoError(t, err)
		require.Equal(t, before[id], data, id)
	}
}

func TestResolveLogsWarnings(t *testing.T) {
	reg := testRegistry(t)
	core, logs := observer.New(zap.WarnLevel)
	r := &Resolver{Registry: reg, Logger: zap.New(core)}

	m := r.Resolve(LoadOrder{"nowhere"}, Set{}, "units_tables")
	require.Nil(t, m.Definition)
	empty, err := m.Table()
	require.NoError(t, err)
	require.Nil(t, empty)
	require.Equal(t, []Warning{{Kind: MissingContainer, Container: "nowhere"}}, m.Warnings)

	entries := logs.FilterMessage("load order").All()
	require.Len(t, entries, 1)
	require.Equal(t, "units_tables", entries[0].ContextMap()["table"])
	w, ok := entries[0].ContextMap()["warning"].(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "missing container", w["kind"])
}

func TestWarningKindString(t *testing.T) {
	require.Equal(t, "duplicate key", DuplicateKey.String())
	require.Equal(t, "warningkind(42)", WarningKind(42).String())
	require.Equal(t, "undecodable table in p db/x/y: bad",
		Warning{Kind: UndecodableTable, Container: "p", Entry: "db/x/y", Message: "bad"}.String())
}
