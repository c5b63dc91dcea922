// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suprsokr/go-packfile"
	"github.com/suprsokr/go-packfile/table"
)

func entriesPack(t *testing.T, files map[string]string) *packfile.Container {
	t.Helper()
	c, err := packfile.Create("PFH5", packfile.Mod)
	require.NoError(t, err)
	for _, p := range []string{"script/a.lua", "ui/b.png", "ui/c.png"} {
		if data, ok := files[p]; ok {
			require.NoError(t, c.AddEntry(p, []byte(data)))
		}
	}
	return c
}

func TestChain(t *testing.T) {
	set := Set{
		"base": entriesPack(t, map[string]string{"script/a.lua": "base a", "ui/b.png": "base b"}),
		"mod":  entriesPack(t, map[string]string{"ui/b.png": "mod b", "ui/c.png": "mod c"}),
	}
	chain := NewChain(LoadOrder{"base", "gone", "mod"}, set)
	require.Equal(t, 2, chain.Len())
	require.Equal(t, []string{"gone"}, chain.Missing())

	e, src, ok := chain.Lookup("UI\\B.png")
	require.True(t, ok)
	require.Equal(t, Source{Container: "mod", Entry: "ui/b.png"}, src)
	data, err := e.Data()
	require.NoError(t, err)
	require.Equal(t, []byte("mod b"), data)

	_, src, ok = chain.Lookup("script/a.lua")
	require.True(t, ok)
	require.Equal(t, "base", src.Container)
	require.False(t, chain.Has("missing.txt"))

	require.Equal(t, []string{"script/a.lua", "ui/b.png", "ui/c.png"}, chain.Paths())
	require.Equal(t, []Source{{"base", "ui/b.png"}, {"mod", "ui/b.png"}}, chain.Sources("ui/b.png"))

	// Removing the shadowing entry falls back to the lower container.
	require.NoError(t, set["mod"].RemoveEntry("ui/b.png"))
	_, src, ok = chain.Lookup("ui/b.png")
	require.True(t, ok)
	require.Equal(t, "base", src.Container)

	require.NoError(t, set["base"].AddEntry("new.txt", nil))
	require.False(t, chain.Has("new.txt"))
	chain.Refresh()
	require.True(t, chain.Has("new.txt"))
}

func TestOptimize(t *testing.T) {
	reg := testRegistry(t)
	set := Set{
		"base": buildPack(t, reg, "units_tables v=2\nK1 100\nK2 200\nK3 300"),
		"mod":  buildPack(t, reg, "units_tables v=2\nK1 100\nK2 250\nK3 1\nK3 300\n-K9\n-K2\nK4 400"),
	}
	r := &Resolver{Registry: reg}
	base := r.Resolve(LoadOrder{"base"}, set, "units_tables")
	want := r.Resolve(LoadOrder{"base", "mod"}, set, "units_tables")

	mod, err := set["mod"].Table(unitsPath, reg)
	require.NoError(t, err)
	// Removed: K1 (same as base), K2 250 (shadowed), K3 1 (shadowed),
	// K3 300 (same as base), -K9 (nothing to delete).
	require.Equal(t, 5, Optimize(base, mod))
	require.Equal(t, 2, mod.Len())
	require.True(t, mod.Row(0).Tombstone)
	require.Equal(t, "K4", mod.Row(1).Values[0].AsString())

	// The merge result is unchanged.
	got := r.Resolve(LoadOrder{"base", "mod"}, set, "units_tables")
	require.Equal(t, want.Len(), got.Len())
	for i := range want.Rows {
		require.True(t, want.Rows[i].Row.Equal(got.Rows[i].Row), "row %d", i)
	}
	require.Zero(t, Optimize(base, mod))

	// Tables of another version are never compared.
	legacy := table.New(unitsDef(t, reg, 1))
	row := legacy.NewRow()
	row.Values[0] = table.String("K1")
	row.Values[1] = table.Int(100)
	require.NoError(t, legacy.AddRow(row))
	require.Zero(t, Optimize(base, legacy))
}
