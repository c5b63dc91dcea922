// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestHandleLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	path := "/game/data/my_mod.pack"

	h := NewHandle(fs, path)
	require.Equal(t, Unopened, h.State())
	require.Nil(t, h.Container())
	require.Error(t, h.Open(ctx))
	require.Equal(t, Unopened, h.State())
	_, err := h.Encode(ctx)
	require.Error(t, err)

	require.NoError(t, h.Create("PFH5", Mod))
	require.Equal(t, Dirty, h.State())
	require.NoError(t, h.Container().AddEntry("script/mod.lua", []byte("print(1)")))
	require.NoError(t, h.Save(ctx))
	require.Equal(t, Clean, h.State())

	// Only the target file is left behind.
	files, err := afero.ReadDir(fs, "/game/data")
	require.NoError(t, err)
	require.Len(t, files, 1)
	require.Equal(t, "my_mod.pack", files[0].Name())

	reopened := NewHandle(fs, path)
	require.NoError(t, reopened.Open(ctx))
	require.Equal(t, Clean, reopened.State())
	require.Equal(t, 1, reopened.Container().Len())

	require.NoError(t, reopened.Container().PutEntry("script/mod.lua", []byte("print(2)")))
	require.Equal(t, Dirty, reopened.State())
	require.NoError(t, reopened.Save(ctx))
	require.Equal(t, Clean, reopened.State())

	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)
	c, err := Decode(ctx, data)
	require.NoError(t, err)
	e, _ := c.Entry("script/mod.lua")
	got, err := e.Data()
	require.NoError(t, err)
	require.Equal(t, []byte("print(2)"), got)

	// A failed decode leaves the handle unopened.
	require.Error(t, reopened.Decode(ctx, []byte("garbage")))
	require.Equal(t, Unopened, reopened.State())
	require.Equal(t, "unopened", reopened.State().String())
}

func TestHandleEncodeKeepsFile(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	h := NewHandle(fs, "out.pack")
	require.NoError(t, h.Create("PFH4", Patch))

	data, err := h.Encode(ctx)
	require.NoError(t, err)
	require.Equal(t, Clean, h.State())
	exists, err := afero.Exists(fs, "out.pack")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, h.Decode(ctx, data))
	require.Equal(t, Patch, h.Container().FileType())
}
