// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"context"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// State is the lifecycle state of a Handle.
type State int

// Handle states
const (
	Unopened State = iota
	Clean
	Dirty
)

func (s State) String() string {
	switch s {
	case Unopened:
		return "unopened"
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	}
	return "unknown"
}

// Handle ties a Container to a file.
//
// A Handle starts Unopened. Open or Decode moves it to Clean, edits to the
// container make it Dirty, and Save or Encode bring it back to Clean. A
// failed decode leaves it Unopened. Files are read and written whole.
type Handle struct {
	fs   afero.Fs
	path string
	opts []Option
	c    *Container
}

// NewHandle returns an Unopened handle for the container at path on fs.
func NewHandle(fs afero.Fs, path string, opts ...Option) *Handle {
	return &Handle{fs: fs, path: path, opts: opts}
}

// Path returns the file the handle reads and writes.
func (h *Handle) Path() string { return h.path }

// State returns the handle's lifecycle state.
func (h *Handle) State() State {
	switch {
	case h.c == nil:
		return Unopened
	case h.c.Dirty():
		return Dirty
	}
	return Clean
}

// Container returns the open container, or nil while Unopened.
func (h *Handle) Container() *Container { return h.c }

// Open reads and decodes the file.
func (h *Handle) Open(ctx context.Context) error {
	data, err := afero.ReadFile(h.fs, h.path)
	if err != nil {
		return errors.Wrapf(err, "open %s", h.path)
	}
	return h.Decode(ctx, data)
}

// Decode replaces the handle's container with one decoded from data.
func (h *Handle) Decode(ctx context.Context, data []byte) error {
	c, err := Decode(ctx, data, h.opts...)
	if err != nil {
		h.c = nil
		return err
	}
	h.c = c
	return nil
}

// Create starts a new empty container in memory. The handle is Dirty
// until it is saved.
func (h *Handle) Create(preamble string, fileType FileType) error {
	c, err := Create(preamble, fileType, h.opts...)
	if err != nil {
		return err
	}
	h.c = c
	return nil
}

// Encode encodes the container without writing it.
func (h *Handle) Encode(ctx context.Context, opts ...Option) ([]byte, error) {
	if h.c == nil {
		return nil, errors.Newf("encode %s: handle is unopened", h.path)
	}
	return h.c.Encode(ctx, opts...)
}

// Save encodes the container and replaces the file. The bytes are written
// to a temporary file in the same directory, which is then renamed over
// the target.
func (h *Handle) Save(ctx context.Context, opts ...Option) error {
	data, err := h.Encode(ctx, opts...)
	if err != nil {
		return err
	}

	// Ensure parent directory exists
	dir := filepath.Dir(h.path)
	if err := h.fs.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "create directory %s", dir)
	}

	tmp, err := afero.TempFile(h.fs, dir, "packfile_*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = h.fs.Remove(tmpPath)
		return errors.Wrap(err, "write temp file")
	}
	if err := tmp.Close(); err != nil {
		_ = h.fs.Remove(tmpPath)
		return errors.Wrap(err, "close temp file")
	}

	// Move temp file to final path
	if err := h.fs.Remove(h.path); err != nil && !os.IsNotExist(err) {
		_ = h.fs.Remove(tmpPath)
		return errors.Wrapf(err, "replace %s", h.path)
	}
	if err := h.fs.Rename(tmpPath, h.path); err != nil {
		_ = h.fs.Remove(tmpPath)
		return errors.Wrapf(err, "save %s", h.path)
	}

	h.logger().Debug("saved container", zap.String("path", h.path), zap.Int("bytes", len(data)))
	return nil
}

func (h *Handle) logger() *zap.Logger {
	if h.c != nil {
		return h.c.opts.logger
	}
	return zap.NewNop()
}
