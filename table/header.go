// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import (
	"bytes"

	"github.com/suprsokr/go-packfile/internal/binio"
)

var (
	guidMarker    = []byte{0xFD, 0xFE, 0xFC, 0xFF}
	versionMarker = []byte{0xFC, 0xFD, 0xFE, 0xFF}
)

// DefaultFlag is the header byte written for new tables.
const DefaultFlag = 1

// Header is the preamble of a table blob. The markers it records are
// optional on the wire, so their presence is kept for round trips.
type Header struct {
	HasGUID bool
	GUID    string
	// Version is 0 when HasVersion is false.
	HasVersion bool
	Version    int32
	Flag       uint8
	Rows       uint32
}

func readHeader(r *binio.Reader) (Header, error) {
	var h Header
	var err error
	if b, ok := r.Peek(4); ok && bytes.Equal(b, guidMarker) {
		_, _ = r.Bytes(4)
		h.HasGUID = true
		if h.GUID, err = r.StringU16(); err != nil {
			return h, err
		}
	}
	if b, ok := r.Peek(4); ok && bytes.Equal(b, versionMarker) {
		_, _ = r.Bytes(4)
		h.HasVersion = true
		if h.Version, err = r.I32(); err != nil {
			return h, err
		}
	}
	if h.Flag, err = r.U8(); err != nil {
		return h, err
	}
	if h.Rows, err = r.U32(); err != nil {
		return h, err
	}
	return h, nil
}

func writeHeader(w *binio.Writer, h Header, rows int) error {
	if h.HasGUID {
		w.PutBytes(guidMarker)
		if err := w.PutStringU16(h.GUID); err != nil {
			return err
		}
	}
	if h.HasVersion {
		w.PutBytes(versionMarker)
		w.PutI32(h.Version)
	}
	w.PutU8(h.Flag)
	w.PutU32(uint32(rows))
	return nil
}
