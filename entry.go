// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"github.com/suprsokr/go-packfile/internal/compression"
)

// Entry is one named payload of a container.
//
// Byte slices returned by an Entry alias container storage and must not be
// modified. Use the Container editing methods instead.
type Entry struct {
	path string

	// raw holds the stored bytes exactly as they appear in the payload region.
	raw        []byte
	storedSize uint32
	truncated  bool

	// data holds the decrypted, decompressed contents. It is nil for entries
	// that failed to decode.
	data       []byte
	compressed bool
	algorithm  compression.Algorithm
	timestamp  uint64
	offset     int

	// modified entries are rebuilt from data on encode.
	modified bool
	err      error
}

// Path returns the entry path as stored in the index.
func (e *Entry) Path() string { return e.path }

// Data returns the decoded contents, or the entry's EntryError.
func (e *Entry) Data() ([]byte, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.data, nil
}

// Raw returns the stored bytes, compressed and encrypted as on disk.
func (e *Entry) Raw() []byte { return e.raw }

// Size returns the length of the decoded contents. For entries that failed
// to decode it is the size declared in their frame header, or the stored size.
func (e *Entry) Size() int {
	if e.data != nil || e.err == nil {
		return len(e.data)
	}
	if e.compressed && !e.truncated {
		if _, n, err := compression.Header(e.raw); err == nil {
			return int(n)
		}
	}
	return int(e.storedSize)
}

// StoredSize returns the size recorded in the index.
func (e *Entry) StoredSize() uint32 { return e.storedSize }

// Compressed reports whether the entry is stored as a compressed frame.
func (e *Entry) Compressed() bool { return e.compressed }

// Algorithm returns the compression algorithm of a compressed entry.
func (e *Entry) Algorithm() compression.Algorithm { return e.algorithm }

// Timestamp returns the index timestamp, or 0 when the index has none.
func (e *Entry) Timestamp() uint64 { return e.timestamp }

// Offset returns the position of the payload in the encoded container.
func (e *Entry) Offset() int { return e.offset }

// Err returns the EntryError recorded while decoding, if any.
func (e *Entry) Err() error { return e.err }

// Modified reports whether the entry will be rebuilt on the next encode.
func (e *Entry) Modified() bool { return e.modified }
