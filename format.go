// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"strconv"

	"github.com/suprsokr/go-packfile/internal/binio"
)

// PackFile format constants
const (
	// Length of the preamble ("PFH5") at the start of every container
	preambleSize = 4

	// Fixed part of the header after the preamble: bitmask, dependency
	// count, dependency index size, entry count, entry index size
	baseHeaderSize = 4 * 5

	// Size of the extended header present when FlagExtendedHeader is set
	extendedHeaderSize = 20

	// Low bits of the bitmask holding the file type
	fileTypeMask = 0x0000000F
)

// FileType is the role of a container in the load order, stored in the low
// bits of the header bitmask.
type FileType uint32

// File types. Other values are preserved as read.
const (
	Boot    FileType = 0
	Release FileType = 1
	Patch   FileType = 2
	Mod     FileType = 3
	Movie   FileType = 4
)

func (t FileType) String() string {
	switch t {
	case Boot:
		return "boot"
	case Release:
		return "release"
	case Patch:
		return "patch"
	case Mod:
		return "mod"
	case Movie:
		return "movie"
	}
	return "filetype(" + strconv.Itoa(int(t)) + ")"
}

// Flags holds the header bitmask bits above the file type.
type Flags uint32

// Header flags
const (
	FlagEncryptedData   Flags = 0x00000010 // Entry payloads are encrypted
	FlagIndexTimestamps Flags = 0x00000040 // Index records carry a timestamp
	FlagEncryptedIndex  Flags = 0x00000080 // Entry index is encrypted
	FlagExtendedHeader  Flags = 0x00000100 // 20 byte extended header follows the base header
)

// Has reports whether every bit of f2 is set in f.
func (f Flags) Has(f2 Flags) bool { return f&f2 == f2 }

// header is the parsed container header
type header struct {
	Preamble   string
	Bitmask    uint32
	DepCount   uint32
	DepSize    uint32
	EntryCount uint32
	EntrySize  uint32
	Timestamp  uint64
	Extras     []byte // variant specific raw bytes
	Extended   []byte // extended header, when flagged
}

func (h *header) fileType() FileType { return FileType(h.Bitmask & fileTypeMask) }

func (h *header) flags() Flags { return Flags(h.Bitmask &^ fileTypeMask) }

// size returns the encoded size of the header for variant v.
func (h *header) size(v *Variant) int {
	n := preambleSize + baseHeaderSize + v.HeaderTimestamp + v.Extras
	if h.flags().Has(FlagExtendedHeader) {
		n += extendedHeaderSize
	}
	return n
}

// readHeader reads the header following the preamble. The caller has
// already resolved the preamble to v and checked its flags.
func readHeader(r *binio.Reader, h *header, v *Variant) error {
	var err error
	if h.DepCount, err = r.U32(); err != nil {
		return err
	}
	if h.DepSize, err = r.U32(); err != nil {
		return err
	}
	if h.EntryCount, err = r.U32(); err != nil {
		return err
	}
	if h.EntrySize, err = r.U32(); err != nil {
		return err
	}
	switch v.HeaderTimestamp {
	case 4:
		var ts uint32
		ts, err = r.U32()
		h.Timestamp = uint64(ts)
	case 8:
		h.Timestamp, err = r.U64()
	}
	if err != nil {
		return err
	}
	if v.Extras > 0 {
		b, err := r.Bytes(v.Extras)
		if err != nil {
			return err
		}
		h.Extras = append([]byte(nil), b...)
	}
	if h.flags().Has(FlagExtendedHeader) {
		b, err := r.Bytes(extendedHeaderSize)
		if err != nil {
			return err
		}
		h.Extended = append([]byte(nil), b...)
	}
	return nil
}

// writeHeader writes the container header
func writeHeader(w *binio.Writer, h *header, v *Variant) {
	w.PutBytes([]byte(h.Preamble))
	w.PutU32(h.Bitmask)
	w.PutU32(h.DepCount)
	w.PutU32(h.DepSize)
	w.PutU32(h.EntryCount)
	w.PutU32(h.EntrySize)
	switch v.HeaderTimestamp {
	case 4:
		w.PutU32(uint32(h.Timestamp))
	case 8:
		w.PutU64(h.Timestamp)
	}
	if v.Extras > 0 {
		w.PutBytes(padTo(h.Extras, v.Extras))
	}
	if h.flags().Has(FlagExtendedHeader) {
		w.PutBytes(padTo(h.Extended, extendedHeaderSize))
	}
}

// padTo returns b zero-extended or cut to exactly n bytes.
func padTo(b []byte, n int) []byte {
	if len(b) == n {
		return b
	}
	out := make([]byte, n)
	copy(out, b)
	return out
}
