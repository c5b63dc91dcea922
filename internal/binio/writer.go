// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package binio

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/cockroachdb/errors"
)

// ErrTooLong is returned when a length-prefixed string does not fit its prefix.
var ErrTooLong = errors.New("string too long for length prefix")

// Writer appends little-endian primitives to a growable buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity for n bytes.
func NewWriter(n int) *Writer {
	return &Writer{buf: make([]byte, 0, n)}
}

// Bytes returns the written bytes. The slice aliases the Writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written.
func (w *Writer) Len() int { return len(w.buf) }

// Write appends b. It never fails.
func (w *Writer) Write(b []byte) (int, error) {
	w.buf = append(w.buf, b...)
	return len(b), nil
}

// PutBytes appends b.
func (w *Writer) PutBytes(b []byte) { w.buf = append(w.buf, b...) }

// PutU8 appends one byte.
func (w *Writer) PutU8(v uint8) { w.buf = append(w.buf, v) }

// PutU16 appends a little-endian uint16.
func (w *Writer) PutU16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }

// PutU32 appends a little-endian uint32.
func (w *Writer) PutU32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

// PutU64 appends a little-endian uint64.
func (w *Writer) PutU64(v uint64) { w.buf = binary.LittleEndian.AppendUint64(w.buf, v) }

// PutI8 appends a signed byte.
func (w *Writer) PutI8(v int8) { w.PutU8(uint8(v)) }

// PutI16 appends a little-endian int16.
func (w *Writer) PutI16(v int16) { w.PutU16(uint16(v)) }

// PutI32 appends a little-endian int32.
func (w *Writer) PutI32(v int32) { w.PutU32(uint32(v)) }

// PutI64 appends a little-endian int64.
func (w *Writer) PutI64(v int64) { w.PutU64(uint64(v)) }

// PutF32 appends an IEEE-754 single precision float.
func (w *Writer) PutF32(v float32) { w.PutU32(math.Float32bits(v)) }

// PutF64 appends an IEEE-754 double precision float.
func (w *Writer) PutF64(v float64) { w.PutU64(math.Float64bits(v)) }

// PutCString appends s followed by a NUL terminator.
func (w *Writer) PutCString(s string) {
	w.buf = append(w.buf, s...)
	w.buf = append(w.buf, 0)
}

// PutStringU8 appends s prefixed with its u16 byte length.
func (w *Writer) PutStringU8(s string) error {
	if len(s) > math.MaxUint16 {
		return errors.Wrapf(ErrTooLong, "%d bytes", len(s))
	}
	w.PutU16(uint16(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}

// PutStringU16 appends s as UTF-16LE prefixed with its u16 code unit count.
func (w *Writer) PutStringU16(s string) error {
	units := EncodeUTF16(s)
	if len(units) > math.MaxUint16 {
		return errors.Wrapf(ErrTooLong, "%d code units", len(units))
	}
	w.PutU16(uint16(len(units)))
	w.PutUTF16(units)
	return nil
}

// PutUTF16 appends raw UTF-16LE code units.
func (w *Writer) PutUTF16(units []uint16) {
	for _, u := range units {
		w.PutU16(u)
	}
}

// EncodeUTF16 converts s to UTF-16 code units.
func EncodeUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}
