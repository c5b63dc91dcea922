// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package binio reads and writes the little-endian primitives shared by the
// container and table formats.
package binio

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/cockroachdb/errors"
)

// ErrShortBuffer is returned when a read runs past the end of the input.
var ErrShortBuffer = errors.New("short buffer")

// ErrInvalidUTF16 is returned when a UTF-16 string would not survive a round trip.
var ErrInvalidUTF16 = errors.New("invalid UTF-16 string")

// Reader is a cursor over a byte slice. It never panics on truncated input.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Offset returns the number of bytes consumed so far.
func (r *Reader) Offset() int { return r.off }

// Len returns the number of unread bytes.
func (r *Reader) Len() int { return len(r.buf) - r.off }

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, bool) {
	if n < 0 || r.Len() < n {
		return nil, false
	}
	return r.buf[r.off : r.off+n], true
}

// Bytes consumes n bytes. The result aliases the underlying buffer.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || r.Len() < n {
		return nil, errors.Wrapf(ErrShortBuffer, "need %d bytes at offset %d, have %d", n, r.off, r.Len())
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

// U8 reads one byte.
func (r *Reader) U8() (uint8, error) {
	b, err := r.Bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// U16 reads a little-endian uint16.
func (r *Reader) U16() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// U32 reads a little-endian uint32.
func (r *Reader) U32() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// U64 reads a little-endian uint64.
func (r *Reader) U64() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// I8 reads a signed byte.
func (r *Reader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

// I16 reads a little-endian int16.
func (r *Reader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// I32 reads a little-endian int32.
func (r *Reader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// I64 reads a little-endian int64.
func (r *Reader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// F32 reads an IEEE-754 single precision float.
func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	return math.Float32frombits(v), err
}

// F64 reads an IEEE-754 double precision float.
func (r *Reader) F64() (float64, error) {
	v, err := r.U64()
	return math.Float64frombits(v), err
}

// CString reads a NUL-terminated string. The terminator is consumed.
func (r *Reader) CString() (string, error) {
	i := bytes.IndexByte(r.buf[r.off:], 0)
	if i < 0 {
		return "", errors.Wrapf(ErrShortBuffer, "unterminated string at offset %d", r.off)
	}
	s := string(r.buf[r.off : r.off+i])
	r.off += i + 1
	return s, nil
}

// StringU8 reads a string prefixed with its u16 byte length.
func (r *Reader) StringU8() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	b, err := r.Bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// StringU16 reads a UTF-16LE string prefixed with its u16 code unit count.
func (r *Reader) StringU16() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	return r.UTF16(int(n))
}

// UTF16 reads n UTF-16LE code units.
func (r *Reader) UTF16(n int) (string, error) {
	start := r.off
	b, err := r.Bytes(n * 2)
	if err != nil {
		return "", err
	}
	s, ok := DecodeUTF16(b)
	if !ok {
		return "", errors.Wrapf(ErrInvalidUTF16, "at offset %d", start)
	}
	return s, nil
}

// DecodeUTF16 decodes UTF-16LE bytes. It reports false when the code units
// contain unpaired surrogates, since those cannot be re-encoded identically.
func DecodeUTF16(b []byte) (string, bool) {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	runes := utf16.Decode(units)
	back := utf16.Encode(runes)
	if len(back) != len(units) {
		return "", false
	}
	for i := range back {
		if back[i] != units[i] {
			return "", false
		}
	}
	return string(runes), true
}
