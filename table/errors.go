// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import (
	"strconv"

	"github.com/cockroachdb/errors"
)

// ErrDecode marks table blobs whose bytes do not match the resolved layout.
var ErrDecode = errors.New("table decode error")

// DecodeError names the table, row and field at which a blob stopped
// matching its layout. Row is -1 for the blob header. Field is empty when
// the rows decoded but bytes were left over.
type DecodeError struct {
	Table  string
	Row    int
	Field  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	s := "decode " + e.Table
	switch {
	case e.Row < 0:
		s += " header"
	case e.Field == "":
		s += " after row " + strconv.Itoa(e.Row-1)
	default:
		s += " row " + strconv.Itoa(e.Row) + " field " + e.Field
	}
	s += " at offset " + strconv.Itoa(e.Offset)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDecode) hold.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// ErrTrailingBytes is wrapped by a DecodeError when rows end before the blob does.
var ErrTrailingBytes = errors.New("trailing bytes")
