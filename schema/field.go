// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package schema

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// FieldType is the wire type of one table column.
type FieldType uint8

// Field types.
const (
	Invalid FieldType = iota
	Bool
	I8
	I16
	I32
	I64
	U8
	U16
	U32
	U64
	F32
	F64
	StringU8
	StringU16
	OptionalStringU8
	OptionalStringU16
	FixedStringU8
	FixedStringU16
)

var fieldTypeNames = [...]string{
	Invalid:           "Invalid",
	Bool:              "Bool",
	I8:                "I8",
	I16:               "I16",
	I32:               "I32",
	I64:               "I64",
	U8:                "U8",
	U16:               "U16",
	U32:               "U32",
	U64:               "U64",
	F32:               "F32",
	F64:               "F64",
	StringU8:          "StringU8",
	StringU16:         "StringU16",
	OptionalStringU8:  "OptionalStringU8",
	OptionalStringU16: "OptionalStringU16",
	FixedStringU8:     "FixedStringU8",
	FixedStringU16:    "FixedStringU16",
}

// String returns the name used in definition files.
func (t FieldType) String() string {
	if int(t) < len(fieldTypeNames) {
		return fieldTypeNames[t]
	}
	return "FieldType(" + strconv.Itoa(int(t)) + ")"
}

// ParseFieldType parses a field type name. Matching is case-insensitive and
// accepts the aliases "Boolean" and "Float".
func ParseFieldType(name string) (FieldType, error) {
	switch strings.ToLower(name) {
	case "boolean":
		return Bool, nil
	case "float":
		return F32, nil
	case "double":
		return F64, nil
	}
	for i, n := range fieldTypeNames {
		if i != int(Invalid) && strings.EqualFold(n, name) {
			return FieldType(i), nil
		}
	}
	return Invalid, errors.Newf("unknown field type %q", name)
}

// IsInteger reports whether t is a signed integer type.
func (t FieldType) IsInteger() bool { return t >= I8 && t <= I64 }

// IsUnsigned reports whether t is an unsigned integer type.
func (t FieldType) IsUnsigned() bool { return t >= U8 && t <= U64 }

// IsFloat reports whether t is a floating point type.
func (t FieldType) IsFloat() bool { return t == F32 || t == F64 }

// IsString reports whether t holds text.
func (t FieldType) IsString() bool { return t >= StringU8 && t <= FixedStringU16 }

// IsOptional reports whether t carries a presence flag.
func (t FieldType) IsOptional() bool { return t == OptionalStringU8 || t == OptionalStringU16 }

// IsFixed reports whether t is a fixed width string.
func (t FieldType) IsFixed() bool { return t == FixedStringU8 || t == FixedStringU16 }

// Bits returns the width of integer and float types, or 0.
func (t FieldType) Bits() int {
	switch t {
	case I8, U8:
		return 8
	case I16, U16:
		return 16
	case I32, U32, F32:
		return 32
	case I64, U64, F64:
		return 64
	}
	return 0
}

// IntRange returns the inclusive bounds of a signed integer type.
func (t FieldType) IntRange() (lo, hi int64) {
	switch t {
	case I8:
		return math.MinInt8, math.MaxInt8
	case I16:
		return math.MinInt16, math.MaxInt16
	case I32:
		return math.MinInt32, math.MaxInt32
	}
	return math.MinInt64, math.MaxInt64
}

// UintMax returns the upper bound of an unsigned integer type.
func (t FieldType) UintMax() uint64 {
	switch t {
	case U8:
		return math.MaxUint8
	case U16:
		return math.MaxUint16
	case U32:
		return math.MaxUint32
	}
	return math.MaxUint64
}

// Reference points a field at a column of another table.
type Reference struct {
	Table  string
	Column string
}

// FieldDef describes one column of a table version.
type FieldDef struct {
	Name string
	Type FieldType
	// Width is the length of fixed strings, in bytes or UTF-16 code units.
	Width int
	Key   bool
	Ref   *Reference
	// Optional fields only exist in the releases listed in Releases.
	Optional bool
	Releases []string
	// Tombstone marks the Bool column whose true value deletes the row's key
	// from lower precedence containers.
	Tombstone bool
	Default   string
}

// InRelease reports whether the field is part of the layout for release.
func (f *FieldDef) InRelease(release string) bool {
	if !f.Optional {
		return true
	}
	for _, r := range f.Releases {
		if strings.EqualFold(r, release) {
			return true
		}
	}
	return false
}

// Validate checks that the field is well-formed.
func (f *FieldDef) Validate() error {
	if f.Name == "" {
		return errors.New("name is required")
	}
	if f.Type == Invalid || int(f.Type) >= len(fieldTypeNames) {
		return errors.Newf("field %q: invalid type %s", f.Name, f.Type)
	}
	if f.Type.IsFixed() {
		if f.Width <= 0 {
			return errors.Newf("field %q: fixed string needs a positive width", f.Name)
		}
	} else if f.Width != 0 {
		return errors.Newf("field %q: width only applies to fixed strings", f.Name)
	}
	if f.Tombstone && f.Type != Bool {
		return errors.Newf("field %q: tombstone field must be Bool, got %s", f.Name, f.Type)
	}
	if f.Tombstone && f.Key {
		return errors.Newf("field %q: tombstone field cannot be a key", f.Name)
	}
	if f.Ref != nil {
		if !f.Type.IsString() {
			return errors.Newf("field %q: references need a string type, got %s", f.Name, f.Type)
		}
		if f.Ref.Table == "" || f.Ref.Column == "" {
			return errors.Newf("field %q: reference needs a table and a column", f.Name)
		}
	}
	if f.Optional && len(f.Releases) == 0 {
		return errors.Newf("field %q: optional field lists no releases", f.Name)
	}
	if f.Default != "" {
		if err := checkDefault(f.Type, f.Default); err != nil {
			return errors.Wrapf(err, "field %q: default %q", f.Name, f.Default)
		}
	}
	return nil
}

func checkDefault(t FieldType, s string) error {
	var err error
	switch {
	case t == Bool:
		_, err = strconv.ParseBool(s)
	case t.IsInteger():
		_, err = strconv.ParseInt(s, 10, t.Bits())
	case t.IsUnsigned():
		_, err = strconv.ParseUint(s, 10, t.Bits())
	case t.IsFloat():
		_, err = strconv.ParseFloat(s, t.Bits())
	}
	return err
}
