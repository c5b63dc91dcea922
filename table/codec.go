// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/suprsokr/go-packfile/internal/binio"
	"github.com/suprsokr/go-packfile/schema"
)

// Row is one decoded table row. Values holds one entry per active field of
// the table's definition, in wire order.
type Row struct {
	Values []Value
	// Tombstone is set when the row deletes its key from lower precedence
	// containers instead of defining it.
	Tombstone bool
}

// Clone returns a copy of r that shares no storage with it.
func (r Row) Clone() Row {
	return Row{Values: append([]Value(nil), r.Values...), Tombstone: r.Tombstone}
}

// Equal reports whether r and o hold the same values and tombstone state.
func (r Row) Equal(o Row) bool {
	if r.Tombstone != o.Tombstone || len(r.Values) != len(o.Values) {
		return false
	}
	for i := range r.Values {
		if !r.Values[i].Equal(o.Values[i]) {
			return false
		}
	}
	return true
}

// DecodeRows decodes count rows laid out by def. The rows must consume
// data exactly.
func DecodeRows(def *schema.Definition, data []byte, count uint32) ([]Row, error) {
	r := binio.NewReader(data)
	rows, err := decodeRows(def, r, count, 0)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// decodeRows reads count rows from r and requires r to be drained
// afterwards. base is added to reported offsets.
func decodeRows(def *schema.Definition, r *binio.Reader, count uint32, base int) ([]Row, error) {
	fields := def.Fields()
	tomb := def.TombstoneIndex()

	hint := int(count)
	if hint > r.Len()+1 {
		hint = r.Len() + 1
	}
	rows := make([]Row, 0, hint)
	for i := 0; i < int(count); i++ {
		row := Row{Values: make([]Value, len(fields))}
		for j := range fields {
			off := r.Offset()
			v, err := decodeValue(r, &fields[j])
			if err != nil {
				return nil, &DecodeError{Table: def.Table, Row: i, Field: fields[j].Name, Offset: base + off, Err: err}
			}
			row.Values[j] = v
		}
		if tomb >= 0 && row.Values[tomb].AsBool() {
			row.Tombstone = true
		}
		rows = append(rows, row)
	}
	if r.Len() != 0 {
		return nil, &DecodeError{
			Table:  def.Table,
			Row:    int(count),
			Offset: base + r.Offset(),
			Err:    errors.Wrapf(ErrTrailingBytes, "%d bytes", r.Len()),
		}
	}
	return rows, nil
}

func decodeValue(r *binio.Reader, f *schema.FieldDef) (Value, error) {
	switch f.Type {
	case schema.Bool:
		b, err := r.U8()
		if err != nil {
			return Value{}, err
		}
		if b > 1 {
			return Value{}, errors.Newf("invalid bool byte 0x%02x", b)
		}
		return Bool(b == 1), nil
	case schema.I8:
		v, err := r.I8()
		return Int(int64(v)), err
	case schema.I16:
		v, err := r.I16()
		return Int(int64(v)), err
	case schema.I32:
		v, err := r.I32()
		return Int(int64(v)), err
	case schema.I64:
		v, err := r.I64()
		return Int(v), err
	case schema.U8:
		v, err := r.U8()
		return Uint(uint64(v)), err
	case schema.U16:
		v, err := r.U16()
		return Uint(uint64(v)), err
	case schema.U32:
		v, err := r.U32()
		return Uint(uint64(v)), err
	case schema.U64:
		v, err := r.U64()
		return Uint(v), err
	case schema.F32:
		v, err := r.U32()
		return Value{kind: KindFloat, single: true, num: uint64(v)}, err
	case schema.F64:
		v, err := r.U64()
		return Value{kind: KindFloat, num: v}, err
	case schema.StringU8:
		s, err := r.StringU8()
		return text(f, s), err
	case schema.StringU16:
		s, err := r.StringU16()
		return text(f, s), err
	case schema.OptionalStringU8, schema.OptionalStringU16:
		flag, err := r.U8()
		if err != nil {
			return Value{}, err
		}
		switch flag {
		case 0:
			return Null(), nil
		case 1:
		default:
			return Value{}, errors.Newf("invalid optional flag 0x%02x", flag)
		}
		var s string
		if f.Type == schema.OptionalStringU8 {
			s, err = r.StringU8()
		} else {
			s, err = r.StringU16()
		}
		return text(f, s), err
	case schema.FixedStringU8:
		b, err := r.Bytes(f.Width)
		if err != nil {
			return Value{}, err
		}
		return text(f, strings.TrimRight(string(b), "\x00")), nil
	case schema.FixedStringU16:
		start := r.Offset()
		b, err := r.Bytes(f.Width * 2)
		if err != nil {
			return Value{}, err
		}
		n := len(b)
		for n >= 2 && b[n-2] == 0 && b[n-1] == 0 {
			n -= 2
		}
		s, ok := binio.DecodeUTF16(b[:n])
		if !ok {
			return Value{}, errors.Wrapf(binio.ErrInvalidUTF16, "at offset %d", start)
		}
		return text(f, s), nil
	}
	return Value{}, errors.Newf("unsupported field type %s", f.Type)
}

func text(f *schema.FieldDef, s string) Value {
	if f.Ref != nil {
		return Ref(s, *f.Ref)
	}
	return String(s)
}

// EncodeRows encodes rows laid out by def.
func EncodeRows(def *schema.Definition, rows []Row) ([]byte, error) {
	w := binio.NewWriter(len(rows) * len(def.Fields()) * 4)
	if err := encodeRows(w, def, rows); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func encodeRows(w *binio.Writer, def *schema.Definition, rows []Row) error {
	fields := def.Fields()
	tomb := def.TombstoneIndex()
	for i := range rows {
		row := &rows[i]
		if len(row.Values) != len(fields) {
			return errors.Newf("encode %s row %d: %d values for %d fields", def.Table, i, len(row.Values), len(fields))
		}
		if row.Tombstone && tomb < 0 {
			return errors.Newf("encode %s row %d: table has no tombstone field", def.Table, i)
		}
		for j := range fields {
			v := row.Values[j]
			if row.Tombstone && j == tomb {
				v = Bool(true)
			}
			if err := encodeValue(w, &fields[j], v); err != nil {
				return errors.Wrapf(err, "encode %s row %d field %s", def.Table, i, fields[j].Name)
			}
		}
	}
	return nil
}

func encodeValue(w *binio.Writer, f *schema.FieldDef, v Value) error {
	if err := Check(*f, v); err != nil {
		return err
	}
	switch f.Type {
	case schema.Bool:
		w.PutU8(uint8(v.num))
	case schema.I8:
		w.PutI8(int8(v.AsInt()))
	case schema.I16:
		w.PutI16(int16(v.AsInt()))
	case schema.I32:
		w.PutI32(int32(v.AsInt()))
	case schema.I64:
		w.PutI64(v.AsInt())
	case schema.U8:
		w.PutU8(uint8(v.num))
	case schema.U16:
		w.PutU16(uint16(v.num))
	case schema.U32:
		w.PutU32(uint32(v.num))
	case schema.U64:
		w.PutU64(v.num)
	case schema.F32:
		w.PutU32(v.Float32Bits())
	case schema.F64:
		w.PutU64(v.Float64Bits())
	case schema.StringU8:
		return w.PutStringU8(v.str)
	case schema.StringU16:
		return w.PutStringU16(v.str)
	case schema.OptionalStringU8, schema.OptionalStringU16:
		if v.IsNull() {
			w.PutU8(0)
			return nil
		}
		w.PutU8(1)
		if f.Type == schema.OptionalStringU8 {
			return w.PutStringU8(v.str)
		}
		return w.PutStringU16(v.str)
	case schema.FixedStringU8:
		w.PutBytes([]byte(v.str))
		for n := len(v.str); n < f.Width; n++ {
			w.PutU8(0)
		}
	case schema.FixedStringU16:
		units := binio.EncodeUTF16(v.str)
		w.PutUTF16(units)
		for n := len(units); n < f.Width; n++ {
			w.PutU16(0)
		}
	default:
		return errors.Newf("unsupported field type %s", f.Type)
	}
	return nil
}

// Check reports whether v can be stored in a field described by f without
// loss.
func Check(f schema.FieldDef, v Value) error {
	t := f.Type
	switch {
	case t == schema.Bool:
		if v.kind != KindBool {
			return kindError(f, v)
		}
	case t.IsInteger():
		if v.kind != KindInt {
			return kindError(f, v)
		}
		lo, hi := t.IntRange()
		if i := v.AsInt(); i < lo || i > hi {
			return errors.Newf("%d out of range for %s", i, t)
		}
	case t.IsUnsigned():
		if v.kind != KindUint {
			return kindError(f, v)
		}
		if v.num > t.UintMax() {
			return errors.Newf("%d out of range for %s", v.num, t)
		}
	case t.IsFloat():
		if v.kind != KindFloat {
			return kindError(f, v)
		}
	case t.IsString():
		if v.kind == KindNull {
			if !t.IsOptional() {
				return errors.Newf("null value for non-optional %s", t)
			}
			return nil
		}
		if v.kind != KindString && v.kind != KindRef {
			return kindError(f, v)
		}
		return checkText(f, v.str)
	default:
		return errors.Newf("unsupported field type %s", t)
	}
	return nil
}

func checkText(f schema.FieldDef, s string) error {
	switch f.Type {
	case schema.StringU16, schema.OptionalStringU16, schema.FixedStringU16:
		if !utf8.ValidString(s) {
			return errors.New("invalid UTF-8 for a UTF-16 field")
		}
	}
	switch f.Type {
	case schema.StringU8, schema.OptionalStringU8:
		if len(s) > math.MaxUint16 {
			return errors.Wrapf(binio.ErrTooLong, "%d bytes", len(s))
		}
	case schema.StringU16, schema.OptionalStringU16:
		if n := len(binio.EncodeUTF16(s)); n > math.MaxUint16 {
			return errors.Wrapf(binio.ErrTooLong, "%d code units", n)
		}
	case schema.FixedStringU8, schema.FixedStringU16:
		n := len(s)
		if f.Type == schema.FixedStringU16 {
			n = len(binio.EncodeUTF16(s))
		}
		if n > f.Width {
			return errors.Newf("%q does not fit in %d units", s, f.Width)
		}
		if strings.HasSuffix(s, "\x00") {
			return errors.Newf("fixed string %q ends in NUL", s)
		}
	}
	return nil
}

func kindError(f schema.FieldDef, v Value) error {
	return errors.Newf("%s value for %s field %q", v.kind, f.Type, f.Name)
}
