// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package table

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/suprsokr/go-packfile/internal/binio"
	"github.com/suprsokr/go-packfile/schema"
)

// Table is a decoded DB table, or the opaque blob of one that could not be
// decoded.
type Table struct {
	name   string
	header Header
	def    *schema.Definition
	rows   []Row

	// blob is the source of a decoded table while it is clean, and the only
	// content of an undecodable one.
	blob  []byte
	err   error
	dirty bool
}

// Decode reads the version declared in blob, resolves its layout in reg and
// decodes the rows. When the layout is unknown or does not match, Decode
// returns the error together with an undecodable Table that keeps blob for
// round trips.
func Decode(name string, blob []byte, reg *schema.Registry) (*Table, error) {
	t := &Table{name: name, blob: blob}
	r := binio.NewReader(blob)
	h, err := readHeader(r)
	if err != nil {
		t.err = &DecodeError{Table: name, Row: -1, Offset: r.Offset(), Err: err}
		return t, t.err
	}
	t.header = h

	def, err := reg.Resolve(name, h.Version)
	if err != nil {
		t.err = err
		return t, err
	}
	rows, err := decodeRows(def, r, h.Rows, 0)
	if err != nil {
		t.err = err
		return t, err
	}
	t.def = def
	t.rows = rows
	return t, nil
}

// New returns an empty table laid out by def.
func New(def *schema.Definition) *Table {
	return &Table{
		name: def.Table,
		def:  def,
		header: Header{
			HasVersion: def.Version != 0,
			Version:    def.Version,
			Flag:       DefaultFlag,
		},
		dirty: true,
	}
}

// Name returns the table name, e.g. "units_tables".
func (t *Table) Name() string { return t.name }

// Version returns the version declared in the table header.
func (t *Table) Version() int32 { return t.header.Version }

// Header returns the blob header. Rows reflects the decoded count.
func (t *Table) Header() Header { return t.header }

// Definition returns the resolved layout, or nil for undecodable tables.
func (t *Table) Definition() *schema.Definition { return t.def }

// Decodable reports whether the rows are available.
func (t *Table) Decodable() bool { return t.def != nil }

// Err returns the error that made the table undecodable.
func (t *Table) Err() error { return t.err }

// Blob returns the opaque bytes of an undecodable table.
func (t *Table) Blob() []byte {
	if t.Decodable() {
		return nil
	}
	return t.blob
}

// Dirty reports whether rows changed since decoding or the last MarkClean.
func (t *Table) Dirty() bool { return t.dirty }

// MarkClean records that the current rows have been written out.
func (t *Table) MarkClean() { t.dirty = false }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Rows returns the rows in order. The slice must not be modified; use Set
// and the other editing methods instead.
func (t *Table) Rows() []Row { return t.rows }

// Row returns row i.
func (t *Table) Row(i int) Row { return t.rows[i] }

// Field returns the active field named name and its position.
func (t *Table) Field(name string) (schema.FieldDef, int, bool) {
	if t.def == nil {
		return schema.FieldDef{}, -1, false
	}
	i := t.def.FieldIndex(name)
	if i < 0 {
		return schema.FieldDef{}, -1, false
	}
	return t.def.Fields()[i], i, true
}

// Encode returns the table blob. Clean tables return the bytes they were
// decoded from, undecodable tables their opaque blob.
func (t *Table) Encode() ([]byte, error) {
	if !t.Decodable() || (!t.dirty && t.blob != nil) {
		return t.blob, nil
	}
	w := binio.NewWriter(64 + len(t.rows)*len(t.def.Fields())*4)
	if err := writeHeader(w, t.header, len(t.rows)); err != nil {
		return nil, errors.Wrapf(err, "encode %s header", t.name)
	}
	if err := encodeRows(w, t.def, t.rows); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Flush encodes a dirty table, replaces its source bytes with the result
// and marks it clean.
func (t *Table) Flush() ([]byte, error) {
	b, err := t.Encode()
	if err != nil {
		return nil, err
	}
	if t.Decodable() {
		t.blob = b
		t.header.Rows = uint32(len(t.rows))
		t.dirty = false
	}
	return b, nil
}

func (t *Table) editable() error {
	if !t.Decodable() {
		return errors.Wrapf(t.err, "table %s is not decodable", t.name)
	}
	return nil
}

func (t *Table) touch() {
	t.dirty = true
	t.header.Rows = uint32(len(t.rows))
}

// NewRow returns a row filled with each field's default value.
func (t *Table) NewRow() Row {
	if t.def == nil {
		return Row{}
	}
	fields := t.def.Fields()
	r := Row{Values: make([]Value, len(fields))}
	for i := range fields {
		r.Values[i] = Default(fields[i])
	}
	return r
}

func (t *Table) checkRow(r Row) error {
	fields := t.def.Fields()
	if len(r.Values) != len(fields) {
		return errors.Newf("row has %d values, %s has %d fields", len(r.Values), t.name, len(fields))
	}
	if r.Tombstone && t.def.TombstoneIndex() < 0 {
		return errors.Newf("%s has no tombstone field", t.name)
	}
	for i := range fields {
		if err := Check(fields[i], r.Values[i]); err != nil {
			return errors.Wrapf(err, "field %s", fields[i].Name)
		}
	}
	return nil
}

// normalize keeps the tombstone flag and the tombstone field in agreement.
func (t *Table) normalize(r Row) Row {
	r = r.Clone()
	if i := t.def.TombstoneIndex(); i >= 0 {
		if r.Tombstone {
			r.Values[i] = Bool(true)
		} else if r.Values[i].AsBool() {
			r.Tombstone = true
		}
	}
	return r
}

// AddRow appends r.
func (t *Table) AddRow(r Row) error {
	return t.InsertRow(len(t.rows), r)
}

// InsertRow inserts r before row i.
func (t *Table) InsertRow(i int, r Row) error {
	if err := t.editable(); err != nil {
		return err
	}
	if i < 0 || i > len(t.rows) {
		return errors.Newf("insert %s: row %d out of range [0,%d]", t.name, i, len(t.rows))
	}
	if err := t.checkRow(r); err != nil {
		return errors.Wrapf(err, "insert %s row %d", t.name, i)
	}
	t.rows = append(t.rows, Row{})
	copy(t.rows[i+1:], t.rows[i:])
	t.rows[i] = t.normalize(r)
	t.touch()
	return nil
}

// RemoveRow deletes row i.
func (t *Table) RemoveRow(i int) error {
	if err := t.editable(); err != nil {
		return err
	}
	if i < 0 || i >= len(t.rows) {
		return errors.Newf("remove %s: row %d out of range [0,%d)", t.name, i, len(t.rows))
	}
	t.rows = append(t.rows[:i], t.rows[i+1:]...)
	t.touch()
	return nil
}

// Set stores v in the named field of row i.
func (t *Table) Set(i int, field string, v Value) error {
	if err := t.editable(); err != nil {
		return err
	}
	if i < 0 || i >= len(t.rows) {
		return errors.Newf("set %s: row %d out of range [0,%d)", t.name, i, len(t.rows))
	}
	f, j, ok := t.Field(field)
	if !ok {
		return errors.Newf("set %s: no field %q", t.name, field)
	}
	if v.kind == KindString && f.Ref != nil {
		v = Ref(v.str, *f.Ref)
	}
	if err := Check(f, v); err != nil {
		return errors.Wrapf(err, "set %s row %d", t.name, i)
	}
	row := t.rows[i].Clone()
	row.Values[j] = v
	if f.Tombstone {
		row.Tombstone = v.AsBool()
	}
	t.rows[i] = row
	t.touch()
	return nil
}

// Get returns the named field of row i.
func (t *Table) Get(i int, field string) (Value, error) {
	if err := t.editable(); err != nil {
		return Value{}, err
	}
	_, j, ok := t.Field(field)
	if !ok {
		return Value{}, errors.Newf("get %s: no field %q", t.name, field)
	}
	if i < 0 || i >= len(t.rows) {
		return Value{}, errors.Newf("get %s: row %d out of range [0,%d)", t.name, i, len(t.rows))
	}
	return t.rows[i].Values[j], nil
}

// Tombstone appends a row that deletes key from lower precedence containers.
// key lists the values of the key fields in order.
func (t *Table) Tombstone(key ...Value) error {
	if err := t.editable(); err != nil {
		return err
	}
	keys := t.def.KeyIndexes()
	if len(keys) == 0 {
		return errors.Newf("tombstone %s: table has no key fields", t.name)
	}
	if len(key) != len(keys) {
		return errors.Newf("tombstone %s: %d key values for %d key fields", t.name, len(key), len(keys))
	}
	r := t.NewRow()
	fields := t.def.Fields()
	for n, i := range keys {
		v := key[n]
		if v.kind == KindString && fields[i].Ref != nil {
			v = Ref(v.str, *fields[i].Ref)
		}
		r.Values[i] = v
	}
	r.Tombstone = true
	return t.AddRow(r)
}

// Key returns the merge key of row i.
func (t *Table) Key(i int) Key { return KeyOf(t.def, t.rows[i]) }

// Key identifies rows across containers. It is built from the key fields, or
// from every non-tombstone field of a table without key fields.
type Key string

// KeyOf computes the merge key of r laid out by def.
func KeyOf(def *schema.Definition, r Row) Key {
	var b strings.Builder
	put := func(v Value) {
		k := v.kind
		if k == KindRef {
			k = KindString
		}
		b.WriteByte(byte(k))
		b.WriteString(v.String())
		b.WriteByte(0)
	}
	if keys := def.KeyIndexes(); len(keys) > 0 {
		for _, i := range keys {
			put(r.Values[i])
		}
		return Key(b.String())
	}
	tomb := def.TombstoneIndex()
	for i, v := range r.Values {
		if i != tomb {
			put(v)
		}
	}
	return Key(b.String())
}
