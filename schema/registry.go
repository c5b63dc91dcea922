// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package schema

import (
	"sort"
	"strconv"
	"sync/atomic"

	"github.com/cockroachdb/errors"
)

var (
	// ErrUnknownSchema marks lookups of (table, version) pairs that were never registered.
	ErrUnknownSchema = errors.New("unknown schema")
	// ErrFrozen is returned by Register once the registry has been read from.
	ErrFrozen = errors.New("schema registry is frozen")
	// ErrDuplicateVersion is returned when a table version is registered twice.
	ErrDuplicateVersion = errors.New("duplicate schema version")
)

// UnknownSchemaError reports that no definition matches a table's declared version.
type UnknownSchemaError struct {
	Table   string
	Version int32
}

func (e *UnknownSchemaError) Error() string {
	return "unknown schema: table " + e.Table + " version " + strconv.Itoa(int(e.Version))
}

// Is makes errors.Is(err, ErrUnknownSchema) hold.
func (e *UnknownSchemaError) Is(target error) bool { return target == ErrUnknownSchema }

// Definition is the layout of one table version.
type Definition struct {
	Table   string
	Version int32

	declared []FieldDef
	active   []FieldDef
	keys     []int
	tomb     int
}

// Fields returns the active layout for the registry's release, in wire order.
func (d *Definition) Fields() []FieldDef { return d.active }

// Declared returns every declared field, including optional ones that are
// absent from the registry's release.
func (d *Definition) Declared() []FieldDef { return d.declared }

// KeyIndexes returns the positions of key fields within Fields.
func (d *Definition) KeyIndexes() []int { return d.keys }

// TombstoneIndex returns the position of the tombstone field within Fields, or -1.
func (d *Definition) TombstoneIndex() int { return d.tomb }

// FieldIndex returns the position of the named active field, or -1.
func (d *Definition) FieldIndex(name string) int {
	for i := range d.active {
		if d.active[i].Name == name {
			return i
		}
	}
	return -1
}

// newDefinition validates fields and computes the active layout.
func newDefinition(table string, version int32, fields []FieldDef, release string) (*Definition, error) {
	d := &Definition{
		Table:    table,
		Version:  version,
		declared: append([]FieldDef(nil), fields...),
		tomb:     -1,
	}
	seen := make(map[string]struct{}, len(fields))
	for i := range d.declared {
		f := &d.declared[i]
		if err := f.Validate(); err != nil {
			return nil, errors.Wrapf(err, "field %d", i)
		}
		if _, ok := seen[f.Name]; ok {
			return nil, errors.Newf("field %d: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = struct{}{}
		if !f.InRelease(release) {
			continue
		}
		if f.Key {
			d.keys = append(d.keys, len(d.active))
		}
		if f.Tombstone {
			if d.tomb >= 0 {
				return nil, errors.Newf("field %q: second tombstone field", f.Name)
			}
			d.tomb = len(d.active)
		}
		d.active = append(d.active, *f)
	}
	return d, nil
}

// Registry holds every known table layout, keyed by table name and version.
//
// A Registry is populated with Register before use. The first Resolve freezes
// it; from then on it is safe for concurrent reads and rejects registration.
type Registry struct {
	release string
	tables  map[string]map[int32]*Definition
	frozen  atomic.Bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithRelease selects the game release whose optional fields are active.
func WithRelease(release string) Option {
	return func(r *Registry) { r.release = release }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{tables: make(map[string]map[int32]*Definition)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Release returns the game release the registry was built for.
func (r *Registry) Release() string { return r.release }

// Register adds the layout of one table version. Versions are unique per table.
func (r *Registry) Register(table string, version int32, fields []FieldDef) error {
	if r.frozen.Load() {
		return errors.Wrapf(ErrFrozen, "register %s version %d", table, version)
	}
	if table == "" {
		return errors.New("register: table name is required")
	}
	versions := r.tables[table]
	if _, ok := versions[version]; ok {
		return errors.Wrapf(ErrDuplicateVersion, "%s version %d", table, version)
	}
	d, err := newDefinition(table, version, fields, r.release)
	if err != nil {
		return errors.Wrapf(err, "register %s version %d", table, version)
	}
	if versions == nil {
		versions = make(map[int32]*Definition)
		r.tables[table] = versions
	}
	versions[version] = d
	return nil
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() { r.frozen.Store(true) }

// Frozen reports whether the registry is read-only.
func (r *Registry) Frozen() bool { return r.frozen.Load() }

// Resolve returns the definition registered for exactly (table, version).
// There is no fallback to a neighbouring version.
func (r *Registry) Resolve(table string, version int32) (*Definition, error) {
	r.frozen.Store(true)
	if d, ok := r.tables[table][version]; ok {
		return d, nil
	}
	return nil, &UnknownSchemaError{Table: table, Version: version}
}

// Versions returns the registered versions of table in ascending order.
func (r *Registry) Versions(table string) []int32 {
	versions := r.tables[table]
	out := make([]int32, 0, len(versions))
	for v := range versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Latest returns the highest registered version of table.
func (r *Registry) Latest(table string) (*Definition, bool) {
	versions := r.Versions(table)
	if len(versions) == 0 {
		return nil, false
	}
	return r.tables[table][versions[len(versions)-1]], true
}

// Tables returns the registered table names in sorted order.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.tables))
	for t := range r.tables {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Has reports whether any version of table is registered.
func (r *Registry) Has(table string) bool {
	return len(r.tables[table]) > 0
}
