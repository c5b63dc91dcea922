// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package loadorder

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/suprsokr/go-packfile"
	"github.com/suprsokr/go-packfile/schema"
	"github.com/suprsokr/go-packfile/table"
	"go.uber.org/zap"
)

// LoadOrder lists container identifiers from lowest to highest precedence.
type LoadOrder []string

// Set holds the open containers a LoadOrder refers to.
type Set map[string]*packfile.Container

// Source names the container and entry a merged row came from.
type Source struct {
	Container string
	Entry     string
}

// MergedRow is one row of a merged table.
type MergedRow struct {
	Row    table.Row
	Source Source
}

// MergedTable is the effective content of a table across a load order.
type MergedTable struct {
	Name string
	// Definition is the layout of the highest precedence decodable table.
	// It is nil when no container holds a decodable copy.
	Definition *schema.Definition
	// Rows are in the order their keys were first seen.
	Rows     []MergedRow
	Warnings []Warning

	index map[table.Key]int
}

// Len returns the number of merged rows.
func (m *MergedTable) Len() int { return len(m.Rows) }

// Lookup returns the merged row with key k.
func (m *MergedTable) Lookup(k table.Key) (MergedRow, bool) {
	i, ok := m.index[k]
	if !ok {
		return MergedRow{}, false
	}
	return m.Rows[i], true
}

// Has reports whether a row with key k survived the merge.
func (m *MergedTable) Has(k table.Key) bool {
	_, ok := m.index[k]
	return ok
}

// Table returns the merged rows as a new table. It returns nil when the
// merged table has no definition.
func (m *MergedTable) Table() (*table.Table, error) {
	if m.Definition == nil {
		return nil, nil
	}
	t := table.New(m.Definition)
	for i, r := range m.Rows {
		if err := t.AddRow(r.Row); err != nil {
			return nil, errors.Wrapf(err, "merged %s row %d from %s", m.Name, i, r.Source.Container)
		}
	}
	return t, nil
}

// Resolver merges a table across a load order.
//
// The zero Resolver is not usable; Registry must be set. Resolving may write
// pending table edits of a container back into its entries but never changes
// their content.
type Resolver struct {
	Registry *schema.Registry
	Logger   *zap.Logger
}

// contribution is one decodable table of the merge.
type contribution struct {
	src Source
	t   *table.Table
}

// slot accumulates the state of one key. Suppressed keys stay in the ordering
// so a later row restores their first-seen position.
type slot struct {
	row        MergedRow
	suppressed bool
}

func (r *Resolver) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve folds every copy of the named table across order, lowest
// precedence first. A higher precedence row replaces the row with the same
// key, and a tombstone removes the key. Problems never stop the merge; they
// are collected into the result's Warnings.
func (r *Resolver) Resolve(order LoadOrder, containers Set, name string) *MergedTable {
	m := &MergedTable{Name: name, index: make(map[table.Key]int)}
	warn := func(w Warning) {
		m.Warnings = append(m.Warnings, w)
		r.logger().Warn("load order", zap.String("table", name), warningField(w))
	}

	contribs := r.collect(order, containers, name, warn)
	if len(contribs) == 0 {
		return m
	}
	target := contribs[len(contribs)-1].t.Definition()
	m.Definition = target
	if len(target.KeyIndexes()) == 0 {
		warn(Warning{Kind: NoKeyFields, Message: "rows are keyed on every field"})
	}

	var keys []table.Key
	slots := make(map[table.Key]*slot)
	var seen map[table.Key]struct{}
	current := ""
	for _, c := range contribs {
		if c.src.Container != current {
			current = c.src.Container
			seen = make(map[table.Key]struct{})
		}
		def := c.t.Definition()
		convert := def != target
		if convert {
			warn(Warning{
				Kind:      VersionConverted,
				Container: c.src.Container,
				Entry:     c.src.Entry,
				Message:   "version " + strconv.Itoa(int(def.Version)) + " to " + strconv.Itoa(int(target.Version)),
			})
		}
		for _, row := range c.t.Rows() {
			if convert {
				row, _ = table.ConvertRow(def, target, row)
			} else {
				row = row.Clone()
			}
			k := table.KeyOf(target, row)
			if _, dup := seen[k]; dup {
				warn(Warning{
					Kind:      DuplicateKey,
					Container: c.src.Container,
					Entry:     c.src.Entry,
					Message:   "key " + describeKey(target, row) + " defined twice, keeping the last",
				})
			}
			seen[k] = struct{}{}

			s, ok := slots[k]
			if !ok {
				s = &slot{}
				slots[k] = s
				keys = append(keys, k)
			}
			s.suppressed = row.Tombstone
			s.row = MergedRow{Row: row, Source: c.src}
		}
	}

	for _, k := range keys {
		s := slots[k]
		if s.suppressed {
			continue
		}
		m.index[k] = len(m.Rows)
		m.Rows = append(m.Rows, s.row)
	}
	r.logger().Debug("resolved table",
		zap.String("table", name),
		zap.Int("contributions", len(contribs)),
		zap.Int("rows", len(m.Rows)),
		zap.Int("warnings", len(m.Warnings)),
	)
	return m
}

// collect decodes every copy of the table in precedence order. Within one
// container, entries are taken in index order.
func (r *Resolver) collect(order LoadOrder, containers Set, name string, warn func(Warning)) []contribution {
	var out []contribution
	for _, id := range order {
		c := containers[id]
		if c == nil {
			warn(Warning{Kind: MissingContainer, Container: id})
			continue
		}
		for _, path := range c.Paths() {
			if n, ok := table.NameFromPath(path); !ok || !strings.EqualFold(n, name) {
				continue
			}
			t, err := c.Table(path, r.Registry)
			if err != nil || t == nil || !t.Decodable() {
				msg := "not decodable"
				if err != nil {
					msg = err.Error()
				}
				warn(Warning{Kind: UndecodableTable, Container: id, Entry: path, Message: msg})
				continue
			}
			out = append(out, contribution{src: Source{Container: id, Entry: path}, t: t})
		}
	}
	return out
}

// describeKey renders the key fields of row for messages, or every field
// when the table has none.
func describeKey(def *schema.Definition, row table.Row) string {
	idx := def.KeyIndexes()
	if len(idx) == 0 {
		for i := range row.Values {
			if i != def.TombstoneIndex() {
				idx = append(idx, i)
			}
		}
	}
	parts := make([]string, len(idx))
	for n, i := range idx {
		parts[n] = strconv.Quote(row.Values[i].String())
	}
	return strings.Join(parts, ",")
}
