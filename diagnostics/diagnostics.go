// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package diagnostics reports suspicious content in DB tables: outdated
// layouts, empty rows and keys, duplicates and dangling references.
package diagnostics

import (
	"fmt"
	"strconv"

	"github.com/suprsokr/go-packfile"
	"github.com/suprsokr/go-packfile/loadorder"
	"github.com/suprsokr/go-packfile/schema"
	"github.com/suprsokr/go-packfile/table"
	"go.uber.org/zap"
)

// Level is the severity of a Report.
type Level int

// Report levels
const (
	Info Level = iota
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// Kind identifies the check that produced a Report.
type Kind int

// Report kinds
const (
	OutdatedTable Kind = iota
	InvalidReference
	EmptyRow
	EmptyKeyField
	EmptyKeyFields
	DuplicatedCombinedKeys
	DuplicatedRow
	NoReferenceTableFound
	NoReferenceColumnFound
)

var kindNames = [...]string{
	OutdatedTable:          "OutdatedTable",
	InvalidReference:       "InvalidReference",
	EmptyRow:               "EmptyRow",
	EmptyKeyField:          "EmptyKeyField",
	EmptyKeyFields:         "EmptyKeyFields",
	DuplicatedCombinedKeys: "DuplicatedCombinedKeys",
	DuplicatedRow:          "DuplicatedRow",
	NoReferenceTableFound:  "NoReferenceTableFound",
	NoReferenceColumnFound: "NoReferenceColumnFound",
}

func (k Kind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

var kindLevels = [...]Level{
	OutdatedTable:          Error,
	InvalidReference:       Error,
	EmptyRow:               Error,
	EmptyKeyField:          Warning,
	EmptyKeyFields:         Warning,
	DuplicatedCombinedKeys: Error,
	DuplicatedRow:          Warning,
	NoReferenceTableFound:  Info,
	NoReferenceColumnFound: Info,
}

// Report is one finding. Row and Column are -1 when the finding concerns
// the whole table or a whole column.
type Report struct {
	Kind    Kind
	Level   Level
	Row     int
	Column  int
	Message string
}

func (r Report) String() string {
	s := r.Level.String() + " " + r.Kind.String()
	if r.Row >= 0 {
		s += " row " + strconv.Itoa(r.Row)
	}
	if r.Column >= 0 {
		s += " column " + strconv.Itoa(r.Column)
	}
	return s + ": " + r.Message
}

func newReport(k Kind, row, col int, format string, args ...interface{}) Report {
	return Report{Kind: k, Level: kindLevels[k], Row: row, Column: col, Message: fmt.Sprintf(format, args...)}
}

// ReferenceSource returns the merged content of a referenced table, or nil
// when no container provides it.
type ReferenceSource func(table string) *loadorder.MergedTable

// FromLoadOrder returns a ReferenceSource that resolves tables across order
// once and serves later requests from memory.
func FromLoadOrder(r *loadorder.Resolver, order loadorder.LoadOrder, set loadorder.Set) ReferenceSource {
	cache := make(map[string]*loadorder.MergedTable)
	return func(name string) *loadorder.MergedTable {
		if m, ok := cache[name]; ok {
			return m
		}
		m := r.Resolve(order, set, name)
		if m.Definition == nil {
			m = nil
		}
		cache[name] = m
		return m
	}
}

// Checker runs the table checks.
type Checker struct {
	// Registry knows the latest layout of each table.
	Registry *schema.Registry
	// Resolve provides referenced tables. Reference checks are skipped when
	// it is nil.
	Resolve ReferenceSource
	Logger  *zap.Logger
}

func (c *Checker) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

// Check reports the findings for t. Undecodable tables yield no reports.
func (c *Checker) Check(t *table.Table) []Report {
	if !t.Decodable() {
		return nil
	}
	var out []Report
	out = append(out, c.checkVersion(t)...)
	out = append(out, checkRows(t)...)
	out = append(out, c.checkReferences(t)...)
	return out
}

func (c *Checker) checkVersion(t *table.Table) []Report {
	if c.Registry == nil {
		return nil
	}
	latest, ok := c.Registry.Latest(t.Name())
	if !ok || latest.Version <= t.Version() {
		return nil
	}
	return []Report{newReport(OutdatedTable, -1, -1, "table %s is version %d, the latest is %d", t.Name(), t.Version(), latest.Version)}
}

// checkRows reports empty rows, empty keys and duplicates.
func checkRows(t *table.Table) []Report {
	def := t.Definition()
	fields := def.Fields()
	keys := def.KeyIndexes()
	tomb := def.TombstoneIndex()

	var out []Report
	firstKey := make(map[table.Key]int)
	firstRow := make(map[table.Key]int)
	for i, row := range t.Rows() {
		if row.Tombstone {
			continue
		}
		if isEmptyRow(row, tomb) {
			out = append(out, newReport(EmptyRow, i, -1, "row is empty"))
			continue
		}

		var empty []int
		for _, k := range keys {
			if isEmpty(row.Values[k]) {
				empty = append(empty, k)
			}
		}
		switch {
		case len(keys) > 1 && len(empty) == len(keys):
			out = append(out, newReport(EmptyKeyFields, i, -1, "every key field is empty"))
		default:
			for _, k := range empty {
				out = append(out, newReport(EmptyKeyField, i, k, "key field %s is empty", fields[k].Name))
			}
		}

		whole := wholeRowKey(row, tomb)
		if j, ok := firstRow[whole]; ok {
			out = append(out, newReport(DuplicatedRow, i, -1, "row duplicates row %d", j))
			continue
		}
		firstRow[whole] = i
		if len(keys) == 0 {
			continue
		}
		k := table.KeyOf(def, row)
		if j, ok := firstKey[k]; ok {
			out = append(out, newReport(DuplicatedCombinedKeys, i, -1, "key duplicates row %d", j))
			continue
		}
		firstKey[k] = i
	}
	return out
}

// checkReferences reports values that do not exist in the column they refer to.
func (c *Checker) checkReferences(t *table.Table) []Report {
	if c.Resolve == nil {
		return nil
	}
	var out []Report
	fields := t.Definition().Fields()
	for col, f := range fields {
		if f.Ref == nil {
			continue
		}
		ref := c.Resolve(f.Ref.Table)
		if ref == nil || ref.Definition == nil {
			out = append(out, newReport(NoReferenceTableFound, -1, col, "referenced table %s not found", f.Ref.Table))
			continue
		}
		target := ref.Definition.FieldIndex(f.Ref.Column)
		if target < 0 {
			out = append(out, newReport(NoReferenceColumnFound, -1, col, "referenced column %s.%s not found", f.Ref.Table, f.Ref.Column))
			continue
		}
		known := make(map[string]struct{}, ref.Len())
		for _, r := range ref.Rows {
			known[r.Row.Values[target].String()] = struct{}{}
		}
		for i, row := range t.Rows() {
			v := row.Values[col]
			if row.Tombstone || isEmpty(v) {
				continue
			}
			if _, ok := known[v.String()]; !ok {
				out = append(out, newReport(InvalidReference, i, col, "%q not found in %s.%s", v.String(), f.Ref.Table, f.Ref.Column))
			}
		}
	}
	return out
}

// TableReports holds the findings for one table entry.
type TableReports struct {
	Path    string
	Reports []Report
}

// CheckContainer checks every decodable DB table of pc and returns
// the tables that have findings, in index order.
func (c *Checker) CheckContainer(pc *packfile.Container) []TableReports {
	var out []TableReports
	for _, path := range pc.Paths() {
		if !table.IsTablePath(path) {
			continue
		}
		t, err := pc.Table(path, c.Registry)
		if err != nil {
			c.logger().Debug("skipping table", zap.String("path", path), zap.Error(err))
			continue
		}
		reports := c.Check(t)
		if len(reports) == 0 {
			continue
		}
		c.logger().Debug("table diagnostics", zap.String("path", path), zap.Int("reports", len(reports)))
		out = append(out, TableReports{Path: path, Reports: reports})
	}
	return out
}

func isEmpty(v table.Value) bool {
	switch v.Kind() {
	case table.KindNull:
		return true
	case table.KindBool:
		return !v.AsBool()
	case table.KindInt, table.KindUint:
		return v.AsUint() == 0
	case table.KindFloat:
		return v.AsFloat() == 0
	}
	return v.AsString() == ""
}

func isEmptyRow(row table.Row, tomb int) bool {
	for i, v := range row.Values {
		if i != tomb && !isEmpty(v) {
			return false
		}
	}
	return true
}

// wholeRowKey identifies a row by every field except the tombstone.
func wholeRowKey(row table.Row, tomb int) table.Key {
	b := make([]byte, 0, 16*len(row.Values))
	for i, v := range row.Values {
		if i == tomb {
			continue
		}
		b = append(b, byte(v.Kind()))
		b = append(b, v.String()...)
		b = append(b, 0)
	}
	return table.Key(b)
}
