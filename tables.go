// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"sort"
	"weak"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/suprsokr/go-packfile/schema"
	"github.com/suprsokr/go-packfile/table"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// tableView tracks a decoded table against the entry bytes and registry it
// was decoded from. The table is held weakly, so a view lives as long as the
// cache or a caller keeps its table.
type tableView struct {
	table weak.Pointer[table.Table]
	sum   uint64
	reg   *schema.Registry
}

// onEvict writes a dirty table back into its entry when it leaves the cache.
// Clean tables stay reachable through c.live while a caller holds them.
func (c *Container) onEvict(key string, t *table.Table) {
	v, ok := c.live[key]
	if !ok || v.table.Value() != t || !t.Dirty() {
		return
	}
	if err := c.flushView(key, v, t); err != nil {
		c.opts.logger.Warn("table flush failed", zap.String("path", key), zap.Error(err))
		c.flushErr = multierr.Append(c.flushErr, err)
	}
}

func (c *Container) flushView(key string, v *tableView, t *table.Table) error {
	i, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrNotFound, "flush table %s", key)
	}
	b, err := t.Flush()
	if err != nil {
		return errors.Wrapf(err, "flush table %s", key)
	}
	e := c.entries[i]
	e.data = b
	e.err = nil
	e.modified = true
	v.sum = xxhash.Sum64(b)
	c.dirty = true
	return nil
}

// liveTables calls fn for every table still reachable from a view and
// forgets the views whose table was collected.
func (c *Container) liveTables(fn func(key string, v *tableView, t *table.Table)) {
	keys := make([]string, 0, len(c.live))
	for key := range c.live {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		v := c.live[key]
		t := v.table.Value()
		if t == nil {
			delete(c.live, key)
			continue
		}
		fn(key, v, t)
	}
}

// tablesDirty reports whether any reachable table has unflushed edits.
func (c *Container) tablesDirty() bool {
	dirty := false
	c.liveTables(func(_ string, _ *tableView, t *table.Table) {
		dirty = dirty || t.Dirty()
	})
	return dirty
}

// flushTables writes every dirty table back and returns any flush error,
// including those recorded on eviction.
func (c *Container) flushTables() error {
	var err error
	c.liveTables(func(key string, v *tableView, t *table.Table) {
		if t.Dirty() {
			err = multierr.Append(err, c.flushView(key, v, t))
		}
	})
	err = multierr.Append(err, c.flushErr)
	c.flushErr = nil
	return err
}

// dropView forgets the view of key without flushing it. Tables handed out
// for it no longer reach the container.
func (c *Container) dropView(key string) {
	delete(c.live, key)
	c.views.Remove(key)
}

// flushOrDrop flushes the view of key, then forgets it.
func (c *Container) flushOrDrop(key string) {
	if v, ok := c.live[key]; ok {
		if t := v.table.Value(); t != nil && t.Dirty() {
			if err := c.flushView(key, v, t); err != nil {
				c.flushErr = multierr.Append(c.flushErr, err)
			}
		}
	}
	c.dropView(key)
}

// Table decodes the DB table stored at path, e.g. "db/units_tables/data__".
//
// The same table is returned again while the entry bytes and reg are
// unchanged and the caller still holds it. Edits made through the returned
// table mark the container dirty and are written back into the entry before
// Encode, or when the table leaves the cache. Replacing, renaming or
// removing the entry detaches the table. An undecodable table is returned
// together with its error.
func (c *Container) Table(path string, reg *schema.Registry) (*table.Table, error) {
	name, ok := table.NameFromPath(path)
	if !ok {
		return nil, errors.Newf("%s is not a table path", path)
	}
	key := normalizePath(path)
	i, ok := c.index[key]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "table %s", path)
	}
	e := c.entries[i]
	data, err := e.Data()
	if err != nil {
		return nil, err
	}
	sum := xxhash.Sum64(data)

	if v, ok := c.live[key]; ok {
		if t := v.table.Value(); t != nil {
			if t.Dirty() {
				if err := c.flushView(key, v, t); err != nil {
					return nil, err
				}
				data, sum = e.data, v.sum
			}
			if v.reg == reg && v.sum == sum {
				c.views.Add(key, t)
				return t, t.Err()
			}
		}
	}

	t, err := table.Decode(name, data, reg)
	c.live[key] = &tableView{table: weak.Make(t), sum: sum, reg: reg}
	c.views.Add(key, t)
	return t, err
}

// SetTable encodes t into the entry at path, adding the entry if needed.
func (c *Container) SetTable(path string, t *table.Table) error {
	if !table.IsTablePath(path) {
		return errors.Newf("%s is not a table path", path)
	}
	b, err := t.Flush()
	if err != nil {
		return errors.Wrapf(err, "set table %s", path)
	}
	return c.PutEntry(path, b)
}

// TableInfo summarizes one DB table entry.
type TableInfo struct {
	Path      string
	Name      string
	Version   int32
	Rows      int
	Decodable bool
	Err       error
}

// Tables decodes every DB table entry with reg and reports its status.
func (c *Container) Tables(reg *schema.Registry) []TableInfo {
	var out []TableInfo
	for _, e := range c.entries {
		name, ok := table.NameFromPath(e.path)
		if !ok {
			continue
		}
		info := TableInfo{Path: e.path, Name: name}
		t, err := c.Table(e.path, reg)
		info.Err = err
		if t != nil {
			info.Version = t.Version()
			info.Rows = t.Len()
			info.Decodable = t.Decodable()
		}
		out = append(out, info)
	}
	return out
}
