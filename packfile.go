// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/suprsokr/go-packfile/internal/binio"
	"github.com/suprsokr/go-packfile/internal/compression"
	"github.com/suprsokr/go-packfile/table"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Container is a decoded PackFile: header metadata, dependencies and the
// ordered entries. A Container is not safe for concurrent mutation.
type Container struct {
	hdr     header
	variant *Variant
	deps    []string
	entries []*Entry
	index   map[string]int // normalized path -> position in entries
	trailer []byte

	opts     options
	views    *lru.Cache[string, *table.Table] // recently used tables
	live     map[string]*tableView
	flushErr error
	dirty    bool
}

func newContainer(v *Variant, h header, o options) *Container {
	c := &Container{
		hdr:     h,
		variant: v,
		index:   make(map[string]int),
		opts:    o,
		live:    make(map[string]*tableView),
	}
	size := o.tableCache
	if size < 1 {
		size = 1
	}
	// NewWithEvict only fails for non-positive sizes.
	c.views, _ = lru.NewWithEvict[string, *table.Table](size, c.onEvict)
	return c
}

// Create returns an empty in-memory container of the named variant.
func Create(preamble string, fileType FileType, opts ...Option) (*Container, error) {
	o := defaultOptions()
	o.apply(opts)
	v, ok := o.variants.Lookup(preamble)
	if !ok {
		return nil, &UnsupportedVariantError{Preamble: preamble, Reason: "unknown preamble"}
	}
	h := header{
		Preamble: v.Preamble,
		Bitmask:  uint32(fileType) & fileTypeMask,
		Extras:   make([]byte, v.Extras),
	}
	c := newContainer(v, h, o)
	c.dirty = true
	return c, nil
}

// Decode parses a container. Header and index problems abort with a
// FormatError or UnsupportedVariantError; payloads that fail to decrypt or
// decompress are reported per entry and the rest of the container is
// usable. The returned container retains data.
func Decode(ctx context.Context, data []byte, opts ...Option) (*Container, error) {
	o := defaultOptions()
	o.apply(opts)

	r := binio.NewReader(data)
	pre, err := r.Bytes(preambleSize)
	if err != nil {
		return nil, &FormatError{Offset: 0, Reason: "read preamble", Err: err}
	}
	v, ok := o.variants.Lookup(string(pre))
	if !ok {
		return nil, &FormatError{Offset: 0, Reason: fmt.Sprintf("unknown preamble %q", pre)}
	}

	h := header{Preamble: v.Preamble}
	if h.Bitmask, err = r.U32(); err != nil {
		return nil, &FormatError{Offset: r.Offset(), Reason: "read bitmask", Err: err}
	}
	if err := v.validate(h.flags()); err != nil {
		return nil, err
	}
	if err := readHeader(r, &h, v); err != nil {
		return nil, &FormatError{Offset: r.Offset(), Reason: "read header", Err: err}
	}
	c := newContainer(v, h, o)

	depStart := r.Offset()
	depIndex, err := r.Bytes(int(h.DepSize))
	if err != nil {
		return nil, &FormatError{Offset: depStart, Reason: "read dependency index", Err: err}
	}
	if c.deps, err = parseDependencies(depIndex, h.DepCount); err != nil {
		return nil, &FormatError{Offset: depStart, Reason: "parse dependency index", Err: err}
	}

	idxStart := r.Offset()
	entryIndex, err := r.Bytes(int(h.EntrySize))
	if err != nil {
		return nil, &FormatError{Offset: idxStart, Reason: "read entry index", Err: err}
	}
	if h.flags().Has(FlagEncryptedIndex) {
		entryIndex = append([]byte(nil), entryIndex...)
		decryptBytes(entryIndex, indexKey)
	}
	entries, off, err := parseIndex(entryIndex, h.EntryCount, v, h.flags())
	if err != nil {
		return nil, &FormatError{Offset: idxStart + off, Reason: "parse entry index", Err: err}
	}

	// Payloads follow the index in index order. A file cut short leaves the
	// remaining entries truncated rather than failing the container.
	for _, e := range entries {
		e.offset = r.Offset()
		n := int(e.storedSize)
		if r.Len() < n {
			e.raw, _ = r.Bytes(r.Len())
			e.truncated = true
			continue
		}
		e.raw, _ = r.Bytes(n)
	}
	c.trailer, _ = r.Bytes(r.Len())

	for i, e := range entries {
		c.entries = append(c.entries, e)
		if _, dup := c.index[normalizePath(e.path)]; !dup {
			c.index[normalizePath(e.path)] = i
		}
	}

	if err := c.decodeEntries(ctx); err != nil {
		return nil, err
	}

	failed := 0
	for _, e := range c.entries {
		if e.err != nil {
			failed++
			o.logger.Warn("entry failed to decode", zap.String("path", e.path), zap.Error(e.err))
		}
	}
	o.logger.Debug("decoded container",
		zap.String("preamble", v.Preamble),
		zap.Stringer("type", h.fileType()),
		zap.Int("entries", len(c.entries)),
		zap.Int("failed", failed),
		zap.String("size", units.HumanSize(float64(len(data)))),
	)
	return c, nil
}

// decodeEntries decrypts and decompresses every payload. The index has
// been fully parsed, so entries are independent.
func (c *Container) decodeEntries(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.concurrency)
	for _, e := range c.entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c.decodeEntry(e)
			return nil
		})
	}
	return errors.Wrap(g.Wait(), "decode entries")
}

func (c *Container) decodeEntry(e *Entry) {
	if e.truncated {
		e.err = &EntryError{
			Path: e.path,
			Err:  errors.Wrapf(ErrTruncated, "have %d of %d bytes", len(e.raw), e.storedSize),
		}
		return
	}
	buf := e.raw
	if c.hdr.flags().Has(FlagEncryptedData) {
		buf = append([]byte(nil), e.raw...)
		decryptBytes(buf, dataKey(e.path, e.storedSize))
	}
	if !e.compressed {
		e.data = buf
		return
	}
	data, alg, err := c.opts.codecs.Unframe(buf)
	e.algorithm = alg
	if err != nil {
		e.err = &EntryError{Path: e.path, Err: err}
		return
	}
	e.data = data
}

// parseDependencies reads count NUL-terminated names filling b exactly.
func parseDependencies(b []byte, count uint32) ([]string, error) {
	if uint64(count) > uint64(len(b)) {
		return nil, errors.Newf("%d dependencies cannot fit in %d bytes", count, len(b))
	}
	r := binio.NewReader(b)
	deps := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		s, err := r.CString()
		if err != nil {
			return nil, errors.Wrapf(err, "dependency %d", i)
		}
		deps = append(deps, s)
	}
	if r.Len() != 0 {
		return nil, errors.Newf("%d trailing bytes after %d dependencies", r.Len(), count)
	}
	return deps, nil
}

// indexRecordSize returns the fixed part of an index record.
func indexRecordSize(v *Variant, f Flags) int {
	n := 4
	if f.Has(FlagIndexTimestamps) {
		n += v.IndexTimestamp
	}
	if v.EntryCompression {
		n++
	}
	return n
}

// parseIndex reads count records filling b exactly. On failure it returns
// the offset within b at which parsing stopped.
func parseIndex(b []byte, count uint32, v *Variant, f Flags) ([]*Entry, int, error) {
	fixed := indexRecordSize(v, f)
	if uint64(count)*uint64(fixed+1) > uint64(len(b)) {
		return nil, 0, errors.Newf("%d entries cannot fit in a %d byte index", count, len(b))
	}
	r := binio.NewReader(b)
	entries := make([]*Entry, 0, count)
	for i := uint32(0); i < count; i++ {
		e := &Entry{}
		var err error
		if e.storedSize, err = r.U32(); err != nil {
			return nil, r.Offset(), errors.Wrapf(err, "entry %d size", i)
		}
		if f.Has(FlagIndexTimestamps) {
			switch v.IndexTimestamp {
			case 4:
				var ts uint32
				ts, err = r.U32()
				e.timestamp = uint64(ts)
			case 8:
				e.timestamp, err = r.U64()
			}
			if err != nil {
				return nil, r.Offset(), errors.Wrapf(err, "entry %d timestamp", i)
			}
		}
		if v.EntryCompression {
			flag, err := r.U8()
			if err != nil {
				return nil, r.Offset(), errors.Wrapf(err, "entry %d compression flag", i)
			}
			if flag > 1 {
				return nil, r.Offset() - 1, errors.Newf("entry %d: invalid compression flag 0x%02x", i, flag)
			}
			e.compressed = flag == 1
		}
		if e.path, err = r.CString(); err != nil {
			return nil, r.Offset(), errors.Wrapf(err, "entry %d path", i)
		}
		entries = append(entries, e)
	}
	if r.Len() != 0 {
		return nil, r.Offset(), errors.Newf("%d trailing bytes after %d entries", r.Len(), count)
	}
	return entries, 0, nil
}

// Preamble returns the variant preamble, e.g. "PFH5".
func (c *Container) Preamble() string { return c.hdr.Preamble }

// Variant returns the layout the container is encoded with.
func (c *Container) Variant() *Variant { return c.variant }

// FileType returns the container's role in the load order.
func (c *Container) FileType() FileType { return c.hdr.fileType() }

// Flags returns the header flags.
func (c *Container) Flags() Flags { return c.hdr.flags() }

// Timestamp returns the header timestamp.
func (c *Container) Timestamp() uint64 { return c.hdr.Timestamp }

// HeaderExtras returns the opaque variant bytes following the timestamp.
func (c *Container) HeaderExtras() []byte { return c.hdr.Extras }

// ExtendedHeader returns the extended header, present with FlagExtendedHeader.
func (c *Container) ExtendedHeader() []byte { return c.hdr.Extended }

// Trailer returns the bytes following the last payload.
func (c *Container) Trailer() []byte { return c.trailer }

// Dependencies returns the names of the containers this one depends on.
func (c *Container) Dependencies() []string { return c.deps }

// Len returns the number of entries.
func (c *Container) Len() int { return len(c.entries) }

// Entries returns the entries in index order.
func (c *Container) Entries() []*Entry {
	return append([]*Entry(nil), c.entries...)
}

// Entry looks up an entry by path, ignoring case and separator style.
func (c *Container) Entry(path string) (*Entry, bool) {
	i, ok := c.index[normalizePath(path)]
	if !ok {
		return nil, false
	}
	return c.entries[i], true
}

// Paths returns every entry path in index order.
func (c *Container) Paths() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.path
	}
	return out
}

// Errors returns every per-entry error and any failed table flush.
func (c *Container) Errors() error {
	var err error
	for _, e := range c.entries {
		err = multierr.Append(err, e.err)
	}
	return multierr.Append(err, c.flushErr)
}

// Dirty reports whether the container changed since it was decoded or last encoded.
func (c *Container) Dirty() bool {
	return c.dirty || c.tablesDirty()
}

// Fingerprint hashes the header and the contents of every entry.
func (c *Container) Fingerprint() uint64 {
	d := xxhash.New()
	w := binio.NewWriter(64)
	w.PutBytes([]byte(c.hdr.Preamble))
	w.PutU32(c.hdr.Bitmask)
	w.PutU64(c.hdr.Timestamp)
	for _, dep := range c.deps {
		w.PutCString(dep)
	}
	_, _ = d.Write(w.Bytes())
	for _, e := range c.entries {
		w = binio.NewWriter(len(e.path) + 16)
		w.PutCString(e.path)
		w.PutU64(e.timestamp)
		if e.compressed {
			w.PutU8(1)
		} else {
			w.PutU8(0)
		}
		_, _ = d.Write(w.Bytes())
		if e.err != nil {
			_, _ = d.Write(e.raw)
		} else {
			_, _ = d.Write(e.data)
		}
	}
	_, _ = d.Write(c.trailer)
	return d.Sum64()
}

// AddEntry appends a new uncompressed entry.
func (c *Container) AddEntry(path string, data []byte) error {
	key := normalizePath(path)
	if _, ok := c.index[key]; ok {
		return errors.Wrapf(ErrExists, "add %s", path)
	}
	c.entries = append(c.entries, &Entry{path: path, data: data, modified: true})
	c.index[key] = len(c.entries) - 1
	c.dropView(key)
	c.dirty = true
	return nil
}

// ReplaceEntry replaces the contents of an existing entry, keeping its
// position and compression choice. It clears any entry error.
func (c *Container) ReplaceEntry(path string, data []byte) error {
	key := normalizePath(path)
	i, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrNotFound, "replace %s", path)
	}
	e := c.entries[i]
	e.data = data
	e.err = nil
	e.truncated = false
	e.modified = true
	if e.compressed && e.algorithm == 0 {
		e.algorithm = c.opts.compression
	}
	c.dropView(key)
	c.dirty = true
	return nil
}

// PutEntry replaces the entry at path, or adds it.
func (c *Container) PutEntry(path string, data []byte) error {
	if _, ok := c.Entry(path); ok {
		return c.ReplaceEntry(path, data)
	}
	return c.AddEntry(path, data)
}

// RemoveEntry deletes the entry at path.
func (c *Container) RemoveEntry(path string) error {
	key := normalizePath(path)
	i, ok := c.index[key]
	if !ok {
		return errors.Wrapf(ErrNotFound, "remove %s", path)
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	c.reindex()
	c.dropView(key)
	c.dirty = true
	return nil
}

// RenameEntry moves an entry to a new path.
func (c *Container) RenameEntry(from, to string) error {
	fromKey, toKey := normalizePath(from), normalizePath(to)
	i, ok := c.index[fromKey]
	if !ok {
		return errors.Wrapf(ErrNotFound, "rename %s", from)
	}
	if j, taken := c.index[toKey]; taken && j != i {
		return errors.Wrapf(ErrExists, "rename %s to %s", from, to)
	}
	e := c.entries[i]
	if c.hdr.flags().Has(FlagEncryptedData) {
		// The payload key depends on the name.
		if e.err != nil {
			return errors.Wrapf(e.err, "rename %s", from)
		}
		e.modified = true
	}
	c.flushOrDrop(fromKey)
	e.path = to
	c.reindex()
	c.dropView(toKey)
	c.dirty = true
	return nil
}

// SetCompressed selects whether an entry is stored compressed. Entries
// switched on use the container's default algorithm. Variants without a
// per-entry compression flag reject compressed entries at Encode.
func (c *Container) SetCompressed(path string, on bool) error {
	i, ok := c.index[normalizePath(path)]
	if !ok {
		return errors.Wrapf(ErrNotFound, "set compressed %s", path)
	}
	e := c.entries[i]
	if e.compressed == on {
		return nil
	}
	if e.err != nil {
		return errors.Wrapf(e.err, "set compressed %s", path)
	}
	e.compressed = on
	if on && e.algorithm == 0 {
		e.algorithm = c.opts.compression
	}
	e.modified = true
	c.dirty = true
	return nil
}

// SetFileType changes the container's role in the load order.
func (c *Container) SetFileType(t FileType) {
	c.hdr.Bitmask = uint32(c.hdr.flags()) | uint32(t)&fileTypeMask
	c.dirty = true
}

// SetFlag sets or clears header flags. Flags the variant cannot carry fail
// with an UnsupportedVariantError. Changing FlagEncryptedData rewrites
// every payload, so it fails while any entry has an error.
func (c *Container) SetFlag(f Flags, on bool) error {
	next := c.hdr.flags() &^ f
	if on {
		next |= f
	}
	if next == c.hdr.flags() {
		return nil
	}
	if err := c.variant.validate(next); err != nil {
		return err
	}
	if next.Has(FlagEncryptedData) != c.hdr.flags().Has(FlagEncryptedData) {
		if err := c.Errors(); err != nil {
			return errors.Wrap(err, "change payload encryption")
		}
		for _, e := range c.entries {
			e.modified = true
		}
	}
	if next.Has(FlagExtendedHeader) && len(c.hdr.Extended) == 0 {
		c.hdr.Extended = make([]byte, extendedHeaderSize)
	}
	c.hdr.Bitmask = uint32(next) | c.hdr.Bitmask&fileTypeMask
	c.dirty = true
	return nil
}

// SetTimestamp sets the header timestamp.
func (c *Container) SetTimestamp(ts uint64) {
	c.hdr.Timestamp = ts
	c.dirty = true
}

// SetDependencies replaces the dependency list.
func (c *Container) SetDependencies(deps []string) {
	c.deps = append([]string(nil), deps...)
	c.dirty = true
}

func (c *Container) reindex() {
	c.index = make(map[string]int, len(c.entries))
	for i, e := range c.entries {
		if _, dup := c.index[normalizePath(e.path)]; !dup {
			c.index[normalizePath(e.path)] = i
		}
	}
}

// Compression returns the default algorithm for newly compressed entries.
func (c *Container) Compression() compression.Algorithm { return c.opts.compression }

// CompressionState summarizes how the entries of a container are stored.
type CompressionState int

// Compression states
const (
	// CompressionDisabled means no entry is compressed.
	CompressionDisabled CompressionState = iota
	// CompressionPartial means some entries are compressed.
	CompressionPartial
	// CompressionEnabled means every entry is compressed.
	CompressionEnabled
)

func (s CompressionState) String() string {
	switch s {
	case CompressionDisabled:
		return "disabled"
	case CompressionPartial:
		return "partial"
	case CompressionEnabled:
		return "enabled"
	}
	return fmt.Sprintf("compressionstate(%d)", int(s))
}

// CompressionState reports how many of the entries are compressed. An empty
// container is CompressionDisabled.
func (c *Container) CompressionState() CompressionState {
	n := 0
	for _, e := range c.entries {
		if e.compressed {
			n++
		}
	}
	switch {
	case n == 0:
		return CompressionDisabled
	case n == len(c.entries):
		return CompressionEnabled
	}
	return CompressionPartial
}
