// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"context"
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"github.com/docker/go-units"
	"github.com/suprsokr/go-packfile/internal/binio"
	"github.com/suprsokr/go-packfile/internal/compression"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// payload is the stored form of one entry, as it will be written
type payload struct {
	raw       []byte
	size      uint32
	algorithm compression.Algorithm
}

// Encode writes the container. Untouched entries are written from their
// stored bytes, so encoding an unedited container reproduces its input.
// Offsets, counts and index sizes are always recomputed. On success the
// container is clean.
func (c *Container) Encode(ctx context.Context, opts ...Option) ([]byte, error) {
	o := c.opts
	o.apply(opts)

	if err := c.flushTables(); err != nil {
		return nil, errors.Wrap(err, "encode")
	}
	if err := c.variant.validate(c.hdr.flags()); err != nil {
		return nil, err
	}
	for _, e := range c.entries {
		if e.compressed && !c.variant.EntryCompression {
			return nil, &UnsupportedVariantError{
				Preamble: c.variant.Preamble,
				Flags:    c.hdr.flags(),
				Reason:   fmt.Sprintf("entry %s is compressed but the variant has no per-entry compression", e.path),
			}
		}
	}

	payloads, err := c.buildPayloads(ctx, &o)
	if err != nil {
		return nil, err
	}

	// Write dependency index
	deps := binio.NewWriter(0)
	for _, d := range c.deps {
		deps.PutCString(d)
	}

	// Write entry index
	flags := c.hdr.flags()
	idx := binio.NewWriter(len(c.entries) * 32)
	for i, e := range c.entries {
		idx.PutU32(payloads[i].size)
		if flags.Has(FlagIndexTimestamps) {
			switch c.variant.IndexTimestamp {
			case 4:
				idx.PutU32(uint32(e.timestamp))
			case 8:
				idx.PutU64(e.timestamp)
			}
		}
		if c.variant.EntryCompression {
			if e.compressed {
				idx.PutU8(1)
			} else {
				idx.PutU8(0)
			}
		}
		idx.PutCString(e.path)
	}
	entryIndex := idx.Bytes()
	if flags.Has(FlagEncryptedIndex) {
		entryIndex = append([]byte(nil), entryIndex...)
		encryptBytes(entryIndex, indexKey)
	}

	h := c.hdr
	h.DepCount = uint32(len(c.deps))
	h.DepSize = uint32(deps.Len())
	h.EntryCount = uint32(len(c.entries))
	h.EntrySize = uint32(len(entryIndex))

	total := h.size(c.variant) + deps.Len() + len(entryIndex) + len(c.trailer)
	for i := range payloads {
		total += len(payloads[i].raw)
	}
	w := binio.NewWriter(total)
	writeHeader(w, &h, c.variant)
	w.PutBytes(deps.Bytes())
	w.PutBytes(entryIndex)

	offsets := make([]int, len(payloads))
	for i := range payloads {
		offsets[i] = w.Len()
		w.PutBytes(payloads[i].raw)
	}
	w.PutBytes(c.trailer)

	// Commit the stored form only once the whole container is written.
	for i, e := range c.entries {
		p := &payloads[i]
		e.raw = p.raw
		e.storedSize = p.size
		e.offset = offsets[i]
		if e.modified || o.recompress {
			e.algorithm = p.algorithm
		}
		e.modified = false
	}
	c.hdr = h
	c.dirty = false

	o.logger.Debug("encoded container",
		zap.String("preamble", h.Preamble),
		zap.Int("entries", len(c.entries)),
		zap.String("size", units.HumanSize(float64(w.Len()))),
	)
	return w.Bytes(), nil
}

// buildPayloads computes the stored bytes of every entry. Entries that
// need compression or encryption are rebuilt concurrently.
func (c *Container) buildPayloads(ctx context.Context, o *options) ([]payload, error) {
	out := make([]payload, len(c.entries))
	encrypt := c.hdr.flags().Has(FlagEncryptedData)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, e := range c.entries {
		rebuild := e.modified || (o.recompress && e.compressed && e.err == nil)
		if !rebuild {
			out[i] = payload{raw: e.raw, size: e.storedSize, algorithm: e.algorithm}
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := c.buildPayload(e, o, encrypt)
			if err != nil {
				return errors.Wrapf(err, "encode %s", e.path)
			}
			out[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Container) buildPayload(e *Entry, o *options, encrypt bool) (payload, error) {
	p := payload{raw: e.data, algorithm: e.algorithm}
	if e.compressed {
		if o.recompress {
			p.algorithm = o.recompressTo
		}
		if p.algorithm == 0 {
			p.algorithm = o.compression
		}
		frame, err := o.codecs.Frame(p.algorithm, e.data)
		if err != nil {
			return payload{}, err
		}
		p.raw = frame
	}
	if uint64(len(p.raw)) > math.MaxUint32 {
		return payload{}, errors.Newf("stored size %d exceeds the index limit", len(p.raw))
	}
	p.size = uint32(len(p.raw))
	if encrypt {
		p.raw = append([]byte(nil), p.raw...)
		encryptBytes(p.raw, dataKey(e.path, p.size))
	}
	return p, nil
}
