// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package packfile

import (
	"runtime"

	"github.com/suprsokr/go-packfile/internal/compression"
	"go.uber.org/zap"
)

// DefaultTableCacheSize is the number of decoded table views a container keeps.
const DefaultTableCacheSize = 64

type options struct {
	logger       *zap.Logger
	concurrency  int
	variants     *Variants
	codecs       *compression.Registry
	compression  compression.Algorithm
	recompress   bool
	recompressTo compression.Algorithm
	tableCache   int
}

func defaultOptions() options {
	return options{
		logger:      zap.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
		compression: compression.Zstd,
		tableCache:  DefaultTableCacheSize,
	}
}

func (o *options) apply(opts []Option) {
	for _, opt := range opts {
		opt(o)
	}
	if o.variants == nil {
		o.variants = DefaultVariants()
	}
	if o.codecs == nil {
		o.codecs = compression.Default()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.concurrency < 1 {
		o.concurrency = 1
	}
}

// Option configures decoding, encoding and the containers they produce.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithConcurrency bounds the number of entries compressed or decompressed
// at once. It defaults to GOMAXPROCS.
func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithVariants replaces the registry of known container revisions.
func WithVariants(vs *Variants) Option {
	return func(o *options) {
		o.variants = vs
	}
}

// WithCodecs replaces the registry of compression codecs.
func WithCodecs(r *compression.Registry) Option {
	return func(o *options) {
		o.codecs = r
	}
}

// WithCompression sets the algorithm used for entries that become
// compressed without one, such as new entries passed to SetCompressed.
func WithCompression(a compression.Algorithm) Option {
	return func(o *options) {
		o.compression = a
	}
}

// WithRecompress makes Encode re-encode every compressed entry with a.
// Entries that failed to decode are still written verbatim.
func WithRecompress(a compression.Algorithm) Option {
	return func(o *options) {
		o.recompress = true
		o.recompressTo = a
	}
}

// WithTableCacheSize sets how many decoded table views a container keeps.
func WithTableCacheSize(n int) Option {
	return func(o *options) {
		o.tableCache = n
	}
}
