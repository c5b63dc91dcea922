// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

// Package compression frames and unframes compressed entry payloads.
//
// A frame is a one byte algorithm identifier, the little-endian uint32 size of
// the uncompressed data, the little-endian uint32 checksum of the
// uncompressed data, then the compressed body:
//
//	+---------------+-----------------------+--------------+----------------+
//	| algorithm (1) | uncompressed size (4) | checksum (4) | body (variable)|
//	+---------------+-----------------------+--------------+----------------+
//
// The checksum is the low 32 bits of the XXH64 of the uncompressed data. It
// catches corruption the snappy and minlz block formats cannot detect.
package compression

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/cockroachdb/errors"
)

// Algorithm identifies a compression algorithm in a frame header.
type Algorithm uint8

// Known algorithms. Zlib keeps the identifier MPQ archives use for it.
const (
	Zlib   Algorithm = 0x02
	Zstd   Algorithm = 0x03
	Snappy Algorithm = 0x04
	MinLZ  Algorithm = 0x05
)

// HeaderSize is the size of the frame header.
const HeaderSize = 9

var (
	// ErrUnknownAlgorithm is returned for frames naming an unregistered algorithm.
	ErrUnknownAlgorithm = errors.New("unknown compression algorithm")
	// ErrCorrupt is returned when a frame fails to decompress.
	ErrCorrupt = errors.New("corrupt compressed data")
	// ErrSizeMismatch is returned when the decompressed length differs from the header.
	ErrSizeMismatch = errors.New("decompressed size mismatch")
	// ErrChecksumMismatch is returned when the decompressed data does not
	// match the frame checksum. It is marked as ErrCorrupt.
	ErrChecksumMismatch = errors.Mark(errors.New("frame checksum mismatch"), ErrCorrupt)
)

// Checksum returns the frame checksum of uncompressed data.
func Checksum(data []byte) uint32 {
	return uint32(xxhash.Sum64(data))
}

// String returns the algorithm name.
func (a Algorithm) String() string {
	switch a {
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case Snappy:
		return "snappy"
	case MinLZ:
		return "minlz"
	default:
		return fmt.Sprintf("algorithm(0x%02X)", uint8(a))
	}
}

// ParseAlgorithm maps a name produced by String back to its Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range []Algorithm{Zlib, Zstd, Snappy, MinLZ} {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownAlgorithm, "%q", name)
}

// Codec compresses and decompresses frame bodies for one algorithm.
type Codec interface {
	Compress(src []byte) ([]byte, error)
	// Decompress returns exactly size bytes or an error.
	Decompress(body []byte, size int) ([]byte, error)
}

// Registry maps algorithm identifiers to codecs.
type Registry struct {
	codecs map[Algorithm]Codec
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{codecs: make(map[Algorithm]Codec)}
}

// Default returns a new registry holding every built-in codec.
func Default() *Registry {
	r := NewRegistry()
	r.Register(Zlib, zlibCodec{})
	r.Register(Zstd, newZstdCodec())
	r.Register(Snappy, snappyCodec{})
	r.Register(MinLZ, minlzCodec{})
	return r
}

// Register adds or replaces the codec for a.
func (r *Registry) Register(a Algorithm, c Codec) {
	r.codecs[a] = c
}

// Has reports whether a is registered.
func (r *Registry) Has(a Algorithm) bool {
	_, ok := r.codecs[a]
	return ok
}

// Algorithms returns the registered identifiers in ascending order.
func (r *Registry) Algorithms() []Algorithm {
	out := make([]Algorithm, 0, len(r.codecs))
	for a := range r.codecs {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Frame compresses data with a and prepends the frame header.
func (r *Registry) Frame(a Algorithm, data []byte) ([]byte, error) {
	c, ok := r.codecs[a]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownAlgorithm, "%s", a)
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, errors.Newf("payload of %d bytes exceeds frame limit", len(data))
	}
	body, err := c.Compress(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s compress", a)
	}
	out := make([]byte, HeaderSize, HeaderSize+len(body))
	out[0] = byte(a)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(data)))
	binary.LittleEndian.PutUint32(out[5:9], Checksum(data))
	return append(out, body...), nil
}

// Header parses the frame header without decompressing.
func Header(frame []byte) (Algorithm, uint32, error) {
	if len(frame) < HeaderSize {
		return 0, 0, errors.Wrapf(ErrCorrupt, "frame of %d bytes is shorter than its header", len(frame))
	}
	return Algorithm(frame[0]), binary.LittleEndian.Uint32(frame[1:5]), nil
}

// Unframe decompresses a frame and verifies the declared size and checksum.
func (r *Registry) Unframe(frame []byte) ([]byte, Algorithm, error) {
	a, size, err := Header(frame)
	if err != nil {
		return nil, 0, err
	}
	c, ok := r.codecs[a]
	if !ok {
		return nil, a, errors.Wrapf(ErrUnknownAlgorithm, "%s", a)
	}
	data, err := c.Decompress(frame[HeaderSize:], int(size))
	if err != nil {
		if errors.Is(err, ErrSizeMismatch) {
			return nil, a, err
		}
		return nil, a, errors.Mark(errors.Wrapf(err, "%s decompress", a), ErrCorrupt)
	}
	if len(data) != int(size) {
		return nil, a, errors.Wrapf(ErrSizeMismatch, "%s: header declares %d bytes, got %d", a, size, len(data))
	}
	if want, got := binary.LittleEndian.Uint32(frame[5:HeaderSize]), Checksum(data); want != got {
		return nil, a, errors.Wrapf(ErrChecksumMismatch, "%s: header declares %08x, data hashes to %08x", a, want, got)
	}
	return data, a, nil
}
