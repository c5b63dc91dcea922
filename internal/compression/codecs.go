// Copyright (c) 2025 suprsokr
// SPDX-License-Identifier: MIT

package compression

import (
	"bytes"
	"io"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/minio/minlz"
)

const (
	// maxDecoderMemory bounds what the zstd decoder allocates for one frame.
	// Frames never describe more than 4 GiB.
	maxDecoderMemory = 1 << 32
	// maxPreallocRatio bounds the output buffer allocated up front relative
	// to the body, so a corrupt size cannot force a huge allocation.
	maxPreallocRatio = 32
)

// preallocSize returns the capacity to reserve for decoding body into size bytes.
func preallocSize(size int, body []byte) int {
	return min(size, len(body)*maxPreallocRatio)
}

type zlibCodec struct{}

var _ Codec = zlibCodec{}

func (zlibCodec) Compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, errors.Wrap(err, "create zlib writer")
	}
	if _, err := w.Write(src); err != nil {
		return nil, errors.Wrap(err, "zlib write")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "zlib close")
	}
	return buf.Bytes(), nil
}

func (zlibCodec) Decompress(body []byte, size int) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "create zlib reader")
	}
	defer r.Close()

	// Read to EOF so the trailing adler32 is verified.
	out, err := io.ReadAll(io.LimitReader(r, int64(size)+1))
	if err != nil {
		return nil, err
	}
	if len(out) != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "zlib: header declares %d bytes, got %d", size, len(out))
	}
	return out, nil
}

// zstdCodec shares one encoder and decoder; both are safe for concurrent
// EncodeAll and DecodeAll calls.
type zstdCodec struct {
	once    sync.Once
	enc     *zstd.Encoder
	dec     *zstd.Decoder
	initErr error
}

var _ Codec = (*zstdCodec)(nil)

func newZstdCodec() *zstdCodec { return &zstdCodec{} }

func (z *zstdCodec) init() error {
	z.once.Do(func() {
		z.enc, z.initErr = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedBetterCompression),
			zstd.WithEncoderCRC(true),
			zstd.WithZeroFrames(true))
		if z.initErr != nil {
			return
		}
		z.dec, z.initErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecoderMemory))
	})
	return z.initErr
}

func (z *zstdCodec) Compress(src []byte) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, errors.Wrap(err, "create zstd encoder")
	}
	return z.enc.EncodeAll(src, nil), nil
}

func (z *zstdCodec) Decompress(body []byte, size int) ([]byte, error) {
	if err := z.init(); err != nil {
		return nil, errors.Wrap(err, "create zstd decoder")
	}
	// Reject a content size that disagrees with the frame before the
	// decoder allocates for it.
	var h zstd.Header
	if err := h.Decode(body); err == nil && h.HasFCS && h.FrameContentSize != uint64(size) {
		return nil, errors.Wrapf(ErrSizeMismatch, "zstd: header declares %d bytes, frame holds %d", size, h.FrameContentSize)
	}
	out, err := z.dec.DecodeAll(body, make([]byte, 0, preallocSize(size, body)))
	if err != nil {
		return nil, err
	}
	return out, nil
}

type snappyCodec struct{}

var _ Codec = snappyCodec{}

func (snappyCodec) Compress(src []byte) ([]byte, error) {
	return snappy.Encode(nil, src), nil
}

func (snappyCodec) Decompress(body []byte, size int) ([]byte, error) {
	n, err := snappy.DecodedLen(body)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "snappy: header declares %d bytes, block holds %d", size, n)
	}
	return snappy.Decode(make([]byte, n), body)
}

type minlzCodec struct{}

var _ Codec = minlzCodec{}

func (minlzCodec) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}
	// MinLZ cannot encode blocks greater than its maximum block size. It
	// decodes Snappy blocks, so fall back to Snappy for those.
	if len(src) > minlz.MaxBlockSize {
		return snappy.Encode(nil, src), nil
	}
	out, err := minlz.Encode(nil, src, minlz.LevelBalanced)
	if err != nil {
		return nil, errors.Wrap(err, "minlz encode")
	}
	return out, nil
}

func (minlzCodec) Decompress(body []byte, size int) ([]byte, error) {
	if len(body) == 0 {
		if size != 0 {
			return nil, errors.Wrapf(ErrSizeMismatch, "minlz: empty body for %d bytes", size)
		}
		return []byte{}, nil
	}
	n, err := minlz.DecodedLen(body)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, errors.Wrapf(ErrSizeMismatch, "minlz: header declares %d bytes, block holds %d", size, n)
	}
	out, err := minlz.Decode(make([]byte, n), body)
	if err != nil {
		return nil, err
	}
	return out, nil
}
