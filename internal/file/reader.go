// Package file reads and decompresses stored payloads from a container.
package file

import (
	"errors"
	"fmt"
	"io"

	"github.com/meigma/trfs/internal/codec"
	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trfstype"
)

// DefaultMaxFileSize is the default maximum file size (256MB).
const DefaultMaxFileSize = 256 << 20

// ByteSource provides random access to a container.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Reader reads payloads with positioned reads, so it keeps no cursor and is
// safe for concurrent use.
type Reader struct {
	source      ByteSource
	dataOffset  uint64
	dataSize    uint64
	codec       *codec.Codec
	maxFileSize uint64
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFileSize sets the maximum file size limit.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// NewReader creates a Reader whose data section starts at dataOffset.
func NewReader(source ByteSource, dataOffset uint64, c *codec.Codec, opts ...Option) (*Reader, error) {
	size := source.Size()
	if size < 0 || uint64(size) < dataOffset {
		return nil, fmt.Errorf("%w: source of %d bytes ends before data offset %d", trfstype.ErrCorruptTable, size, dataOffset)
	}
	r := &Reader{
		source:      source,
		dataOffset:  dataOffset,
		dataSize:    uint64(size) - dataOffset,
		codec:       c,
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// DataOffset returns the position of the data section within the source.
func (r *Reader) DataOffset() uint64 {
	return r.dataOffset
}

// DataSize returns the length of the data section.
func (r *Reader) DataSize() uint64 {
	return r.dataSize
}

// ReadAll reads the payload of entry and returns its decompressed content.
func (r *Reader) ReadAll(entry *trfstype.FileEntry) ([]byte, error) {
	if err := ValidateForRead(entry, r.dataSize, r.maxFileSize); err != nil {
		return nil, err
	}

	compressed, err := r.readPayload(entry)
	if err != nil {
		return nil, err
	}
	return r.codec.Decompress(compressed, entry.Size)
}

// readPayload reads the compressed bytes of entry.
func (r *Reader) readPayload(entry *trfstype.FileEntry) ([]byte, error) {
	abs, ok := sizing.AddUint64(r.dataOffset, entry.Offset)
	if !ok {
		return nil, trfstype.ErrSizeOverflow
	}
	offset, err := sizing.ToInt64(abs, trfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}
	length, err := sizing.ToInt(entry.CompressedSize, trfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, length)
	n, err := r.source.ReadAt(buf, offset)
	if n == length {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: short read (%d of %d bytes)", trfstype.ErrIO, n, length)
	}
	return nil, fmt.Errorf("%w: %w", trfstype.ErrIO, err)
}
