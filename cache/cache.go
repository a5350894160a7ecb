// Package cache puts a block cache in front of a ByteSource.
//
// Reads are split into fixed-size blocks. Each block is fetched from the
// source once and kept in a Store, so the many small sequential reads made
// while decoding a table, and repeated Opens of the same file, turn into a
// few large fetches. This matters most for remote sources such as
// http.Source, where every ReadAt is a round trip.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultBlockSize is the default block size (64 KiB).
const DefaultBlockSize int64 = 64 << 10

// DefaultMaxBlocksPerRead caps the blocks cached for one ReadAt. Larger
// reads, typically whole payloads, go straight to the source.
const DefaultMaxBlocksPerRead = 4

// ByteSource provides random access to a container.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}

// Store keeps cached blocks. Keys are hex strings. Put is best-effort:
// a store may drop blocks at any time to stay within its limits.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte)
}

// Stats counts block lookups.
type Stats struct {
	Hits   uint64
	Misses uint64
	Bypass uint64
}

type config struct {
	blockSize        int64
	maxBlocksPerRead int
	sourceID         string
}

// Option configures a cached Source.
type Option func(*config)

// WithBlockSize sets the block size.
func WithBlockSize(n int64) Option {
	return func(cfg *config) {
		cfg.blockSize = n
	}
}

// WithMaxBlocksPerRead bypasses the cache when a ReadAt spans more than n
// blocks. Values <= 0 disable the limit.
func WithMaxBlocksPerRead(n int) Option {
	return func(cfg *config) {
		cfg.maxBlocksPerRead = n
	}
}

// WithSourceID sets the identifier used in block keys. It is required when
// the source has no SourceID method, and must change whenever the source
// content does.
func WithSourceID(id string) Option {
	return func(cfg *config) {
		cfg.sourceID = id
	}
}

// Source is a ByteSource whose reads go through a block Store.
// It is safe for concurrent use.
type Source struct {
	src              ByteSource
	store            Store
	sourceID         string
	blockSize        int64
	maxBlocksPerRead int
	fetchGroup       singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64
	bypass atomic.Uint64
}

// Wrap returns src with reads cached in store.
func Wrap(src ByteSource, store Store, opts ...Option) (*Source, error) {
	if src == nil {
		return nil, errors.New("cache: source is nil")
	}
	if store == nil {
		return nil, errors.New("cache: store is nil")
	}
	cfg := config{
		blockSize:        DefaultBlockSize,
		maxBlocksPerRead: DefaultMaxBlocksPerRead,
	}
	if ider, ok := src.(interface{ SourceID() string }); ok {
		cfg.sourceID = ider.SourceID()
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.blockSize <= 0 || cfg.blockSize > math.MaxInt32 {
		return nil, fmt.Errorf("cache: invalid block size %d", cfg.blockSize)
	}
	if cfg.sourceID == "" {
		return nil, errors.New("cache: source id is empty")
	}
	return &Source{
		src:              src,
		store:            store,
		sourceID:         cfg.sourceID,
		blockSize:        cfg.blockSize,
		maxBlocksPerRead: cfg.maxBlocksPerRead,
	}, nil
}

// Size returns the size of the underlying source.
func (s *Source) Size() int64 {
	return s.src.Size()
}

// SourceID returns the identifier used in block keys.
func (s *Source) SourceID() string {
	return s.sourceID
}

// Stats returns the lookup counters.
func (s *Source) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Bypass: s.bypass.Load()}
}

// ReadAt implements io.ReaderAt.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("cache: read at %d: negative offset", off)
	}
	size := s.src.Size()
	if off >= size {
		return 0, io.EOF
	}

	expected := min(int64(len(p)), size-off)
	startBlock := off / s.blockSize
	endBlock := (off + expected - 1) / s.blockSize

	if s.maxBlocksPerRead > 0 && endBlock-startBlock+1 > int64(s.maxBlocksPerRead) {
		s.bypass.Add(1)
		return s.src.ReadAt(p, off)
	}

	var n int64
	for index := startBlock; index <= endBlock; index++ {
		blockStart := index * s.blockSize
		blockEnd := min(blockStart+s.blockSize, size)

		data, err := s.block(index, blockStart, blockEnd-blockStart)
		if err != nil {
			return int(n), err
		}

		copyStart := max(off, blockStart)
		copyEnd := min(off+expected, blockEnd)
		n += int64(copy(p[copyStart-off:copyEnd-off], data[copyStart-blockStart:copyEnd-blockStart]))
	}

	if expected < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}

// block returns one block, from the store or else from the source.
// Concurrent misses on the same block share a single fetch.
func (s *Source) block(index, off, length int64) ([]byte, error) {
	key := s.key(index)
	if data, ok := s.store.Get(key); ok && int64(len(data)) == length {
		s.hits.Add(1)
		return data, nil
	}

	result, err, _ := s.fetchGroup.Do(key, func() (any, error) {
		s.misses.Add(1)
		buf := make([]byte, length)
		n, err := s.src.ReadAt(buf, off)
		if int64(n) != length {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}
		s.store.Put(key, buf)
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// key derives the store key of a block from the source identity, block
// size and block index.
func (s *Source) key(index int64) string {
	h := sha256.New()
	_, _ = h.Write([]byte(s.sourceID)) //nolint:errcheck // hash writes never fail

	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(s.blockSize)) //nolint:gosec // validated > 0
	binary.BigEndian.PutUint64(buf[8:], uint64(index))       //nolint:gosec // index is never negative
	_, _ = h.Write(buf[:])                                   //nolint:errcheck // hash writes never fail

	return hex.EncodeToString(h.Sum(nil))
}
