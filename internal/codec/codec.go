// Package codec compresses and decompresses individual archive payloads.
//
// Each payload is a self-describing frame: zstd frames and LZ4 frames carry
// distinct magic numbers, so Decompress detects the algorithm and the table
// format does not need to record it.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trfstype"
)

// Algorithm identifies a payload compression algorithm.
type Algorithm uint8

const (
	// Zstd favours ratio. It is the default.
	Zstd Algorithm = iota
	// LZ4 favours speed; useful for content that is already compressed.
	LZ4
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// String returns the human-readable name of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// ParseAlgorithm parses an algorithm from its string representation.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression algorithm: %q", name)
	}
}

// Detect reports the algorithm of a compressed frame from its magic number.
func Detect(compressed []byte) (Algorithm, bool) {
	switch {
	case bytes.HasPrefix(compressed, zstdMagic):
		return Zstd, true
	case bytes.HasPrefix(compressed, lz4Magic):
		return LZ4, true
	default:
		return 0, false
	}
}

// Codec compresses and decompresses payloads. It is safe for concurrent use.
type Codec struct {
	level     zstd.EncoderLevel
	lz4Level  lz4.CompressionLevel
	maxMemory uint64
	lowmem    bool

	enc  *zstd.Encoder
	pool *decoderPool
}

// Option configures a Codec.
type Option func(*Codec)

// WithZstdLevel sets the zstd encoder level (default: zstd.SpeedDefault).
func WithZstdLevel(level zstd.EncoderLevel) Option {
	return func(c *Codec) {
		c.level = level
	}
}

// WithLZ4Level sets the LZ4 compression level (default: lz4.Fast).
func WithLZ4Level(level lz4.CompressionLevel) Option {
	return func(c *Codec) {
		c.lz4Level = level
	}
}

// WithMaxDecoderMemory limits the memory used by zstd decoders.
// Zero disables the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(c *Codec) {
		c.maxMemory = limit
	}
}

// WithDecoderLowmem sets whether zstd decoders use low-memory mode.
func WithDecoderLowmem(enabled bool) Option {
	return func(c *Codec) {
		c.lowmem = enabled
	}
}

// New creates a Codec.
func New(opts ...Option) (*Codec, error) {
	c := &Codec{
		level:    zstd.SpeedDefault,
		lz4Level: lz4.Fast,
	}
	for _, opt := range opts {
		opt(c)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(c.level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create zstd encoder: %v", trfstype.ErrCompression, err)
	}
	c.enc = enc
	c.pool = newDecoderPool(c.maxMemory, c.lowmem)
	return c, nil
}

// Compress returns plain compressed with alg as one self-describing frame.
func (c *Codec) Compress(alg Algorithm, plain []byte) ([]byte, error) {
	switch alg {
	case Zstd:
		return c.enc.EncodeAll(plain, make([]byte, 0, len(plain)/2+64)), nil
	case LZ4:
		return c.compressLZ4(plain)
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %s", trfstype.ErrCompression, alg)
	}
}

func (c *Codec) compressLZ4(plain []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(plain)/2 + 64)
	w := lz4.NewWriter(&buf)
	if err := w.Apply(lz4.CompressionLevelOption(c.lz4Level), lz4.ConcurrencyOption(1)); err != nil {
		return nil, fmt.Errorf("%w: lz4 options: %v", trfstype.ErrCompression, err)
	}
	if _, err := w.Write(plain); err != nil {
		return nil, fmt.Errorf("%w: lz4 write: %v", trfstype.ErrCompression, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%w: lz4 close: %v", trfstype.ErrCompression, err)
	}
	return buf.Bytes(), nil
}

// Decompress decodes one frame and checks that it yields exactly
// expectedSize bytes. The returned buffer is owned by the caller.
func (c *Codec) Decompress(compressed []byte, expectedSize uint64) ([]byte, error) {
	size, err := sizing.ToInt(expectedSize, trfstype.ErrSizeOverflow)
	if err != nil {
		return nil, err
	}

	alg, ok := Detect(compressed)
	if !ok {
		return nil, fmt.Errorf("%w: unrecognized frame header", trfstype.ErrDecompression)
	}

	src := bytes.NewReader(compressed)
	switch alg {
	case Zstd:
		dec, release, err := c.pool.get(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", trfstype.ErrDecompression, err)
		}
		defer release()
		return readExactly(dec, size)
	default:
		return readExactly(lz4.NewReader(src), size)
	}
}

// readExactly reads size bytes from r and verifies the stream ends there.
func readExactly(r io.Reader, size int) ([]byte, error) {
	out := make([]byte, size)
	n, err := io.ReadFull(r, out)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: short output (%d of %d bytes)", trfstype.ErrDecompression, n, size)
		}
		return nil, fmt.Errorf("%w: %v", trfstype.ErrDecompression, err)
	}

	var extra [1]byte
	m, err := r.Read(extra[:])
	if m > 0 {
		return nil, fmt.Errorf("%w: output longer than %d bytes", trfstype.ErrDecompression, size)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", trfstype.ErrDecompression, err)
	}
	if err == nil {
		// A zero-byte read without EOF; drain to be sure nothing follows.
		rest, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", trfstype.ErrDecompression, err)
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("%w: output longer than %d bytes", trfstype.ErrDecompression, size)
		}
	}
	return out, nil
}
