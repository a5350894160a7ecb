package codec

import (
	"bytes"
	"crypto/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/trfs/internal/trfstype"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New()
	require.NoError(t, err)
	return c
}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestAlgorithmString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "zstd", Zstd.String())
	assert.Equal(t, "lz4", LZ4.String())
	assert.Equal(t, "unknown(9)", Algorithm(9).String())

	for _, name := range []string{"zstd", "lz4"} {
		alg, err := ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, name, alg.String())
	}
	_, err := ParseAlgorithm("xz")
	require.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	inputs := map[string][]byte{
		"empty":      {},
		"small":      []byte("hello"),
		"repetitive": bytes.Repeat([]byte("trie archive "), 4096),
		"random":     randomBytes(t, 64<<10),
	}
	for _, alg := range []Algorithm{Zstd, LZ4} {
		for name, in := range inputs {
			t.Run(alg.String()+"/"+name, func(t *testing.T) {
				t.Parallel()
				compressed, err := c.Compress(alg, in)
				require.NoError(t, err)

				detected, ok := Detect(compressed)
				require.True(t, ok)
				assert.Equal(t, alg, detected)

				out, err := c.Decompress(compressed, uint64(len(in)))
				require.NoError(t, err)
				assert.Equal(t, len(in), len(out))
				assert.True(t, bytes.Equal(in, out))
			})
		}
	}
}

func TestCompressionShrinksRepetitiveInput(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	in := bytes.Repeat([]byte{'a'}, 1<<16)
	out, err := c.Compress(Zstd, in)
	require.NoError(t, err)
	assert.Less(t, len(out), len(in)/10)
}

func TestCompressUnknownAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := newTestCodec(t).Compress(Algorithm(7), []byte("x"))
	require.ErrorIs(t, err, trfstype.ErrCompression)
}

func TestDecompressLengthMismatch(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	in := []byte("exactly twenty bytes")
	for _, alg := range []Algorithm{Zstd, LZ4} {
		compressed, err := c.Compress(alg, in)
		require.NoError(t, err)

		_, err = c.Decompress(compressed, uint64(len(in)+1))
		require.ErrorIs(t, err, trfstype.ErrDecompression, alg.String())

		_, err = c.Decompress(compressed, uint64(len(in)-1))
		require.ErrorIs(t, err, trfstype.ErrDecompression, alg.String())
	}
}

func TestDecompressTruncated(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	in := randomBytes(t, 4096)
	for _, alg := range []Algorithm{Zstd, LZ4} {
		compressed, err := c.Compress(alg, in)
		require.NoError(t, err)

		_, err = c.Decompress(compressed[:len(compressed)/2], uint64(len(in)))
		require.ErrorIs(t, err, trfstype.ErrDecompression, alg.String())
	}
}

func TestDecompressUnknownFrame(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	_, err := c.Decompress([]byte("not a frame"), 11)
	require.ErrorIs(t, err, trfstype.ErrDecompression)

	_, err = c.Decompress(nil, 0)
	require.ErrorIs(t, err, trfstype.ErrDecompression)
}

func TestDecompressConcurrent(t *testing.T) {
	t.Parallel()

	c := newTestCodec(t)
	in := bytes.Repeat([]byte("concurrent "), 1000)
	compressed, err := c.Compress(Zstd, in)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := c.Decompress(compressed, uint64(len(in)))
			if err == nil && !bytes.Equal(out, in) {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}
