package write

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/trfs/internal/codec"
)

func TestDefaultSelectCodec(t *testing.T) {
	t.Parallel()

	sel := DefaultSelectCodec(codec.Zstd, 64)
	tests := []struct {
		path string
		size int64
		want codec.Algorithm
	}{
		{"data/level.map", 4096, codec.Zstd},
		{"images/car.png", 4096, codec.LZ4},
		{"audio/THEME.OGG", 4096, codec.LZ4},
		{"tiny.txt", 10, codec.LZ4},
		{"noext", 4096, codec.Zstd},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, sel(tt.path, tt.size))
		})
	}

	assert.Equal(t, codec.Zstd, Fixed(codec.Zstd)("images/car.png", 1))
}

func TestCheckFileUnchanged(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	before, err := f.Stat()
	require.NoError(t, err)
	require.NoError(t, CheckFileUnchanged(f, "f", before, true))

	require.NoError(t, os.WriteFile(path, []byte("abcdef"), 0o600))
	require.Error(t, CheckFileUnchanged(f, "f", before, true))
	require.NoError(t, CheckFileUnchanged(f, "f", before, false))
}
