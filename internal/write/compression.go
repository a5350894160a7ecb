package write

import (
	"path/filepath"
	"strings"

	"github.com/meigma/trfs/internal/codec"
)

// SelectCodecFunc picks the compression algorithm for one file.
// It is called once per file and should be inexpensive.
type SelectCodecFunc func(virtualPath string, size int64) codec.Algorithm

// DefaultSelectCodec returns a SelectCodecFunc that uses fallback for most
// files and LZ4 for files that are small or already compressed, where zstd
// spends CPU for little gain.
func DefaultSelectCodec(fallback codec.Algorithm, minSize int64) SelectCodecFunc {
	return func(virtualPath string, size int64) codec.Algorithm {
		if minSize > 0 && size < minSize {
			return codec.LZ4
		}
		ext := strings.ToLower(filepath.Ext(virtualPath))
		if _, ok := precompressedExts[ext]; ok {
			return codec.LZ4
		}
		return fallback
	}
}

// Fixed returns a SelectCodecFunc that always answers alg.
func Fixed(alg codec.Algorithm) SelectCodecFunc {
	return func(string, int64) codec.Algorithm {
		return alg
	}
}

var precompressedExts = map[string]struct{}{
	".aac":  {},
	".avif": {},
	".bz2":  {},
	".flac": {},
	".gif":  {},
	".gz":   {},
	".jpeg": {},
	".jpg":  {},
	".mkv":  {},
	".mov":  {},
	".mp3":  {},
	".mp4":  {},
	".ogg":  {},
	".opus": {},
	".png":  {},
	".webm": {},
	".webp": {},
	".xz":   {},
	".zip":  {},
	".zst":  {},
}
