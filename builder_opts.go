package trfs

import (
	"log/slog"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/trfs/internal/codec"
	"github.com/meigma/trfs/internal/write"
)

// ChangeDetection controls how strictly source file changes are detected
// while building.
type ChangeDetection uint8

const (
	ChangeDetectionNone ChangeDetection = iota
	ChangeDetectionStrict
)

// SelectCodecFunc picks the compression algorithm for one file from its
// virtual path and uncompressed size.
type SelectCodecFunc = write.SelectCodecFunc

// DefaultSelectCodec returns a SelectCodecFunc that uses fallback except for
// files smaller than minSize or with an already-compressed extension, which
// get LZ4.
var DefaultSelectCodec = write.DefaultSelectCodec

// DefaultMaxFiles is the default limit used when no BuildWithMaxFiles option is set.
const DefaultMaxFiles = 200_000

// buildConfig holds configuration for archive creation.
type buildConfig struct {
	selectCodec     SelectCodecFunc
	zstdLevel       zstd.EncoderLevel
	changeDetection ChangeDetection
	maxFiles        int
	maxFileSize     uint64
	workers         int
	continueOnError bool
	progress        ProgressFunc
	logger          *slog.Logger
}

// BuildOption configures a Builder.
type BuildOption func(*buildConfig)

// BuildWithCodec compresses every file with alg.
func BuildWithCodec(alg Algorithm) BuildOption {
	return func(cfg *buildConfig) {
		cfg.selectCodec = write.Fixed(alg)
	}
}

// BuildWithCodecSelector chooses the algorithm per file. The default is
// DefaultSelectCodec(Zstd, 0).
func BuildWithCodecSelector(fn SelectCodecFunc) BuildOption {
	return func(cfg *buildConfig) {
		if fn != nil {
			cfg.selectCodec = fn
		}
	}
}

// BuildWithZstdLevel sets the zstd encoder level (default zstd.SpeedDefault).
func BuildWithZstdLevel(level zstd.EncoderLevel) BuildOption {
	return func(cfg *buildConfig) {
		cfg.zstdLevel = level
	}
}

// BuildWithChangeDetection controls whether the builder verifies source
// files did not change while being read. The zero value disables it.
func BuildWithChangeDetection(cd ChangeDetection) BuildOption {
	return func(cfg *buildConfig) {
		cfg.changeDetection = cd
	}
}

// BuildWithMaxFiles limits the number of files in the archive.
// Zero uses DefaultMaxFiles. Negative means no limit.
func BuildWithMaxFiles(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.maxFiles = n
	}
}

// BuildWithMaxFileSize limits the size of a single file passed to Insert or
// read by InsertFile and InsertDir. Zero uses DefaultMaxFileSize.
func BuildWithMaxFileSize(limit uint64) BuildOption {
	return func(cfg *buildConfig) {
		cfg.maxFileSize = limit
	}
}

// BuildWithWorkers sets how many files InsertDir compresses in parallel.
// Values <= 0 use GOMAXPROCS.
func BuildWithWorkers(n int) BuildOption {
	return func(cfg *buildConfig) {
		cfg.workers = n
	}
}

// BuildWithContinueOnError makes InsertDir skip files that fail and keep
// going. The failures are returned together, each as an *InsertError, after
// every other file has been inserted. By default InsertDir stops at the
// first failure and inserts nothing from that call.
func BuildWithContinueOnError(enabled bool) BuildOption {
	return func(cfg *buildConfig) {
		cfg.continueOnError = enabled
	}
}

// BuildWithProgress registers a callback for build progress events.
func BuildWithProgress(fn ProgressFunc) BuildOption {
	return func(cfg *buildConfig) {
		cfg.progress = fn
	}
}

// BuildWithLogger sets the logger for build operations.
func BuildWithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}

func (cfg *buildConfig) codecOptions() []codec.Option {
	return []codec.Option{codec.WithZstdLevel(cfg.zstdLevel)}
}
