package trfs

import (
	"log/slog"

	"github.com/meigma/trfs/internal/file"
	"github.com/meigma/trfs/internal/trie"
)

// DefaultMaxFileSize is the default limit on a single file's size, applied
// both when building and when reading (256 MiB).
const DefaultMaxFileSize = file.DefaultMaxFileSize

// DefaultMaxPathLength is the default limit on the depth of a stored path.
const DefaultMaxPathLength = trie.DefaultMaxDepth

// archiveConfig holds configuration for loading an archive.
type archiveConfig struct {
	maxFileSize      uint64
	maxDecoderMemory uint64
	decoderLowmem    bool
	maxPathLength    int
	logger           *slog.Logger
}

// Option configures an Archive.
type Option func(*archiveConfig)

// WithMaxFileSize limits the uncompressed and stored size of a file returned
// by Open. Larger entries fail with ErrAllocation before any allocation.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(cfg *archiveConfig) {
		cfg.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the memory a zstd decoder may use.
// Set to 0 to use the decoder default.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(cfg *archiveConfig) {
		cfg.maxDecoderMemory = limit
	}
}

// WithDecoderLowmem configures whether zstd decoders use low-memory mode.
func WithDecoderLowmem(enabled bool) Option {
	return func(cfg *archiveConfig) {
		cfg.decoderLowmem = enabled
	}
}

// WithMaxPathLength limits how deep a stored path may be while loading the
// table. Deeper tables are rejected as corrupt. Set to 0 to disable the limit.
func WithMaxPathLength(n int) Option {
	return func(cfg *archiveConfig) {
		cfg.maxPathLength = n
	}
}

// WithLogger sets the logger for archive operations.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *archiveConfig) {
		cfg.logger = logger
	}
}
