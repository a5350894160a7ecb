package trfs

import (
	"io"

	"github.com/meigma/trfs/internal/codec"
	"github.com/meigma/trfs/internal/trfstype"
)

// Re-export types from internal packages for the public API.
type (
	// FileEntry locates one stored blob: its offset within the data
	// section, its uncompressed size and its stored (compressed) size.
	FileEntry = trfstype.FileEntry

	// Algorithm identifies the compression algorithm of a payload.
	Algorithm = codec.Algorithm

	// ProgressEvent represents a progress update while building.
	ProgressEvent = trfstype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = trfstype.ProgressStage

	// ProgressFunc receives progress updates during operations.
	ProgressFunc = trfstype.ProgressFunc
)

// Compression algorithms.
const (
	Zstd = codec.Zstd
	LZ4  = codec.LZ4
)

// Progress stages.
const (
	StageEnumerating  = trfstype.StageEnumerating
	StageCompressing  = trfstype.StageCompressing
	StageWritingTable = trfstype.StageWritingTable
	StageWritingData  = trfstype.StageWritingData
)

// ParseAlgorithm parses "zstd" or "lz4".
var ParseAlgorithm = codec.ParseAlgorithm

// ByteSource provides random access to a container.
//
// Implementations exist for local files (*os.File via Load) and HTTP range
// requests (package http). Reads must be positioned; no cursor is shared.
type ByteSource interface {
	io.ReaderAt
	Size() int64
}
