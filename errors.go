package trfs

import (
	"errors"

	"github.com/meigma/trfs/internal/platform"
	"github.com/meigma/trfs/internal/trfstype"
)

// Sentinel errors re-exported from internal/trfstype.
var (
	// ErrInvalidPathCharacter is returned when a virtual path contains a
	// character other than a letter, '.', '_' or a path separator.
	ErrInvalidPathCharacter = trfstype.ErrInvalidPathCharacter

	// ErrAllocation is returned when an entry exceeds the configured size limit.
	ErrAllocation = trfstype.ErrAllocation

	// ErrIO is returned when the container or a source file cannot be
	// opened, read or written.
	ErrIO = trfstype.ErrIO

	// ErrCompression is returned when a payload cannot be compressed.
	ErrCompression = trfstype.ErrCompression

	// ErrDecompression is returned when a payload is corrupt, truncated, or
	// decodes to the wrong length.
	ErrDecompression = trfstype.ErrDecompression

	// ErrNotFound is returned when no file is stored at a virtual path.
	// It matches fs.ErrNotExist.
	ErrNotFound = trfstype.ErrNotFound

	// ErrCorruptTable is returned by Load and New when the table is truncated
	// or malformed.
	ErrCorruptTable = trfstype.ErrCorruptTable

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = trfstype.ErrSizeOverflow

	// ErrSymlink is returned when a source file is a symbolic link.
	ErrSymlink = platform.ErrSymlink
)

var (
	// ErrTooManyFiles is returned when the file count exceeds the configured limit.
	ErrTooManyFiles = errors.New("trfs: too many files")

	// ErrPathTooLong is returned by the Builder for a path with more than
	// DefaultMaxPathLength symbols, which New would refuse to load.
	ErrPathTooLong = errors.New("trfs: path too long")
)

// InsertError reports which virtual path failed to be inserted. Use
// errors.As to recover it from errors returned by the Builder.
type InsertError = trfstype.InsertError
