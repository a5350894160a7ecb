package trfstype

import (
	"errors"
	"fmt"
	"io/fs"
)

// Sentinel errors for archive operations.
var (
	// ErrInvalidPathCharacter is returned when a virtual path contains a
	// character outside the path alphabet.
	ErrInvalidPathCharacter = errors.New("trfs: invalid path character")

	// ErrAllocation is returned when an entry would require a buffer larger
	// than the configured limit.
	ErrAllocation = errors.New("trfs: allocation limit exceeded")

	// ErrIO is returned when the backing store cannot be opened, read or written.
	ErrIO = errors.New("trfs: i/o failure")

	// ErrCompression is returned when a payload cannot be compressed.
	ErrCompression = errors.New("trfs: compression failed")

	// ErrDecompression is returned when a payload is truncated, corrupt or
	// decodes to an unexpected length.
	ErrDecompression = errors.New("trfs: decompression failed")

	// ErrNotFound is returned when no file is stored at a virtual path.
	// It matches fs.ErrNotExist.
	ErrNotFound = fmt.Errorf("trfs: %w", fs.ErrNotExist)

	// ErrCorruptTable is returned when the trie table cannot be decoded.
	ErrCorruptTable = errors.New("trfs: corrupt table")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("trfs: size overflow")
)

// InsertError reports which virtual path failed to be inserted.
type InsertError struct {
	Path string
	Err  error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("trfs: insert %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *InsertError) Unwrap() error {
	return e.Err
}
