package trfs

import (
	"fmt"
	"os"
	"sync"
)

// ArchiveFile is an Archive backed by a container file on disk.
type ArchiveFile struct {
	*Archive

	f         *os.File
	closeOnce sync.Once
	closeErr  error
}

// fileSource adapts *os.File to ByteSource using the size seen at open.
type fileSource struct {
	*os.File
	size int64
}

func (s *fileSource) Size() int64 {
	return s.size
}

// Load opens the container at path and loads its table.
//
// Failure to open or stat the file returns ErrIO. A corrupt table returns
// ErrCorruptTable and the file is closed again.
func Load(path string, opts ...Option) (*ArchiveFile, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}

	a, err := New(&fileSource{File: f, size: info.Size()}, opts...)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	a.log().Debug("opened archive file", "path", path, "size", info.Size())
	return &ArchiveFile{Archive: a, f: f}, nil
}

// Close releases the underlying file. Calling Close more than once is safe;
// later calls return the result of the first.
func (a *ArchiveFile) Close() error {
	a.closeOnce.Do(func() {
		if err := a.f.Close(); err != nil {
			a.closeErr = fmt.Errorf("%w: %w", ErrIO, err)
		}
	})
	return a.closeErr
}
