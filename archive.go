package trfs

import (
	"fmt"
	"io"
	"io/fs"
	"iter"
	"log/slog"

	"github.com/meigma/trfs/internal/codec"
	"github.com/meigma/trfs/internal/file"
	"github.com/meigma/trfs/internal/trie"
)

// Archive provides read access to a loaded container.
//
// The table is decoded once into an in-memory trie. File content is read
// on demand with positioned reads and decompressed into a fresh buffer, so
// an Archive is safe for concurrent use.
type Archive struct {
	trie   *trie.Trie
	reader *file.Reader
	cfg    archiveConfig
}

// New loads the container held by source.
//
// The whole table is decoded and validated up front: a truncated or
// malformed table, or an entry that points outside the data section, fails
// with ErrCorruptTable and no Archive is returned.
func New(source ByteSource, opts ...Option) (*Archive, error) {
	cfg := archiveConfig{
		maxFileSize:   DefaultMaxFileSize,
		maxPathLength: DefaultMaxPathLength,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	size := source.Size()
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty container", ErrCorruptTable)
	}

	t, tableSize, err := trie.Decode(io.NewSectionReader(source, 0, size), cfg.maxPathLength)
	if err != nil {
		return nil, err
	}

	c, err := codec.New(
		codec.WithMaxDecoderMemory(cfg.maxDecoderMemory),
		codec.WithDecoderLowmem(cfg.decoderLowmem),
	)
	if err != nil {
		return nil, err
	}
	r, err := file.NewReader(source, tableSize, c, file.WithMaxFileSize(cfg.maxFileSize))
	if err != nil {
		return nil, err
	}
	if err := t.Validate(r.DataSize()); err != nil {
		return nil, err
	}

	a := &Archive{trie: t, reader: r, cfg: cfg}
	a.log().Debug("loaded archive",
		"files", t.Len(),
		"nodes", t.NodeCount(),
		"table_size", tableSize,
		"data_size", r.DataSize(),
	)
	return a, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.cfg.logger
}

// Len returns the number of stored files.
func (a *Archive) Len() int {
	return a.trie.Len()
}

// DataOffset returns the byte offset of the data section, which is the
// length of the table.
func (a *Archive) DataOffset() uint64 {
	return a.reader.DataOffset()
}

// lookup resolves a virtual path to its entry.
//
// A path containing characters outside the alphabet cannot name a stored
// file; the error matches both ErrNotFound and ErrInvalidPathCharacter.
func (a *Archive) lookup(name string) (FileEntry, error) {
	_, syms, err := encodePath(name)
	if err != nil {
		return FileEntry{}, fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	entry, ok := a.trie.Lookup(syms)
	if !ok {
		return FileEntry{}, ErrNotFound
	}
	return entry, nil
}

// Open returns the decompressed content stored at name. Lookup is
// case-insensitive and treats '/' and '\' alike.
//
// The returned buffer belongs to the caller. Errors are *fs.PathError
// values wrapping ErrNotFound, ErrInvalidPathCharacter, ErrAllocation,
// ErrIO, ErrDecompression or, for an entry outside the data section,
// ErrCorruptTable. A failed Open leaves the Archive usable.
func (a *Archive) Open(name string) ([]byte, error) {
	entry, err := a.lookup(name)
	if err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}

	data, err := a.reader.ReadAll(&entry)
	if err != nil {
		a.log().Debug("open failed", "path", name, "error", err)
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	return data, nil
}

// ReadFile is Open under the name used by fs.ReadFileFS.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	return a.Open(name)
}

// Stat returns the entry stored at name without reading its content.
func (a *Archive) Stat(name string) (FileEntry, error) {
	entry, err := a.lookup(name)
	if err != nil {
		return FileEntry{}, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	return entry, nil
}

// Exists reports whether a file is stored at name.
func (a *Archive) Exists(name string) bool {
	_, err := a.lookup(name)
	return err == nil
}

// Paths yields every stored virtual path with its entry, in table order.
// Stored paths keep no original case, so letters come back upper-case.
func (a *Archive) Paths() iter.Seq2[string, FileEntry] {
	return a.trie.Paths()
}

