package trfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/trfs/internal/alphabet"
	"github.com/meigma/trfs/internal/codec"
	"github.com/meigma/trfs/internal/file"
	"github.com/meigma/trfs/internal/platform"
	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trie"
	"github.com/meigma/trfs/internal/write"
)

// WriteStats describes a written container.
type WriteStats struct {
	// Files is the number of stored files.
	Files int

	// TableSize is the length of the table section, which is also the
	// offset of the data section.
	TableSize uint64

	// DataSize is the length of the data section.
	DataSize uint64
}

// Builder accumulates compressed files in a trie and writes them out as a
// container.
//
// Compressed payloads are held in memory until Write or WriteTo. A Builder
// is not safe for concurrent use.
type Builder struct {
	cfg      buildConfig
	codec    *codec.Codec
	trie     *trie.Trie
	payloads map[trie.NodeID][]byte
}

// pending is a compressed file waiting to be stored in the trie.
type pending struct {
	name       string
	syms       []alphabet.Symbol
	size       uint64
	alg        codec.Algorithm
	compressed []byte
}

// NewBuilder creates an empty Builder.
func NewBuilder(opts ...BuildOption) (*Builder, error) {
	cfg := buildConfig{
		selectCodec: write.DefaultSelectCodec(codec.Zstd, 0),
		zstdLevel:   zstd.SpeedDefault,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.maxFiles == 0 {
		cfg.maxFiles = DefaultMaxFiles
	}
	if cfg.maxFileSize == 0 {
		cfg.maxFileSize = DefaultMaxFileSize
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.GOMAXPROCS(0)
	}

	c, err := codec.New(cfg.codecOptions()...)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:      cfg,
		codec:    c,
		trie:     trie.New(),
		payloads: make(map[trie.NodeID][]byte),
	}, nil
}

// log returns the logger, falling back to a discard logger if nil.
func (b *Builder) log() *slog.Logger {
	if b.cfg.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return b.cfg.logger
}

// reportProgress sends a progress event if a callback is configured.
func (b *Builder) reportProgress(stage ProgressStage, path string, bytesDone uint64, filesDone, filesTotal int) {
	if b.cfg.progress == nil {
		return
	}
	b.cfg.progress(ProgressEvent{
		Stage:      stage,
		Path:       path,
		BytesDone:  bytesDone,
		FilesDone:  filesDone,
		FilesTotal: filesTotal,
	})
}

// Len returns the number of files currently held.
func (b *Builder) Len() int {
	return b.trie.Len()
}

// Insert compresses data and stores it at virtualPath.
//
// Inserting a path that is already present (compared case-insensitively)
// replaces the earlier content. On failure the Builder is unchanged and the
// returned error is an *InsertError naming the path.
func (b *Builder) Insert(virtualPath string, data []byte) error {
	name, syms, err := b.encodePath(virtualPath)
	if err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	if uint64(len(data)) > b.cfg.maxFileSize {
		return &InsertError{Path: virtualPath, Err: fmt.Errorf("%w: %d bytes", ErrAllocation, len(data))}
	}
	p, err := b.compress(name, syms, data)
	if err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	if err := b.store(p); err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	return nil
}

// InsertFile reads the file at diskPath and stores it at virtualPath.
// Failures are reported the same way as Insert.
func (b *Builder) InsertFile(ctx context.Context, diskPath, virtualPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, syms, err := b.encodePath(virtualPath)
	if err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}

	f, err := os.Open(diskPath) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return &InsertError{Path: virtualPath, Err: fmt.Errorf("%w: %w", ErrIO, err)}
	}
	defer f.Close()

	data, err := b.readSource(f, diskPath)
	if err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	p, err := b.compress(name, syms, data)
	if err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	if err := b.store(p); err != nil {
		return &InsertError{Path: virtualPath, Err: err}
	}
	return nil
}

// encodePath encodes p and rejects paths deeper than an archive opened
// with default options would load.
func (b *Builder) encodePath(p string) (string, []alphabet.Symbol, error) {
	name, syms, err := encodePath(p)
	if err != nil {
		return name, nil, err
	}
	if len(syms) > DefaultMaxPathLength {
		return name, nil, fmt.Errorf("%w: %d symbols, limit %d", ErrPathTooLong, len(syms), DefaultMaxPathLength)
	}
	return name, syms, nil
}

// dirJob is one regular file found by InsertDir.
type dirJob struct {
	fsPath string
	name   string
	syms   []alphabet.Symbol
}

// InsertDir stores every regular file under dir, using its slash-separated
// path relative to dir as the virtual path. Symbolic links are skipped.
//
// Files are read and compressed in parallel and stored in lexical path
// order. Unless BuildWithContinueOnError is set, the first failure aborts
// the call and nothing from dir is stored. With it, failing files are
// skipped and returned joined, each as an *InsertError.
func (b *Builder) InsertDir(ctx context.Context, dir string) error {
	root, err := os.OpenRoot(dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer root.Close()

	b.log().Info("inserting directory", "dir", dir)
	b.reportProgress(StageEnumerating, "", 0, 0, 0)

	jobs, failures, err := b.enumerate(ctx, root)
	if err != nil {
		return err
	}
	if err := b.checkCapacity(jobs); err != nil {
		return err
	}

	results := make([]pending, len(jobs))
	errs := make([]error, len(jobs))
	var done atomic.Int64
	var doneBytes atomic.Uint64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := b.compressSource(root, j)
			if err != nil {
				ierr := &InsertError{Path: j.name, Err: err}
				if !b.cfg.continueOnError {
					return ierr
				}
				errs[i] = ierr
				return nil
			}
			results[i] = p
			n := done.Add(1)
			bytesDone := doneBytes.Add(p.size)
			b.reportProgress(StageCompressing, j.name, bytesDone, int(n), len(jobs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stored := 0
	for i := range jobs {
		if errs[i] != nil {
			b.log().Warn("skipped file", "path", jobs[i].name, "error", errs[i])
			failures = append(failures, errs[i])
			continue
		}
		if err := b.store(results[i]); err != nil {
			failures = append(failures, &InsertError{Path: jobs[i].name, Err: err})
			continue
		}
		stored++
	}

	b.log().Info("inserted directory", "dir", dir, "files", stored, "failed", len(failures))
	return errors.Join(failures...)
}

// enumerate walks root and returns the files to insert. Paths that cannot
// be encoded are returned as failures when continuing on error.
func (b *Builder) enumerate(ctx context.Context, root *os.Root) ([]dirJob, []error, error) {
	var jobs []dirJob
	var failures []error

	err := fs.WalkDir(root.FS(), ".", func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", ErrIO, path, walkErr)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			b.log().Debug("skipped symlink", "path", path)
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		name, syms, err := b.encodePath(path)
		if err != nil {
			ierr := &InsertError{Path: path, Err: err}
			if !b.cfg.continueOnError {
				return ierr
			}
			b.log().Warn("skipped file", "path", path, "error", err)
			failures = append(failures, ierr)
			return nil
		}
		jobs = append(jobs, dirJob{fsPath: path, name: name, syms: syms})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return jobs, failures, nil
}

// checkCapacity fails if storing jobs would exceed the file limit.
func (b *Builder) checkCapacity(jobs []dirJob) error {
	if b.cfg.maxFiles < 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(jobs))
	added := 0
	for _, j := range jobs {
		key := strings.ToUpper(j.name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		if _, ok := b.trie.Lookup(j.syms); ok {
			continue
		}
		added++
	}
	if b.trie.Len()+added > b.cfg.maxFiles {
		return ErrTooManyFiles
	}
	return nil
}

// compressSource reads and compresses one file found by InsertDir.
func (b *Builder) compressSource(root *os.Root, j dirJob) (pending, error) {
	f, err := platform.OpenFileNoFollow(root, filepath.FromSlash(j.fsPath))
	if err != nil {
		if errors.Is(err, platform.ErrSymlink) {
			return pending{}, err
		}
		return pending{}, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer f.Close()

	data, err := b.readSource(f, j.fsPath)
	if err != nil {
		return pending{}, err
	}
	return b.compress(j.name, j.syms, data)
}

// readSource reads an open source file, enforcing the size limit and, in
// strict mode, that the file did not change while it was read.
func (b *Builder) readSource(f *os.File, label string) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: not a regular file: %s", ErrIO, label)
	}
	if info.Size() < 0 || uint64(info.Size()) > b.cfg.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrAllocation, label, info.Size())
	}

	data, err := sizing.ReadAllWithLimit(f, b.cfg.maxFileSize, ErrAllocation)
	if err != nil {
		if errors.Is(err, ErrAllocation) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, label, err)
	}

	strict := b.cfg.changeDetection == ChangeDetectionStrict
	if err := write.CheckFileUnchanged(f, label, info, strict); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return data, nil
}

// compress runs the selected codec over data.
func (b *Builder) compress(name string, syms []alphabet.Symbol, data []byte) (pending, error) {
	alg := b.cfg.selectCodec(name, int64(len(data)))
	out, err := b.codec.Compress(alg, data)
	if err != nil {
		return pending{}, err
	}
	return pending{
		name:       name,
		syms:       syms,
		size:       uint64(len(data)),
		alg:        alg,
		compressed: out,
	}, nil
}

// store places a compressed file in the trie, replacing any previous file
// at the same node.
func (b *Builder) store(p pending) error {
	_, exists := b.trie.Lookup(p.syms)
	if !exists && b.cfg.maxFiles > 0 && b.trie.Len() >= b.cfg.maxFiles {
		return ErrTooManyFiles
	}

	id := b.trie.Insert(p.syms)
	replaced := b.trie.SetEntry(id, FileEntry{
		Size:           p.size,
		CompressedSize: uint64(len(p.compressed)),
	})
	b.payloads[id] = p.compressed

	b.log().Debug("inserted file",
		"path", p.name,
		"size", p.size,
		"compressed_size", len(p.compressed),
		"codec", p.alg.String(),
		"replaced", replaced,
	)
	return nil
}

// payload returns the compressed bytes held for node id.
func (b *Builder) payload(id trie.NodeID) []byte {
	return b.payloads[id]
}

// Write writes the container to outputPath.
//
// The table is written to a temporary file next to outputPath while the data
// section is spooled to a second one. The data is then appended and the
// result renamed over outputPath, so an existing file there is only replaced
// by a complete container. Both temporary files are removed on return.
func (b *Builder) Write(outputPath string) (WriteStats, error) {
	dir, base := filepath.Dir(outputPath), filepath.Base(outputPath)

	out, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return WriteStats{}, fmt.Errorf("%w: create %s: %w", ErrIO, outputPath, err)
	}
	outPath := out.Name()
	committed := false
	defer func() {
		if !committed {
			out.Close()
			os.Remove(outPath)
		}
	}()

	side, err := os.CreateTemp(dir, base+".data-*")
	if err != nil {
		return WriteStats{}, fmt.Errorf("%w: create data side file: %w", ErrIO, err)
	}
	sidePath := side.Name()
	defer func() {
		side.Close()
		os.Remove(sidePath)
	}()

	stats, err := b.writeContainer(out, side)
	if err != nil {
		return WriteStats{}, err
	}
	if err := out.Sync(); err != nil {
		return WriteStats{}, fmt.Errorf("%w: sync %s: %w", ErrIO, outPath, err)
	}
	if err := out.Close(); err != nil {
		return WriteStats{}, fmt.Errorf("%w: close %s: %w", ErrIO, outPath, err)
	}
	if err := os.Rename(outPath, outputPath); err != nil {
		return WriteStats{}, fmt.Errorf("%w: rename to %s: %w", ErrIO, outputPath, err)
	}
	committed = true

	b.log().Info("wrote archive",
		"path", outputPath,
		"files", stats.Files,
		"table_size", stats.TableSize,
		"data_size", stats.DataSize,
	)
	return stats, nil
}

// writeContainer writes the table to out and the data section to side,
// then appends side to out.
func (b *Builder) writeContainer(out io.Writer, side *os.File) (WriteStats, error) {
	b.reportProgress(StageWritingTable, "", 0, 0, b.trie.Len())
	ts, err := b.trie.Encode(out, side, b.payload)
	if err != nil {
		return WriteStats{}, fmt.Errorf("%w: write table: %w", ErrIO, err)
	}

	b.reportProgress(StageWritingData, "", 0, ts.Files, ts.Files)
	if _, err := side.Seek(0, io.SeekStart); err != nil {
		return WriteStats{}, fmt.Errorf("%w: rewind data side file: %w", ErrIO, err)
	}
	n, err := io.Copy(out, side)
	if err != nil {
		return WriteStats{}, fmt.Errorf("%w: append data section: %w", ErrIO, err)
	}
	if uint64(n) != ts.DataSize { //nolint:gosec // n is non-negative
		return WriteStats{}, fmt.Errorf("%w: appended %d data bytes, expected %d", ErrIO, n, ts.DataSize)
	}
	b.reportProgress(StageWritingData, "", ts.DataSize, ts.Files, ts.Files)

	return WriteStats{Files: ts.Files, TableSize: ts.TableSize, DataSize: ts.DataSize}, nil
}

// WriteTo writes the container to w. It implements io.WriterTo.
//
// The table is produced first, with offsets assigned; the payloads are then
// streamed in the same order, so no side file is needed.
func (b *Builder) WriteTo(w io.Writer) (int64, error) {
	cw := &file.CountingWriter{W: w}
	ts, err := b.trie.Encode(cw, io.Discard, b.payload)
	if err != nil {
		return int64(cw.N), fmt.Errorf("%w: write table: %w", ErrIO, err) //nolint:gosec // bounded by written bytes
	}
	for id := range b.trie.Files() {
		if _, err := cw.Write(b.payloads[id]); err != nil {
			return int64(cw.N), fmt.Errorf("%w: write data section: %w", ErrIO, err) //nolint:gosec // bounded by written bytes
		}
	}

	b.log().Debug("wrote archive stream", "files", ts.Files, "table_size", ts.TableSize, "data_size", ts.DataSize)
	return int64(cw.N), nil //nolint:gosec // bounded by written bytes
}
