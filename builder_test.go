package trfs

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/trfs/internal/testutil"
)

func TestBuilderInsertInvalidPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		path string
	}{
		{"space", "bad name.txt"},
		{"digit", "level1.map"},
		{"dash", "a-b"},
		{"empty", ""},
		{"separators only", "//"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBuilder()
			require.NoError(t, err)

			err = b.Insert(tc.path, []byte("data"))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPathCharacter)

			var insertErr *InsertError
			require.ErrorAs(t, err, &insertErr)
			assert.Equal(t, tc.path, insertErr.Path)
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestBuilderInsertReplaces(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.Insert("Images/Car.png", []byte("first")))
	require.NoError(t, b.Insert(`images\car.PNG`, []byte("second version")))
	assert.Equal(t, 1, b.Len())

	var buf bytes.Buffer
	_, err = b.WriteTo(&buf)
	require.NoError(t, err)

	a := openBytes(t, buf.Bytes())
	assert.Equal(t, 1, a.Len())
	got, err := a.Open("images/car.png")
	require.NoError(t, err)
	assert.Equal(t, "second version", string(got))
}

func TestBuilderMaxFiles(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder(BuildWithMaxFiles(1))
	require.NoError(t, err)
	require.NoError(t, b.Insert("a", []byte("a")))

	err = b.Insert("b", []byte("b"))
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Equal(t, 1, b.Len())

	// Replacing an existing file does not count against the limit.
	require.NoError(t, b.Insert("A", []byte("again")))
}

func TestBuilderInsertLimits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		data    []byte
		wantErr error
	}{
		{"path too deep", strings.Repeat("a", DefaultMaxPathLength+1), []byte("x"), ErrPathTooLong},
		{"deep path with separators", strings.Repeat("a/", DefaultMaxPathLength/2) + "b", []byte("x"), ErrPathTooLong},
		{"data too large", "big.bin", bytes.Repeat([]byte("z"), 9), ErrAllocation},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b, err := NewBuilder(BuildWithMaxFileSize(8))
			require.NoError(t, err)

			err = b.Insert(tc.path, tc.data)
			require.ErrorIs(t, err, tc.wantErr)

			var insertErr *InsertError
			require.ErrorAs(t, err, &insertErr)
			assert.Equal(t, tc.path, insertErr.Path)
			assert.Equal(t, 0, b.Len())
		})
	}
}

func TestBuilderInsertAtLimits(t *testing.T) {
	t.Parallel()

	deepest := strings.Repeat("a", DefaultMaxPathLength)

	b, err := NewBuilder(BuildWithMaxFileSize(8))
	require.NoError(t, err)
	require.NoError(t, b.Insert(deepest, []byte("deep")))
	require.NoError(t, b.Insert("full.bin", bytes.Repeat([]byte("z"), 8)))

	var buf bytes.Buffer
	_, err = b.WriteTo(&buf)
	require.NoError(t, err)

	a := openBytes(t, buf.Bytes(), WithMaxFileSize(8))
	got, err := a.Open(deepest)
	require.NoError(t, err)
	assert.Equal(t, "deep", string(got))
	got, err = a.Open("full.bin")
	require.NoError(t, err)
	assert.Len(t, got, 8)
}

func TestBuilderInsertFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"car.png": testutil.PNGHeader(40),
		"big.bin": bytes.Repeat([]byte("z"), 64),
	})
	ctx := context.Background()

	b, err := NewBuilder(BuildWithMaxFileSize(48), BuildWithChangeDetection(ChangeDetectionStrict))
	require.NoError(t, err)

	require.NoError(t, b.InsertFile(ctx, filepath.Join(dir, "car.png"), "images/car.png"))

	err = b.InsertFile(ctx, filepath.Join(dir, "missing.png"), "missing.png")
	assert.ErrorIs(t, err, ErrIO)

	err = b.InsertFile(ctx, filepath.Join(dir, "big.bin"), "big.bin")
	assert.ErrorIs(t, err, ErrAllocation)

	err = b.InsertFile(ctx, filepath.Join(dir, "car.png"), "car 2.png")
	assert.ErrorIs(t, err, ErrInvalidPathCharacter)

	var insertErr *InsertError
	require.ErrorAs(t, err, &insertErr)
	assert.Equal(t, "car 2.png", insertErr.Path)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, b.InsertFile(canceled, filepath.Join(dir, "car.png"), "car.png"), context.Canceled)

	assert.Equal(t, 1, b.Len())
}

func TestBuilderInsertDir(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"a.txt":           []byte("content of a"),
		"sub/b.txt":       []byte("content of b"),
		"sub/deep/c.data": bytes.Repeat([]byte("c"), 1000),
	}
	dir := t.TempDir()
	testutil.WriteTree(t, dir, files)

	var mu sync.Mutex
	stages := make(map[ProgressStage]int)
	b, err := NewBuilder(
		BuildWithWorkers(2),
		BuildWithProgress(func(ev ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			stages[ev.Stage]++
		}),
	)
	require.NoError(t, err)
	require.NoError(t, b.InsertDir(context.Background(), dir))
	assert.Equal(t, len(files), b.Len())

	path := filepath.Join(t.TempDir(), "assets.trfs")
	_, err = b.Write(path)
	require.NoError(t, err)

	af, err := Load(path)
	require.NoError(t, err)
	defer af.Close()

	for name, want := range files {
		got, err := af.Open(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	assert.Equal(t, 1, stages[StageEnumerating])
	assert.Equal(t, len(files), stages[StageCompressing])
	assert.Equal(t, 1, stages[StageWritingTable])
	assert.Equal(t, 2, stages[StageWritingData])
}

func TestBuilderInsertDirFailurePolicy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{
		"a.txt":        []byte("a"),
		"bad name.txt": []byte("bad"),
		"sub/b.txt":    []byte("b"),
	})

	t.Run("abort", func(t *testing.T) {
		t.Parallel()

		b, err := NewBuilder()
		require.NoError(t, err)

		err = b.InsertDir(context.Background(), dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPathCharacter)

		var insertErr *InsertError
		require.ErrorAs(t, err, &insertErr)
		assert.Equal(t, "bad name.txt", insertErr.Path)
		assert.Equal(t, 0, b.Len())
	})

	t.Run("continue", func(t *testing.T) {
		t.Parallel()

		b, err := NewBuilder(BuildWithContinueOnError(true))
		require.NoError(t, err)

		err = b.InsertDir(context.Background(), dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidPathCharacter)

		var insertErr *InsertError
		require.ErrorAs(t, err, &insertErr)
		assert.Equal(t, "bad name.txt", insertErr.Path)
		assert.Equal(t, 2, b.Len())
	})

	t.Run("too many files", func(t *testing.T) {
		t.Parallel()

		b, err := NewBuilder(BuildWithMaxFiles(1), BuildWithContinueOnError(true))
		require.NoError(t, err)

		err = b.InsertDir(context.Background(), dir)
		assert.ErrorIs(t, err, ErrTooManyFiles)
		assert.Equal(t, 0, b.Len())
	})
}

func TestBuilderInsertDirSkipsSymlinks(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}

	dir := t.TempDir()
	testutil.WriteTree(t, dir, map[string][]byte{"real.txt": []byte("real")})
	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o600))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "link.txt")))

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.InsertDir(context.Background(), dir))
	assert.Equal(t, 1, b.Len())
}

func TestBuilderInsertDirMissing(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)

	err = b.InsertDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestBuilderWrite(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.Insert("images/car.png", testutil.PNGHeader(32)))
	require.NoError(t, b.Insert("a.ogg", testutil.RandomBytes(t, 1024)))
	require.NoError(t, b.Insert("notes.txt", bytes.Repeat([]byte("note "), 100)))

	dir := t.TempDir()
	path := filepath.Join(dir, "out.trfs")
	stats, err := b.Write(path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Files)

	// Both temporary files are gone.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.trfs", entries[0].Name())

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, stats.TableSize+stats.DataSize, uint64(len(written)))

	var buf bytes.Buffer
	n, err := b.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len(written)), n)
	assert.Equal(t, written, buf.Bytes())

	a := openBytes(t, written)
	assert.Equal(t, stats.TableSize, a.DataOffset())
}

func TestBuilderWriteFailure(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.Insert("a", []byte("a")))

	_, err = b.Write(filepath.Join(t.TempDir(), "missing", "out.trfs"))
	assert.ErrorIs(t, err, ErrIO)
}

func TestBuilderWriteKeepsExistingOnFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out.trfs")

	good, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, good.Insert("readme.txt", []byte("first build")))
	_, err = good.Write(path)
	require.NoError(t, err)

	bad, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, bad.Insert("readme.txt", []byte("second build")))
	// A payload that disagrees with its entry makes the table encoder fail
	// after the output has been started.
	for id := range bad.payloads {
		bad.payloads[id] = bad.payloads[id][:1]
	}

	_, err = bad.Write(path)
	require.ErrorIs(t, err, ErrIO)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "out.trfs", entries[0].Name())

	a, err := Load(path)
	require.NoError(t, err)
	defer a.Close()
	got, err := a.Open("readme.txt")
	require.NoError(t, err)
	assert.Equal(t, "first build", string(got))
}

func TestBuilderWriteRenameFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "out.trfs")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "keep"), 0o750))

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.Insert("a", []byte("a")))

	_, err = b.Write(target)
	require.ErrorIs(t, err, ErrIO)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestBuilderWriteToFailure(t *testing.T) {
	t.Parallel()

	b, err := NewBuilder()
	require.NoError(t, err)
	require.NoError(t, b.Insert("a", []byte("a")))

	_, err = b.WriteTo(failingWriter{})
	assert.ErrorIs(t, err, ErrIO)
}
