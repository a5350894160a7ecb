package disk

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	s.Put("abcdef01", []byte("block"))
	got, ok := s.Get("abcdef01")
	require.True(t, ok)
	assert.Equal(t, "block", string(got))
	assert.FileExists(t, filepath.Join(dir, "ab", "abcdef01"))
	assert.Equal(t, int64(5), s.SizeBytes())

	_, ok = s.Get("00000000")
	assert.False(t, ok)

	// Reopening counts existing blocks.
	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(5), reopened.SizeBytes())
	got, ok = reopened.Get("abcdef01")
	require.True(t, ok)
	assert.Equal(t, "block", string(got))
}

func TestStoreRejectsUnsafeKeys(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir(), WithShardPrefixLen(0))
	require.NoError(t, err)

	for _, key := range []string{"", "../escape", "ABCDEF", "a/b"} {
		s.Put(key, []byte("x"))
		_, ok := s.Get(key)
		assert.False(t, ok, key)
	}
	assert.Equal(t, int64(0), s.SizeBytes())
}

func TestStoreMaxBytesPrunesOldest(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := New(dir, WithMaxBytes(10))
	require.NoError(t, err)

	s.Put("aa", bytes.Repeat([]byte("a"), 4))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "aa", "aa"), old, old))
	s.Put("bb", bytes.Repeat([]byte("b"), 4))
	s.Put("cc", bytes.Repeat([]byte("c"), 4))

	_, ok := s.Get("aa")
	assert.False(t, ok, "oldest block survived")
	_, ok = s.Get("cc")
	assert.True(t, ok)
	assert.LessOrEqual(t, s.SizeBytes(), int64(10))

	s.Put("dd", bytes.Repeat([]byte("d"), 11))
	_, ok = s.Get("dd")
	assert.False(t, ok, "block larger than the limit stored")
}

func TestStorePrune(t *testing.T) {
	t.Parallel()

	s, err := New(t.TempDir())
	require.NoError(t, err)
	s.Put("01", []byte("1234"))
	s.Put("02", []byte("5678"))

	freed, err := s.Prune(0)
	require.NoError(t, err)
	assert.Equal(t, int64(8), freed)
	assert.Equal(t, int64(0), s.SizeBytes())
}

func TestNewErrors(t *testing.T) {
	t.Parallel()

	_, err := New("")
	assert.Error(t, err)

	_, err = New(t.TempDir(), WithShardPrefixLen(-1))
	assert.Error(t, err)
}
