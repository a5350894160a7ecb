package trie

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/trfs/internal/alphabet"
	"github.com/meigma/trfs/internal/trfstype"
)

// buildTrie inserts each path with its payload and returns a payload lookup.
func buildTrie(t *testing.T, files map[string][]byte) (*Trie, PayloadFunc) {
	t.Helper()
	tr := New()
	payloads := make(map[NodeID][]byte)
	for p, data := range files {
		id := tr.Insert(mustPath(t, p))
		tr.SetEntry(id, trfstype.FileEntry{Size: uint64(len(data)) * 3, CompressedSize: uint64(len(data))})
		payloads[id] = data
	}
	return tr, func(id NodeID) []byte { return payloads[id] }
}

func TestEncodeEmptyTrie(t *testing.T) {
	t.Parallel()

	var table, data bytes.Buffer
	stats, err := New().Encode(&table, &data, nil)
	require.NoError(t, err)

	want := append([]byte{0, MarkerNoFile}, bytes.Repeat([]byte{MarkerNoNode}, alphabet.Size)...)
	assert.Equal(t, want, table.Bytes())
	assert.Equal(t, uint64(len(want)), stats.TableSize)
	assert.Zero(t, stats.DataSize)
	assert.Zero(t, data.Len())
}

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	tr, payload := buildTrie(t, map[string][]byte{"a": []byte("xyz")})

	var table, data bytes.Buffer
	stats, err := tr.Encode(&table, &data, payload)
	require.NoError(t, err)

	var want bytes.Buffer
	want.Write([]byte{0, MarkerNoFile})
	want.Write([]byte{0, MarkerHasFile})
	var fields [EntrySize]byte
	binary.LittleEndian.PutUint64(fields[0:], 0)
	binary.LittleEndian.PutUint64(fields[8:], 9)
	binary.LittleEndian.PutUint64(fields[16:], 3)
	want.Write(fields[:])
	want.Write(bytes.Repeat([]byte{MarkerNoNode}, alphabet.Size))
	want.Write(bytes.Repeat([]byte{MarkerNoNode}, alphabet.Size-1))

	assert.Equal(t, want.Bytes(), table.Bytes())
	assert.Equal(t, uint64(85), stats.TableSize)
	assert.Equal(t, []byte("xyz"), data.Bytes())
	assert.Equal(t, 1, stats.Files)
}

func TestEncodeOffsetsFollowCompressedSizes(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"a":     bytes.Repeat([]byte{1}, 5),
		"ab":    bytes.Repeat([]byte{2}, 17),
		"b.txt": bytes.Repeat([]byte{3}, 2),
		"c_d":   bytes.Repeat([]byte{4}, 11),
	}
	tr, payload := buildTrie(t, files)

	var table, data bytes.Buffer
	stats, err := tr.Encode(&table, &data, payload)
	require.NoError(t, err)
	assert.Equal(t, uint64(35), stats.DataSize)

	for p, want := range files {
		f, ok := tr.Lookup(mustPath(t, p))
		require.True(t, ok)
		got := data.Bytes()[f.Offset : f.Offset+f.CompressedSize]
		assert.Equal(t, want, got, p)
	}
}

func TestEncodePayloadMismatch(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.SetEntry(tr.Insert(mustPath(t, "a")), trfstype.FileEntry{CompressedSize: 4})
	_, err := tr.Encode(&bytes.Buffer{}, &bytes.Buffer{}, func(NodeID) []byte { return []byte("abc") })
	require.Error(t, err)
}

func TestDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	files := map[string][]byte{
		"images/car.png":  []byte("car"),
		"images/pnga.png": []byte("pnga"),
		"audio/oggmb.ogg": []byte("ogg"),
		"images":          []byte("both a file and a directory"),
	}
	tr, payload := buildTrie(t, files)

	var table, data bytes.Buffer
	stats, err := tr.Encode(&table, &data, payload)
	require.NoError(t, err)

	container := append(table.Bytes(), data.Bytes()...)
	got, offset, err := Decode(bytes.NewReader(container), DefaultMaxDepth)
	require.NoError(t, err)
	assert.Equal(t, stats.TableSize, offset)
	assert.Equal(t, tr.Len(), got.Len())
	assert.Equal(t, tr.NodeCount(), got.NodeCount())
	require.NoError(t, got.Validate(stats.DataSize))

	for p := range files {
		want, ok := tr.Lookup(mustPath(t, p))
		require.True(t, ok)
		have, ok := got.Lookup(mustPath(t, p))
		require.True(t, ok, p)
		assert.Equal(t, want, have, p)
	}
	_, ok := got.Lookup(mustPath(t, "images/car"))
	assert.False(t, ok)
}

func encodeFixture(t *testing.T) []byte {
	t.Helper()
	tr, payload := buildTrie(t, map[string][]byte{"ab": []byte("12345")})
	var table bytes.Buffer
	_, err := tr.Encode(&table, &bytes.Buffer{}, payload)
	require.NoError(t, err)
	return table.Bytes()
}

func TestDecodeTruncated(t *testing.T) {
	t.Parallel()

	table := encodeFixture(t)
	for _, n := range []int{0, 1, 2, 5, 20, len(table) - 1} {
		_, _, err := Decode(bytes.NewReader(table[:n]), 0)
		require.ErrorIs(t, err, trfstype.ErrCorruptTable, "prefix %d", n)
	}
}

func TestDecodeCorruptMarkers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func([]byte)
	}{
		{"absent root", func(b []byte) { b[0] = MarkerNoNode }},
		{"root marker", func(b []byte) { b[0] = 5 }},
		{"root file marker", func(b []byte) { b[1] = 'x' }},
		{"child marker in wrong slot", func(b []byte) { b[2] = 3 }},
		{"negative field", func(b []byte) { b[7+7] = 0x80 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table := encodeFixture(t)
			tt.mutate(table)
			_, _, err := Decode(bytes.NewReader(table), 0)
			require.ErrorIs(t, err, trfstype.ErrCorruptTable)
		})
	}
}

func TestDecodeMaxDepth(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.SetEntry(tr.Insert(mustPath(t, "abcdefgh")), trfstype.FileEntry{})
	var table bytes.Buffer
	_, err := tr.Encode(&table, &bytes.Buffer{}, func(NodeID) []byte { return nil })
	require.NoError(t, err)

	_, _, err = Decode(bytes.NewReader(table.Bytes()), 8)
	require.NoError(t, err)
	_, _, err = Decode(bytes.NewReader(table.Bytes()), 7)
	require.ErrorIs(t, err, trfstype.ErrCorruptTable)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

func TestDecodeReadError(t *testing.T) {
	t.Parallel()

	_, _, err := Decode(failingReader{}, 0)
	require.ErrorIs(t, err, trfstype.ErrIO)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.SetEntry(tr.Insert(mustPath(t, "a")), trfstype.FileEntry{Offset: 10, CompressedSize: 5})
	require.NoError(t, tr.Validate(15))
	require.ErrorIs(t, tr.Validate(14), trfstype.ErrCorruptTable)
}
