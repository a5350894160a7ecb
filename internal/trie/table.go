package trie

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/meigma/trfs/internal/alphabet"
	"github.com/meigma/trfs/internal/file"
	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trfstype"
)

// Table markers. A present node is introduced by its own symbol (the root
// by 0), which can never collide with MarkerNoNode.
const (
	MarkerNoNode  byte = '#'
	MarkerNoFile  byte = '@'
	MarkerHasFile byte = '$'
)

// EntrySize is the encoded size of a FileEntry: offset, size and
// compressed size as little-endian int64.
const EntrySize = 24

// DefaultMaxDepth bounds the path length accepted while decoding.
const DefaultMaxDepth = 4096

// Stats describes one encoded container.
type Stats struct {
	Files     int
	TableSize uint64
	DataSize  uint64
}

// PayloadFunc returns the compressed payload stored at node id.
type PayloadFunc func(id NodeID) []byte

type frame struct {
	id   NodeID
	next int
}

// Encode writes the table to table and every payload, in visitation order,
// to data. Each entry's Offset is set to the number of data bytes written
// before its payload.
func (t *Trie) Encode(table, data io.Writer, payload PayloadFunc) (Stats, error) {
	tw := &file.CountingWriter{W: table}
	bw := bufio.NewWriter(tw)
	e := &encoder{t: t, w: bw, data: data, payload: payload}

	if err := e.node(0, Root); err != nil {
		return Stats{}, err
	}
	stack := []frame{{id: Root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == alphabet.Size {
			stack = stack[:len(stack)-1]
			continue
		}
		sym := top.next
		top.next++

		child := t.nodes[top.id].Children[sym]
		if child == none {
			if err := bw.WriteByte(MarkerNoNode); err != nil {
				return Stats{}, err
			}
			continue
		}
		if err := e.node(byte(sym), child); err != nil {
			return Stats{}, err
		}
		stack = append(stack, frame{id: child})
	}

	if err := bw.Flush(); err != nil {
		return Stats{}, err
	}
	return Stats{Files: e.files, TableSize: tw.N, DataSize: e.offset}, nil
}

// encoder carries the running data offset for one Encode call.
type encoder struct {
	t       *Trie
	w       *bufio.Writer
	data    io.Writer
	payload PayloadFunc
	offset  uint64
	files   int
	scratch [EntrySize]byte
}

func (e *encoder) node(marker byte, id NodeID) error {
	if err := e.w.WriteByte(marker); err != nil {
		return err
	}
	f := e.t.nodes[id].File
	if f == nil {
		return e.w.WriteByte(MarkerNoFile)
	}

	p := e.payload(id)
	if uint64(len(p)) != f.CompressedSize {
		return fmt.Errorf("trie: payload for node %d is %d bytes, entry says %d", id, len(p), f.CompressedSize)
	}
	f.Offset = e.offset

	if err := e.w.WriteByte(MarkerHasFile); err != nil {
		return err
	}
	if err := e.putEntry(f); err != nil {
		return err
	}
	if _, err := e.w.Write(e.scratch[:]); err != nil {
		return err
	}
	if _, err := e.data.Write(p); err != nil {
		return err
	}

	next, ok := sizing.AddUint64(e.offset, f.CompressedSize)
	if !ok {
		return trfstype.ErrSizeOverflow
	}
	e.offset = next
	e.files++
	return nil
}

func (e *encoder) putEntry(f *trfstype.FileEntry) error {
	for i, v := range [3]uint64{f.Offset, f.Size, f.CompressedSize} {
		n, err := sizing.ToInt64(v, trfstype.ErrSizeOverflow)
		if err != nil {
			return err
		}
		binary.LittleEndian.PutUint64(e.scratch[i*8:], uint64(n)) //nolint:gosec // n is non-negative
	}
	return nil
}

// Decode reads one table from r. It returns the trie and the exact number
// of table bytes consumed, which is where the data section begins.
// Depth beyond maxDepth is rejected; maxDepth <= 0 disables the check.
func Decode(r io.Reader, maxDepth int) (*Trie, uint64, error) {
	cr := &file.CountingReader{R: bufio.NewReader(r)}
	d := &decoder{r: cr}

	m, err := d.readByte()
	if err != nil {
		return nil, 0, err
	}
	if m == MarkerNoNode {
		return nil, 0, fmt.Errorf("%w: missing root node", trfstype.ErrCorruptTable)
	}
	if m != 0 {
		return nil, 0, fmt.Errorf("%w: root marker %#x", trfstype.ErrCorruptTable, m)
	}

	t := New()
	if err := d.file(t, Root); err != nil {
		return nil, 0, err
	}

	stack := []frame{{id: Root}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == alphabet.Size {
			stack = stack[:len(stack)-1]
			continue
		}
		sym := top.next
		top.next++
		parent := top.id

		m, err := d.readByte()
		if err != nil {
			return nil, 0, err
		}
		if m == MarkerNoNode {
			continue
		}
		if m != byte(sym) {
			return nil, 0, fmt.Errorf("%w: node marker %#x in slot %d at byte %d", trfstype.ErrCorruptTable, m, sym, cr.N-1)
		}
		if maxDepth > 0 && len(stack) > maxDepth {
			return nil, 0, fmt.Errorf("%w: path deeper than %d", trfstype.ErrCorruptTable, maxDepth)
		}

		child := t.newNode()
		t.nodes[parent].Children[sym] = child
		if err := d.file(t, child); err != nil {
			return nil, 0, err
		}
		stack = append(stack, frame{id: child})
	}

	return t, cr.N, nil
}

type decoder struct {
	r       *file.CountingReader
	scratch [EntrySize]byte
}

func (d *decoder) read(p []byte) error {
	if _, err := io.ReadFull(d.r, p); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("%w: truncated at byte %d", trfstype.ErrCorruptTable, d.r.N)
		}
		return fmt.Errorf("%w: read table: %w", trfstype.ErrIO, err)
	}
	return nil
}

func (d *decoder) readByte() (byte, error) {
	if err := d.read(d.scratch[:1]); err != nil {
		return 0, err
	}
	return d.scratch[0], nil
}

func (d *decoder) file(t *Trie, id NodeID) error {
	m, err := d.readByte()
	if err != nil {
		return err
	}
	switch m {
	case MarkerNoFile:
		return nil
	case MarkerHasFile:
	default:
		return fmt.Errorf("%w: file marker %#x at byte %d", trfstype.ErrCorruptTable, m, d.r.N-1)
	}

	if err := d.read(d.scratch[:]); err != nil {
		return err
	}
	var vals [3]uint64
	for i := range vals {
		raw := int64(binary.LittleEndian.Uint64(d.scratch[i*8:])) //nolint:gosec // sign checked below
		v, err := sizing.FromInt64(raw, trfstype.ErrCorruptTable)
		if err != nil {
			return fmt.Errorf("%w: negative entry field", err)
		}
		vals[i] = v
	}
	t.SetEntry(id, trfstype.FileEntry{Offset: vals[0], Size: vals[1], CompressedSize: vals[2]})
	return nil
}

// Validate checks that every entry lies inside a data section of dataSize bytes.
func (t *Trie) Validate(dataSize uint64) error {
	for id, f := range t.Files() {
		end, ok := sizing.AddUint64(f.Offset, f.CompressedSize)
		if !ok || end > dataSize {
			return fmt.Errorf("%w: node %d spans [%d, +%d) beyond data section of %d bytes",
				trfstype.ErrCorruptTable, id, f.Offset, f.CompressedSize, dataSize)
		}
	}
	return nil
}
