// Package trie implements the in-memory path trie shared by the archive
// builder and reader, plus its binary table encoding.
//
// Nodes live in an arena and reference their children by index. Node 0 is
// the root; because the root is never anyone's child, a zero child index
// means "no child".
package trie

import (
	"iter"

	"github.com/meigma/trfs/internal/alphabet"
	"github.com/meigma/trfs/internal/trfstype"
)

// NodeID indexes a node in the arena.
type NodeID uint32

// Root is the ID of the root node.
const Root NodeID = 0

// none marks an empty child slot.
const none NodeID = 0

// Node is one trie node: an optional file and one child slot per symbol.
type Node struct {
	File     *trfstype.FileEntry
	Children [alphabet.Size]NodeID
}

// Trie is a fixed fan-out prefix tree keyed by alphabet symbols.
// It is not safe for concurrent mutation; concurrent reads are safe.
type Trie struct {
	nodes []Node
	files int
}

// New returns a trie holding only an empty root.
func New() *Trie {
	return &Trie{nodes: make([]Node, 1, 64)}
}

// Insert walks path from the root, creating missing nodes, and returns the
// terminal node.
func (t *Trie) Insert(path []alphabet.Symbol) NodeID {
	id := Root
	for _, s := range path {
		child := t.nodes[id].Children[s]
		if child == none {
			child = t.newNode()
			t.nodes[id].Children[s] = child
		}
		id = child
	}
	return id
}

// Find walks path from the root without modifying the trie.
func (t *Trie) Find(path []alphabet.Symbol) (NodeID, bool) {
	id := Root
	for _, s := range path {
		if int(s) >= alphabet.Size {
			return 0, false
		}
		child := t.nodes[id].Children[s]
		if child == none {
			return 0, false
		}
		id = child
	}
	return id, true
}

// Lookup returns the file stored at path, if any.
func (t *Trie) Lookup(path []alphabet.Symbol) (trfstype.FileEntry, bool) {
	id, ok := t.Find(path)
	if !ok {
		return trfstype.FileEntry{}, false
	}
	return t.Entry(id)
}

// Entry returns the file stored at node id, if any.
func (t *Trie) Entry(id NodeID) (trfstype.FileEntry, bool) {
	f := t.nodes[id].File
	if f == nil {
		return trfstype.FileEntry{}, false
	}
	return *f, true
}

// SetEntry stores e at node id, replacing any previous entry.
// It reports whether an entry was replaced.
func (t *Trie) SetEntry(id NodeID, e trfstype.FileEntry) bool {
	n := &t.nodes[id]
	replaced := n.File != nil
	if !replaced {
		t.files++
	}
	n.File = &e
	return replaced
}

// Len returns the number of stored files.
func (t *Trie) Len() int {
	return t.files
}

// NodeCount returns the number of nodes including the root.
func (t *Trie) NodeCount() int {
	return len(t.nodes)
}

// Files yields every node holding a file, in the pre-order used by the
// table encoding (node before children, children in symbol order).
func (t *Trie) Files() iter.Seq2[NodeID, trfstype.FileEntry] {
	return func(yield func(NodeID, trfstype.FileEntry) bool) {
		stack := []NodeID{Root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f := t.nodes[id].File; f != nil {
				if !yield(id, *f) {
					return
				}
			}
			children := &t.nodes[id].Children
			for s := alphabet.Size - 1; s >= 0; s-- {
				if c := children[s]; c != none {
					stack = append(stack, c)
				}
			}
		}
	}
}

// Paths yields every stored file with its decoded path, in the same order
// as Files. Letters decode upper-case and separators as '/'.
func (t *Trie) Paths() iter.Seq2[string, trfstype.FileEntry] {
	type item struct {
		id    NodeID
		depth int
		sym   alphabet.Symbol
	}
	return func(yield func(string, trfstype.FileEntry) bool) {
		var buf []byte
		stack := []item{{id: Root}}
		for len(stack) > 0 {
			it := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if it.depth > 0 {
				c, _ := alphabet.Decode(it.sym)
				buf = append(buf[:it.depth-1], c)
			}
			if f := t.nodes[it.id].File; f != nil {
				if !yield(string(buf), *f) {
					return
				}
			}
			children := &t.nodes[it.id].Children
			for s := alphabet.Size - 1; s >= 0; s-- {
				if c := children[s]; c != none {
					stack = append(stack, item{id: c, depth: it.depth + 1, sym: alphabet.Symbol(s)})
				}
			}
		}
	}
}

func (t *Trie) newNode() NodeID {
	t.nodes = append(t.nodes, Node{})
	return NodeID(len(t.nodes) - 1) //nolint:gosec // node count is bounded by input size
}
