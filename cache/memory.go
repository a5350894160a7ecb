package cache

import (
	"container/list"
	"sync"
)

// Memory is an in-memory Store that evicts least recently used blocks once
// it holds more than its byte limit.
type Memory struct {
	mu       sync.Mutex
	maxBytes int64
	size     int64
	order    *list.List
	items    map[string]*list.Element
}

type memoryEntry struct {
	key  string
	data []byte
}

// NewMemory returns a Memory store holding at most maxBytes of block data.
// Values <= 0 disable the limit.
func NewMemory(maxBytes int64) *Memory {
	return &Memory{
		maxBytes: maxBytes,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// Get returns the block stored under key and marks it recently used.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.order.MoveToFront(el)
	return el.Value.(*memoryEntry).data, true //nolint:errcheck // list only holds *memoryEntry
}

// Put stores data under key, evicting old blocks as needed. Blocks larger
// than the whole limit are not stored.
func (m *Memory) Put(key string, data []byte) {
	need := int64(len(data))
	if m.maxBytes > 0 && need > m.maxBytes {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		e := el.Value.(*memoryEntry) //nolint:errcheck // list only holds *memoryEntry
		m.size += need - int64(len(e.data))
		e.data = data
		m.order.MoveToFront(el)
	} else {
		m.items[key] = m.order.PushFront(&memoryEntry{key: key, data: data})
		m.size += need
	}

	for m.maxBytes > 0 && m.size > m.maxBytes {
		oldest := m.order.Back()
		e := oldest.Value.(*memoryEntry) //nolint:errcheck // list only holds *memoryEntry
		m.order.Remove(oldest)
		delete(m.items, e.key)
		m.size -= int64(len(e.data))
	}
}

// SizeBytes returns the bytes currently held.
func (m *Memory) SizeBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.size
}

// Len returns the number of blocks currently held.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.order.Len()
}
