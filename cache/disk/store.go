// Package disk provides a block Store that persists blocks as files, so a
// remote container stays cached across process runs.
package disk

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const (
	defaultShardPrefixLen = 2
	defaultDirPerm        = 0o700
)

// Store keeps each block in its own file under a root directory, sharded
// into subdirectories by key prefix. It is safe for concurrent use.
type Store struct {
	dir            string
	shardPrefixLen int
	dirPerm        os.FileMode
	maxBytes       int64
	bytes          atomic.Int64
	pruneMu        sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes sets the maximum size of stored blocks. When a new block
// would exceed it, the oldest blocks are pruned first. Values <= 0 disable
// the limit.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		s.maxBytes = n
	}
}

// WithShardPrefixLen sets the number of key characters used to name shard
// directories. Use 0 to disable sharding. Defaults to 2.
func WithShardPrefixLen(n int) Option {
	return func(s *Store) {
		s.shardPrefixLen = n
	}
}

// WithDirPerm sets the permissions of created directories.
func WithDirPerm(mode os.FileMode) Option {
	return func(s *Store) {
		s.dirPerm = mode
	}
}

// New opens or creates a Store rooted at dir. Blocks already present are
// counted towards the size limit.
func New(dir string, opts ...Option) (*Store, error) {
	if dir == "" {
		return nil, errors.New("disk cache: dir is empty")
	}
	s := &Store{
		dir:            dir,
		shardPrefixLen: defaultShardPrefixLen,
		dirPerm:        defaultDirPerm,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.shardPrefixLen < 0 {
		return nil, errors.New("disk cache: shard prefix length must be >= 0")
	}
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return nil, err
	}
	size, err := dirSize(dir)
	if err != nil {
		return nil, err
	}
	s.bytes.Store(size)
	return s, nil
}

// Get returns the block stored under key. Keys must be hex strings.
func (s *Store) Get(key string) ([]byte, bool) {
	path, ok := s.pathForKey(key)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is built from a validated hex key
	if err != nil {
		return nil, false
	}
	return data, true
}

// Put writes data under key. Failures are ignored: the block is simply
// fetched again next time.
func (s *Store) Put(key string, data []byte) {
	_ = s.write(key, data) //nolint:errcheck // cache writes are best-effort
}

// SizeBytes returns the current size of stored blocks.
func (s *Store) SizeBytes() int64 {
	return s.bytes.Load()
}

// Prune removes the oldest blocks until at most targetBytes remain and
// returns the number of bytes freed.
func (s *Store) Prune(targetBytes int64) (int64, error) {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	freed, remaining, err := pruneDir(s.dir, max(targetBytes, 0))
	if err != nil {
		return 0, err
	}
	s.bytes.Store(remaining)
	return freed, nil
}

func (s *Store) write(key string, data []byte) error {
	path, ok := s.pathForKey(key)
	if !ok || len(data) == 0 {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if ok, err := s.ensureCapacity(int64(len(data))); err != nil || !ok {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, s.dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "block-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	s.bytes.Add(int64(len(data)))
	return nil
}

// pathForKey maps a hex key to its file. Keys that are not lowercase hex
// are refused so they cannot escape the root.
func (s *Store) pathForKey(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	if s.shardPrefixLen <= 0 {
		return filepath.Join(s.dir, key), true
	}
	prefix := key[:min(s.shardPrefixLen, len(key))]
	return filepath.Join(s.dir, prefix, key), true
}

func (s *Store) ensureCapacity(need int64) (bool, error) {
	if s.maxBytes <= 0 {
		return true, nil
	}
	if need > s.maxBytes {
		return false, nil
	}
	if s.SizeBytes()+need <= s.maxBytes {
		return true, nil
	}
	if _, err := s.Prune(s.maxBytes - need); err != nil {
		return false, err
	}
	return s.SizeBytes()+need <= s.maxBytes, nil
}
