package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Config holds storage-layer configuration: where the backing file lives
// and how the page cache is sharded.
type Config struct {
	DataDir           string
	PoolSizePerShard  int // frames per buffer pool instance
	NumShards         int // parallel buffer pool instance count
}

// DefaultConfig returns sensible defaults: a single 1000-frame shard
// (~4MB), matching the teacher's default buffer pool sizing.
func DefaultConfig(dataDir string) *Config {
	return &Config{
		DataDir:          dataDir,
		PoolSizePerShard: 1000,
		NumShards:        1,
	}
}

// Store bundles a disk manager and its parallel buffer pool: the two pieces
// every higher layer (the hash index, the admin server) needs a handle to.
type Store struct {
	DiskMgr    *FileDiskManager
	BufferPool *ParallelBufferPool
	dataDir    string
}

// Open creates the data directory if needed, opens the backing file, and
// wires up the parallel buffer pool described by config.
func Open(config *Config) (*Store, error) {
	if err := os.MkdirAll(config.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dataPath := filepath.Join(config.DataDir, "data.db")
	diskMgr, err := NewFileDiskManager(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk manager: %w", err)
	}

	numShards := config.NumShards
	if numShards < 1 {
		numShards = 1
	}

	return &Store{
		DiskMgr:    diskMgr,
		BufferPool: NewParallelBufferPool(config.PoolSizePerShard, numShards, diskMgr),
		dataDir:    config.DataDir,
	}, nil
}

// Close flushes every resident page and closes the backing file.
func (s *Store) Close() error {
	s.BufferPool.FlushAllPages()
	return s.DiskMgr.Close()
}

// Stats reports buffer pool and disk statistics for diagnostics endpoints.
func (s *Store) Stats() map[string]interface{} {
	return map[string]interface{}{
		"buffer_pool": s.BufferPool.Stats(),
		"disk":        s.DiskMgr.Stats(),
	}
}
