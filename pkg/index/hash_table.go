package index

import (
	"fmt"
	"sync"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// HashTable orchestrates search/insert/remove over a directory page and a
// dynamic population of bucket pages through a buffer pool, including split
// and merge (SPEC_FULL.md §4.6). All page access goes through bufferPool;
// the table never touches the disk manager directly.
type HashTable[K comparable, V comparable] struct {
	bufferPool      *storage.ParallelBufferPool
	directoryPageID storage.PageID
	cmp             Comparator[K]
	hashFn          HashFunc[K]
	codec           Codec[K, V]
	tableLatch      sync.RWMutex
}

// NewHashTable allocates a directory page and one bucket page (slot 0, local
// depth 0, global depth 0) and returns a ready-to-use table.
func NewHashTable[K comparable, V comparable](bp *storage.ParallelBufferPool, codec Codec[K, V], cmp Comparator[K], hashFn HashFunc[K]) (*HashTable[K, V], error) {
	if BucketArraySize(codec.KeySize(), codec.ValueSize()) <= 0 {
		return nil, ErrUnsupportedCodec
	}

	dirID, dirFrame, ok := bp.NewPage()
	if !ok {
		return nil, ErrBufferPoolExhausted
	}
	dir := NewDirectoryPage(dirFrame.Data[:])
	dir.Init(dirID)

	bucketID, bucketFrame, ok := bp.NewPage()
	if !ok {
		bp.UnpinPage(dirID, false)
		bp.DeletePage(dirID)
		return nil, ErrBufferPoolExhausted
	}
	bucket := NewBucketPage[K, V](bucketFrame.Data[:], codec)
	bucket.Reset()

	dir.SetLocalDepth(0, 0)
	dir.SetBucketPageID(0, bucketID)

	bp.UnpinPage(dirID, true)
	bp.UnpinPage(bucketID, false)

	return &HashTable[K, V]{
		bufferPool:      bp,
		directoryPageID: dirID,
		cmp:             cmp,
		hashFn:          hashFn,
		codec:           codec,
	}, nil
}

func (h *HashTable[K, V]) hash(key K) uint32 {
	return uint32(h.hashFn(key))
}

// keyToDirectoryIndex computes Hash(key) & dir.GlobalDepthMask().
func (h *HashTable[K, V]) keyToDirectoryIndex(key K, dir *DirectoryPage) int {
	return int(h.hash(key) & dir.GlobalDepthMask())
}

func (h *HashTable[K, V]) keyToPageID(key K, dir *DirectoryPage) storage.PageID {
	return dir.GetBucketPageID(h.keyToDirectoryIndex(key, dir))
}

func (h *HashTable[K, V]) fetchDirectory() *DirectoryPage {
	frame, ok := h.bufferPool.FetchPage(h.directoryPageID)
	if !ok {
		panic(fmt.Sprintf("hash index: directory page %d is not resident", h.directoryPageID))
	}
	return NewDirectoryPage(frame.Data[:])
}

func (h *HashTable[K, V]) fetchBucket(pageID storage.PageID) (*storage.Frame, *BucketPage[K, V]) {
	frame, ok := h.bufferPool.FetchPage(pageID)
	if !ok {
		panic(fmt.Sprintf("hash index: bucket page %d is not resident", pageID))
	}
	return frame, NewBucketPage[K, V](frame.Data[:], h.codec)
}

// GetValue returns every value stored under key.
func (h *HashTable[K, V]) GetValue(key K) []V {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir := h.fetchDirectory()
	bucketID := h.keyToPageID(key, dir)
	bucketFrame, bucket := h.fetchBucket(bucketID)

	bucketFrame.Latch.RLock()
	var out []V
	bucket.GetValue(key, h.cmp, &out)
	bucketFrame.Latch.RUnlock()

	h.bufferPool.UnpinPage(bucketID, false)
	h.bufferPool.UnpinPage(h.directoryPageID, false)
	return out
}

// Insert inserts (key, value), splitting the target bucket if it is full.
func (h *HashTable[K, V]) Insert(key K, value V) (bool, error) {
	h.tableLatch.RLock()

	dir := h.fetchDirectory()
	bucketID := h.keyToPageID(key, dir)
	bucketFrame, bucket := h.fetchBucket(bucketID)
	bucketFrame.Latch.Lock()

	if !bucket.IsFull() {
		ok := bucket.Insert(key, value, h.cmp)
		bucketFrame.Latch.Unlock()
		h.bufferPool.UnpinPage(bucketID, true)
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		h.tableLatch.RUnlock()
		return ok, nil
	}

	bucketFrame.Latch.Unlock()
	h.bufferPool.UnpinPage(bucketID, false)
	h.bufferPool.UnpinPage(h.directoryPageID, false)
	h.tableLatch.RUnlock()

	return h.splitInsert(key, value)
}

// splitInsert grows the directory/local-depth as needed, allocates a split
// image bucket, redistributes entries, and recursively retries the insert
// (SPEC_FULL.md §4.6 SplitInsert).
func (h *HashTable[K, V]) splitInsert(key K, value V) (bool, error) {
	h.tableLatch.Lock()

	dir := h.fetchDirectory()
	idx := h.keyToDirectoryIndex(key, dir)
	bucketID := dir.GetBucketPageID(idx)
	bucketFrame, bucket := h.fetchBucket(bucketID)

	if !bucket.IsFull() {
		// Concurrent remove made room before we acquired the write latch.
		bucketFrame.Latch.Lock()
		ok := bucket.Insert(key, value, h.cmp)
		bucketFrame.Latch.Unlock()
		h.bufferPool.UnpinPage(bucketID, true)
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		h.tableLatch.Unlock()
		return ok, nil
	}

	ld := dir.GetLocalDepth(idx)
	gd := uint8(dir.GlobalDepth())

	if ld < gd {
		dir.IncrLocalDepth(idx)
	} else {
		if dir.Size() > DirectoryArraySize/2 {
			h.bufferPool.UnpinPage(bucketID, false)
			h.bufferPool.UnpinPage(h.directoryPageID, false)
			h.tableLatch.Unlock()
			return false, ErrDirectoryFull
		}
		dir.IncrGlobalDepth()
		dir.IncrLocalDepth(idx)
	}
	ldNew := dir.GetLocalDepth(idx)

	newBucketID, newBucketFrame, ok := h.bufferPool.NewPage()
	if !ok {
		h.bufferPool.UnpinPage(bucketID, false)
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		h.tableLatch.Unlock()
		return false, ErrBufferPoolExhausted
	}
	newBucket := NewBucketPage[K, V](newBucketFrame.Data[:], h.codec)
	newBucket.Reset()

	// splitIdx's own stored local depth is still the pre-split value at this
	// point (mirrored from idx's old depth by IncrGlobalDepth, or untouched
	// if GD didn't grow), so LocalHighBit/LocalDepthMask on splitIdx would
	// read stale data. idx and splitIdx share every bit below the new local
	// depth's high bit by construction, so derive mask/step from ldNew
	// directly instead of from either slot's (possibly stale) stored depth.
	splitIdx := dir.SplitImageIndex(idx)
	mask := int(uint32(1)<<ldNew) - 1
	step := 1 << ldNew
	size := dir.Size()

	for j := splitIdx & mask; j < size; j += step {
		dir.SetBucketPageID(j, newBucketID)
		dir.SetLocalDepth(j, ldNew)
	}
	for j := idx & mask; j < size; j += step {
		dir.SetLocalDepth(j, ldNew)
	}

	bucketFrame.Latch.Lock()
	for i := 0; i < bucket.Size(); i++ {
		k, ok := bucket.KeyAt(i)
		if !ok {
			continue
		}
		v, _ := bucket.ValueAt(i)
		if h.keyToPageID(k, dir) != bucketID {
			newBucket.Insert(k, v, h.cmp)
			bucket.RemoveAt(i)
		}
	}
	bucketFrame.Latch.Unlock()

	h.bufferPool.UnpinPage(h.directoryPageID, true)
	h.bufferPool.UnpinPage(bucketID, true)
	h.bufferPool.UnpinPage(newBucketID, true)
	h.tableLatch.Unlock()

	return h.Insert(key, value)
}

// Remove deletes (key, value) and attempts to merge the emptied bucket.
func (h *HashTable[K, V]) Remove(key K, value V) bool {
	h.tableLatch.RLock()

	dir := h.fetchDirectory()
	bucketID := h.keyToPageID(key, dir)
	bucketFrame, bucket := h.fetchBucket(bucketID)

	bucketFrame.Latch.Lock()
	removed := bucket.Remove(key, value, h.cmp)
	bucketFrame.Latch.Unlock()

	h.bufferPool.UnpinPage(bucketID, removed)
	h.bufferPool.UnpinPage(h.directoryPageID, false)
	h.tableLatch.RUnlock()

	h.merge(key)
	return removed
}

// merge collapses an emptied bucket into its split image and shrinks the
// directory while possible (SPEC_FULL.md §4.6 Merge). It never recurses;
// further merges are discovered on subsequent removes.
func (h *HashTable[K, V]) merge(key K) {
	h.tableLatch.Lock()
	defer h.tableLatch.Unlock()

	dir := h.fetchDirectory()
	idx := h.keyToDirectoryIndex(key, dir)
	ld := dir.GetLocalDepth(idx)

	if ld == 0 {
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		return
	}

	bucketID := dir.GetBucketPageID(idx)
	bucketFrame, bucket := h.fetchBucket(bucketID)
	bucketFrame.Latch.RLock()
	empty := bucket.IsEmpty()
	bucketFrame.Latch.RUnlock()
	h.bufferPool.UnpinPage(bucketID, false)

	if !empty {
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		return
	}

	splitIdx := dir.SplitImageIndex(idx)
	if dir.GetLocalDepth(splitIdx) != ld {
		h.bufferPool.UnpinPage(h.directoryPageID, false)
		return
	}
	splitPage := dir.GetBucketPageID(splitIdx)

	h.bufferPool.DeletePage(bucketID)

	// Both families share depth ld; take mask and step before any
	// DecrLocalDepth changes the stored depths they are derived from.
	size := dir.Size()
	mask := int(dir.LocalDepthMask(idx))
	step := int(dir.LocalHighBit(idx)) << 1
	for j := idx & mask; j < size; j += step {
		dir.SetBucketPageID(j, splitPage)
		dir.DecrLocalDepth(j)
	}
	for j := splitIdx & mask; j < size; j += step {
		dir.DecrLocalDepth(j)
	}

	for dir.CanShrink() {
		dir.DecrGlobalDepth()
	}

	h.bufferPool.UnpinPage(h.directoryPageID, true)
}

// GlobalDepth returns the directory's current global depth.
func (h *HashTable[K, V]) GlobalDepth() uint32 {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir := h.fetchDirectory()
	gd := dir.GlobalDepth()
	h.bufferPool.UnpinPage(h.directoryPageID, false)
	return gd
}

// VerifyIntegrity checks the directory invariants; used by the tests.
func (h *HashTable[K, V]) VerifyIntegrity() error {
	h.tableLatch.RLock()
	defer h.tableLatch.RUnlock()

	dir := h.fetchDirectory()
	err := dir.VerifyIntegrity()
	h.bufferPool.UnpinPage(h.directoryPageID, false)
	return err
}
