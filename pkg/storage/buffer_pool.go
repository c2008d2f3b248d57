package storage

import "sync"

// BufferPoolInstance owns a fixed array of frames for one shard of the
// global page space and implements fetch/new/unpin/flush/delete with
// pin-count discipline (SPEC_FULL.md §4.2). One coarse instance latch
// protects the page table, free list, replacer, and per-frame metadata for
// the duration of each public operation; the per-frame reader/writer latch
// is separate and is taken by callers on the returned *Frame.
type BufferPoolInstance struct {
	mu            sync.Mutex
	frames        []*Frame
	pageTable     map[PageID]FrameID
	freeList      []FrameID
	replacer      *LRUReplacer
	diskMgr       DiskManager
	nextPageID    PageID
	numInstances  int
	instanceIndex int

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewBufferPoolInstance creates a shard of poolSize frames. instanceIndex
// seeds the id counter so minted page ids satisfy
// page_id mod numInstances == instanceIndex.
func NewBufferPoolInstance(poolSize, numInstances, instanceIndex int, diskMgr DiskManager) *BufferPoolInstance {
	frames := make([]*Frame, poolSize)
	freeList := make([]FrameID, poolSize)
	for i := range frames {
		frames[i] = newFrame()
		freeList[i] = FrameID(i)
	}

	return &BufferPoolInstance{
		frames:        frames,
		pageTable:     make(map[PageID]FrameID, poolSize),
		freeList:      freeList,
		replacer:      NewLRUReplacer(poolSize),
		diskMgr:       diskMgr,
		nextPageID:    PageID(instanceIndex),
		numInstances:  numInstances,
		instanceIndex: instanceIndex,
	}
}

// findVictim selects a victim frame, preferring the free list over the
// replacer. Must be called with mu held.
func (bp *BufferPoolInstance) findVictim() (FrameID, bool) {
	if n := len(bp.freeList); n > 0 {
		id := bp.freeList[n-1]
		bp.freeList = bp.freeList[:n-1]
		return id, true
	}
	id, ok := bp.replacer.Victim()
	if ok {
		bp.evictions++
	}
	return id, ok
}

// prepareVictim writes back a dirty victim, removes its old page-table
// entry, and returns the frame ready to be repurposed. Must be called with
// mu held.
func (bp *BufferPoolInstance) prepareVictim() (*Frame, FrameID, bool) {
	id, ok := bp.findVictim()
	if !ok {
		return nil, 0, false
	}

	frame := bp.frames[id]
	if frame.PageID != InvalidPageID {
		if frame.Dirty {
			_ = bp.diskMgr.WritePage(frame.PageID, frame.Data[:])
		}
		delete(bp.pageTable, frame.PageID)
	}
	return frame, id, true
}

// NewPage allocates a fresh page id, materializes a zeroed page on disk, and
// returns a pinned handle to it.
func (bp *BufferPoolInstance) NewPage() (PageID, *Frame, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	frame, id, ok := bp.prepareVictim()
	if !ok {
		return InvalidPageID, nil, false
	}

	pageID := bp.nextPageID
	bp.nextPageID += PageID(bp.numInstances)

	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1
	bp.pageTable[pageID] = id
	bp.replacer.Pin(id)

	// Write the zeroed page through so a subsequent fetch after eviction
	// observes zeros (round-trip law R4).
	_ = bp.diskMgr.WritePage(pageID, frame.Data[:])

	return pageID, frame, true
}

// FetchPage returns a pinned handle to pageID, reading it from disk if it
// is not already resident.
func (bp *BufferPoolInstance) FetchPage(pageID PageID) (*Frame, bool) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if id, ok := bp.pageTable[pageID]; ok {
		frame := bp.frames[id]
		if frame.PinCount == 0 {
			bp.replacer.Pin(id)
		}
		frame.PinCount++
		bp.hits++
		return frame, true
	}

	bp.misses++
	frame, id, ok := bp.prepareVictim()
	if !ok {
		return nil, false
	}

	frame.reset()
	frame.PageID = pageID
	frame.PinCount = 1
	if err := bp.diskMgr.ReadPage(pageID, frame.Data[:]); err != nil {
		// Invariant violation: the disk manager contract guarantees a zero
		// page for never-written ids; any other failure is a bug.
		panic(err)
	}
	bp.pageTable[pageID] = id
	bp.replacer.Pin(id)

	return frame, true
}

// UnpinPage releases one pin on pageID. The dirty flag is sticky: it is
// OR'd with isDirty and never cleared here.
func (bp *BufferPoolInstance) UnpinPage(pageID PageID, isDirty bool) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	id, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	frame := bp.frames[id]
	if frame.PinCount == 0 {
		return false
	}

	frame.Dirty = frame.Dirty || isDirty
	frame.PinCount--
	if frame.PinCount == 0 {
		bp.replacer.Unpin(id)
	}
	return true
}

// FlushPage writes pageID's frame to disk and clears its dirty flag.
func (bp *BufferPoolInstance) FlushPage(pageID PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	id, ok := bp.pageTable[pageID]
	if !ok {
		return false
	}
	frame := bp.frames[id]
	if err := bp.diskMgr.WritePage(pageID, frame.Data[:]); err != nil {
		return false
	}
	frame.Dirty = false
	return true
}

// FlushAllPages writes every resident frame to disk.
func (bp *BufferPoolInstance) FlushAllPages() {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	for pageID, id := range bp.pageTable {
		frame := bp.frames[id]
		if err := bp.diskMgr.WritePage(pageID, frame.Data[:]); err == nil {
			frame.Dirty = false
		}
	}
}

// DeletePage removes pageID from the buffer pool and returns its frame to
// the free list. Returns true if pageID is not resident (already absent) or
// was successfully deleted; false if it is still pinned.
func (bp *BufferPoolInstance) DeletePage(pageID PageID) bool {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	id, ok := bp.pageTable[pageID]
	if !ok {
		return true
	}
	frame := bp.frames[id]
	if frame.PinCount > 0 {
		return false
	}

	if frame.Dirty {
		_ = bp.diskMgr.WritePage(pageID, frame.Data[:])
	}
	delete(bp.pageTable, pageID)
	bp.replacer.Pin(id) // no-op if frame was never a replacer member
	frame.reset()
	bp.freeList = append(bp.freeList, id)

	_ = bp.diskMgr.DeallocatePage(pageID)
	return true
}

// Stats reports hit/miss/eviction counters for diagnostics endpoints.
func (bp *BufferPoolInstance) Stats() map[string]interface{} {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	return map[string]interface{}{
		"pool_size":      len(bp.frames),
		"resident_pages": len(bp.pageTable),
		"free_frames":    len(bp.freeList),
		"replacer_size":  bp.replacer.Size(),
		"hits":           bp.hits,
		"misses":         bp.misses,
		"evictions":      bp.evictions,
	}
}
