package storage

import "sync"

// ParallelBufferPool statically shards the global page-id space across N
// buffer pool instances, routed by page_id mod numInstances, so that
// fetch/unpin/flush/delete on disjoint shards never contend on the same
// lock (SPEC_FULL.md §4.3).
type ParallelBufferPool struct {
	instances []*BufferPoolInstance

	mu       sync.Mutex
	startIdx int
}

// NewParallelBufferPool creates numInstances shards, each with capacity
// poolSize, all backed by diskMgr.
func NewParallelBufferPool(poolSize, numInstances int, diskMgr DiskManager) *ParallelBufferPool {
	instances := make([]*BufferPoolInstance, numInstances)
	for i := range instances {
		instances[i] = NewBufferPoolInstance(poolSize, numInstances, i, diskMgr)
	}
	return &ParallelBufferPool{instances: instances}
}

func (p *ParallelBufferPool) instanceFor(pageID PageID) *BufferPoolInstance {
	return p.instances[int(pageID)%len(p.instances)]
}

// NewPage tries each shard in round-robin order starting from startIdx,
// advancing startIdx after every call (success or failure) to spread
// allocation load and avoid starving cold shards.
func (p *ParallelBufferPool) NewPage() (PageID, *Frame, bool) {
	p.mu.Lock()
	start := p.startIdx
	p.startIdx = (p.startIdx + 1) % len(p.instances)
	p.mu.Unlock()

	n := len(p.instances)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if pageID, frame, ok := p.instances[idx].NewPage(); ok {
			return pageID, frame, true
		}
	}
	return InvalidPageID, nil, false
}

// FetchPage delegates to the shard owning pageID.
func (p *ParallelBufferPool) FetchPage(pageID PageID) (*Frame, bool) {
	return p.instanceFor(pageID).FetchPage(pageID)
}

// UnpinPage delegates to the shard owning pageID.
func (p *ParallelBufferPool) UnpinPage(pageID PageID, isDirty bool) bool {
	return p.instanceFor(pageID).UnpinPage(pageID, isDirty)
}

// FlushPage delegates to the shard owning pageID.
func (p *ParallelBufferPool) FlushPage(pageID PageID) bool {
	return p.instanceFor(pageID).FlushPage(pageID)
}

// DeletePage delegates to the shard owning pageID.
func (p *ParallelBufferPool) DeletePage(pageID PageID) bool {
	return p.instanceFor(pageID).DeletePage(pageID)
}

// FlushAllPages flushes every shard.
func (p *ParallelBufferPool) FlushAllPages() {
	for _, inst := range p.instances {
		inst.FlushAllPages()
	}
}

// NumInstances returns the shard count.
func (p *ParallelBufferPool) NumInstances() int {
	return len(p.instances)
}

// Stats aggregates per-shard statistics for diagnostics endpoints.
func (p *ParallelBufferPool) Stats() map[string]interface{} {
	shards := make([]map[string]interface{}, len(p.instances))
	for i, inst := range p.instances {
		shards[i] = inst.Stats()
	}
	return map[string]interface{}{
		"num_instances": len(p.instances),
		"shards":        shards,
	}
}
