package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// MetricsCollector collects real-time performance counters for the buffer
// pool and extendible hash index.
type MetricsCollector struct {
	// Buffer pool metrics
	pageFetches     uint64
	bufferPoolHits  uint64
	bufferPoolMiss  uint64
	pageEvictions   uint64
	pagesAllocated  uint64
	pagesDeleted    uint64
	flushesOK       uint64
	flushesFailed   uint64
	totalFetchTime  uint64 // in nanoseconds

	// Hash index metrics
	indexInserts      uint64
	indexInsertsFull  uint64 // returned false: duplicate pair, ErrDirectoryFull or ErrBufferPoolExhausted
	indexLookups      uint64
	indexRemoves      uint64
	bucketSplits      uint64
	bucketMerges      uint64
	directoryGrowths  uint64
	directoryShrinks  uint64

	mu          sync.RWMutex
	fetchTimings *TimingHistogram

	startTime time.Time
}

// TimingHistogram stores timing data in buckets for histogram generation,
// plus a bounded recent-sample window for percentile estimation.
type TimingHistogram struct {
	// Buckets: <1us, 1-10us, 10-100us, 100us-1ms, >1ms
	bucket0_1us    uint64
	bucket1_10us   uint64
	bucket10_100us uint64
	bucket100_1000us uint64
	bucket1000us   uint64

	mu               sync.Mutex
	recentTimings    []time.Duration
	maxRecentTimings int
}

// NewMetricsCollector creates a collector with the start time set to now.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		fetchTimings: NewTimingHistogram(1000),
		startTime:    time.Now(),
	}
}

// NewTimingHistogram creates a new timing histogram with the given recent-
// sample window size.
func NewTimingHistogram(maxRecent int) *TimingHistogram {
	return &TimingHistogram{
		recentTimings:    make([]time.Duration, 0, maxRecent),
		maxRecentTimings: maxRecent,
	}
}

// RecordFetch records a FetchPage/NewPage call's latency and whether it hit
// the page table (true) or required a victim selection plus disk read
// (false).
func (mc *MetricsCollector) RecordFetch(duration time.Duration, hit bool) {
	atomic.AddUint64(&mc.pageFetches, 1)
	if hit {
		atomic.AddUint64(&mc.bufferPoolHits, 1)
	} else {
		atomic.AddUint64(&mc.bufferPoolMiss, 1)
	}
	atomic.AddUint64(&mc.totalFetchTime, uint64(duration.Nanoseconds()))
	mc.fetchTimings.Record(duration)
}

// RecordEviction records a victim frame being written back and reused.
func (mc *MetricsCollector) RecordEviction() {
	atomic.AddUint64(&mc.pageEvictions, 1)
}

// RecordPageAllocated records a successful NewPage call.
func (mc *MetricsCollector) RecordPageAllocated() {
	atomic.AddUint64(&mc.pagesAllocated, 1)
}

// RecordPageDeleted records a successful DeletePage call.
func (mc *MetricsCollector) RecordPageDeleted() {
	atomic.AddUint64(&mc.pagesDeleted, 1)
}

// RecordFlush records the outcome of a FlushPage/FlushAllPages call.
func (mc *MetricsCollector) RecordFlush(success bool) {
	if success {
		atomic.AddUint64(&mc.flushesOK, 1)
	} else {
		atomic.AddUint64(&mc.flushesFailed, 1)
	}
}

// RecordInsert records a HashTable.Insert call outcome.
func (mc *MetricsCollector) RecordInsert(ok bool) {
	atomic.AddUint64(&mc.indexInserts, 1)
	if !ok {
		atomic.AddUint64(&mc.indexInsertsFull, 1)
	}
}

// RecordLookup records a HashTable.GetValue call.
func (mc *MetricsCollector) RecordLookup() {
	atomic.AddUint64(&mc.indexLookups, 1)
}

// RecordRemove records a HashTable.Remove call.
func (mc *MetricsCollector) RecordRemove() {
	atomic.AddUint64(&mc.indexRemoves, 1)
}

// RecordBucketSplit records a bucket page split during SplitInsert.
func (mc *MetricsCollector) RecordBucketSplit() {
	atomic.AddUint64(&mc.bucketSplits, 1)
}

// RecordBucketMerge records a bucket page merge during Remove.
func (mc *MetricsCollector) RecordBucketMerge() {
	atomic.AddUint64(&mc.bucketMerges, 1)
}

// RecordDirectoryGrowth records a directory doubling (IncrGlobalDepth).
func (mc *MetricsCollector) RecordDirectoryGrowth() {
	atomic.AddUint64(&mc.directoryGrowths, 1)
}

// RecordDirectoryShrink records a directory halving (DecrGlobalDepth).
func (mc *MetricsCollector) RecordDirectoryShrink() {
	atomic.AddUint64(&mc.directoryShrinks, 1)
}

// Record adds a timing sample to the histogram's buckets and recent window.
func (th *TimingHistogram) Record(duration time.Duration) {
	us := duration.Microseconds()
	switch {
	case us < 1:
		atomic.AddUint64(&th.bucket0_1us, 1)
	case us < 10:
		atomic.AddUint64(&th.bucket1_10us, 1)
	case us < 100:
		atomic.AddUint64(&th.bucket10_100us, 1)
	case us < 1000:
		atomic.AddUint64(&th.bucket100_1000us, 1)
	default:
		atomic.AddUint64(&th.bucket1000us, 1)
	}

	th.mu.Lock()
	defer th.mu.Unlock()
	if len(th.recentTimings) >= th.maxRecentTimings {
		th.recentTimings = th.recentTimings[1:]
	}
	th.recentTimings = append(th.recentTimings, duration)
}

// GetBuckets returns the histogram bucket counts.
func (th *TimingHistogram) GetBuckets() map[string]uint64 {
	return map[string]uint64{
		"0-1us":       atomic.LoadUint64(&th.bucket0_1us),
		"1-10us":      atomic.LoadUint64(&th.bucket1_10us),
		"10-100us":    atomic.LoadUint64(&th.bucket10_100us),
		"100-1000us":  atomic.LoadUint64(&th.bucket100_1000us),
		">1000us":     atomic.LoadUint64(&th.bucket1000us),
	}
}

// GetPercentiles calculates P50, P95, P99 from the recent sample window.
func (th *TimingHistogram) GetPercentiles() map[string]time.Duration {
	th.mu.Lock()
	defer th.mu.Unlock()

	if len(th.recentTimings) == 0 {
		return map[string]time.Duration{"p50": 0, "p95": 0, "p99": 0}
	}

	sorted := make([]time.Duration, len(th.recentTimings))
	copy(sorted, th.recentTimings)
	for i := 1; i < len(sorted); i++ {
		key := sorted[i]
		j := i - 1
		for j >= 0 && sorted[j] > key {
			sorted[j+1] = sorted[j]
			j--
		}
		sorted[j+1] = key
	}

	p50idx := len(sorted) * 50 / 100
	p95idx := len(sorted) * 95 / 100
	p99idx := len(sorted) * 99 / 100

	return map[string]time.Duration{
		"p50": sorted[p50idx],
		"p95": sorted[p95idx],
		"p99": sorted[p99idx],
	}
}

// GetMetrics returns a snapshot of all counters, suitable for JSON encoding.
func (mc *MetricsCollector) GetMetrics() map[string]interface{} {
	pageFetches := atomic.LoadUint64(&mc.pageFetches)
	bufferPoolHits := atomic.LoadUint64(&mc.bufferPoolHits)
	bufferPoolMiss := atomic.LoadUint64(&mc.bufferPoolMiss)
	totalFetchTime := atomic.LoadUint64(&mc.totalFetchTime)

	var hitRate, avgFetchTime float64
	if pageFetches > 0 {
		hitRate = float64(bufferPoolHits) / float64(pageFetches) * 100
		avgFetchTime = float64(totalFetchTime) / float64(pageFetches) / 1e3 // microseconds
	}

	uptime := time.Since(mc.startTime)

	return map[string]interface{}{
		"uptime_seconds": uptime.Seconds(),

		"buffer_pool": map[string]interface{}{
			"fetches":            pageFetches,
			"hits":               bufferPoolHits,
			"misses":             bufferPoolMiss,
			"hit_rate":           hitRate,
			"avg_fetch_time_us":  avgFetchTime,
			"evictions":          atomic.LoadUint64(&mc.pageEvictions),
			"pages_allocated":    atomic.LoadUint64(&mc.pagesAllocated),
			"pages_deleted":      atomic.LoadUint64(&mc.pagesDeleted),
			"flushes_ok":         atomic.LoadUint64(&mc.flushesOK),
			"flushes_failed":     atomic.LoadUint64(&mc.flushesFailed),
			"timing_histogram":   mc.fetchTimings.GetBuckets(),
			"timing_percentiles": mc.fetchTimings.GetPercentiles(),
		},

		"hash_index": map[string]interface{}{
			"inserts":           atomic.LoadUint64(&mc.indexInserts),
			"inserts_refused":   atomic.LoadUint64(&mc.indexInsertsFull),
			"lookups":           atomic.LoadUint64(&mc.indexLookups),
			"removes":           atomic.LoadUint64(&mc.indexRemoves),
			"bucket_splits":     atomic.LoadUint64(&mc.bucketSplits),
			"bucket_merges":     atomic.LoadUint64(&mc.bucketMerges),
			"directory_growths": atomic.LoadUint64(&mc.directoryGrowths),
			"directory_shrinks": atomic.LoadUint64(&mc.directoryShrinks),
		},
	}
}

// Reset zeroes all counters and restarts the uptime clock. Does not reset
// gauges that reflect current buffer pool state (those live in storage.Store
// itself).
func (mc *MetricsCollector) Reset() {
	atomic.StoreUint64(&mc.pageFetches, 0)
	atomic.StoreUint64(&mc.bufferPoolHits, 0)
	atomic.StoreUint64(&mc.bufferPoolMiss, 0)
	atomic.StoreUint64(&mc.pageEvictions, 0)
	atomic.StoreUint64(&mc.pagesAllocated, 0)
	atomic.StoreUint64(&mc.pagesDeleted, 0)
	atomic.StoreUint64(&mc.flushesOK, 0)
	atomic.StoreUint64(&mc.flushesFailed, 0)
	atomic.StoreUint64(&mc.totalFetchTime, 0)

	atomic.StoreUint64(&mc.indexInserts, 0)
	atomic.StoreUint64(&mc.indexInsertsFull, 0)
	atomic.StoreUint64(&mc.indexLookups, 0)
	atomic.StoreUint64(&mc.indexRemoves, 0)
	atomic.StoreUint64(&mc.bucketSplits, 0)
	atomic.StoreUint64(&mc.bucketMerges, 0)
	atomic.StoreUint64(&mc.directoryGrowths, 0)
	atomic.StoreUint64(&mc.directoryShrinks, 0)

	mc.mu.Lock()
	mc.fetchTimings = NewTimingHistogram(1000)
	mc.mu.Unlock()

	mc.startTime = time.Now()
}
