package metrics

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// PrometheusExporter exports buffer pool and hash index metrics in
// Prometheus text exposition format.
type PrometheusExporter struct {
	collector *MetricsCollector
	namespace string
}

// NewPrometheusExporter creates an exporter with the "laura_db" namespace.
func NewPrometheusExporter(collector *MetricsCollector) *PrometheusExporter {
	return &PrometheusExporter{
		collector: collector,
		namespace: "laura_db",
	}
}

// SetNamespace overrides the metric name prefix.
func (pe *PrometheusExporter) SetNamespace(namespace string) {
	pe.namespace = namespace
}

// WriteMetrics writes all metrics in Prometheus text format.
func (pe *PrometheusExporter) WriteMetrics(w io.Writer) error {
	c := pe.collector

	if err := pe.writeGauge(w, "uptime_seconds", "Process uptime in seconds", time.Since(c.startTime).Seconds()); err != nil {
		return err
	}

	pageFetches := atomic.LoadUint64(&c.pageFetches)
	bufferPoolHits := atomic.LoadUint64(&c.bufferPoolHits)
	bufferPoolMiss := atomic.LoadUint64(&c.bufferPoolMiss)

	if err := pe.writeCounter(w, "page_fetches_total", "Total FetchPage/NewPage calls", pageFetches); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_hits_total", "Page table hits", bufferPoolHits); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "buffer_pool_misses_total", "Page table misses requiring a disk read", bufferPoolMiss); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "page_evictions_total", "Victim frames written back and reused", atomic.LoadUint64(&c.pageEvictions)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "pages_allocated_total", "Successful NewPage calls", atomic.LoadUint64(&c.pagesAllocated)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "pages_deleted_total", "Successful DeletePage calls", atomic.LoadUint64(&c.pagesDeleted)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "flushes_ok_total", "Successful page flushes", atomic.LoadUint64(&c.flushesOK)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "flushes_failed_total", "Flushes that found a non-resident page", atomic.LoadUint64(&c.flushesFailed)); err != nil {
		return err
	}

	if err := pe.writeHistogram(w, "fetch_duration_seconds", "FetchPage/NewPage latency histogram", c.fetchTimings); err != nil {
		return err
	}
	if err := pe.writePercentiles(w, "fetch_duration_seconds", c.fetchTimings); err != nil {
		return err
	}

	if err := pe.writeCounter(w, "index_inserts_total", "Total hash index Insert calls", atomic.LoadUint64(&c.indexInserts)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "index_inserts_refused_total", "Insert calls that returned false (duplicate pair, directory or buffer pool exhausted)", atomic.LoadUint64(&c.indexInsertsFull)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "index_lookups_total", "Total hash index GetValue calls", atomic.LoadUint64(&c.indexLookups)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "index_removes_total", "Total hash index Remove calls", atomic.LoadUint64(&c.indexRemoves)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "bucket_splits_total", "Bucket page splits", atomic.LoadUint64(&c.bucketSplits)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "bucket_merges_total", "Bucket page merges", atomic.LoadUint64(&c.bucketMerges)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "directory_growths_total", "Directory doublings (IncrGlobalDepth)", atomic.LoadUint64(&c.directoryGrowths)); err != nil {
		return err
	}
	if err := pe.writeCounter(w, "directory_shrinks_total", "Directory halvings (DecrGlobalDepth)", atomic.LoadUint64(&c.directoryShrinks)); err != nil {
		return err
	}

	return nil
}

func (pe *PrometheusExporter) writeCounter(w io.Writer, name, help string, value uint64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeGauge(w io.Writer, name, help string, value float64) error {
	metricName := pe.namespace + "_" + name
	_, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %g\n",
		metricName, help, metricName, metricName, value)
	return err
}

func (pe *PrometheusExporter) writeHistogram(w io.Writer, name, help string, th *TimingHistogram) error {
	metricName := pe.namespace + "_" + name
	if _, err := fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s histogram\n", metricName, help, metricName); err != nil {
		return err
	}

	buckets := th.GetBuckets()
	var cumulative uint64

	for _, b := range []struct {
		key string
		le  string
	}{
		{"0-1us", "0.000001"},
		{"1-10us", "0.00001"},
		{"10-100us", "0.0001"},
		{"100-1000us", "0.001"},
		{">1000us", "+Inf"},
	} {
		cumulative += buckets[b.key]
		if _, err := fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", metricName, b.le, cumulative); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "%s_count %d\n", metricName, cumulative)
	return err
}

func (pe *PrometheusExporter) writePercentiles(w io.Writer, baseName string, th *TimingHistogram) error {
	percentiles := th.GetPercentiles()
	for _, p := range []string{"p50", "p95", "p99"} {
		if err := pe.writeGauge(w, baseName+"_"+p,
			fmt.Sprintf("%s of %s", p, baseName),
			percentiles[p].Seconds()); err != nil {
			return err
		}
	}
	return nil
}
