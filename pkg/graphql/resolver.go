package graphql

import (
	"fmt"

	"github.com/graphql-go/graphql"
	"github.com/mnohosten/laura-db/pkg/index"
	"github.com/mnohosten/laura-db/pkg/metrics"
)

// Resolver implements the GraphQL field resolvers over a running hash index
// and its metrics collector.
type Resolver struct {
	table      *index.HashTable[uint64, uint64]
	collector  *metrics.MetricsCollector
}

// NewResolver builds a Resolver bound to table and collector.
func NewResolver(table *index.HashTable[uint64, uint64], collector *metrics.MetricsCollector) *Resolver {
	return &Resolver{table: table, collector: collector}
}

func argUint64(p graphql.ResolveParams, name string) (uint64, error) {
	raw, ok := p.Args[name]
	if !ok {
		return 0, fmt.Errorf("missing argument %q", name)
	}
	n, ok := raw.(int)
	if !ok {
		return 0, fmt.Errorf("argument %q must be an integer", name)
	}
	if n < 0 {
		return 0, fmt.Errorf("argument %q must be non-negative", name)
	}
	return uint64(n), nil
}

// Lookup resolves Query.lookup(key): [Int!].
func (r *Resolver) Lookup(p graphql.ResolveParams) (interface{}, error) {
	key, err := argUint64(p, "key")
	if err != nil {
		return nil, err
	}
	r.collector.RecordLookup()
	values := r.table.GetValue(key)
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out, nil
}

// Insert resolves Mutation.insert(key, value): Boolean.
func (r *Resolver) Insert(p graphql.ResolveParams) (interface{}, error) {
	key, err := argUint64(p, "key")
	if err != nil {
		return nil, err
	}
	value, err := argUint64(p, "value")
	if err != nil {
		return nil, err
	}
	ok, err := r.table.Insert(key, value)
	r.collector.RecordInsert(ok)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Remove resolves Mutation.remove(key, value): Boolean.
func (r *Resolver) Remove(p graphql.ResolveParams) (interface{}, error) {
	key, err := argUint64(p, "key")
	if err != nil {
		return nil, err
	}
	value, err := argUint64(p, "value")
	if err != nil {
		return nil, err
	}
	r.collector.RecordRemove()
	return r.table.Remove(key, value), nil
}

// Stats resolves Query.stats: IndexStats.
func (r *Resolver) Stats(p graphql.ResolveParams) (interface{}, error) {
	snapshot := r.collector.GetMetrics()
	bufferPool, _ := snapshot["buffer_pool"].(map[string]interface{})
	hashIndex, _ := snapshot["hash_index"].(map[string]interface{})

	return map[string]interface{}{
		"globalDepth":      int(r.table.GlobalDepth()),
		"pageFetches":      asInt(bufferPool["fetches"]),
		"bufferPoolHits":   asInt(bufferPool["hits"]),
		"bufferPoolMisses": asInt(bufferPool["misses"]),
		"bucketSplits":     asInt(hashIndex["bucket_splits"]),
		"bucketMerges":     asInt(hashIndex["bucket_merges"]),
		"directoryGrowths": asInt(hashIndex["directory_growths"]),
		"directoryShrinks": asInt(hashIndex["directory_shrinks"]),
	}, nil
}

func asInt(v interface{}) int {
	if u, ok := v.(uint64); ok {
		return int(u)
	}
	return 0
}
