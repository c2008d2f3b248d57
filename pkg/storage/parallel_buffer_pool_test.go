package storage

import "testing"

func TestParallelBufferPoolShardRouting(t *testing.T) {
	dm := newTestDiskManager(t)
	pp := NewParallelBufferPool(10, 4, dm)

	var ids []PageID
	for i := 0; i < 10; i++ {
		id, _, ok := pp.NewPage()
		if !ok {
			t.Fatalf("NewPage %d: expected success", i)
		}
		ids = append(ids, id)
		pp.UnpinPage(id, false)
	}

	want := []int{0, 1, 2, 3, 0, 1, 2, 3, 0, 1}
	for i, id := range ids {
		if got := int(id) % 4; got != want[i] {
			t.Fatalf("id %d residue = %d, want %d", i, got, want[i])
		}
	}
}

func TestParallelBufferPoolDisjointShardsIndependent(t *testing.T) {
	dm := newTestDiskManager(t)
	pp := NewParallelBufferPool(1, 2, dm)

	idA, _, ok := pp.NewPage()
	if !ok {
		t.Fatalf("NewPage on shard A: expected success")
	}
	idB, _, ok := pp.NewPage()
	if !ok {
		t.Fatalf("NewPage on shard B: expected success")
	}
	if idA%2 == idB%2 {
		t.Fatalf("expected ids on different shards, got %d and %d", idA, idB)
	}

	// Both shards are saturated (capacity 1 each, both pinned); a third
	// allocation on either shard must fail without affecting the other.
	if _, _, ok := pp.NewPage(); ok {
		t.Fatalf("expected failure: both shards saturated")
	}

	pp.UnpinPage(idA, false)
	if _, ok := pp.FetchPage(idB); !ok {
		t.Fatalf("shard B should be unaffected by shard A's saturation")
	}
}
