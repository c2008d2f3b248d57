package index

import (
	"path/filepath"
	"testing"

	"github.com/mnohosten/laura-db/pkg/storage"
)

func newTestBufferPool(t *testing.T, poolSize int) *storage.ParallelBufferPool {
	t.Helper()
	dir := t.TempDir()
	dm, err := storage.NewFileDiskManager(filepath.Join(dir, "data.db"))
	if err != nil {
		t.Fatalf("NewFileDiskManager: %v", err)
	}
	t.Cleanup(func() { dm.Close() })
	return storage.NewParallelBufferPool(poolSize, 1, dm)
}

func newTestTable(t *testing.T, poolSize int) *HashTable[uint64, uint64] {
	t.Helper()
	bp := newTestBufferPool(t, poolSize)
	table, err := NewHashTable[uint64, uint64](bp, Uint64Codec{}, Uint64Comparator, Uint64Hash)
	if err != nil {
		t.Fatalf("NewHashTable: %v", err)
	}
	return table
}

func TestHashTableInsertAndGetValue(t *testing.T) {
	table := newTestTable(t, 64)

	ok, err := table.Insert(42, 7)
	if err != nil || !ok {
		t.Fatalf("Insert(42, 7) = %v, %v; want true, nil", ok, err)
	}

	values := table.GetValue(42)
	if len(values) != 1 || values[0] != 7 {
		t.Fatalf("GetValue(42) = %v, want [7]", values)
	}

	if values := table.GetValue(99); len(values) != 0 {
		t.Fatalf("GetValue(99) = %v, want empty", values)
	}
}

func TestHashTableDuplicateInsertIsIdempotent(t *testing.T) {
	table := newTestTable(t, 64)

	ok, err := table.Insert(1, 100)
	if err != nil || !ok {
		t.Fatalf("first Insert(1, 100) = %v, %v; want true, nil", ok, err)
	}

	ok, err = table.Insert(1, 100)
	if err != nil {
		t.Fatalf("duplicate Insert(1, 100) returned error: %v", err)
	}
	if ok {
		t.Fatalf("duplicate Insert(1, 100) = true, want false (already present)")
	}

	if values := table.GetValue(1); len(values) != 1 {
		t.Fatalf("GetValue(1) = %v, want exactly one entry", values)
	}
}

func TestHashTableMultipleValuesPerKey(t *testing.T) {
	table := newTestTable(t, 64)

	for _, v := range []uint64{10, 20, 30} {
		if ok, err := table.Insert(5, v); err != nil || !ok {
			t.Fatalf("Insert(5, %d) = %v, %v; want true, nil", v, ok, err)
		}
	}

	values := table.GetValue(5)
	if len(values) != 3 {
		t.Fatalf("GetValue(5) = %v, want 3 entries", values)
	}
	seen := map[uint64]bool{}
	for _, v := range values {
		seen[v] = true
	}
	for _, want := range []uint64{10, 20, 30} {
		if !seen[want] {
			t.Fatalf("GetValue(5) missing value %d, got %v", want, values)
		}
	}
}

// TestHashTableSplitGrowsDirectory forces enough inserts into a small pool
// to overflow bucket 0's capacity, triggering a split (and, if necessary, a
// directory growth). The global depth must end up above zero and every
// inserted key must remain retrievable afterward.
func TestHashTableSplitGrowsDirectory(t *testing.T) {
	table := newTestTable(t, 256)

	const n = 2000
	for i := uint64(0); i < n; i++ {
		ok, err := table.Insert(i, i*2)
		if err != nil {
			t.Fatalf("Insert(%d): unexpected error: %v", i, err)
		}
		if !ok {
			t.Fatalf("Insert(%d): expected success", i)
		}
	}

	if gd := table.GlobalDepth(); gd == 0 {
		t.Fatalf("GlobalDepth() = 0 after %d inserts, want > 0", n)
	}

	for i := uint64(0); i < n; i++ {
		values := table.GetValue(i)
		if len(values) != 1 || values[0] != i*2 {
			t.Fatalf("GetValue(%d) = %v, want [%d]", i, values, i*2)
		}
	}

	if err := table.VerifyIntegrity(); err != nil {
		t.Fatalf("VerifyIntegrity() after split growth: %v", err)
	}
}

// TestHashTableMergeShrinksDirectory grows the directory via inserts, then
// removes everything back out. The directory should shrink back down and
// every removed key must report no remaining values.
func TestHashTableMergeShrinksDirectory(t *testing.T) {
	table := newTestTable(t, 256)

	const n = 2000
	for i := uint64(0); i < n; i++ {
		if _, err := table.Insert(i, i); err != nil {
			t.Fatalf("Insert(%d): unexpected error: %v", i, err)
		}
	}

	grownDepth := table.GlobalDepth()
	if grownDepth == 0 {
		t.Fatalf("GlobalDepth() = 0 after growth phase, want > 0")
	}

	for i := uint64(0); i < n; i++ {
		if removed := table.Remove(i, i); !removed {
			t.Fatalf("Remove(%d, %d) = false, want true", i, i)
		}
	}

	finalDepth := table.GlobalDepth()
	if finalDepth >= grownDepth {
		t.Fatalf("GlobalDepth() = %d after removing everything, want < %d (grown depth)", finalDepth, grownDepth)
	}

	for i := uint64(0); i < n; i++ {
		if values := table.GetValue(i); len(values) != 0 {
			t.Fatalf("GetValue(%d) = %v after removal, want empty", i, values)
		}
	}

	if err := table.VerifyIntegrity(); err != nil {
		t.Fatalf("VerifyIntegrity() after merge shrink: %v", err)
	}
}

func TestHashTableRemoveMissingEntryIsNoop(t *testing.T) {
	table := newTestTable(t, 64)

	if _, err := table.Insert(1, 1); err != nil {
		t.Fatalf("Insert(1, 1): %v", err)
	}

	if removed := table.Remove(1, 2); removed {
		t.Fatalf("Remove(1, 2) = true, want false (value 2 was never inserted)")
	}
	if removed := table.Remove(2, 1); removed {
		t.Fatalf("Remove(2, 1) = true, want false (key 2 was never inserted)")
	}

	if values := table.GetValue(1); len(values) != 1 || values[0] != 1 {
		t.Fatalf("GetValue(1) = %v after no-op removes, want [1]", values)
	}
}
