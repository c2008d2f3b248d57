package index

import "github.com/mnohosten/laura-db/pkg/storage"

// BucketArraySize computes the slot capacity for a bucket page given a
// codec's (key, value) byte widths, the largest N such that
// 2*ceil(N/8) + N*slotSize <= PageSize (SPEC_FULL.md §4.4). It returns 0 if
// no positive capacity fits, which callers must treat as ErrUnsupportedCodec.
func BucketArraySize(keySize, valueSize int) int {
	slotSize := keySize + valueSize
	if slotSize <= 0 {
		return 0
	}
	n := storage.PageSize / slotSize
	for n > 0 {
		bitmapBytes := 2 * ((n + 7) / 8)
		if bitmapBytes+n*slotSize <= storage.PageSize {
			return n
		}
		n--
	}
	return 0
}

// BucketPage is a self-contained view over a frame's byte image: two
// bitmaps (occupied, readable) followed by an array of (key, value) slots
// (SPEC_FULL.md §4.4). It performs no buffer-pool interaction itself.
type BucketPage[K comparable, V comparable] struct {
	buf       []byte
	arraySize int
	codec     Codec[K, V]
	bitmapLen int
}

// NewBucketPage wraps buf (a frame's full PageSize byte slice) as a bucket
// page view for the given codec.
func NewBucketPage[K comparable, V comparable](buf []byte, codec Codec[K, V]) *BucketPage[K, V] {
	n := BucketArraySize(codec.KeySize(), codec.ValueSize())
	return &BucketPage[K, V]{
		buf:       buf,
		arraySize: n,
		codec:     codec,
		bitmapLen: (n + 7) / 8,
	}
}

// Size returns the bucket's slot capacity (BucketArraySize).
func (b *BucketPage[K, V]) Size() int { return b.arraySize }

func (b *BucketPage[K, V]) occupiedBitmap() []byte { return b.buf[0:b.bitmapLen] }
func (b *BucketPage[K, V]) readableBitmap() []byte {
	return b.buf[b.bitmapLen : 2*b.bitmapLen]
}

func (b *BucketPage[K, V]) slotOffset(i int) int {
	slotSize := b.codec.KeySize() + b.codec.ValueSize()
	return 2*b.bitmapLen + i*slotSize
}

// IsOccupied reports whether slot i has ever been written.
func (b *BucketPage[K, V]) IsOccupied(i int) bool {
	bm := b.occupiedBitmap()
	return bm[i/8]&(1<<uint(i%8)) != 0
}

// SetOccupied marks slot i as written.
func (b *BucketPage[K, V]) SetOccupied(i int) {
	bm := b.occupiedBitmap()
	bm[i/8] |= 1 << uint(i%8)
}

// IsReadable reports whether slot i holds a live (non-tombstone) entry.
func (b *BucketPage[K, V]) IsReadable(i int) bool {
	bm := b.readableBitmap()
	return bm[i/8]&(1<<uint(i%8)) != 0
}

// SetReadable marks slot i as live.
func (b *BucketPage[K, V]) SetReadable(i int) {
	bm := b.readableBitmap()
	bm[i/8] |= 1 << uint(i%8)
}

// ClearReadable turns slot i into a tombstone without clearing occupied.
func (b *BucketPage[K, V]) ClearReadable(i int) {
	bm := b.readableBitmap()
	bm[i/8] &^= 1 << uint(i%8)
}

// KeyAt returns the key stored at slot i if readable.
func (b *BucketPage[K, V]) KeyAt(i int) (K, bool) {
	if !b.IsReadable(i) {
		var zero K
		return zero, false
	}
	off := b.slotOffset(i)
	return b.codec.DecodeKey(b.buf[off : off+b.codec.KeySize()]), true
}

// ValueAt returns the value stored at slot i if readable.
func (b *BucketPage[K, V]) ValueAt(i int) (V, bool) {
	if !b.IsReadable(i) {
		var zero V
		return zero, false
	}
	off := b.slotOffset(i) + b.codec.KeySize()
	return b.codec.DecodeValue(b.buf[off : off+b.codec.ValueSize()]), true
}

func (b *BucketPage[K, V]) writeSlot(i int, key K, value V) {
	off := b.slotOffset(i)
	b.codec.EncodeKey(key, b.buf[off:off+b.codec.KeySize()])
	b.codec.EncodeValue(value, b.buf[off+b.codec.KeySize():off+b.codec.KeySize()+b.codec.ValueSize()])
}

// RemoveAt clears the readable bit of slot i if set, leaving a tombstone.
func (b *BucketPage[K, V]) RemoveAt(i int) {
	if b.IsReadable(i) {
		b.ClearReadable(i)
	}
}

// GetValue scans all slots for readable entries matching key, appending
// their values to out. Scanning stops at the first never-written slot
// (occupied=0); tombstones (occupied=1, readable=0) are skipped but do not
// terminate the scan.
func (b *BucketPage[K, V]) GetValue(key K, cmp Comparator[K], out *[]V) bool {
	found := false
	for i := 0; i < b.arraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) {
			if k, _ := b.KeyAt(i); cmp(key, k) == 0 {
				v, _ := b.ValueAt(i)
				*out = append(*out, v)
				found = true
			}
		}
	}
	return found
}

// Insert places (key, value) into the first tombstone or never-written slot,
// rejecting exact (key, value) duplicates and full buckets.
func (b *BucketPage[K, V]) Insert(key K, value V, cmp Comparator[K]) bool {
	insertIdx := -1
	for i := 0; i < b.arraySize; i++ {
		if !b.IsOccupied(i) {
			if insertIdx == -1 {
				insertIdx = i
			}
			break
		}
		if b.IsReadable(i) {
			if k, _ := b.KeyAt(i); cmp(key, k) == 0 {
				if v, _ := b.ValueAt(i); v == value {
					return false // exact duplicate
				}
			}
		} else if insertIdx == -1 {
			insertIdx = i // first tombstone, continue past it for dup detection
		}
	}

	if insertIdx == -1 {
		return false // bucket is full
	}

	b.writeSlot(insertIdx, key, value)
	b.SetOccupied(insertIdx)
	b.SetReadable(insertIdx)
	return true
}

// Remove clears the readable bit of the first slot matching both key and
// value, leaving a tombstone. Returns false if no such slot is found.
func (b *BucketPage[K, V]) Remove(key K, value V, cmp Comparator[K]) bool {
	for i := 0; i < b.arraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) {
			if k, _ := b.KeyAt(i); cmp(key, k) == 0 {
				if v, _ := b.ValueAt(i); v == value {
					b.ClearReadable(i)
					return true
				}
			}
		}
	}
	return false
}

// IsFull reports whether every slot is readable.
func (b *BucketPage[K, V]) IsFull() bool {
	return b.NumReadable() == b.arraySize
}

// IsEmpty reports whether no occupied slot (up to the first never-written
// slot) is readable.
func (b *BucketPage[K, V]) IsEmpty() bool {
	return b.NumReadable() == 0
}

// NumReadable counts readable slots up to the first never-written slot.
func (b *BucketPage[K, V]) NumReadable() int {
	count := 0
	for i := 0; i < b.arraySize; i++ {
		if !b.IsOccupied(i) {
			break
		}
		if b.IsReadable(i) {
			count++
		}
	}
	return count
}

// Reset zeroes the bucket's bitmaps and slot region, used when a frame is
// repurposed as a freshly allocated bucket page.
func (b *BucketPage[K, V]) Reset() {
	for i := range b.buf {
		b.buf[i] = 0
	}
}
