package index

import (
	"encoding/binary"
	"fmt"

	"github.com/mnohosten/laura-db/pkg/storage"
)

// DirectoryArraySize is the maximum number of directory slots, bounding
// GlobalDepth at MaxGlobalDepth = log2(DirectoryArraySize). 512 slots of
// (1-byte local depth + 4-byte page id) plus a 16-byte header fit
// comfortably within PageSize.
const (
	DirectoryArraySize = 512
	MaxGlobalDepth     = 9 // 1 << 9 == DirectoryArraySize

	directoryHeaderSize  = 16 // [4 page id][8 lsn][4 global depth]
	localDepthsOffset    = directoryHeaderSize
	bucketPageIDsOffset  = localDepthsOffset + DirectoryArraySize
)

// DirectoryPage maps hash prefixes to bucket page ids (SPEC_FULL.md §4.5).
type DirectoryPage struct {
	buf []byte
}

// NewDirectoryPage wraps buf (a frame's full PageSize byte slice) as a
// directory page view.
func NewDirectoryPage(buf []byte) *DirectoryPage {
	return &DirectoryPage{buf: buf}
}

// Init zeroes the directory and sets its self-referencing page id.
func (d *DirectoryPage) Init(selfPageID storage.PageID) {
	for i := range d.buf {
		d.buf[i] = 0
	}
	d.SetPageID(selfPageID)
}

// PageID returns the directory's own page id.
func (d *DirectoryPage) PageID() storage.PageID {
	return storage.PageID(int32(binary.LittleEndian.Uint32(d.buf[0:4])))
}

// SetPageID sets the directory's own page id.
func (d *DirectoryPage) SetPageID(id storage.PageID) {
	binary.LittleEndian.PutUint32(d.buf[0:4], uint32(id))
}

// LSN returns the directory's log sequence number (opaque; never
// interpreted by this package).
func (d *DirectoryPage) LSN() uint64 { return binary.LittleEndian.Uint64(d.buf[4:12]) }

// SetLSN sets the directory's log sequence number.
func (d *DirectoryPage) SetLSN(lsn uint64) { binary.LittleEndian.PutUint64(d.buf[4:12], lsn) }

// GlobalDepth returns the number of hash bits used to index the directory.
func (d *DirectoryPage) GlobalDepth() uint32 {
	return binary.LittleEndian.Uint32(d.buf[12:16])
}

// SetGlobalDepth sets the global depth directly (used by IncrGlobalDepth and
// DecrGlobalDepth).
func (d *DirectoryPage) SetGlobalDepth(gd uint32) {
	binary.LittleEndian.PutUint32(d.buf[12:16], gd)
}

// Size returns 1 << GlobalDepth, the number of currently defined slots.
func (d *DirectoryPage) Size() int { return 1 << d.GlobalDepth() }

// GlobalDepthMask returns (1 << GD) - 1.
func (d *DirectoryPage) GlobalDepthMask() uint32 { return uint32(d.Size() - 1) }

// LocalDepthMask returns (1 << local_depths[i]) - 1.
func (d *DirectoryPage) LocalDepthMask(i int) uint32 {
	return uint32(1<<d.GetLocalDepth(i)) - 1
}

// LocalHighBit returns (1 << local_depths[i]) >> 1: 0 when LD=0, else the
// MSB of the LD-wide index range.
func (d *DirectoryPage) LocalHighBit(i int) uint32 {
	ld := d.GetLocalDepth(i)
	if ld == 0 {
		return 0
	}
	return 1 << (ld - 1)
}

// SplitImageIndex returns the sibling slot that would result from a split
// at i's current local depth.
func (d *DirectoryPage) SplitImageIndex(i int) int {
	return i ^ int(d.LocalHighBit(i))
}

// GetLocalDepth returns the local depth of slot i.
func (d *DirectoryPage) GetLocalDepth(i int) uint8 {
	return d.buf[localDepthsOffset+i]
}

// SetLocalDepth sets the local depth of slot i.
func (d *DirectoryPage) SetLocalDepth(i int, depth uint8) {
	d.buf[localDepthsOffset+i] = depth
}

// IncrLocalDepth increments the local depth of slot i.
func (d *DirectoryPage) IncrLocalDepth(i int) {
	d.buf[localDepthsOffset+i]++
}

// DecrLocalDepth decrements the local depth of slot i.
func (d *DirectoryPage) DecrLocalDepth(i int) {
	d.buf[localDepthsOffset+i]--
}

// GetBucketPageID returns the bucket page id stored at slot i.
func (d *DirectoryPage) GetBucketPageID(i int) storage.PageID {
	off := bucketPageIDsOffset + i*4
	return storage.PageID(int32(binary.LittleEndian.Uint32(d.buf[off : off+4])))
}

// SetBucketPageID sets the bucket page id stored at slot i.
func (d *DirectoryPage) SetBucketPageID(i int, id storage.PageID) {
	off := bucketPageIDsOffset + i*4
	binary.LittleEndian.PutUint32(d.buf[off:off+4], uint32(id))
}

// CanShrink reports whether every local depth is strictly less than the
// global depth, the precondition for DecrGlobalDepth.
func (d *DirectoryPage) CanShrink() bool {
	gd := uint8(d.GlobalDepth())
	for i := 0; i < d.Size(); i++ {
		if d.GetLocalDepth(i) >= gd {
			return false
		}
	}
	return true
}

// IncrGlobalDepth doubles the directory: the low half's local_depths and
// bucket_page_ids are mirrored into the new high half, then GD increments.
// Precondition: Size() <= DirectoryArraySize/2.
func (d *DirectoryPage) IncrGlobalDepth() {
	size := d.Size()
	for i := 0; i < size; i++ {
		d.SetLocalDepth(size+i, d.GetLocalDepth(i))
		d.SetBucketPageID(size+i, d.GetBucketPageID(i))
	}
	d.SetGlobalDepth(d.GlobalDepth() + 1)
}

// DecrGlobalDepth halves the directory. Precondition: GD > 0 and CanShrink().
func (d *DirectoryPage) DecrGlobalDepth() {
	d.SetGlobalDepth(d.GlobalDepth() - 1)
}

// VerifyIntegrity enforces invariants 5, 6, 7 from SPEC_FULL.md §3.
func (d *DirectoryPage) VerifyIntegrity() error {
	gd := uint8(d.GlobalDepth())
	size := d.Size()

	localDepthCount := make(map[storage.PageID]uint8)
	slotCount := make(map[storage.PageID]int)

	for i := 0; i < size; i++ {
		ld := d.GetLocalDepth(i)
		if ld > gd {
			return fmt.Errorf("directory integrity: slot %d local depth %d exceeds global depth %d", i, ld, gd)
		}
		pid := d.GetBucketPageID(i)
		if canon := int(uint32(i) & d.LocalDepthMask(i)); d.GetBucketPageID(canon) != pid {
			return fmt.Errorf("directory integrity: slot %d points to bucket %d but slot %d (same low %d bits) points to bucket %d", i, pid, canon, ld, d.GetBucketPageID(canon))
		}
		if prevLD, ok := localDepthCount[pid]; ok && prevLD != ld {
			return fmt.Errorf("directory integrity: bucket %d has inconsistent local depths %d and %d", pid, prevLD, ld)
		}
		localDepthCount[pid] = ld
		slotCount[pid]++
	}

	for pid, ld := range localDepthCount {
		want := 1 << (gd - ld)
		if slotCount[pid] != want {
			return fmt.Errorf("directory integrity: bucket %d has %d slots, want %d (LD=%d, GD=%d)", pid, slotCount[pid], want, ld, gd)
		}
	}

	return nil
}
