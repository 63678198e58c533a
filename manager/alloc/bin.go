package alloc

import (
	"container/heap"
	"fmt"

	"github.com/Thifhi/metall/internal/format"
)

// slab is one chunk subdivided into same-size slots for a single size
// class, with a bitmap of free slots (bit set = free).
type slab struct {
	chunkNo   int32
	bitmap    []uint64
	freeCount int32
	numSlots  int32
	heapIndex int
}

func newSlab(chunkNo int32, numSlots int32) *slab {
	words := (numSlots + 63) / 64
	bm := make([]uint64, words)
	for i := range bm {
		bm[i] = ^uint64(0)
	}
	// Clear the tail bits beyond numSlots in the last word.
	if rem := numSlots % 64; rem != 0 {
		bm[len(bm)-1] = (uint64(1) << rem) - 1
	}
	return &slab{chunkNo: chunkNo, bitmap: bm, freeCount: numSlots, numSlots: numSlots}
}

func (s *slab) occupied() int32 { return s.numSlots - s.freeCount }

// takeSlot finds and clears the first set bit, returning its slot index.
func (s *slab) takeSlot() int32 {
	for w, word := range s.bitmap {
		if word == 0 {
			continue
		}
		bit := trailingZeros64(word)
		s.bitmap[w] &^= uint64(1) << bit
		s.freeCount--
		return int32(w*64 + bit)
	}
	return -1
}

func (s *slab) releaseSlot(slot int32) {
	w, bit := slot/64, uint(slot%64)
	s.bitmap[w] |= uint64(1) << bit
	s.freeCount++
}

func trailingZeros64(x uint64) int {
	n := 0
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

// occupancyHeap is a max-heap over partially-free slabs of one size class,
// ordered by decreasing occupancy so allocation concentrates into the
// fullest slab first, letting emptier slabs free their chunk sooner.
type occupancyHeap []*slab

func (h occupancyHeap) Len() int            { return len(h) }
func (h occupancyHeap) Less(i, j int) bool  { return h[i].occupied() > h[j].occupied() }
func (h occupancyHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].heapIndex, h[j].heapIndex = i, j
}

func (h *occupancyHeap) Push(x any) {
	s := x.(*slab)
	s.heapIndex = len(*h)
	*h = append(*h, s)
}

func (h *occupancyHeap) Pop() any {
	old := *h
	n := len(old)
	s := old[n-1]
	s.heapIndex = -1
	*h = old[:n-1]
	return s
}

// binManager tracks, per size class, the partially-free slabs and the
// bitmap-level bookkeeping that the chunk directory leaves unmodeled.
type binManager struct {
	sizeTable *sizeClassTable
	chunkSize int64
	lists     []occupancyHeap     // per class
	byChunk   []map[int32]*slab   // per class, chunkNo -> slab, for O(1) deallocate lookup
}

func newBinManager(sizeTable *sizeClassTable, chunkSize int64) *binManager {
	n := sizeTable.NumClasses()
	bm := &binManager{
		sizeTable: sizeTable,
		chunkSize: chunkSize,
		lists:     make([]occupancyHeap, n),
		byChunk:   make([]map[int32]*slab, n),
	}
	for c := 0; c < n; c++ {
		bm.byChunk[c] = make(map[int32]*slab)
	}
	return bm
}

// Allocate returns a free slot's offset within a slab of class c. newChunk,
// when non-negative, is a freshly-promoted chunk the caller obtained from
// the chunk directory to back a new slab; pass -1 when reusing an existing
// partially-free slab is expected to succeed.
func (bm *binManager) Allocate(c int, newChunk int32) (offset int64, usedNewChunk bool, ok bool) {
	list := &bm.lists[c]
	if list.Len() == 0 {
		if newChunk < 0 {
			return 0, false, false
		}
		s := newSlab(newChunk, bm.sizeTable.SlotsPerChunk(c, bm.chunkSize))
		heap.Push(list, s)
		bm.byChunk[c][newChunk] = s
		usedNewChunk = true
	}

	top := (*list)[0]
	slotIdx := top.takeSlot()
	if top.freeCount == 0 {
		heap.Pop(list)
	} else {
		heap.Fix(list, top.heapIndex)
	}
	offset = int64(top.chunkNo)*bm.chunkSize + int64(slotIdx)*bm.sizeTable.SlotSize(c)
	return offset, usedNewChunk, true
}

// Deallocate clears the slot at offset within class c's slab. It reports
// emptiedChunk=true (with the freed chunk number) when the slab became
// entirely empty and should be released back to the chunk directory.
func (bm *binManager) Deallocate(c int, chunkNo int32, offset int64) (emptiedChunk int32, didEmpty bool) {
	s, ok := bm.byChunk[c][chunkNo]
	if !ok {
		return 0, false
	}
	slotSize := bm.sizeTable.SlotSize(c)
	localOff := offset - int64(chunkNo)*bm.chunkSize
	slot := int32(localOff / slotSize)

	wasFull := s.freeCount == 0
	s.releaseSlot(slot)

	if s.freeCount == s.numSlots {
		delete(bm.byChunk[c], chunkNo)
		if s.heapIndex >= 0 {
			heap.Remove(&bm.lists[c], s.heapIndex)
		}
		return chunkNo, true
	}
	if wasFull {
		heap.Push(&bm.lists[c], s)
	} else {
		heap.Fix(&bm.lists[c], s.heapIndex)
	}
	return 0, false
}

// appendSlabsTo appends every tracked slab across all size classes as
// `u32 count` followed by, per slab, `u32 chunkNo, u32 class, u32
// numWords, [u64 words...]`. This is the "per-size-class slab lists and
// bitmaps" the allocator_state wire format calls for.
func (bm *binManager) appendSlabsTo(buf []byte) []byte {
	total := 0
	for _, m := range bm.byChunk {
		total += len(m)
	}
	buf = format.AppendU32(buf, uint32(total))
	for class, m := range bm.byChunk {
		for chunkNo, s := range m {
			buf = format.AppendU32(buf, uint32(chunkNo))
			buf = format.AppendU32(buf, uint32(class))
			buf = format.AppendU32(buf, uint32(len(s.bitmap)))
			for _, word := range s.bitmap {
				buf = format.AppendU64(buf, word)
			}
		}
	}
	return buf
}

// parseSlabsFrom reads back the slab bitmaps written by appendSlabsTo and
// rebuilds byChunk and the per-class occupancy heaps from scratch.
func (bm *binManager) parseSlabsFrom(b []byte, off int) (int, error) {
	if off+4 > len(b) {
		return 0, fmt.Errorf("%w: truncated slab count", ErrCorruptState)
	}
	total := format.ReadU32(b, off)
	off += 4

	for i := uint32(0); i < total; i++ {
		if off+12 > len(b) {
			return 0, fmt.Errorf("%w: truncated slab header %d", ErrCorruptState, i)
		}
		chunkNo := int32(format.ReadU32(b, off))
		class := int(format.ReadU32(b, off+4))
		numWords := int(format.ReadU32(b, off+8))
		off += 12
		if off+numWords*8 > len(b) {
			return 0, fmt.Errorf("%w: truncated slab bitmap %d", ErrCorruptState, i)
		}
		if class < 0 || class >= len(bm.byChunk) {
			return 0, fmt.Errorf("%w: slab %d has invalid class %d", ErrCorruptState, i, class)
		}
		bitmap := make([]uint64, numWords)
		freeCount := int32(0)
		for w := 0; w < numWords; w++ {
			bitmap[w] = format.ReadU64(b, off)
			off += 8
			freeCount += int32(popcount64(bitmap[w]))
		}
		numSlots := bm.sizeTable.SlotsPerChunk(class, bm.chunkSize)
		s := &slab{chunkNo: chunkNo, bitmap: bitmap, freeCount: freeCount, numSlots: numSlots, heapIndex: -1}
		bm.byChunk[class][chunkNo] = s
		if freeCount > 0 {
			heap.Push(&bm.lists[class], s)
		}
	}
	return off, nil
}

func popcount64(x uint64) int {
	n := 0
	for x != 0 {
		x &= x - 1
		n++
	}
	return n
}
