// Package alloc implements the segment's two-level memory allocator: a
// chunk directory for coarse, chunk-granularity bookkeeping (component C)
// and a bin manager for small-object slabs within a chunk (component D),
// combined behind the Allocator façade (component E) that the manager
// kernel talks to.
package alloc

import (
	"fmt"
	"io"
	"sync"

	"github.com/Thifhi/metall/internal/format"
)

// Extender is the subset of the segment storage the allocator needs to grow
// the backing file when no free chunk satisfies a request.
type Extender interface {
	Extend(newSize int64) error
	CurrentSize() int64
}

// Allocator is the segment allocator façade: it owns the chunk directory and
// bin manager and exposes offset-based allocation to the manager kernel.
type Allocator struct {
	mu sync.Mutex

	chunkSize int64
	storage   Extender
	readOnly  bool

	chunks *chunkDirectory
	bins   *binManager
	table  *sizeClassTable
}

// New creates an allocator for a segment whose chunk size is chunkSize,
// backed by storage for growth.
func New(storage Extender, chunkSize int64, readOnly bool) *Allocator {
	table := newSizeClassTable(chunkSize)
	return &Allocator{
		chunkSize: chunkSize,
		storage:   storage,
		readOnly:  readOnly,
		chunks:    newChunkDirectory(),
		bins:      newBinManager(table, chunkSize),
		table:     table,
	}
}

// ChunkSize returns the fixed coarse-allocation unit, in bytes.
func (a *Allocator) ChunkSize() int64 { return a.chunkSize }

// Allocate returns an offset to a freshly allocated region of at least
// nbytes, growing the backing segment if necessary.
func (a *Allocator) Allocate(nbytes int64) (int64, error) {
	return a.AllocateAligned(nbytes, 1)
}

// AllocateAligned returns an offset to a freshly allocated region of at
// least nbytes, aligned to align, which must be a power of two no larger
// than the chunk size.
func (a *Allocator) AllocateAligned(nbytes, align int64) (int64, error) {
	if align < 1 || !format.IsPowerOfTwo(align) || align > a.chunkSize {
		return 0, fmt.Errorf("%w: alignment %d", ErrInvalidArgument, align)
	}
	if nbytes <= 0 {
		return 0, fmt.Errorf("%w: size %d", ErrInvalidArgument, nbytes)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.readOnly {
		return 0, ErrReadOnly
	}

	if class, ok := a.table.ClassFor(nbytes, align); ok {
		return a.allocateSmall(class)
	}
	return a.allocateLarge(nbytes, align)
}

func (a *Allocator) allocateSmall(class int) (int64, error) {
	offset, usedNewChunk, ok := a.bins.Allocate(class, -1)
	if ok {
		return offset, nil
	}
	_ = usedNewChunk

	chunkNo, err := a.reserveFreeChunk()
	if err != nil {
		return 0, err
	}
	a.chunks.MarkSlab(chunkNo, int32(class))

	offset, _, ok = a.bins.Allocate(class, chunkNo)
	if !ok {
		return 0, fmt.Errorf("alloc: internal error: freshly promoted chunk rejected slot")
	}
	return offset, nil
}

// reserveFreeChunk returns a single free chunk number, growing the segment
// by one chunk first if none is available.
func (a *Allocator) reserveFreeChunk() (int32, error) {
	if chunkNo, ok := a.chunks.FindFreeRun(1, 1); ok {
		return chunkNo, nil
	}
	if err := a.growByChunks(1); err != nil {
		return 0, err
	}
	chunkNo, ok := a.chunks.FindFreeRun(1, 1)
	if !ok {
		return 0, ErrOutOfMemory
	}
	return chunkNo, nil
}

func (a *Allocator) allocateLarge(nbytes, align int64) (int64, error) {
	nChunks := int32(format.AlignUp(nbytes, a.chunkSize) / a.chunkSize)
	alignChunks := int32(format.AlignUp(align, a.chunkSize) / a.chunkSize)
	if alignChunks < 1 {
		alignChunks = 1
	}

	chunkNo, ok := a.chunks.FindFreeRun(nChunks, alignChunks)
	if !ok {
		// Pad up to the next multiple of alignChunks so the newly grown
		// run starts at an aligned chunk number, then grow by the run
		// itself. The padding chunks join the free pool, not wasted.
		highWater := a.chunks.NumChunks()
		target := ((highWater + alignChunks - 1) / alignChunks) * alignChunks
		if err := a.growByChunks((target - highWater) + nChunks); err != nil {
			return 0, err
		}
		chunkNo, ok = a.chunks.FindFreeRun(nChunks, alignChunks)
		if !ok {
			return 0, ErrOutOfMemory
		}
	}
	a.chunks.MarkLarge(chunkNo, nChunks)
	return int64(chunkNo) * a.chunkSize, nil
}

// growByChunks extends the backing segment by n whole chunks and records
// them as free in the chunk directory.
func (a *Allocator) growByChunks(n int32) error {
	newSize := a.storage.CurrentSize() + int64(n)*a.chunkSize
	if err := a.storage.Extend(newSize); err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	a.chunks.Grow(n)
	return nil
}

// Deallocate releases the allocation whose head is at offset.
func (a *Allocator) Deallocate(offset int64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.readOnly {
		return ErrReadOnly
	}

	chunkNo := int32(offset / a.chunkSize)
	if chunkNo < 0 || chunkNo >= a.chunks.NumChunks() {
		return fmt.Errorf("%w: offset %d out of range", ErrInvalidArgument, offset)
	}

	switch a.chunks.State(chunkNo) {
	case format.ChunkSlab:
		class := a.chunks.Class(chunkNo)
		if (offset-int64(chunkNo)*a.chunkSize)%a.table.SlotSize(int(class)) != 0 {
			return fmt.Errorf("%w: offset %d is an interior pointer", ErrInvalidArgument, offset)
		}
		freedChunk, didEmpty := a.bins.Deallocate(int(class), chunkNo, offset)
		if didEmpty {
			a.chunks.MarkFreeRun(freedChunk, 1)
		}
		return nil
	case format.ChunkLargeHead:
		n, _ := a.chunks.LargeRunLength(chunkNo)
		a.chunks.MarkFreeRun(chunkNo, n)
		return nil
	case format.ChunkLargeTail:
		return fmt.Errorf("%w: offset %d is an interior pointer", ErrInvalidArgument, offset)
	default:
		return fmt.Errorf("%w: offset %d is already free", ErrInvalidArgument, offset)
	}
}

// AllMemoryDeallocated reports whether every chunk in the directory is
// free. The manager kernel's AllMemoryDeallocated returns this result
// directly; the named directory is not consulted.
func (a *Allocator) AllMemoryDeallocated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.chunks.AllFree()
}

// Serialize writes the complete allocator_state payload: a version byte,
// the chunk directory, the per-size-class slab bitmaps, and a trailing
// CRC32 over everything that precedes it.
func (a *Allocator) Serialize(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	buf := []byte{format.AllocatorStateVersion}
	buf = a.chunks.appendTo(buf)
	buf = a.bins.appendSlabsTo(buf)
	buf = format.AppendU32(buf, format.Checksum(buf))

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("alloc: write: %w", err)
	}
	return nil
}

// Deserialize reads back an allocator_state payload written by Serialize,
// restoring the chunk directory and every slab's exact bitmap state.
func (a *Allocator) Deserialize(r io.Reader) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	all, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("alloc: read: %w", err)
	}
	if len(all) < 1+4 {
		return fmt.Errorf("%w: truncated allocator_state", ErrCorruptState)
	}
	payload, wantCRC := all[:len(all)-4], format.ReadU32(all, len(all)-4)
	if format.Checksum(payload) != wantCRC {
		return fmt.Errorf("%w: checksum mismatch", ErrCorruptState)
	}

	if payload[0] != format.AllocatorStateVersion {
		return fmt.Errorf("%w: version %d", ErrCorruptState, payload[0])
	}
	off := 1

	chunks := newChunkDirectory()
	off, err = chunks.parseFrom(payload, off)
	if err != nil {
		return err
	}
	bins := newBinManager(a.table, a.chunkSize)
	if _, err := bins.parseSlabsFrom(payload, off); err != nil {
		return err
	}

	a.chunks = chunks
	a.bins = bins
	return nil
}
