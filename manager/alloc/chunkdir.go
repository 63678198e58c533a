package alloc

import (
	"fmt"

	"github.com/Thifhi/metall/internal/format"
)

// chunkEntry is one slot of the chunk directory.
type chunkEntry struct {
	state format.ChunkState
	class int32 // valid when state == ChunkSlab
	run   int32 // valid when state == ChunkLargeHead: number of chunks in the run
	head  int32 // valid when state == ChunkLargeTail: chunk number of the run's head
}

// chunkDirectory is a dense array, one entry per chunk, that partitions
// [0, highWater) into free, slab, and large ranges. It is the persisted
// bookkeeping behind the segment allocator's coarse allocation decisions.
type chunkDirectory struct {
	entries []chunkEntry // len(entries) == highWater
}

func newChunkDirectory() *chunkDirectory {
	return &chunkDirectory{}
}

// NumChunks reports the current high-water mark in whole chunks.
func (d *chunkDirectory) NumChunks() int32 {
	return int32(len(d.entries))
}

// Grow appends n new free entries, extending the high-water mark. Called
// after the segment storage has been extended by n whole chunks.
func (d *chunkDirectory) Grow(n int32) {
	for i := int32(0); i < n; i++ {
		d.entries = append(d.entries, chunkEntry{state: format.ChunkFree})
	}
}

// FindFreeRun scans for the first run of nChunks consecutive free chunks
// whose starting chunk number is a multiple of alignChunks. Ties are broken
// by lowest chunk number (first-fit). Returns ok=false if no such run
// exists within the current high-water mark.
func (d *chunkDirectory) FindFreeRun(nChunks, alignChunks int32) (int32, bool) {
	if alignChunks < 1 {
		alignChunks = 1
	}
	n := int32(len(d.entries))
	for start := int32(0); start+nChunks <= n; start++ {
		if start%alignChunks != 0 {
			continue
		}
		if d.runIsFree(start, nChunks) {
			return start, true
		}
	}
	return 0, false
}

func (d *chunkDirectory) runIsFree(start, n int32) bool {
	for i := start; i < start+n; i++ {
		if d.entries[i].state != format.ChunkFree {
			return false
		}
	}
	return true
}

// MarkSlab marks a single free chunk as the backing store for size class c.
func (d *chunkDirectory) MarkSlab(chunkNo, class int32) {
	d.entries[chunkNo] = chunkEntry{state: format.ChunkSlab, class: class}
}

// MarkLarge marks a run of n chunks starting at chunkNo as a single large
// allocation: the head carries the run length, followers point back to it.
func (d *chunkDirectory) MarkLarge(chunkNo, n int32) {
	d.entries[chunkNo] = chunkEntry{state: format.ChunkLargeHead, run: n}
	for i := chunkNo + 1; i < chunkNo+n; i++ {
		d.entries[i] = chunkEntry{state: format.ChunkLargeTail, head: chunkNo}
	}
}

// MarkFreeRun releases n chunks starting at chunkNo back to free.
func (d *chunkDirectory) MarkFreeRun(chunkNo, n int32) {
	for i := chunkNo; i < chunkNo+n; i++ {
		d.entries[i] = chunkEntry{state: format.ChunkFree}
	}
}

// LargeRunLength returns the run length of the large_head at chunkNo, or
// ok=false if chunkNo is not a large_head.
func (d *chunkDirectory) LargeRunLength(chunkNo int32) (int32, bool) {
	e := d.entries[chunkNo]
	if e.state != format.ChunkLargeHead {
		return 0, false
	}
	return e.run, true
}

// State returns the state of chunkNo.
func (d *chunkDirectory) State(chunkNo int32) format.ChunkState {
	return d.entries[chunkNo].state
}

// Class returns the slab size class of chunkNo, valid only when State is ChunkSlab.
func (d *chunkDirectory) Class(chunkNo int32) int32 {
	return d.entries[chunkNo].class
}

// AllFree reports whether every chunk in the directory is free, the
// coarse-grained half of "all memory deallocated".
func (d *chunkDirectory) AllFree() bool {
	for _, e := range d.entries {
		if e.state != format.ChunkFree {
			return false
		}
	}
	return true
}

// appendTo appends the chunk directory as a u32 count followed by a tagged
// byte per entry plus its class/run/head payload. The allocator wraps the
// whole allocator_state payload (chunk directory and slab bitmaps) in a
// single trailing checksum, so this layer carries no checksum of its own.
func (d *chunkDirectory) appendTo(buf []byte) []byte {
	buf = format.AppendU32(buf, uint32(len(d.entries)))
	for _, e := range d.entries {
		buf = append(buf, byte(e.state))
		switch e.state {
		case format.ChunkSlab:
			buf = format.AppendU32(buf, uint32(e.class))
		case format.ChunkLargeHead:
			buf = format.AppendU32(buf, uint32(e.run))
		case format.ChunkLargeTail:
			buf = format.AppendU32(buf, uint32(e.head))
		default:
			buf = format.AppendU32(buf, 0)
		}
	}
	return buf
}

// parseFrom reads back a chunk directory written by appendTo, returning the
// offset just past the consumed bytes.
func (d *chunkDirectory) parseFrom(b []byte, off int) (int, error) {
	if off+4 > len(b) {
		return 0, fmt.Errorf("%w: truncated chunk directory count", ErrCorruptState)
	}
	n := format.ReadU32(b, off)
	off += 4
	entries := make([]chunkEntry, 0, n)
	for i := uint32(0); i < n; i++ {
		if off+5 > len(b) {
			return 0, fmt.Errorf("%w: truncated entry %d", ErrCorruptState, i)
		}
		state := format.ChunkState(b[off])
		payload32 := format.ReadU32(b, off+1)
		off += 5
		e := chunkEntry{state: state}
		switch state {
		case format.ChunkSlab:
			e.class = int32(payload32)
		case format.ChunkLargeHead:
			e.run = int32(payload32)
		case format.ChunkLargeTail:
			e.head = int32(payload32)
		}
		entries = append(entries, e)
	}
	d.entries = entries
	return off, nil
}
