package alloc

import (
	"bytes"
	"errors"
	"testing"
)

// fakeStorage is an in-memory stand-in for the segment storage, just large
// enough to exercise Extend/CurrentSize without touching a real mapping.
type fakeStorage struct {
	size int64
	cap  int64
}

func (f *fakeStorage) CurrentSize() int64 { return f.size }

func (f *fakeStorage) Extend(newSize int64) error {
	if newSize <= f.size {
		return nil
	}
	if f.cap > 0 && newSize > f.cap {
		return errors.New("fakeStorage: exceeds capacity")
	}
	f.size = newSize
	return nil
}

func TestAllocateSmallReusesFreedSlot(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	off1, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if err := a.Deallocate(off1); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	off2, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate after free: %v", err)
	}
	if off2 != off1 {
		t.Fatalf("expected slot reuse: off1=%d off2=%d", off1, off2)
	}
	if a.AllMemoryDeallocated() {
		t.Fatalf("off2 is still live, AllMemoryDeallocated should be false")
	}
}

func TestAllMemoryDeallocatedAfterFullCycle(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	var offs []int64
	for i := 0; i < 20; i++ {
		off, err := a.Allocate(int64(8 + i*4))
		if err != nil {
			t.Fatalf("Allocate: %v", err)
		}
		offs = append(offs, off)
	}
	for _, off := range offs {
		if err := a.Deallocate(off); err != nil {
			t.Fatalf("Deallocate(%d): %v", off, err)
		}
	}
	if !a.AllMemoryDeallocated() {
		t.Fatalf("expected all memory deallocated after full alloc/free cycle")
	}
}

func TestNoOverlapBetweenLiveAllocations(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	type span struct{ off, size int64 }
	var spans []span
	sizes := []int64{8, 32, 100, 4000, 9000, 64}
	for _, sz := range sizes {
		off, err := a.Allocate(sz)
		if err != nil {
			t.Fatalf("Allocate(%d): %v", sz, err)
		}
		spans = append(spans, span{off, sz})
	}
	for i := range spans {
		for j := range spans {
			if i == j {
				continue
			}
			a, b := spans[i], spans[j]
			if a.off < b.off+b.size && b.off < a.off+a.size {
				t.Fatalf("overlap between allocations: %+v and %+v", a, b)
			}
		}
	}
}

func TestAllocateAlignedReturnsAlignedOffset(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	for _, align := range []int64{8, 16, 64, 256, 1024} {
		off, err := a.AllocateAligned(10, align)
		if err != nil {
			t.Fatalf("AllocateAligned(10,%d): %v", align, err)
		}
		if off%align != 0 {
			t.Fatalf("offset %d not aligned to %d", off, align)
		}
	}
}

func TestAllocateAlignedRejectsNonPowerOfTwo(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)
	if _, err := a.AllocateAligned(10, 3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestOutOfMemoryWhenCapacityExceeded(t *testing.T) {
	storage := &fakeStorage{cap: 2 * 2 * 1024 * 1024} // two 2MiB chunks
	a := New(storage, 2*1024*1024, false)

	if _, err := a.Allocate(3 * 1024 * 1024); err != nil {
		t.Fatalf("first large Allocate: %v", err)
	}
	if _, err := a.Allocate(3 * 1024 * 1024); err == nil {
		t.Fatalf("expected second large Allocate to exceed capacity")
	} else if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("expected ErrOutOfMemory, got %v", err)
	}
}

func TestDeallocateInteriorPointerFails(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	off, err := a.Allocate(3 * 4096)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	interior := off + 4096
	if err := a.Deallocate(interior); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for interior pointer, got %v", err)
	}
}

func TestReadOnlyRejectsAllocation(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, true)
	if _, err := a.Allocate(8); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)

	off, err := a.Allocate(16)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	var buf bytes.Buffer
	if err := a.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}

	b := New(storage, 4096, false)
	if err := b.Deserialize(bytes.NewReader(buf.Bytes())); err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if err := b.Deallocate(off); err != nil {
		t.Fatalf("Deallocate after deserialize: %v", err)
	}
	if !b.AllMemoryDeallocated() {
		t.Fatalf("expected all memory deallocated after deserialized free")
	}
}

func TestDeserializeRejectsCorruptChecksum(t *testing.T) {
	storage := &fakeStorage{}
	a := New(storage, 4096, false)
	if _, err := a.Allocate(16); err != nil {
		t.Fatalf("Allocate: %v", err)
	}

	var buf bytes.Buffer
	if err := a.Serialize(&buf); err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	corrupt := buf.Bytes()
	corrupt[len(corrupt)-1] ^= 0xFF

	b := New(storage, 4096, false)
	if err := b.Deserialize(bytes.NewReader(corrupt)); !errors.Is(err, ErrCorruptState) {
		t.Fatalf("expected ErrCorruptState, got %v", err)
	}
}
