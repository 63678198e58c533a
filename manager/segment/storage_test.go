//go:build linux || freebsd || darwin

package segment

import (
	"testing"
	"unsafe"

	"github.com/Thifhi/metall/internal/osadapter"
)

func asBytes(addr uintptr, size int64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}

func reserve(t *testing.T, size int64) uintptr {
	t.Helper()
	pageSize := osadapter.PageSize()
	base, err := osadapter.ReserveAligned(pageSize, size)
	if err != nil {
		t.Fatalf("ReserveAligned: %v", err)
	}
	t.Cleanup(func() {
		_ = osadapter.Unmap(base, size)
	})
	return base
}

func TestCreateExtendSync(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	dir := t.TempDir()
	capacity := int64(8 << 20)
	base := reserve(t, capacity)

	s := New(nil)
	if err := s.Create(dir, capacity, base, 4096); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Destroy()

	if s.CurrentSize() != 4096 {
		t.Fatalf("CurrentSize = %d, want 4096", s.CurrentSize())
	}

	if err := s.Extend(4096); err != nil {
		t.Fatalf("Extend no-op: %v", err)
	}
	if s.CurrentSize() != 4096 {
		t.Fatalf("Extend no-op changed size to %d", s.CurrentSize())
	}

	if err := s.Extend(2 << 20); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if s.CurrentSize() != 2<<20 {
		t.Fatalf("CurrentSize after Extend = %d, want %d", s.CurrentSize(), 2<<20)
	}

	if err := s.Sync(true); err != nil {
		t.Fatalf("Sync: %v", err)
	}
}

func TestExtendRejectsOverCapacity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	dir := t.TempDir()
	capacity := int64(4096)
	base := reserve(t, capacity)

	s := New(nil)
	if err := s.Create(dir, capacity, base, 4096); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer s.Destroy()

	if err := s.Extend(8192); err == nil {
		t.Fatalf("expected Extend past capacity to fail")
	}
}

func TestReopenAtDifferentAddressPreservesContent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	dir := t.TempDir()
	capacity := int64(8 << 20)

	base1 := reserve(t, capacity)
	s1 := New(nil)
	if err := s1.Create(dir, capacity, base1, 4096); err != nil {
		t.Fatalf("Create: %v", err)
	}
	view1 := asBytes(base1, 4096)
	view1[0] = 0x7a
	if err := s1.Sync(true); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if err := s1.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	base2 := reserve(t, capacity)
	if base2 == base1 {
		t.Skip("kernel reused the same address; cross-address test inconclusive")
	}
	s2 := New(nil)
	if err := s2.Open(dir, capacity, base2, false); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s2.Destroy()

	view2 := asBytes(base2, 4096)
	if view2[0] != 0x7a {
		t.Fatalf("byte 0 = %#x after reopen at new address, want 0x7a", view2[0])
	}
}
