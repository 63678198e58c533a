//go:build linux || freebsd

package osadapter

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReserveMapUnmapRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	pageSize := PageSize()
	size := pageSize * 4

	base, err := ReserveAligned(pageSize, size)
	if err != nil {
		t.Fatalf("ReserveAligned: %v", err)
	}
	if base%uintptr(pageSize) != 0 {
		t.Fatalf("base %#x not page-aligned", base)
	}
	defer func() {
		if err := Unmap(base, size); err != nil {
			t.Fatalf("Unmap: %v", err)
		}
	}()

	if err := MapAnonymousFixed(base, size); err != nil {
		t.Fatalf("MapAnonymousFixed: %v", err)
	}

	view := viewAt(base, size)
	view[0] = 0x42
	if view[0] != 0x42 {
		t.Fatalf("write through mapped view did not take")
	}
}

func TestMapFileFixedRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mmap test in short mode")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "segment.0")
	pageSize := PageSize()
	if err := os.WriteFile(path, make([]byte, pageSize), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()

	base, err := ReserveAligned(pageSize, pageSize)
	if err != nil {
		t.Fatalf("ReserveAligned: %v", err)
	}
	defer func() {
		if err := Unmap(base, pageSize); err != nil {
			t.Fatalf("Unmap: %v", err)
		}
	}()

	if err := MapFileFixed(base, pageSize, f, 0, true); err != nil {
		t.Fatalf("MapFileFixed: %v", err)
	}

	view := viewAt(base, pageSize)
	view[0] = 0xAB
	if err := Msync(base, pageSize, true); err != nil {
		t.Fatalf("Msync: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got[0] != 0xAB {
		t.Fatalf("byte 0 = %#x, want 0xab", got[0])
	}
}
