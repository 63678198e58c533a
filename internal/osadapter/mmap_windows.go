//go:build windows

package osadapter

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// PageSize returns the OS virtual-memory allocation granularity.
func PageSize() int64 {
	var si windows.SystemInfo
	windows.GetSystemInfo(&si)
	return int64(si.PageSize)
}

// ReserveAligned reserves size bytes of address space aligned to align via
// VirtualAlloc(MEM_RESERVE): it over-reserves to find an aligned address,
// then releases that probe and re-reserves exactly size bytes there.
func ReserveAligned(align, size int64) (uintptr, error) {
	total := size + align
	probe, err := windows.VirtualAlloc(0, uintptr(total), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, fmt.Errorf("osadapter: reserve %d bytes: %w", total, err)
	}
	aligned := (probe + uintptr(align) - 1) &^ (uintptr(align) - 1)
	if err := windows.VirtualFree(probe, 0, windows.MEM_RELEASE); err != nil {
		return 0, fmt.Errorf("osadapter: release probe reservation: %w", err)
	}
	base, err := windows.VirtualAlloc(aligned, uintptr(size), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, fmt.Errorf("osadapter: reserve aligned %d bytes at %#x: %w", size, aligned, err)
	}
	return base, nil
}

// MapAnonymousFixed commits a zero-filled, read-write region at addr, which
// must already be covered by a reservation from ReserveAligned.
func MapAnonymousFixed(addr uintptr, size int64) error {
	_, err := windows.VirtualAlloc(addr, uintptr(size), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	if err != nil {
		return fmt.Errorf("osadapter: commit anonymous at %#x size %d: %w", addr, size, err)
	}
	return nil
}

// MapFileFixed maps size bytes of f, starting at fileOffset, at the exact
// address addr via CreateFileMapping + MapViewOfFileEx.
func MapFileFixed(addr uintptr, size int64, f *os.File, fileOffset int64, writable bool) error {
	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, protect, uint32(size>>32), uint32(size), nil)
	if err != nil {
		return fmt.Errorf("osadapter: CreateFileMapping %s: %w", f.Name(), err)
	}
	defer windows.CloseHandle(h)

	// The reservation must be freed (not just its view unmapped) before a
	// file-backed mapping can occupy the same address range.
	if err := windows.VirtualFree(addr, uintptr(size), windows.MEM_RELEASE); err != nil {
		return fmt.Errorf("osadapter: release reservation before mapping: %w", err)
	}
	_, err = windows.MapViewOfFileEx(h, access, uint32(fileOffset>>32), uint32(fileOffset), uintptr(size), addr)
	if err != nil {
		return fmt.Errorf("osadapter: MapViewOfFileEx at %#x size %d: %w", addr, size, err)
	}
	return nil
}

// Unmap releases the mapping covering [addr, addr+size).
func Unmap(addr uintptr, size int64) error {
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("osadapter: UnmapViewOfFile %#x: %w", addr, err)
	}
	return nil
}

// Msync flushes dirty pages in [addr, addr+size) to the backing file.
func Msync(addr uintptr, size int64, sync bool) error {
	if err := windows.FlushViewOfFile(addr, uintptr(size)); err != nil {
		return fmt.Errorf("osadapter: FlushViewOfFile %#x size %d: %w", addr, size, err)
	}
	return nil
}

// Fdatasync flushes f to stable storage.
func Fdatasync(f *os.File, fullfsync bool) error {
	if err := windows.FlushFileBuffers(windows.Handle(f.Fd())); err != nil {
		return fmt.Errorf("osadapter: FlushFileBuffers %s: %w", f.Name(), err)
	}
	return nil
}
