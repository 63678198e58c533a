//go:build darwin

package osadapter

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// PageSize returns the OS virtual-memory page size.
func PageSize() int64 {
	return int64(os.Getpagesize())
}

// ReserveAligned reserves size bytes of virtual address space aligned to
// align, without committing any pages.
func ReserveAligned(align, size int64) (uintptr, error) {
	total := size + align
	base, err := unix.Mmap(-1, 0, int(total), unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return 0, fmt.Errorf("osadapter: reserve %d bytes: %w", total, err)
	}
	start := uintptr(unsafe.Pointer(&base[0]))
	aligned := (start + uintptr(align) - 1) &^ (uintptr(align) - 1)

	if front := aligned - start; front > 0 {
		if err := Unmap(start, int64(front)); err != nil {
			return 0, fmt.Errorf("osadapter: trim reservation front: %w", err)
		}
	}
	backStart := aligned - start + uintptr(size)
	if back := uintptr(total) - backStart; back > 0 {
		if err := Unmap(start+backStart, int64(back)); err != nil {
			return 0, fmt.Errorf("osadapter: trim reservation back: %w", err)
		}
	}
	return aligned, nil
}

func mmapFixed(addr uintptr, size int64, fd int, offset int64, prot, flags int) error {
	_, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		uintptr(size),
		uintptr(prot),
		uintptr(flags|unix.MAP_FIXED),
		uintptr(fd),
		uintptr(offset),
	)
	if errno != 0 {
		return fmt.Errorf("osadapter: mmap fixed at %#x size %d: %w", addr, size, errno)
	}
	return nil
}

// MapAnonymousFixed maps an anonymous, zero-filled, read-write region at the
// exact address addr.
func MapAnonymousFixed(addr uintptr, size int64) error {
	return mmapFixed(addr, size, -1, 0, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
}

// MapFileFixed maps size bytes of f, starting at fileOffset, at the exact
// address addr.
func MapFileFixed(addr uintptr, size int64, f *os.File, fileOffset int64, writable bool) error {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	return mmapFixed(addr, size, int(f.Fd()), fileOffset, prot, unix.MAP_SHARED)
}

// Unmap releases the mapping covering [addr, addr+size).
func Unmap(addr uintptr, size int64) error {
	_, _, errno := unix.Syscall(unix.SYS_MUNMAP, addr, uintptr(size), 0)
	if errno != 0 {
		return fmt.Errorf("osadapter: munmap %#x size %d: %w", addr, size, errno)
	}
	return nil
}

func viewAt(addr uintptr, size int64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size))
}

// Msync flushes dirty pages to the backing file. Darwin's msync requires the
// address passed in to match the original mmap base exactly when the call
// spans the whole mapping, so callers must pass the segment's own base
// rather than an interior sub-range; this adapter always syncs the entire
// [addr, addr+size) region it is given rather than coalescing sub-ranges.
func Msync(addr uintptr, size int64, sync bool) error {
	flags := unix.MS_ASYNC
	if sync {
		flags = unix.MS_SYNC
	}
	if err := unix.Msync(viewAt(addr, size), flags); err != nil {
		return fmt.Errorf("osadapter: msync %#x size %d: %w", addr, size, err)
	}
	return nil
}

// Fdatasync flushes f to stable storage. Darwin's fsync(2) only guarantees
// the data reached the drive's write cache, not the platter; when fullfsync
// is requested F_FULLFSYNC is issued instead of fsync, matching the
// guarantee fdatasync provides on linux.
func Fdatasync(f *os.File, fullfsync bool) error {
	if fullfsync {
		if _, err := unix.FcntlInt(f.Fd(), unix.F_FULLFSYNC, 0); err != nil {
			return fmt.Errorf("osadapter: F_FULLFSYNC %s: %w", f.Name(), err)
		}
		return nil
	}
	if err := unix.Fsync(int(f.Fd())); err != nil {
		return fmt.Errorf("osadapter: fsync %s: %w", f.Name(), err)
	}
	return nil
}
