package manager

import (
	"errors"
	"fmt"

	"github.com/Thifhi/metall/manager/alloc"
)

// translateAllocErr maps the alloc package's sentinel errors onto the
// manager's own exported sentinels, so callers only ever need to compare
// against this package's error values.
func translateAllocErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, alloc.ErrOutOfMemory):
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	case errors.Is(err, alloc.ErrInvalidArgument):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	case errors.Is(err, alloc.ErrReadOnly):
		return fmt.Errorf("%w: %v", ErrReadOnly, err)
	default:
		return err
	}
}

// Allocate returns the address of a freshly allocated region of at least
// nbytes, growing the backing segment if necessary.
func (m *Manager) Allocate(nbytes int64) (uintptr, error) {
	offset, err := m.allocator.Allocate(nbytes)
	if err != nil {
		return 0, translateAllocErr(err)
	}
	return m.DataBase() + uintptr(offset), nil
}

// AllocateAligned returns the address of a freshly allocated region of at
// least nbytes, aligned to align, which must be a power of two no larger
// than the chunk size.
func (m *Manager) AllocateAligned(nbytes, align int64) (uintptr, error) {
	offset, err := m.allocator.AllocateAligned(nbytes, align)
	if err != nil {
		return 0, translateAllocErr(err)
	}
	return m.DataBase() + uintptr(offset), nil
}

// Deallocate releases the allocation at addr, which must be the address
// Allocate/AllocateAligned/Construct originally returned.
func (m *Manager) Deallocate(addr uintptr) error {
	base := m.DataBase()
	if addr < base {
		return ErrInvalidArgument
	}
	offset := int64(addr - base)
	return translateAllocErr(m.allocator.Deallocate(offset))
}

// AllMemoryDeallocated reports whether every chunk in the segment is free.
// Expensive: scans the full chunk directory and bin state.
func (m *Manager) AllMemoryDeallocated() bool {
	return m.allocator.AllMemoryDeallocated()
}

// Flush flushes pending writes to the backing file, blocking until
// complete when synchronous is true. Safe to call from any goroutine:
// Storage serializes concurrent Sync calls on its own mutex, and Flush
// touches no allocator state, so no additional locking is needed here.
func (m *Manager) Flush(synchronous bool) error {
	if err := m.storage.Sync(synchronous); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}
