// Package segment owns the file-backed mapping that exposes the persistent
// heap's data region: mapping the backing file at a fixed address inside a
// virtual address range the caller has already reserved, growing it chunk by
// chunk, and flushing it to disk.
package segment

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Thifhi/metall/internal/osadapter"
)

const backingFileName = "segment.0"

// Storage is the segment's file-backed mapping: a single growable file
// mapped contiguously at a fixed virtual address. Extend maps newly added
// bytes in place rather than remapping the whole region, matching the
// guarantee that offsets already handed out remain valid addresses.
type Storage struct {
	mu sync.Mutex

	f          *os.File
	path       string
	base       uintptr
	size       int64
	vmCapacity int64
	readOnly   bool
	logger     *slog.Logger
}

// New returns an unattached Storage. Call Create or Open before using it.
func New(logger *slog.Logger) *Storage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Storage{logger: logger}
}

// SegmentBase returns the address the data region is mapped at.
func (s *Storage) SegmentBase() uintptr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// CurrentSize returns the number of live (mapped) bytes.
func (s *Storage) CurrentSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Create creates the backing file under dir, maps its first initialSize
// bytes at addr, and remembers vmCapacity as the ceiling future Extend
// calls may not cross.
func (s *Storage) Create(dir string, vmCapacity int64, addr uintptr, initialSize int64) error {
	path := filepath.Join(dir, backingFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("segment: create %s: %w", path, err)
	}
	if err := f.Truncate(initialSize); err != nil {
		f.Close()
		return fmt.Errorf("segment: truncate %s to %d: %w", path, initialSize, err)
	}
	if initialSize > 0 {
		if err := osadapter.MapFileFixed(addr, initialSize, f, 0, true); err != nil {
			f.Close()
			return fmt.Errorf("segment: map %s: %w", path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.f, s.path, s.base, s.size, s.vmCapacity, s.readOnly = f, path, addr, initialSize, vmCapacity, false
	s.logger.Info("segment created", "path", path, "size", initialSize, "base", addr)
	return nil
}

// Open maps an existing backing file under dir at addr.
func (s *Storage) Open(dir string, vmCapacity int64, addr uintptr, readOnly bool) error {
	path := filepath.Join(dir, backingFileName)
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return fmt.Errorf("segment: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("segment: stat %s: %w", path, err)
	}
	size := info.Size()
	if size > 0 {
		if err := osadapter.MapFileFixed(addr, size, f, 0, !readOnly); err != nil {
			f.Close()
			return fmt.Errorf("segment: map %s: %w", path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.f, s.path, s.base, s.size, s.vmCapacity, s.readOnly = f, path, addr, size, vmCapacity, readOnly
	s.logger.Info("segment opened", "path", path, "size", size, "base", addr, "read_only", readOnly)
	return nil
}

// Extend grows the backing file and the live mapping to newSize, mapping
// only the newly added bytes at base+oldSize so offsets already handed out
// remain valid addresses. A no-op if the segment is already at least
// newSize.
func (s *Storage) Extend(newSize int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if newSize <= s.size {
		return nil
	}
	if s.readOnly {
		return ErrReadOnly
	}
	if newSize > s.vmCapacity {
		return fmt.Errorf("%w: %d exceeds vm capacity %d", ErrOutOfMemory, newSize, s.vmCapacity)
	}
	if err := s.f.Truncate(newSize); err != nil {
		return fmt.Errorf("segment: truncate %s to %d: %w", s.path, newSize, err)
	}
	delta := newSize - s.size
	if err := osadapter.MapFileFixed(s.base+uintptr(s.size), delta, s.f, s.size, true); err != nil {
		return fmt.Errorf("segment: extend map %s: %w", s.path, err)
	}
	s.logger.Info("segment extended", "path", s.path, "old_size", s.size, "new_size", newSize)
	s.size = newSize
	return nil
}

// Sync flushes dirty pages and the file's metadata to stable storage,
// blocking until complete when synchronous is true.
func (s *Storage) Sync(synchronous bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size > 0 {
		if err := osadapter.Msync(s.base, s.size, synchronous); err != nil {
			return err
		}
	}
	return osadapter.Fdatasync(s.f, synchronous)
}

// Destroy unmaps the segment and closes the backing file. It does not
// delete the file.
func (s *Storage) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.size > 0 {
		if err := osadapter.Unmap(s.base, s.size); err != nil {
			return err
		}
	}
	if s.f != nil {
		if err := s.f.Close(); err != nil {
			return fmt.Errorf("segment: close %s: %w", s.path, err)
		}
	}
	s.logger.Info("segment destroyed", "path", s.path)
	return nil
}
