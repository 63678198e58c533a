// Package manager implements the orchestrating kernel of the persistent
// heap: it wires the OS adapter, segment storage, segment allocator, and
// named-object directory together behind the lifecycle (Create/Open/Close),
// generic construct/destroy surface, and snapshot/copy/remove operations
// that make up the public API.
package manager

import (
	"log/slog"
	"sync"

	"github.com/Thifhi/metall/internal/format"
	"github.com/Thifhi/metall/manager/alloc"
	"github.com/Thifhi/metall/manager/directory"
	"github.com/Thifhi/metall/manager/segment"
)

// Version identifies the on-disk format written at create time.
type Version uint32

// CurrentVersion is written by Create and read back by GetVersion; it is
// not used to gate Open, since the format has not
// changed across any released version yet.
const CurrentVersion Version = 1

// Manager is a handle to one open persistent heap. All of its methods are
// safe for concurrent use by multiple goroutines, serialized internally by
// the directory and allocator locks the spec's lock hierarchy describes.
type Manager struct {
	mu sync.Mutex // guards the lifecycle fields below; Close idempotency

	basePath string
	cfg      *config
	logger   *slog.Logger
	readOnly bool

	vmBase  uintptr
	vmTotal int64

	header    *segment.Header
	storage   *segment.Storage
	allocator *alloc.Allocator
	directory *directory.Directory

	closed bool
}

// headerRegionSize is the size of the VM slice reserved for the segment
// header, rounded up to a whole chunk so the data region that follows it
// starts at a chunk-aligned address — AllocateAligned's offset guarantee
// then also holds for the raw addresses Allocate/Construct hand back, not
// just for offsets measured from the segment base.
func headerRegionSize(chunkSize int64) int64 {
	return format.AlignUp(segment.HeaderSize, chunkSize)
}

// DataBase returns the address the segment's data region is mapped at.
// Exposed for tests and for fancy-pointer resolution; not part of the
// stable on-disk format.
func (m *Manager) DataBase() uintptr {
	return m.vmBase + uintptr(headerRegionSize(m.cfg.chunkSize))
}

// ChunkSize returns the fixed coarse-allocation unit, in bytes.
func (m *Manager) ChunkSize() int64 {
	return m.cfg.chunkSize
}

// ReadOnly reports whether the store was opened read-only.
func (m *Manager) ReadOnly() bool {
	return m.readOnly
}
