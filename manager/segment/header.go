package segment

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/Thifhi/metall/internal/osadapter"
)

// HeaderSize is the size, in bytes, of the anonymous mapping that holds the
// segment header. One page is far more than the header needs, but it keeps
// the data region that follows page-aligned regardless of platform.
var HeaderSize = osadapter.PageSize()

// Header is the small structure mapped at the start of the reserved VM
// region, ahead of the data region that Storage maps. It exists only so
// in-heap allocators handed to containers can recover the data region's
// base address indirectly, rather than capturing an absolute address that
// would go stale across a reopen at a different base.
type Header struct {
	addr uintptr
}

// PlaceHeader maps a fresh anonymous header at addr and zeroes it.
func PlaceHeader(addr uintptr) (*Header, error) {
	if err := osadapter.MapAnonymousFixed(addr, HeaderSize); err != nil {
		return nil, fmt.Errorf("segment: place header at %#x: %w", addr, err)
	}
	return &Header{addr: addr}, nil
}

// SetSegmentBase writes the data region's base address into the header.
// Called exactly once per attach, immediately after Storage.Create/Open
// succeeds.
func (h *Header) SetSegmentBase(base uintptr) {
	binary.LittleEndian.PutUint64(h.view(), uint64(base))
}

// SegmentBase reads back the data region's base address.
func (h *Header) SegmentBase() uintptr {
	return uintptr(binary.LittleEndian.Uint64(h.view()))
}

func (h *Header) view() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(h.addr)), 8)
}

// Release unmaps the header.
func (h *Header) Release() error {
	return osadapter.Unmap(h.addr, HeaderSize)
}
