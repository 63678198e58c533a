package alloc

import "errors"

var (
	// ErrOutOfMemory is returned when the segment cannot be extended far
	// enough to satisfy an allocation.
	ErrOutOfMemory = errors.New("alloc: out of memory")

	// ErrInvalidArgument is returned for an alignment that is not a power of
	// two, larger than the chunk size, or a Deallocate on an interior offset.
	ErrInvalidArgument = errors.New("alloc: invalid argument")

	// ErrReadOnly is returned for any mutating call on a read-only allocator.
	ErrReadOnly = errors.New("alloc: read-only")

	// ErrCorruptState is returned when deserializing allocator_state fails
	// its checksum or version check.
	ErrCorruptState = errors.New("alloc: corrupt allocator state")
)
