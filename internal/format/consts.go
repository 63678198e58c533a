// Package format holds the on-disk encoding primitives shared by the allocator
// and directory serializers: fixed-width little-endian integers, alignment
// helpers, and the checksum used to catch torn writes.
package format

const (
	// DefaultChunkSize is the default coarse allocation unit, in bytes.
	// Must always be a multiple of the OS page size.
	DefaultChunkSize = 2 << 20 // 2 MiB

	// DefaultPageSize is used only as a fallback when the OS adapter cannot
	// report a page size (should not happen on supported platforms).
	DefaultPageSize = 4096

	// AllocatorStateVersion is the version byte written at the head of the
	// serialized allocator_state file.
	AllocatorStateVersion = 1

	// NamedDirectoryVersion is the version byte written at the head of the
	// serialized named_directory file.
	NamedDirectoryVersion = 1

	// CellAlignmentMask rounds sizes up to an 8-byte boundary.
	CellAlignmentMask = 7

	// Align16Mask rounds sizes up to a 16-byte boundary.
	Align16Mask = 15

	// ChunkAlignmentMask rounds sizes up to DefaultChunkSize; only valid when
	// the chunk size in use equals DefaultChunkSize. Code operating on a
	// configurable chunk size should use AlignUp instead.
	ChunkAlignmentMask = DefaultChunkSize - 1
)

// Kind tags a named-object-directory entry, persisted as a single byte.
type Kind uint8

const (
	KindNamed Kind = iota
	KindUnique
	KindAnonymous
)

func (k Kind) String() string {
	switch k {
	case KindNamed:
		return "named"
	case KindUnique:
		return "unique"
	case KindAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// ChunkState tags a chunk-directory entry, persisted as a single byte.
type ChunkState uint8

const (
	ChunkFree ChunkState = iota
	ChunkSlab
	ChunkLargeHead
	ChunkLargeTail
)
