package segment

import "errors"

var (
	// ErrOutOfMemory is returned when Extend would grow the segment past
	// its reserved VM capacity.
	ErrOutOfMemory = errors.New("segment: out of memory")

	// ErrReadOnly is returned when Extend is called on a read-only segment.
	ErrReadOnly = errors.New("segment: read-only")
)
