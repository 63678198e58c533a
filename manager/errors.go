package manager

import "errors"

var (
	// ErrInvalidConfiguration is returned from Create/Open when chunk size is
	// not a positive multiple of the OS page size, or capacity is not
	// positive. There is no upper bound check: a capacity the platform cannot
	// reserve fails with ErrIOFailure instead.
	ErrInvalidConfiguration = errors.New("metall: invalid configuration")

	// ErrInconsistentDatastore is returned from Open when the properly_closed
	// marker is missing.
	ErrInconsistentDatastore = errors.New("metall: inconsistent datastore")

	// ErrIOFailure wraps an underlying file create/open/extend/sync failure.
	ErrIOFailure = errors.New("metall: I/O failure")

	// ErrOutOfMemory is returned when the segment cannot be extended further.
	ErrOutOfMemory = errors.New("metall: out of memory")

	// ErrReadOnly is returned for a mutation attempted on a read-only store.
	ErrReadOnly = errors.New("metall: read-only")

	// ErrNameInUse is returned by Construct without find-or-create on an
	// existing name.
	ErrNameInUse = errors.New("metall: name in use")

	// ErrInvalidArgument covers an alignment too large, or DestroyPtr on a
	// non-head or foreign address.
	ErrInvalidArgument = errors.New("metall: invalid argument")

	// ErrUserConstructorFailed wraps an initializer's own error; memory is
	// freed and the directory entry removed before this is surfaced.
	ErrUserConstructorFailed = errors.New("metall: user constructor failed")

	// ErrClosed names the state of a Manager after Close. No Manager method
	// checks for that state or returns this error; a second Close returns nil.
	ErrClosed = errors.New("metall: manager closed")
)
