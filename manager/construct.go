package manager

import (
	"fmt"
	"unsafe"

	"github.com/Thifhi/metall/internal/format"
)

// Kind re-exports the named-object-directory tag so callers never need to
// import the internal format package directly.
type Kind = format.Kind

const (
	Named     = format.KindNamed
	Unique    = format.KindUnique
	Anonymous = format.KindAnonymous
)

func typeIDOf[T any]() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func offsetPtr[T any](m *Manager, offset int64) *T {
	return (*T)(unsafe.Pointer(m.DataBase() + uintptr(offset)))
}

func ptrToOffset[T any](m *Manager, ptr *T) (int64, error) {
	addr := uintptr(unsafe.Pointer(ptr))
	base := m.DataBase()
	if addr < base {
		return 0, ErrInvalidArgument
	}
	off := int64(addr - base)
	if off < 0 || off >= m.storage.CurrentSize() {
		return 0, ErrInvalidArgument
	}
	return off, nil
}

func elementPtr[T any](base *T, i int) *T {
	return (*T)(unsafe.Add(unsafe.Pointer(base), i*int(unsafe.Sizeof(*base))))
}

// runInit calls init over every slot in order. Go values have no
// destructor, so on failure there is nothing to unwind beyond discarding
// the whole allocation — the caller deallocates the full span rather than
// replaying a reverse-order destruct loop.
func runInit[T any](base *T, count int, init func(i int, slot *T) error) error {
	for i := 0; i < count; i++ {
		if err := init(i, elementPtr(base, i)); err != nil {
			return err
		}
	}
	return nil
}

// resolveKey maps (kind, name) to the directory key: the user name for
// Named, the type token for Unique (name is ignored), empty for Anonymous.
func resolveKey[T any](kind Kind, name string) string {
	if kind == Unique {
		return typeIDOf[T]()
	}
	return name
}

// Construct allocates and initializes count contiguous values of T under
// kind/name. For Named and Unique kinds, an existing entry under the same
// key fails with ErrNameInUse; use FindOrConstruct to get-or-create instead.
func Construct[T any](m *Manager, kind Kind, name string, count int, init func(i int, slot *T) error) (*T, error) {
	return construct[T](m, kind, name, count, init, false)
}

// FindOrConstruct returns the existing entry under kind/name if present
// (init is not run and count is ignored — the found entry wins), otherwise
// allocates and initializes a new one exactly like Construct.
func FindOrConstruct[T any](m *Manager, kind Kind, name string, count int, init func(i int, slot *T) error) (*T, error) {
	return construct[T](m, kind, name, count, init, true)
}

func construct[T any](m *Manager, kind Kind, name string, count int, init func(i int, slot *T) error, findOrCreate bool) (*T, error) {
	if count <= 0 {
		return nil, fmt.Errorf("%w: count %d must be positive", ErrInvalidArgument, count)
	}
	if m.readOnly {
		return nil, ErrReadOnly
	}

	var zero T
	size := int64(unsafe.Sizeof(zero))
	align := int64(unsafe.Alignof(zero))
	typeID := typeIDOf[T]()

	if kind == Anonymous {
		offset, err := m.allocator.AllocateAligned(size*int64(count), align)
		if err != nil {
			return nil, translateAllocErr(err)
		}
		ptr := offsetPtr[T](m, offset)
		if err := runInit(ptr, count, init); err != nil {
			_ = m.allocator.Deallocate(offset)
			return nil, fmt.Errorf("%w: %v", ErrUserConstructorFailed, err)
		}
		if err := m.directory.Insert(format.KindAnonymous, "", offset, uint64(count), typeID); err != nil {
			return nil, fmt.Errorf("metall: internal: anonymous offset collision: %v", err)
		}
		return ptr, nil
	}

	key := resolveKey[T](kind, name)

	if e, ok := m.directory.Find(kind, key); ok {
		if !findOrCreate {
			return nil, fmt.Errorf("%w: kind=%s name=%q", ErrNameInUse, kind, key)
		}
		return offsetPtr[T](m, e.Offset), nil
	}

	offset, err := m.allocator.AllocateAligned(size*int64(count), align)
	if err != nil {
		return nil, translateAllocErr(err)
	}
	if err := m.directory.Insert(kind, key, offset, uint64(count), typeID); err != nil {
		_ = m.allocator.Deallocate(offset)
		if findOrCreate {
			if e, ok := m.directory.Find(kind, key); ok {
				return offsetPtr[T](m, e.Offset), nil
			}
		}
		return nil, fmt.Errorf("%w: kind=%s name=%q", ErrNameInUse, kind, key)
	}

	ptr := offsetPtr[T](m, offset)
	if err := runInit(ptr, count, init); err != nil {
		m.directory.Erase(kind, key)
		_ = m.allocator.Deallocate(offset)
		return nil, fmt.Errorf("%w: %v", ErrUserConstructorFailed, err)
	}
	return ptr, nil
}

// Find looks up an existing Named or Unique entry by name (for Unique, name
// is ignored in favor of T's type token). It returns the entry's address,
// the element count it was constructed with, and whether it was found.
func Find[T any](m *Manager, kind Kind, name string) (*T, int, bool) {
	key := resolveKey[T](kind, name)
	e, ok := m.directory.Find(kind, key)
	if !ok {
		return nil, 0, false
	}
	return offsetPtr[T](m, e.Offset), int(e.Length), true
}

// Destroy removes the Named or Unique entry for name, then deallocates its
// memory. The entry is removed from the directory before deallocation, so
// a failed deallocation leaks memory rather than risking a double free.
func Destroy[T any](m *Manager, kind Kind, name string) bool {
	if m.readOnly {
		return false
	}
	key := resolveKey[T](kind, name)
	e, ok := m.directory.Find(kind, key)
	if !ok {
		return false
	}
	if !m.directory.Erase(kind, key) {
		return false
	}
	if err := m.allocator.Deallocate(e.Offset); err != nil {
		m.logger.Warn("destroy: deallocate failed, leaking memory", "kind", kind, "name", key, "error", err)
	}
	return true
}

// DestroyPtr destroys the allocation whose head ptr points to, translating the
// address to an offset and asking the allocator directly whether it is an
// allocation head. Any directory entry registered under that offset
// (typically an Anonymous one, since Named/Unique entries are ordinarily
// destroyed by name) is removed first.
func DestroyPtr[T any](m *Manager, ptr *T) bool {
	if m.readOnly {
		return false
	}
	offset, err := ptrToOffset[T](m, ptr)
	if err != nil {
		return false
	}
	m.directory.EraseByOffset(offset)
	return m.allocator.Deallocate(offset) == nil
}
