// Package directory implements the named-object directory: an in-memory
// mapping from name to allocation entry, partitioned into named,
// unique-per-type, and anonymous kinds, with an exact-round-trip on-disk
// format.
package directory

import (
	"errors"
	"fmt"
	"iter"
	"sort"
	"strconv"
	"sync"

	"github.com/Thifhi/metall/internal/format"
)

// ErrNameInUse is returned by Insert when a conflicting entry already
// exists for the given kind and name.
var ErrNameInUse = errors.New("directory: name in use")

// Entry is one named-object-directory record.
type Entry struct {
	Name        string
	TypeID      string
	Kind        format.Kind
	Offset      int64
	Length      uint64
	Description string
}

// Directory is the named-object directory (component F). Anonymous entries
// have no user-visible key; they are stored keyed by their own offset,
// formatted as a decimal string, purely so Find/Erase/Iterate share one
// code path across all three kinds.
type Directory struct {
	mu      sync.RWMutex
	entries [3]map[string]*Entry // indexed by format.Kind
}

// New returns an empty directory.
func New() *Directory {
	d := &Directory{}
	for k := range d.entries {
		d.entries[k] = make(map[string]*Entry)
	}
	return d
}

func anonymousKey(offset int64) string {
	return strconv.FormatInt(offset, 10)
}

// Find looks up name under kind. For format.KindAnonymous, name must be the
// entry's offset formatted as a decimal string; FindAnonymous does that.
func (d *Directory) Find(kind format.Kind, name string) (Entry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[kind][name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// FindAnonymous looks up the anonymous entry whose allocation starts at offset.
func (d *Directory) FindAnonymous(offset int64) (Entry, bool) {
	return d.Find(format.KindAnonymous, anonymousKey(offset))
}

// Insert adds a new entry. For format.KindAnonymous the key is derived from
// offset, not from name.
func (d *Directory) Insert(kind format.Kind, name string, offset int64, length uint64, typeID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := name
	if kind == format.KindAnonymous {
		key = anonymousKey(offset)
	}
	if _, exists := d.entries[kind][key]; exists {
		return fmt.Errorf("%w: kind=%s name=%q", ErrNameInUse, kind, name)
	}
	d.entries[kind][key] = &Entry{Name: name, TypeID: typeID, Kind: kind, Offset: offset, Length: length}
	return nil
}

// Erase removes the entry for name under kind. It does not free the
// underlying allocation; the manager kernel drives that separately.
func (d *Directory) Erase(kind format.Kind, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.entries[kind][name]; !ok {
		return false
	}
	delete(d.entries[kind], name)
	return true
}

// EraseAnonymous removes the anonymous entry whose allocation starts at offset.
func (d *Directory) EraseAnonymous(offset int64) bool {
	return d.Erase(format.KindAnonymous, anonymousKey(offset))
}

// SetDescription attaches or replaces the description text on an existing entry.
func (d *Directory) SetDescription(kind format.Kind, name, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entries[kind][name]
	if !ok {
		return fmt.Errorf("directory: no such entry kind=%s name=%q", kind, name)
	}
	e.Description = text
	return nil
}

// GetDescription returns the description text attached to an entry.
func (d *Directory) GetDescription(kind format.Kind, name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entries[kind][name]
	if !ok {
		return "", false
	}
	return e.Description, true
}

// FindByOffset searches every kind for the entry whose allocation starts at
// offset, used by pointer-based destroy where the caller has an address but
// not the kind/name it was registered under.
func (d *Directory) FindByOffset(offset int64) (format.Kind, string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for kind, m := range d.entries {
		for key, e := range m {
			if e.Offset == offset {
				return format.Kind(kind), key, true
			}
		}
	}
	return 0, "", false
}

// EraseByOffset removes whichever entry (of any kind) starts at offset.
func (d *Directory) EraseByOffset(offset int64) bool {
	kind, key, ok := d.FindByOffset(offset)
	if !ok {
		return false
	}
	return d.Erase(kind, key)
}

// Count returns the number of entries of the given kind.
func (d *Directory) Count(kind format.Kind) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries[kind])
}

// Iterate returns entries of the given kind in a stable (sorted by key)
// order. Per the documented caller obligation, the sequence is only valid
// for the lifetime of the iterator if no insertion or erasure occurs while
// it is being consumed.
func (d *Directory) Iterate(kind format.Kind) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		d.mu.RLock()
		keys := make([]string, 0, len(d.entries[kind]))
		for k := range d.entries[kind] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		snapshot := make([]Entry, len(keys))
		for i, k := range keys {
			snapshot[i] = *d.entries[kind][k]
		}
		d.mu.RUnlock()

		for _, e := range snapshot {
			if !yield(e) {
				return
			}
		}
	}
}
