package manager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"iter"
	"os"

	"github.com/Thifhi/metall/internal/osadapter"
	"github.com/Thifhi/metall/manager/directory"
)

// ListNamed iterates the Named directory in stable, sorted-by-key order.
func (m *Manager) ListNamed() iter.Seq[directory.Entry] { return m.directory.Iterate(Named) }

// ListUnique iterates the Unique directory in stable, sorted-by-key order.
func (m *Manager) ListUnique() iter.Seq[directory.Entry] { return m.directory.Iterate(Unique) }

// ListAnonymous iterates the Anonymous directory in stable, sorted-by-key order.
func (m *Manager) ListAnonymous() iter.Seq[directory.Entry] { return m.directory.Iterate(Anonymous) }

// EntryDescription returns the description text attached to a directory entry.
func (m *Manager) EntryDescription(kind Kind, name string) (string, bool) {
	return m.directory.GetDescription(kind, name)
}

// SetEntryDescription attaches or replaces the description text on an
// existing directory entry.
func (m *Manager) SetEntryDescription(kind Kind, name, text string) error {
	if m.readOnly {
		return ErrReadOnly
	}
	return m.directory.SetDescription(kind, name, text)
}

// IsInstanceOf reports whether the entry at kind/name was constructed as T.
func IsInstanceOf[T any](m *Manager, kind Kind, name string) bool {
	key := resolveKey[T](kind, name)
	e, ok := m.directory.Find(kind, key)
	if !ok {
		return false
	}
	return e.TypeID == typeIDOf[T]()
}

// SetDescription attaches or replaces the datastore-wide description.
func (m *Manager) SetDescription(text string) error {
	if m.readOnly {
		return ErrReadOnly
	}
	if err := os.WriteFile(descriptionPath(m.basePath), []byte(text), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// GetDescription reads back the datastore-wide description. A missing file
// is not an error; it returns an empty string.
func (m *Manager) GetDescription() (string, error) {
	return GetDescription(m.basePath)
}

// SetDescription writes the datastore-wide description for a closed store,
// without opening it.
func SetDescription(path, text string) error {
	if err := os.WriteFile(descriptionPath(path), []byte(text), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// GetDescription reads the datastore-wide description for a store at path,
// open or closed. A missing file is not an error; it returns an empty string.
func GetDescription(path string) (string, error) {
	data, err := os.ReadFile(descriptionPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return string(data), nil
}

// GetUUID returns the identity of the currently open store.
func (m *Manager) GetUUID() string {
	id, _ := GetUUID(m.basePath)
	return id
}

// GetUUID reads the identity file of the store at path. A missing file is
// not an error; it returns an empty string.
func GetUUID(path string) (string, error) {
	data, err := os.ReadFile(uuidPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return string(data), nil
}

// GetVersion returns the on-disk format version of the currently open store.
func (m *Manager) GetVersion() Version {
	v, _ := GetVersion(m.basePath)
	return v
}

// GetVersion reads the fixed version byte sequence written at create time
// for the store at path. A missing file is not an error; it returns 0.
func GetVersion(path string) (Version, error) {
	data, err := os.ReadFile(versionPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if len(data) < 4 {
		return 0, fmt.Errorf("%w: truncated version file", ErrInconsistentDatastore)
	}
	return Version(binary.LittleEndian.Uint32(data)), nil
}

// Consistent reports whether the properly_closed marker exists for the
// store at path, i.e. whether the last session exited cleanly.
func Consistent(path string) bool {
	return osadapter.FileExists(markerPath(path))
}

// ListOffline reads a closed store's named_directory file directly,
// without reserving any VM or mapping the data segment, and returns the
// entries of the given kind.
func ListOffline(path string, kind Kind) ([]directory.Entry, error) {
	raw, err := os.ReadFile(namedDirectoryPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	d := directory.New()
	if err := d.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInconsistentDatastore, err)
	}
	var entries []directory.Entry
	for e := range d.Iterate(kind) {
		entries = append(entries, e)
	}
	return entries, nil
}
