package manager

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/Thifhi/metall/internal/format"
	"github.com/Thifhi/metall/internal/osadapter"
	"github.com/Thifhi/metall/manager/alloc"
	"github.com/Thifhi/metall/manager/directory"
	"github.com/Thifhi/metall/manager/segment"
)

func validateConfig(cfg *config) error {
	pageSize := osadapter.PageSize()
	if cfg.chunkSize <= 0 || cfg.chunkSize%pageSize != 0 {
		return fmt.Errorf("%w: chunk size %d is not a multiple of the page size %d", ErrInvalidConfiguration, cfg.chunkSize, pageSize)
	}
	if cfg.capacity <= 0 {
		return fmt.Errorf("%w: capacity %d must be positive", ErrInvalidConfiguration, cfg.capacity)
	}
	return nil
}

// reserveVM reserves the VM region a Manager needs: a header slice,
// chunk-aligned so the data region that follows is itself chunk-aligned,
// plus the capacity ceiling rounded up to a whole number of chunks.
func reserveVM(cfg *config) (vmBase uintptr, vmTotal int64, err error) {
	capacityAligned := format.AlignUp(cfg.capacity, cfg.chunkSize)
	vmTotal = headerRegionSize(cfg.chunkSize) + capacityAligned
	vmBase, err = osadapter.ReserveAligned(cfg.chunkSize, vmTotal)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: reserve VM region: %v", ErrIOFailure, err)
	}
	return vmBase, vmTotal, nil
}

// Create initializes a brand new datastore at path, overwriting anything
// already there. On any failure after the VM region has been reserved, the
// reservation is released before returning.
func Create(path string, opts ...Option) (*Manager, error) {
	cfg := resolveOptions(opts)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if err := osadapter.CreateDirectory(path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	ds := datastoreDir(path)
	if err := osadapter.RemoveRecursive(ds); err != nil {
		return nil, fmt.Errorf("%w: wiping prior datastore: %v", ErrIOFailure, err)
	}
	if err := osadapter.CreateDirectory(ds); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.Remove(markerPath(path)); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: removing stale marker: %v", ErrIOFailure, err)
	}

	vmBase, vmTotal, err := reserveVM(cfg)
	if err != nil {
		return nil, err
	}

	header, err := segment.PlaceHeader(vmBase)
	if err != nil {
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	dataBase := vmBase + uintptr(headerRegionSize(cfg.chunkSize))

	capacityAligned := format.AlignUp(cfg.capacity, cfg.chunkSize)
	storage := segment.New(cfg.logger)
	if err := storage.Create(ds, capacityAligned, dataBase, 0); err != nil {
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	header.SetSegmentBase(dataBase)

	id := uuid.New().String()
	if err := os.WriteFile(uuidPath(path), []byte(id), 0o644); err != nil {
		_ = storage.Destroy()
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: writing uuid: %v", ErrIOFailure, err)
	}
	var versionBytes [4]byte
	binary.LittleEndian.PutUint32(versionBytes[:], uint32(CurrentVersion))
	if err := os.WriteFile(versionPath(path), versionBytes[:], 0o644); err != nil {
		_ = storage.Destroy()
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: writing version: %v", ErrIOFailure, err)
	}

	cfg.logger.Info("datastore created", "path", path, "capacity", cfg.capacity, "chunk_size", cfg.chunkSize)

	return &Manager{
		basePath:  path,
		cfg:       cfg,
		logger:    cfg.logger,
		readOnly:  false,
		vmBase:    vmBase,
		vmTotal:   vmTotal,
		header:    header,
		storage:   storage,
		allocator: alloc.New(storage, cfg.chunkSize, false),
		directory: directory.New(),
	}, nil
}

// Open attaches to an existing, cleanly closed datastore for read-write use.
func Open(path string, opts ...Option) (*Manager, error) {
	return openExisting(path, false, opts)
}

// OpenReadOnly attaches to an existing, cleanly closed datastore for
// read-only use; no mutation of the on-disk state is permitted.
func OpenReadOnly(path string, opts ...Option) (*Manager, error) {
	return openExisting(path, true, opts)
}

func openExisting(path string, readOnly bool, opts []Option) (*Manager, error) {
	cfg := resolveOptions(opts)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if !osadapter.FileExists(markerPath(path)) {
		return nil, ErrInconsistentDatastore
	}

	vmBase, vmTotal, err := reserveVM(cfg)
	if err != nil {
		return nil, err
	}

	header, err := segment.PlaceHeader(vmBase)
	if err != nil {
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	dataBase := vmBase + uintptr(headerRegionSize(cfg.chunkSize))

	capacityAligned := format.AlignUp(cfg.capacity, cfg.chunkSize)
	storage := segment.New(cfg.logger)
	if err := storage.Open(datastoreDir(path), capacityAligned, dataBase, readOnly); err != nil {
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	header.SetSegmentBase(dataBase)

	allocator := alloc.New(storage, cfg.chunkSize, readOnly)
	if raw, err := os.ReadFile(allocatorStatePath(path)); err == nil {
		if err := allocator.Deserialize(bytes.NewReader(raw)); err != nil {
			_ = storage.Destroy()
			_ = header.Release()
			_ = osadapter.Unmap(vmBase, vmTotal)
			return nil, fmt.Errorf("%w: allocator state: %v", ErrInconsistentDatastore, err)
		}
	} else if !os.IsNotExist(err) {
		_ = storage.Destroy()
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	dir := directory.New()
	if raw, err := os.ReadFile(namedDirectoryPath(path)); err == nil {
		if err := dir.Deserialize(bytes.NewReader(raw)); err != nil {
			_ = storage.Destroy()
			_ = header.Release()
			_ = osadapter.Unmap(vmBase, vmTotal)
			return nil, fmt.Errorf("%w: named directory: %v", ErrInconsistentDatastore, err)
		}
	} else if !os.IsNotExist(err) {
		_ = storage.Destroy()
		_ = header.Release()
		_ = osadapter.Unmap(vmBase, vmTotal)
		return nil, fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	if !readOnly {
		if err := os.Remove(markerPath(path)); err != nil && !os.IsNotExist(err) {
			_ = storage.Destroy()
			_ = header.Release()
			_ = osadapter.Unmap(vmBase, vmTotal)
			return nil, fmt.Errorf("%w: removing marker: %v", ErrIOFailure, err)
		}
	}

	cfg.logger.Info("datastore opened", "path", path, "read_only", readOnly)

	return &Manager{
		basePath:  path,
		cfg:       cfg,
		logger:    cfg.logger,
		readOnly:  readOnly,
		vmBase:    vmBase,
		vmTotal:   vmTotal,
		header:    header,
		storage:   storage,
		allocator: allocator,
		directory: dir,
	}, nil
}

// Close is idempotent: a second call on an already-closed Manager is a
// no-op. On success, the properly_closed marker is written as the very
// last action, so its presence strictly implies every prior step succeeded.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	if !m.readOnly {
		var dirBuf bytes.Buffer
		if err := m.directory.Serialize(&dirBuf); err != nil {
			return fmt.Errorf("%w: serializing named directory: %v", ErrIOFailure, err)
		}
		if err := os.WriteFile(namedDirectoryPath(m.basePath), dirBuf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}

		var allocBuf bytes.Buffer
		if err := m.allocator.Serialize(&allocBuf); err != nil {
			return fmt.Errorf("%w: serializing allocator state: %v", ErrIOFailure, err)
		}
		if err := os.WriteFile(allocatorStatePath(m.basePath), allocBuf.Bytes(), 0o644); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}

		if err := m.storage.Sync(true); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}

	dataSize := m.storage.CurrentSize()
	if err := m.storage.Destroy(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	headerSize := headerRegionSize(m.cfg.chunkSize)
	remaining := m.vmTotal - headerSize - dataSize
	if remaining > 0 {
		if err := osadapter.Unmap(m.vmBase+uintptr(headerSize)+uintptr(dataSize), remaining); err != nil {
			return fmt.Errorf("%w: releasing unused VM reservation: %v", ErrIOFailure, err)
		}
	}
	if err := m.header.Release(); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	if err := os.WriteFile(markerPath(m.basePath), nil, 0o644); err != nil {
		return fmt.Errorf("%w: writing marker: %v", ErrIOFailure, err)
	}

	m.closed = true
	m.logger.Info("datastore closed", "path", m.basePath)
	return nil
}
