package manager

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Thifhi/metall/internal/osadapter"
)

// Future is a handle to an in-flight Snapshot/Copy/Remove. The async
// variants dispatch identical work to a goroutine and return immediately;
// Wait blocks the caller (not the dispatched work, which always runs to
// completion) until it finishes or ctx is done.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture(fn func() error) *Future {
	f := &Future{done: make(chan struct{})}
	go func() {
		f.err = fn()
		close(f.done)
	}()
	return f
}

// Wait blocks until the operation completes or ctx is cancelled. Cancelling
// ctx only stops the caller from waiting; the dispatched work is not
// interrupted and continues running in its own goroutine.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// sideFiles are the per-datastore metadata files that live beside
// datastore/, not inside it.
var sideFiles = []string{versionFileName}

// Snapshot syncs and re-serializes the source's management data (leaving
// the source itself cleanly persisted), clones datastore/ into dst, gives
// the destination a fresh identity, and writes its properly_closed marker.
func (m *Manager) Snapshot(ctx context.Context, dst string, clone bool, threads int) error {
	if m.readOnly {
		return ErrReadOnly
	}

	var dirBuf bytes.Buffer
	if err := m.directory.Serialize(&dirBuf); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.WriteFile(namedDirectoryPath(m.basePath), dirBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	var allocBuf bytes.Buffer
	if err := m.allocator.Serialize(&allocBuf); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.WriteFile(allocatorStatePath(m.basePath), allocBuf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := m.storage.Sync(true); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	if threads <= 0 {
		threads = m.cfg.maxCopyThreads
	}
	if err := osadapter.CreateDirectory(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := osadapter.CopyTree(ctx, datastoreDir(m.basePath), datastoreDir(dst), clone, threads); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if osadapter.FileExists(versionPath(m.basePath)) {
		if err := osadapter.CloneFile(versionPath(m.basePath), versionPath(dst), clone); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}
	if osadapter.FileExists(descriptionPath(m.basePath)) {
		if err := osadapter.CloneFile(descriptionPath(m.basePath), descriptionPath(dst), clone); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}

	// A snapshot is a new identity, not a copy of the source's.
	if err := os.WriteFile(uuidPath(dst), []byte(uuid.New().String()), 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := os.WriteFile(markerPath(dst), nil, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}

	m.logger.Info("snapshot complete", "src", m.basePath, "dst", dst)
	return nil
}

// SnapshotAsync dispatches Snapshot to a goroutine and returns immediately.
func (m *Manager) SnapshotAsync(ctx context.Context, dst string, clone bool, threads int) *Future {
	return newFuture(func() error { return m.Snapshot(ctx, dst, clone, threads) })
}

// Copy clones a closed datastore from src to dst, preserving its identity.
// The caller must ensure src is not currently open for writing.
func Copy(ctx context.Context, src, dst string, clone bool, threads int) error {
	if !Consistent(src) {
		return ErrInconsistentDatastore
	}
	if err := osadapter.CreateDirectory(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	if err := osadapter.CopyTree(ctx, datastoreDir(src), datastoreDir(dst), clone, threads); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	for _, name := range sideFiles {
		srcPath := filepath.Join(src, name)
		if !osadapter.FileExists(srcPath) {
			continue
		}
		if err := osadapter.CloneFile(srcPath, filepath.Join(dst, name), clone); err != nil {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}
	if err := os.WriteFile(markerPath(dst), nil, 0o644); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	return nil
}

// CopyAsync dispatches Copy to a goroutine and returns immediately.
func CopyAsync(ctx context.Context, src, dst string, clone bool, threads int) *Future {
	return newFuture(func() error { return Copy(ctx, src, dst, clone, threads) })
}

// Remove recursively deletes datastore/ and every marker file under path.
func Remove(path string) error {
	if err := osadapter.RemoveRecursive(datastoreDir(path)); err != nil {
		return fmt.Errorf("%w: %v", ErrIOFailure, err)
	}
	files := append([]string{markerFileName}, sideFiles...)
	for _, name := range files {
		if err := os.Remove(filepath.Join(path, name)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %v", ErrIOFailure, err)
		}
	}
	return nil
}

// RemoveAsync dispatches Remove to a goroutine and returns immediately.
func RemoveAsync(path string) *Future {
	return newFuture(func() error { return Remove(path) })
}
