// Package osadapter is the thin platform boundary the segment allocator is
// built on: aligned virtual-memory reservation, fixed-address file-backed
// mapping, fsync/msync, and file cloning. The allocator and directory above
// it work in offsets; osadapter is the only package that issues a platform
// mmap or sync syscall.
package osadapter

import (
	"fmt"
	"os"
)

// FileExists reports whether path exists (regardless of type).
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CreateDirectory creates path and any missing parents, matching the
// permissions a datastore directory needs (owner rwx, group/other rx).
func CreateDirectory(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("osadapter: create directory %s: %w", path, err)
	}
	return nil
}

// RemoveRecursive deletes path and everything under it. It is not an error
// for path to already be absent.
func RemoveRecursive(path string) error {
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("osadapter: remove %s: %w", path, err)
	}
	return nil
}

// FsyncFile flushes f's data and metadata to stable storage.
func FsyncFile(f *os.File) error {
	if err := f.Sync(); err != nil {
		return fmt.Errorf("osadapter: fsync %s: %w", f.Name(), err)
	}
	return nil
}
