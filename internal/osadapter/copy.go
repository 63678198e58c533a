package osadapter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// StreamCopy copies src to dst byte-for-byte, used when reflink cloning is
// unavailable or declined.
func StreamCopy(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("osadapter: open copy source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("osadapter: create copy destination %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("osadapter: stream copy %s -> %s: %w", src, dst, err)
	}
	return out.Sync()
}

// CopyTree clones or streams every regular file under srcDir into dstDir,
// preserving the relative directory structure, using up to threads worker
// goroutines (threads <= 0 auto-selects runtime.NumCPU()). The whole
// operation is cancellable via ctx; a cancellation stops scheduling new
// files but does not interrupt a file copy already in flight.
func CopyTree(ctx context.Context, srcDir, dstDir string, clone bool, threads int) error {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	if err := CreateDirectory(dstDir); err != nil {
		return err
	}

	var files []string
	if err := filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			rel, relErr := filepath.Rel(srcDir, path)
			if relErr != nil {
				return relErr
			}
			return CreateDirectory(filepath.Join(dstDir, rel))
		}
		files = append(files, path)
		return nil
	}); err != nil {
		return fmt.Errorf("osadapter: walk %s: %w", srcDir, err)
	}

	sem := semaphore.NewWeighted(int64(threads))
	g, gctx := errgroup.WithContext(ctx)
	for _, path := range files {
		path := path
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("osadapter: relativize %s: %w", path, err)
		}
		dst := filepath.Join(dstDir, rel)

		if err := sem.Acquire(gctx, 1); err != nil {
			if werr := g.Wait(); werr != nil {
				return werr
			}
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return CloneFile(path, dst, clone)
		})
	}
	return g.Wait()
}
