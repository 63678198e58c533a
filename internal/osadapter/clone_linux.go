//go:build linux

package osadapter

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CloneFile copies src to dst. When reflinkIfPossible is true it first tries
// a copy-on-write clone via the FICLONE ioctl (same underlying extents,
// instant, zero extra disk until either side is modified); if the
// filesystem does not support it (ENOTTY, EOPNOTSUPP, EXDEV across
// filesystems), it falls back to StreamCopy.
func CloneFile(src, dst string, reflinkIfPossible bool) error {
	if reflinkIfPossible {
		if err := tryReflink(src, dst); err == nil {
			return nil
		}
	}
	return StreamCopy(src, dst)
}

func tryReflink(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("osadapter: open clone source %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("osadapter: create clone destination %s: %w", dst, err)
	}
	defer out.Close()

	if err := unix.IoctlFileClone(int(out.Fd()), int(in.Fd())); err != nil {
		return fmt.Errorf("osadapter: FICLONE %s -> %s: %w", src, dst, err)
	}
	return nil
}
