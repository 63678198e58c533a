//go:build !linux

package osadapter

// CloneFile copies src to dst. Reflink cloning is a Linux-only ioctl
// (FICLONE); every other supported platform always streams the copy.
func CloneFile(src, dst string, reflinkIfPossible bool) error {
	return StreamCopy(src, dst)
}
