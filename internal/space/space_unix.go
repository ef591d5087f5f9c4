// +build !windows

// Package space queries the free space available on the filesystem holding a
// path. The result is used only to estimate how many files a fill run will
// produce; the fill itself runs until the disk reports no space.
package space

import "golang.org/x/sys/unix"

// Free returns the number of bytes available to an unprivileged process on the
// filesystem containing path.
func Free(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
