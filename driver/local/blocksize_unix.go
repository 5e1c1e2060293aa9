//go:build unix

package local

import "syscall"

// blockSize returns the preferred I/O block size of the filesystem
// holding path, falling back to the parent directory when the path does
// not exist yet. Returns 0 when it cannot be determined.
func blockSize(path, parent string) int {
	var st syscall.Stat_t
	if err := syscall.Stat(path, &st); err != nil {
		if err := syscall.Stat(parent, &st); err != nil {
			return 0
		}
	}
	return int(st.Blksize)
}
