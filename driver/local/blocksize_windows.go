//go:build windows

package local

// blockSize is not determinable without extra Windows API calls; callers
// fall back to the configured buffer size.
func blockSize(path, parent string) int {
	return 0
}
