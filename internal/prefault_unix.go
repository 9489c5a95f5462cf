//go:build unix

package internal

import (
	"os"
	"runtime"

	"golang.org/x/sys/unix"
)

// prefaultFile maps path read-only, asks the kernel to read it ahead and then
// touches one byte per page so the whole file is resident before the engine maps it.
func prefaultFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}
	size := int(fi.Size())
	if size == 0 {
		return nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return err
	}
	defer unix.Munmap(data)

	// madvise wants page-aligned ranges; EINVAL only costs us the hint
	if err := unix.Madvise(data, unix.MADV_WILLNEED); err != nil && err != unix.EINVAL {
		return err
	}

	page := os.Getpagesize()
	var sum byte
	for off := 0; off < len(data); off += page {
		sum ^= data[off]
	}
	runtime.KeepAlive(sum)
	return nil
}
