//go:build unix

package ring

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps size bytes of file read-write and shared.
func mmapFile(file *os.File, size int) ([]byte, error) {
	mem, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", file.Name(), err)
	}
	return mem, nil
}

// syncAndUnmap flushes the mapping to the backing file and releases it.
// Must run before the ring file is deleted so no dangling mapping remains.
func syncAndUnmap(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Msync(mem, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
