// Package mmap memory-maps fixed-size disk image files, letting the
// block layer address sectors directly through the page cache instead
// of paying a read or write syscall per sector.
//
// Disk images never change size, so there is no remap path, and every
// mapping is read-write: the only consumer is a block device that
// serves both ReadSector and WriteSector out of the same view.
package mmap

import "fmt"

// Map is a writable memory mapping of an entire disk image.
type Map struct {
	data []byte
	size int64

	// Windows keeps the file and mapping handles open for the life of
	// the view; on unix the descriptor is closed once the mapping
	// exists and both fields stay zero.
	file    uintptr
	mapping uintptr
}

// Data returns the mapped image bytes. Slicing it at sector-size
// multiples yields the individual sector buffers.
func (m *Map) Data() []byte { return m.data }

// Size returns the image size in bytes.
func (m *Map) Size() int64 { return m.size }

func checkImageSize(path string, got, want int64) error {
	if got != want {
		return fmt.Errorf("mmap: image %s is %d bytes, want %d", path, got, want)
	}
	return nil
}
