//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// MapImage maps the disk image at path for reading and writing. The
// image must be exactly size bytes long: a short or long file means
// the caller's sector count and the on-disk reality disagree, and
// mapping it anyway would hand out sector buffers past the file end.
// The descriptor is closed before returning; the mapping keeps the
// image alive on its own.
func MapImage(path string, size int64) (*Map, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := checkImageSize(path, st.Size(), size); err != nil {
		return nil, err
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, err
	}
	return &Map{data: data, size: size}, nil
}

// Sync flushes written sectors back to the image and blocks until the
// kernel has accepted them.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

// Close flushes and unmaps the image. Closing an already-closed Map
// is a no-op.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	if err := m.Sync(); err != nil {
		return err
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
