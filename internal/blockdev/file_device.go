package blockdev

import (
	"os"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/mmap"
)

// FileDevice is a block device backed by a memory-mapped disk image
// file.
type FileDevice struct {
	mu          sync.RWMutex
	m           *mmap.Map
	sectorCount uint32
	closed      bool
}

// OpenFile opens or creates a disk image at path holding sectorCount
// sectors, and memory-maps it for read/write access.
//
// If the file does not already exist, it is created as a zero-filled
// image using an atomic rename so a crash mid-creation never leaves a
// partially-written image at path.
func OpenFile(path string, sectorCount uint32) (*FileDevice, error) {
	size := int64(sectorCount) * core.SectorSize

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := createZeroImage(path, size); err != nil {
			return nil, core.WrapError(core.ErrFatal, err)
		}
	}

	m, err := mmap.MapImage(path, size)
	if err != nil {
		return nil, core.WrapError(core.ErrFatal, err)
	}
	return &FileDevice{m: m, sectorCount: sectorCount}, nil
}

func createZeroImage(path string, size int64) error {
	f, err := os.CreateTemp(os.TempDir(), "corekernel-disk-*")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer os.Remove(tmpPath)

	if err := f.Truncate(size); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	src, err := os.Open(tmpPath)
	if err != nil {
		return err
	}
	defer src.Close()

	return atomic.WriteFile(path, src)
}

func (d *FileDevice) ReadSector(sector uint32, dst []byte) error {
	if err := checkSectorBuf(dst); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return core.NewError(core.ErrFatal)
	}
	if sector >= d.sectorCount {
		return core.NewError(core.ErrNotFound)
	}
	off := int64(sector) * core.SectorSize
	copy(dst, d.m.Data()[off:off+core.SectorSize])
	return nil
}

func (d *FileDevice) WriteSector(sector uint32, src []byte) error {
	if err := checkSectorBuf(src); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return core.NewError(core.ErrFatal)
	}
	if sector >= d.sectorCount {
		return core.NewError(core.ErrNotFound)
	}
	off := int64(sector) * core.SectorSize
	copy(d.m.Data()[off:off+core.SectorSize], src)
	return nil
}

func (d *FileDevice) SectorCount() uint32 {
	return d.sectorCount
}

func (d *FileDevice) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	return d.m.Sync()
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.m.Close()
}
