package blockdev

import (
	"sync"

	"github.com/arjunsahu/corekernel/internal/core"
)

// MemDevice is an in-memory block device, used in tests and for the
// swap area when no backing file is configured.
type MemDevice struct {
	mu      sync.RWMutex
	sectors [][core.SectorSize]byte
}

// NewMemDevice creates a zero-filled in-memory device with the given
// number of sectors.
func NewMemDevice(sectorCount uint32) *MemDevice {
	return &MemDevice{sectors: make([][core.SectorSize]byte, sectorCount)}
}

func (d *MemDevice) ReadSector(sector uint32, dst []byte) error {
	if err := checkSectorBuf(dst); err != nil {
		return err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if sector >= uint32(len(d.sectors)) {
		return core.NewError(core.ErrNotFound)
	}
	copy(dst, d.sectors[sector][:])
	return nil
}

func (d *MemDevice) WriteSector(sector uint32, src []byte) error {
	if err := checkSectorBuf(src); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if sector >= uint32(len(d.sectors)) {
		return core.NewError(core.ErrNotFound)
	}
	copy(d.sectors[sector][:], src)
	return nil
}

func (d *MemDevice) SectorCount() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return uint32(len(d.sectors))
}

func (d *MemDevice) Sync() error { return nil }

func (d *MemDevice) Close() error { return nil }
