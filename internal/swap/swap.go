// Package swap implements the swap area: a bitmap of
// fixed-size slots over a block device, each slot holding one virtual
// memory page.
package swap

import (
	"sync"

	"github.com/arjunsahu/corekernel/internal/bitmap"
	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/core"
)

// Area is the swap partition: a bitmap of slots, each slot
// core.SectorsPerPage sectors (one page) wide.
type Area struct {
	dev blockdev.Device

	mu sync.Mutex
	bm *bitmap.Bitmap
}

// New creates a swap area over dev, which must hold a whole number of
// page-sized slots.
func New(dev blockdev.Device) *Area {
	slots := dev.SectorCount() / core.SectorsPerPage
	return &Area{dev: dev, bm: bitmap.New(slots)}
}

// WritePage writes the page-sized buffer page to a free slot and
// returns its index. page must be exactly PageSize bytes.
func (a *Area) WritePage(page []byte) (uint32, error) {
	if len(page) != core.PageSize {
		return 0, core.WrapError(core.ErrFatal, errPageSize)
	}

	a.mu.Lock()
	idx, ok := a.bm.Allocate()
	a.mu.Unlock()
	if !ok {
		return 0, core.NewError(core.ErrOutOfSpace)
	}

	base := idx * core.SectorsPerPage
	for i := uint32(0); i < core.SectorsPerPage; i++ {
		off := i * core.SectorSize
		if err := a.dev.WriteSector(base+i, page[off:off+core.SectorSize]); err != nil {
			a.mu.Lock()
			a.bm.Free(idx)
			a.mu.Unlock()
			return 0, err
		}
	}
	return idx, nil
}

// ReadPage reads the page at slot idx into page, which must be
// PageSize bytes, and frees the slot.
func (a *Area) ReadPage(page []byte, idx uint32) error {
	if len(page) != core.PageSize {
		return core.WrapError(core.ErrFatal, errPageSize)
	}

	base := idx * core.SectorsPerPage
	for i := uint32(0); i < core.SectorsPerPage; i++ {
		off := i * core.SectorSize
		if err := a.dev.ReadSector(base+i, page[off:off+core.SectorSize]); err != nil {
			return err
		}
	}

	a.mu.Lock()
	a.bm.Free(idx)
	a.mu.Unlock()
	return nil
}

// Free releases slot idx without reading it back, used when a swapped
// page's process exits before it is ever faulted back in.
func (a *Area) Free(idx uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bm.Free(idx)
}

type pageSizeError struct{}

func (pageSizeError) Error() string { return "swap: buffer is not exactly one page long" }

var errPageSize = pageSizeError{}
