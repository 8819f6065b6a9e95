// Package freemap implements the free-sector bitmap:
// the bookkeeping that grants and reclaims data sectors for file
// growth, itself persisted as the data of the inode at sector 0.
package freemap

import (
	"sync"

	"github.com/arjunsahu/corekernel/internal/bitmap"
	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/inode"
)

// FreeMap is the free-sector bitmap, backed by an inode-typed file so
// it is itself subject to ordinary inode-write synchronization.
type FreeMap struct {
	mu  sync.Mutex
	bm  *bitmap.Bitmap
	ino *inode.Inode
}

// bootAllocator hands out sequentially increasing sector numbers
// without consulting any bitmap. It exists only to grow the free-map's
// own backing inode during Format, before the free-map itself is
// available to grant sectors.
type bootAllocator struct {
	next uint32
}

func (b *bootAllocator) AllocateSector() (uint32, error) {
	s := b.next
	b.next++
	return s, nil
}

func (b *bootAllocator) FreeSector(uint32) error { return nil }

func bitmapByteLen(totalSectors uint32) int64 {
	return int64((totalSectors + 7) / 8)
}

// Format lays down a fresh free-map and root-directory inode at
// FreeMapSector and RootDirSector. The free-map's own data sectors are
// grown through the ordinary inode write path, fed by a sequential
// bootAllocator, and then marked allocated in the bitmap.
// It returns the live free-map
// and the inode registry wired to use it as the allocator for every
// inode opened from here on.
func Format(c *cache.Cache, totalSectors uint32) (*FreeMap, *inode.Registry, error) {
	if err := inode.Create(c, core.FreeMapSector, inode.KindFreemap); err != nil {
		return nil, nil, err
	}
	if err := inode.Create(c, core.RootDirSector, inode.KindDir); err != nil {
		return nil, nil, err
	}

	boot := &bootAllocator{next: core.RootDirSector + 1}
	reg := inode.NewRegistry(c, boot)
	ino, err := reg.Open(core.FreeMapSector)
	if err != nil {
		return nil, nil, err
	}

	bm := bitmap.New(totalSectors)
	if s, ok := bm.Allocate(); !ok || s != core.FreeMapSector {
		return nil, nil, core.NewError(core.ErrFatal)
	}
	if s, ok := bm.Allocate(); !ok || s != core.RootDirSector {
		return nil, nil, core.NewError(core.ErrFatal)
	}

	n := bitmapByteLen(totalSectors)
	if _, err := ino.WriteAt(bm.Bytes(), 0); err != nil {
		return nil, nil, err
	}

	// Writing the bitmap above grew the free-map inode through boot,
	// consuming sectors sequentially from RootDirSector+1. Those
	// sectors must themselves be marked allocated; because both boot
	// and the bitmap hand out the lowest free index in order, they
	// agree on numbering.
	used := boot.next - (core.RootDirSector + 1)
	for i := uint32(0); i < used; i++ {
		want := core.RootDirSector + 1 + i
		got, ok := bm.Allocate()
		if !ok || got != want {
			return nil, nil, core.NewError(core.ErrFatal)
		}
	}
	if _, err := ino.WriteAt(bm.Bytes()[:n], 0); err != nil {
		return nil, nil, err
	}

	fm := &FreeMap{bm: bm, ino: ino}
	reg.SetAllocator(fm)
	return fm, reg, nil
}

// Open loads an existing free-map from FreeMapSector.
func Open(c *cache.Cache, totalSectors uint32) (*FreeMap, *inode.Registry, error) {
	reg := inode.NewRegistry(c, nil)
	ino, err := reg.Open(core.FreeMapSector)
	if err != nil {
		return nil, nil, err
	}

	bm := bitmap.New(totalSectors)
	buf := make([]byte, bitmapByteLen(totalSectors))
	if _, err := ino.ReadAt(buf, 0); err != nil {
		return nil, nil, err
	}
	bm.LoadBytes(buf)

	fm := &FreeMap{bm: bm, ino: ino}
	reg.SetAllocator(fm)
	return fm, reg, nil
}

// AllocateSector grants and marks used the lowest free sector, or
// ErrOutOfSpace if none remain.
func (f *FreeMap) AllocateSector() (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.bm.Allocate()
	if !ok {
		return 0, core.NewError(core.ErrOutOfSpace)
	}
	if err := f.persistLocked(); err != nil {
		f.bm.Free(s)
		return 0, err
	}
	return s, nil
}

// FreeSector returns sector to the pool.
func (f *FreeMap) FreeSector(sector uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.bm.Free(sector)
	return f.persistLocked()
}

// Close closes the bitmap's backing inode. It writes nothing itself:
// AllocateSector and FreeSector already write the bitmap through to
// that inode on every call.
func (f *FreeMap) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ino.Close()
}

func (f *FreeMap) persistLocked() error {
	_, err := f.ino.WriteAt(f.bm.Bytes(), 0)
	return err
}
