// Package inode implements the multi-level indexed inode layer:
// direct, singly-indirect, and doubly-indirect sector pointers giving
// sparse, growable files on top of the buffer cache.
package inode

import (
	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/ksync"
)

// Inode is the in-memory representation of an open file, directory, or
// the free-map: its on-disk home sector, open/deny-write reference
// counts, and the lock serializing metadata mutation and growth.
type Inode struct {
	sector   uint32
	kind     Kind
	cache    *cache.Cache
	alloc    SectorAllocator
	registry *Registry

	mu   *ksync.Lock
	self *ksync.Thread

	length         int64
	openCount      int
	denyWriteCount int
	removed        bool
}

func newInode(r *Registry, c *cache.Cache, alloc SectorAllocator, sector uint32, kind Kind, length int64) *Inode {
	return &Inode{
		sector:    sector,
		kind:      kind,
		cache:     c,
		alloc:     alloc,
		registry:  r,
		mu:        ksync.NewLock(),
		self:      ksync.NewThread("inode", 0),
		length:    length,
		openCount: 1,
	}
}

// Sector returns the inode's on-disk home sector.
func (ino *Inode) Sector() uint32 { return ino.sector }

// Kind returns the inode's kind.
func (ino *Inode) Kind() Kind { return ino.kind }

// Length returns the file's current length in bytes.
func (ino *Inode) Length() int64 {
	ino.mu.Acquire(ino.self)
	defer ino.mu.Release(ino.self)
	return ino.length
}

// Remove marks the inode for deletion: its sectors are reclaimed once
// the last opener closes it.
func (ino *Inode) Remove() {
	ino.mu.Acquire(ino.self)
	ino.removed = true
	ino.mu.Release(ino.self)
}

// Removed reports whether Remove has been called.
func (ino *Inode) Removed() bool {
	ino.mu.Acquire(ino.self)
	defer ino.mu.Release(ino.self)
	return ino.removed
}

// DenyWrite increments the deny-write count, rejecting further writes
// (used while the inode backs a running executable).
func (ino *Inode) DenyWrite() {
	ino.mu.Acquire(ino.self)
	ino.denyWriteCount++
	ino.mu.Release(ino.self)
}

// AllowWrite decrements the deny-write count.
func (ino *Inode) AllowWrite() {
	ino.mu.Acquire(ino.self)
	ino.denyWriteCount--
	ino.mu.Release(ino.self)
}

// Close decrements the inode's open count. Once it reaches zero, the
// inode is dropped from the registry, and if it had been Remove()d,
// every sector it ever referenced is walked and released back to the
// free-map.
func (ino *Inode) Close() error {
	r := ino.registry
	r.mu.Lock()
	ino.openCount--
	if ino.openCount > 0 {
		r.mu.Unlock()
		return nil
	}
	r.closeLocked(ino.sector)
	removed := ino.Removed()
	r.mu.Unlock()

	if removed {
		return ino.reclaim()
	}
	return nil
}

// ReadAt reads len(p) bytes starting at offset, returning the number
// of bytes actually read. Reads past EOF return fewer bytes (0 at or
// past length) rather than an error; reads of an unallocated (sparse)
// block return zero bytes for that block.
func (ino *Inode) ReadAt(p []byte, offset int64) (int, error) {
	if len(p) == 0 || offset < 0 {
		return 0, nil
	}
	length := ino.Length()
	if offset >= length {
		return 0, nil
	}
	if remain := length - offset; int64(len(p)) > remain {
		p = p[:remain]
	}

	read := 0
	for read < len(p) {
		blockIdx := uint32((offset + int64(read)) / core.SectorSize)
		sectorOff := int((offset + int64(read)) % core.SectorSize)
		chunk := core.SectorSize - sectorOff
		if remain := len(p) - read; chunk > remain {
			chunk = remain
		}

		sector, err := ino.sectorForRead(blockIdx)
		if err != nil {
			return read, err
		}
		if sector == core.SectorNotPresent {
			for i := 0; i < chunk; i++ {
				p[read+i] = 0
			}
		} else {
			e, err := ino.cache.GetShared(sector, core.SectorKindData)
			if err != nil {
				return read, err
			}
			copy(p[read:read+chunk], e.Bytes()[sectorOff:sectorOff+chunk])
			e.Release()
		}
		read += chunk
	}

	// Signal the block after the last one touched for prefetch; a
	// sequential reader's next call then finds it already resident.
	if nextIdx := uint32((offset+int64(read)-1)/core.SectorSize) + 1; int64(nextIdx)*core.SectorSize < length {
		if s, err := ino.sectorForRead(nextIdx); err == nil && s != core.SectorNotPresent {
			ino.cache.RequestReadAhead(s)
		}
	}
	return read, nil
}

// WriteAt writes p at offset, growing the file (allocating new data,
// indirect, and doubly-indirect sectors as needed, zeroing any gap) if
// offset+len(p) exceeds the current length. It returns the number of
// bytes actually written, which is less than len(p) only together with
// an error: ErrDenyWrite (nothing written), ErrOutOfSpace or
// ErrFileTooLarge from growth, or a cache/device error.
func (ino *Inode) WriteAt(p []byte, offset int64) (int, error) {
	if len(p) == 0 || offset < 0 {
		return 0, nil
	}

	ino.mu.Acquire(ino.self)
	defer ino.mu.Release(ino.self)

	if ino.denyWriteCount > 0 {
		return 0, core.NewError(core.ErrDenyWrite)
	}

	written, err := ino.writeLocked(p, offset)

	// Even a partial write extends the file over whatever it managed
	// to put down, so those bytes stay readable behind the reported
	// count.
	if newLen := offset + int64(written); written > 0 && newLen > ino.length {
		ino.length = newLen
		if perr := ino.persistLength(); perr != nil && err == nil {
			err = perr
		}
	}
	return written, err
}

func (ino *Inode) writeLocked(p []byte, offset int64) (int, error) {
	written := 0
	for written < len(p) {
		blockIdx := uint32((offset + int64(written)) / core.SectorSize)
		sectorOff := int((offset + int64(written)) % core.SectorSize)
		chunk := core.SectorSize - sectorOff
		if remain := len(p) - written; chunk > remain {
			chunk = remain
		}

		sector, err := ino.sectorForRead(blockIdx)
		if err != nil {
			return written, err
		}

		if sector == core.SectorNotPresent {
			newSector, err := ino.growBlock(blockIdx, p[written:written+chunk], sectorOff)
			if err != nil {
				return written, err
			}
			sector = newSector
		} else {
			e, err := ino.cache.GetExclusive(sector, core.SectorKindData)
			if err != nil {
				return written, err
			}
			copy(e.Bytes()[sectorOff:], p[written:written+chunk])
			e.MarkDirty()
			e.Release()
		}

		written += chunk
	}
	return written, nil
}

// growBlock allocates a new zero-filled data sector for blockIdx,
// writes chunk into it at sectorOff, and links it into the inode's
// sector chain, allocating indirect/doubly-indirect blocks lazily
// along the way. On any failure it releases every sector and every
// exclusive cache hold it picked up.
func (ino *Inode) growBlock(blockIdx uint32, chunk []byte, sectorOff int) (uint32, error) {
	if blockIdx >= core.MaxFileSectors {
		return core.SectorNotPresent, core.NewError(core.ErrFileTooLarge)
	}

	newSector, err := ino.alloc.AllocateSector()
	if err != nil {
		return core.SectorNotPresent, core.WrapError(core.ErrOutOfSpace, err)
	}

	e, err := ino.cache.GetExclusive(newSector, core.SectorKindData)
	if err != nil {
		ino.alloc.FreeSector(newSector)
		return core.SectorNotPresent, err
	}
	var zero [core.SectorSize]byte
	copy(e.Bytes(), zero[:])
	copy(e.Bytes()[sectorOff:], chunk)
	e.MarkDirty()
	e.Release()

	if err := ino.addBlock(blockIdx, newSector); err != nil {
		ino.alloc.FreeSector(newSector)
		ino.cache.Invalidate(newSector)
		return core.SectorNotPresent, err
	}
	return newSector, nil
}

// addBlock links newSector into the inode's direct/indirect/doubly
// indirect chain at blockIdx, allocating intermediate indirect blocks
// lazily. ino.mu is already held by the caller (WriteAt), giving the
// whole add atomicity with the length update that follows.
func (ino *Inode) addBlock(blockIdx uint32, newSector uint32) error {
	e, err := ino.cache.GetExclusive(ino.sector, core.SectorKindInode)
	if err != nil {
		return err
	}
	d, err := decodeDiskInode(e.Bytes())
	if err != nil {
		e.Release()
		return err
	}

	switch {
	case blockIdx < core.DirectSectors:
		d.Sectors[blockIdx] = newSector
		encodeDiskInode(d, e.Bytes())
		e.MarkDirty()
		e.Release()
		return nil

	case blockIdx < core.DirectSectors+core.PointersPerSector:
		indirect, err := ino.ensureIndirect(d, e, core.IndirectIndex)
		if err != nil {
			return err
		}
		return ino.setIndirectEntry(indirect, blockIdx-core.DirectSectors, newSector)

	default:
		idx := blockIdx - (core.DirectSectors + core.PointersPerSector)
		outer := idx / core.PointersPerSector
		inner := idx % core.PointersPerSector

		doubly, err := ino.ensureIndirect(d, e, core.DoublyIndirectIndex)
		if err != nil {
			return err
		}
		indirect, err := ino.ensureDoublyIndirectSlot(doubly, outer)
		if err != nil {
			return err
		}
		return ino.setIndirectEntry(indirect, inner, newSector)
	}
}

// ensureIndirect returns the sector of d.Sectors[slot], allocating and
// zero-initializing a fresh indirect block (and persisting the
// pointer into the inode) if it is not yet present. e is the inode's
// own cache entry, held exclusively by the caller; ensureIndirect
// releases it before returning.
func (ino *Inode) ensureIndirect(d *DiskInode, e *cache.Entry, slot int) (uint32, error) {
	if d.Sectors[slot] != core.SectorNotPresent {
		sector := d.Sectors[slot]
		e.Release()
		return sector, nil
	}

	sector, err := ino.alloc.AllocateSector()
	if err != nil {
		e.Release()
		return 0, core.WrapError(core.ErrOutOfSpace, err)
	}
	if err := ino.initIndirectBlock(sector); err != nil {
		ino.alloc.FreeSector(sector)
		e.Release()
		return 0, err
	}

	d.Sectors[slot] = sector
	encodeDiskInode(d, e.Bytes())
	e.MarkDirty()
	e.Release()
	return sector, nil
}

// ensureDoublyIndirectSlot returns the sector pointed to by entry
// outer of the indirect block at doublySector, allocating and linking
// a fresh indirect block if missing.
func (ino *Inode) ensureDoublyIndirectSlot(doublySector uint32, outer uint32) (uint32, error) {
	e, err := ino.cache.GetExclusive(doublySector, core.SectorKindData)
	if err != nil {
		return 0, err
	}
	b, err := decodeIndirectBlock(e.Bytes())
	if err != nil {
		e.Release()
		return 0, err
	}
	if b[outer] != core.SectorNotPresent {
		sector := b[outer]
		e.Release()
		return sector, nil
	}

	sector, err := ino.alloc.AllocateSector()
	if err != nil {
		e.Release()
		return 0, core.WrapError(core.ErrOutOfSpace, err)
	}
	if err := ino.initIndirectBlock(sector); err != nil {
		ino.alloc.FreeSector(sector)
		e.Release()
		return 0, err
	}

	b[outer] = sector
	encodeIndirectBlock(b, e.Bytes())
	e.MarkDirty()
	e.Release()
	return sector, nil
}

func (ino *Inode) initIndirectBlock(sector uint32) error {
	e, err := ino.cache.GetExclusive(sector, core.SectorKindData)
	if err != nil {
		return err
	}
	b := newIndirectBlock()
	encodeIndirectBlock(b, e.Bytes())
	e.MarkDirty()
	e.Release()
	return nil
}

func (ino *Inode) setIndirectEntry(indirectSector uint32, idx uint32, newSector uint32) error {
	e, err := ino.cache.GetExclusive(indirectSector, core.SectorKindData)
	if err != nil {
		return err
	}
	b, err := decodeIndirectBlock(e.Bytes())
	if err != nil {
		e.Release()
		return err
	}
	b[idx] = newSector
	encodeIndirectBlock(b, e.Bytes())
	e.MarkDirty()
	e.Release()
	return nil
}

// sectorForRead translates blockIdx to a data sector without
// allocating, returning SectorNotPresent through any missing link in
// the chain. Each cache slot on the chain is shared-acquired and
// released before the next is touched, so the cache-map lock is never
// held across nested loads.
func (ino *Inode) sectorForRead(blockIdx uint32) (uint32, error) {
	if blockIdx >= core.MaxFileSectors {
		return core.SectorNotPresent, nil
	}

	e, err := ino.cache.GetShared(ino.sector, core.SectorKindInode)
	if err != nil {
		return core.SectorNotPresent, err
	}
	d, err := decodeDiskInode(e.Bytes())
	e.Release()
	if err != nil {
		return core.SectorNotPresent, err
	}

	switch {
	case blockIdx < core.DirectSectors:
		return d.Sectors[blockIdx], nil

	case blockIdx < core.DirectSectors+core.PointersPerSector:
		indirect := d.Sectors[core.IndirectIndex]
		if indirect == core.SectorNotPresent {
			return core.SectorNotPresent, nil
		}
		return ino.readIndirectEntry(indirect, blockIdx-core.DirectSectors)

	default:
		idx := blockIdx - (core.DirectSectors + core.PointersPerSector)
		outer := idx / core.PointersPerSector
		inner := idx % core.PointersPerSector

		doubly := d.Sectors[core.DoublyIndirectIndex]
		if doubly == core.SectorNotPresent {
			return core.SectorNotPresent, nil
		}
		e2, err := ino.cache.GetShared(doubly, core.SectorKindData)
		if err != nil {
			return core.SectorNotPresent, err
		}
		b, err := decodeIndirectBlock(e2.Bytes())
		e2.Release()
		if err != nil {
			return core.SectorNotPresent, err
		}
		indirect := b[outer]
		if indirect == core.SectorNotPresent {
			return core.SectorNotPresent, nil
		}
		return ino.readIndirectEntry(indirect, inner)
	}
}

func (ino *Inode) readIndirectEntry(indirectSector uint32, idx uint32) (uint32, error) {
	e, err := ino.cache.GetShared(indirectSector, core.SectorKindData)
	if err != nil {
		return core.SectorNotPresent, err
	}
	b, err := decodeIndirectBlock(e.Bytes())
	e.Release()
	if err != nil {
		return core.SectorNotPresent, err
	}
	return b[idx], nil
}

func (ino *Inode) persistLength() error {
	e, err := ino.cache.GetExclusive(ino.sector, core.SectorKindInode)
	if err != nil {
		return err
	}
	d, err := decodeDiskInode(e.Bytes())
	if err != nil {
		e.Release()
		return err
	}
	d.Length = int32(ino.length)
	encodeDiskInode(d, e.Bytes())
	e.MarkDirty()
	e.Release()
	return nil
}

// reclaim walks every sector this inode ever referenced (direct,
// indirect, and doubly-indirect) and releases each back to the
// free-map, invalidating its cache slot so a later reuse of the
// sector number never observes stale contents, then frees the inode's
// own sector.
func (ino *Inode) reclaim() error {
	e, err := ino.cache.GetShared(ino.sector, core.SectorKindInode)
	if err != nil {
		return err
	}
	d, err := decodeDiskInode(e.Bytes())
	e.Release()
	if err != nil {
		return err
	}

	for i := 0; i < core.DirectSectors; i++ {
		ino.freeSector(d.Sectors[i])
	}
	if indirect := d.Sectors[core.IndirectIndex]; indirect != core.SectorNotPresent {
		ino.freeIndirectBlock(indirect)
		ino.freeSector(indirect)
	}
	if doubly := d.Sectors[core.DoublyIndirectIndex]; doubly != core.SectorNotPresent {
		e2, err := ino.cache.GetShared(doubly, core.SectorKindData)
		if err == nil {
			b, derr := decodeIndirectBlock(e2.Bytes())
			e2.Release()
			if derr == nil {
				for _, indirect := range b {
					if indirect != core.SectorNotPresent {
						ino.freeIndirectBlock(indirect)
						ino.freeSector(indirect)
					}
				}
			}
		}
		ino.freeSector(doubly)
	}

	return ino.freeSector(ino.sector)
}

func (ino *Inode) freeIndirectBlock(sector uint32) {
	e, err := ino.cache.GetShared(sector, core.SectorKindData)
	if err != nil {
		return
	}
	b, err := decodeIndirectBlock(e.Bytes())
	e.Release()
	if err != nil {
		return
	}
	for _, s := range b {
		ino.freeSector(s)
	}
}

func (ino *Inode) freeSector(sector uint32) error {
	if sector == core.SectorNotPresent {
		return nil
	}
	ino.cache.Invalidate(sector)
	return ino.alloc.FreeSector(sector)
}
