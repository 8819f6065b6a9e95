// Package cache implements the kernel's buffer cache: a fixed-size set
// of in-memory sector slots sitting in front of a block device, with
// clock eviction, asynchronous read-ahead, and periodic write-back.
package cache

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sync/singleflight"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/fastmap"
	"github.com/arjunsahu/corekernel/internal/ksync"
)

// Slot is one in-memory cache entry. sector and kind change only while
// both mapMu and the slot's rw-lock (exclusively) are held, so holders
// of either mode can read them; dirty and accessed are atomic because
// shared holders set them concurrently.
type Slot struct {
	idx      uint32
	sector   uint32
	kind     core.SectorKind
	dirty    atomic.Bool
	accessed atomic.Bool
	rw       *ksync.RWLock
	data     [core.SectorSize]byte
}

// Entry is a handle to a cache slot checked out by a caller. The
// caller must call Release when done.
type Entry struct {
	slot  *Slot
	self  *ksync.Thread
	write bool
}

// Bytes returns the slot's backing storage. Callers that obtained the
// entry via GetShared must not modify it.
func (e *Entry) Bytes() []byte {
	return e.slot.data[:]
}

// MarkDirty flags the slot for write-back. The caller must hold the
// entry for writing.
func (e *Entry) MarkDirty() {
	e.slot.dirty.Store(true)
}

// Release gives up the entry's hold on the slot.
func (e *Entry) Release() {
	if e.write {
		e.slot.rw.ExclusiveRelease(e.self)
	} else {
		e.slot.rw.SharedRelease(e.self)
	}
}

// Cache is a fixed-size buffer cache over a block device.
type Cache struct {
	dev blockdev.Device

	mapMu     sync.Mutex
	index     *fastmap.Uint32Map // sector -> *Slot
	slots     [core.CacheSize]*Slot
	clockHand uint32
	steps     uint32

	loadGroup singleflight.Group

	worker *worker
}

// New creates a cache over dev and starts its background read-ahead
// and write-back workers.
func New(dev blockdev.Device) *Cache {
	c := &Cache{
		dev:   dev,
		index: &fastmap.Uint32Map{},
	}
	for i := range c.slots {
		c.slots[i] = &Slot{
			idx:    uint32(i),
			sector: core.SectorNotPresent,
			rw:     ksync.NewRWLock(),
		}
	}
	c.worker = startWorker(c)
	return c
}

// RequestReadAhead asks the background worker to prefetch sector. It
// never blocks and its effect is best-effort.
func (c *Cache) RequestReadAhead(sector uint32) {
	c.worker.requestReadAhead(sector)
}

// Close stops the background workers and flushes all dirty slots.
func (c *Cache) Close() error {
	c.worker.stop()
	return c.FlushAll()
}

// Invalidate drops sector from the cache without writing it back. It
// is used when a sector's old contents are about to become meaningless
// because the sector was just returned to the free-map: without this,
// a later caller asking for the same sector number (now holding
// unrelated data) would otherwise hit the stale cached slot instead of
// rereading the device.
func (c *Cache) Invalidate(sector uint32) {
	self := ksync.NewThread("cache-invalidate", 0)

	c.mapMu.Lock()
	p := c.index.Get(sector)
	if p == nil {
		c.mapMu.Unlock()
		return
	}
	slot := (*Slot)(p)
	c.mapMu.Unlock()

	slot.rw.ExclusiveAcquire(self)
	c.mapMu.Lock()
	if slot.sector == sector {
		c.index.Delete(sector)
		slot.sector = core.SectorNotPresent
		slot.dirty.Store(false)
		slot.accessed.Store(false)
	}
	c.mapMu.Unlock()
	slot.rw.ExclusiveRelease(self)
}

// GetShared returns a read-only handle to sector's contents, loading
// it from the device first if necessary.
func (c *Cache) GetShared(sector uint32, kind core.SectorKind) (*Entry, error) {
	self := ksync.NewThread("cache-read", 0)
	for {
		slot, err := c.fetch(sector, kind)
		if err != nil {
			return nil, err
		}
		slot.rw.SharedAcquire(self)
		// The slot may have been evicted and reassigned between fetch
		// returning it and the acquire above; reassignment only
		// happens under an exclusive hold, so the check is stable.
		if slot.sector == sector {
			slot.accessed.Store(true)
			return &Entry{slot: slot, self: self, write: false}, nil
		}
		slot.rw.SharedRelease(self)
	}
}

// GetExclusive returns a read-write handle to sector's contents,
// loading it from the device first if necessary.
func (c *Cache) GetExclusive(sector uint32, kind core.SectorKind) (*Entry, error) {
	self := ksync.NewThread("cache-write", 0)
	for {
		slot, err := c.fetch(sector, kind)
		if err != nil {
			return nil, err
		}
		slot.rw.ExclusiveAcquire(self)
		if slot.sector == sector {
			slot.accessed.Store(true)
			return &Entry{slot: slot, self: self, write: true}, nil
		}
		slot.rw.ExclusiveRelease(self)
	}
}

// fetch locates sector in the cache, loading it from the device on a
// miss. Concurrent misses for the same sector are collapsed into a
// single device read.
func (c *Cache) fetch(sector uint32, kind core.SectorKind) (*Slot, error) {
	v, err, _ := c.loadGroup.Do(sectorKey(sector), func() (interface{}, error) {
		return c.load(sector, kind)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Slot), nil
}

func (c *Cache) load(sector uint32, kind core.SectorKind) (*Slot, error) {
	self := ksync.NewThread("cache-fill", 0)

	c.mapMu.Lock()

	if p := c.index.Get(sector); p != nil {
		slot := (*Slot)(p)
		c.mapMu.Unlock()
		return slot, nil
	}

	// Claim a slot with its rw-lock held exclusively before it is
	// published in the index, so no caller can observe it half-filled
	// or racing with the eviction that freed it.
	slot, fromFree := c.reserveFreeSlot()
	if fromFree {
		slot.rw.ExclusiveAcquire(self)
	} else {
		var err error
		slot, err = c.evictVictim(self)
		if err != nil {
			c.mapMu.Unlock()
			return nil, err
		}
	}

	slot.sector = sector
	slot.kind = kind
	slot.dirty.Store(false)
	slot.accessed.Store(true)
	c.index.Set(sector, unsafe.Pointer(slot))
	c.mapMu.Unlock()

	if err := c.dev.ReadSector(sector, slot.data[:]); err != nil {
		c.mapMu.Lock()
		c.index.Delete(sector)
		slot.sector = core.SectorNotPresent
		c.mapMu.Unlock()
		slot.rw.ExclusiveRelease(self)
		return nil, err
	}
	slot.rw.ExclusiveRelease(self)
	return slot, nil
}

// reserveFreeSlot returns an unused slot, if any, without evicting.
// mapMu must be held.
func (c *Cache) reserveFreeSlot() (*Slot, bool) {
	for _, s := range c.slots {
		if s.sector == core.SectorNotPresent {
			return s, true
		}
	}
	return nil, false
}

// evictVictim runs the clock algorithm to pick a slot to reclaim,
// preferring SectorKindData slots over SectorKindInode slots unless a
// full revolution of the cache has elapsed without finding one. Slots
// whose rw-lock cannot be claimed immediately are skipped, so a slot
// with a checkout or I/O in flight is never torn down. The victim is
// returned with its rw-lock held exclusively by self.
//
// mapMu must be held. A dirty victim is written back with mapMu still
// held: the slot is mid-reservation, the same narrow window in which
// a fill holds it.
func (c *Cache) evictVictim(self *ksync.Thread) (*Slot, error) {
	for {
		slot := c.slots[c.clockHand]

		if slot.kind == core.SectorKindInode && c.steps < core.CacheSize {
			c.advanceClock()
			continue
		}
		if !slot.rw.ExclusiveTryAcquire(self) {
			c.advanceClock()
			continue
		}

		if slot.dirty.Load() {
			if err := c.dev.WriteSector(slot.sector, slot.data[:]); err != nil {
				slot.rw.ExclusiveRelease(self)
				return nil, err
			}
			slot.dirty.Store(false)
		}
		c.index.Delete(slot.sector)
		slot.sector = core.SectorNotPresent
		slot.accessed.Store(false)
		c.steps = 0
		return slot, nil
	}
}

func (c *Cache) advanceClock() {
	c.clockHand = (c.clockHand + 1) % core.CacheSize
	c.steps++
}

// FlushAll writes back every dirty slot. Each slot is visited under a
// shared hold, so readers and the flusher never exclude each other,
// and mapMu is not taken at all: membership is read-stable under the
// rw-lock.
func (c *Cache) FlushAll() error {
	self := ksync.NewThread("cache-flush", 0)
	for _, slot := range c.slots {
		slot.rw.SharedAcquire(self)
		if slot.sector != core.SectorNotPresent && slot.dirty.Load() {
			if err := c.dev.WriteSector(slot.sector, slot.data[:]); err != nil {
				slot.rw.SharedRelease(self)
				return err
			}
			slot.dirty.Store(false)
		}
		slot.rw.SharedRelease(self)
	}
	return c.dev.Sync()
}

func sectorKey(sector uint32) string {
	buf := [4]byte{byte(sector), byte(sector >> 8), byte(sector >> 16), byte(sector >> 24)}
	return string(buf[:])
}
