package cache

import (
	"bytes"
	"testing"
	"time"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/core"
)

func TestGetExclusiveWritesThrough(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := New(dev)
	defer c.Close()

	e, err := c.GetExclusive(3, core.SectorKindData)
	if err != nil {
		t.Fatalf("GetExclusive: %v", err)
	}
	copy(e.Bytes(), bytes.Repeat([]byte{0x7a}, core.SectorSize))
	e.MarkDirty()
	e.Release()

	if err := c.FlushAll(); err != nil {
		t.Fatalf("FlushAll: %v", err)
	}

	got := make([]byte, core.SectorSize)
	if err := dev.ReadSector(3, got); err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(got, bytes.Repeat([]byte{0x7a}, core.SectorSize)) {
		t.Fatal("dirty slot was not written back to the device")
	}
}

func TestGetSharedHitsCache(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := New(dev)
	defer c.Close()

	a, err := c.GetShared(1, core.SectorKindInode)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	a.Release()

	b, err := c.GetShared(1, core.SectorKindInode)
	if err != nil {
		t.Fatalf("GetShared: %v", err)
	}
	defer b.Release()

	if a.slot != b.slot {
		t.Fatal("second get for the same sector should hit the same slot")
	}
}

func TestEvictionReclaimsSlots(t *testing.T) {
	dev := blockdev.NewMemDevice(core.CacheSize + 8)
	c := New(dev)
	defer c.Close()

	// Fill the cache past capacity; this must not error, and must
	// evict something to make room for every sector touched.
	for i := uint32(0); i < core.CacheSize+4; i++ {
		e, err := c.GetShared(i, core.SectorKindData)
		if err != nil {
			t.Fatalf("GetShared(%d): %v", i, err)
		}
		e.Release()
	}

	used := 0
	for _, s := range c.slots {
		if s.sector != core.SectorNotPresent {
			used++
		}
	}
	if used > core.CacheSize {
		t.Fatalf("cache holds %d slots, exceeding CacheSize", used)
	}
}

func TestEvictionPrefersDataOverInode(t *testing.T) {
	dev := blockdev.NewMemDevice(2 * core.CacheSize)
	c := New(dev)
	defer c.Close()

	// Fill the cache with inode-kind slots plus a single data slot.
	const dataSector = 5
	for i := uint32(0); i < core.CacheSize; i++ {
		kind := core.SectorKindInode
		if i == dataSector {
			kind = core.SectorKindData
		}
		e, err := c.GetShared(i, kind)
		if err != nil {
			t.Fatalf("GetShared(%d): %v", i, err)
		}
		e.Release()
	}

	// The next miss must reclaim the lone data slot, not any of the
	// inode slots the clock passes on the way to it.
	e, err := c.GetShared(core.CacheSize, core.SectorKindData)
	if err != nil {
		t.Fatalf("GetShared for new sector: %v", err)
	}
	e.Release()

	c.mapMu.Lock()
	dataEvicted := c.index.Get(dataSector) == nil
	var lostInode uint32
	inodesIntact := true
	for i := uint32(0); i < core.CacheSize; i++ {
		if i == dataSector {
			continue
		}
		if c.index.Get(i) == nil {
			inodesIntact = false
			lostInode = i
		}
	}
	c.mapMu.Unlock()

	if !dataEvicted {
		t.Fatal("the lone data slot should have been the eviction victim")
	}
	if !inodesIntact {
		t.Fatalf("inode slot %d was evicted while a data slot was available", lostInode)
	}
}

func TestRequestReadAheadPrefetches(t *testing.T) {
	dev := blockdev.NewMemDevice(8)
	c := New(dev)
	defer c.Close()

	c.RequestReadAhead(5)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		c.mapMu.Lock()
		hit := c.index.Get(5) != nil
		c.mapMu.Unlock()
		if hit {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("read-ahead worker never loaded the requested sector")
}

func TestWriteSurvivesEviction(t *testing.T) {
	dev := blockdev.NewMemDevice(2 * core.CacheSize)
	c := New(dev)
	defer c.Close()

	want := bytes.Repeat([]byte{0x5c}, core.SectorSize)
	e, err := c.GetExclusive(0, core.SectorKindData)
	if err != nil {
		t.Fatalf("GetExclusive: %v", err)
	}
	copy(e.Bytes(), want)
	e.MarkDirty()
	e.Release()

	// Push every other sector through the cache so sector 0 is
	// evicted and must come back from the device.
	for i := uint32(1); i < 2*core.CacheSize; i++ {
		e, err := c.GetShared(i, core.SectorKindData)
		if err != nil {
			t.Fatalf("GetShared(%d): %v", i, err)
		}
		e.Release()
	}

	e, err = c.GetShared(0, core.SectorKindData)
	if err != nil {
		t.Fatalf("GetShared(0): %v", err)
	}
	defer e.Release()
	if !bytes.Equal(e.Bytes(), want) {
		t.Fatal("sector contents changed across eviction and reload")
	}
}
