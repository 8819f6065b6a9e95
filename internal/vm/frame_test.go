package vm

import (
	"testing"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/inode"
	"github.com/arjunsahu/corekernel/internal/ksync"
	"github.com/arjunsahu/corekernel/internal/swap"
)

// seqAllocator hands out sequentially increasing sectors, enough for the
// small single-file fixtures these tests grow.
type seqAllocator struct{ next uint32 }

func (s *seqAllocator) AllocateSector() (uint32, error) {
	n := s.next
	s.next++
	return n, nil
}

func (s *seqAllocator) FreeSector(uint32) error { return nil }

func newTestSwap(t *testing.T, slots uint32) *swap.Area {
	t.Helper()
	dev := blockdev.NewMemDevice(slots * core.SectorsPerPage)
	return swap.New(dev)
}

func TestAllocPageFillsZeroPage(t *testing.T) {
	self := ksync.NewThread("test", 0)
	sw := newTestSwap(t, 4)
	ft := New(4, sw)
	owner := NewSPT()

	spte := &SPTEntry{Addr: 0x1000, Location: core.LocationZero, Origin: core.LocationZero}
	owner.Insert(spte)

	f, err := ft.AllocPage(self, 0, owner, spte)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	if !spte.Loaded {
		t.Fatal("spte.Loaded should be true after AllocPage")
	}
	for i, b := range ft.Bytes(f) {
		if b != 0 {
			t.Fatalf("zero page byte %d = %d, want 0", i, b)
		}
	}
}

func TestAllocPageExhaustsFreeListThenEvicts(t *testing.T) {
	self := ksync.NewThread("test", 0)
	sw := newTestSwap(t, 8)
	const numFrames = 4
	ft := New(numFrames, sw)
	owner := NewSPT()

	var sptes []*SPTEntry
	for i := 0; i < numFrames; i++ {
		spte := &SPTEntry{
			Addr:     uintptr((i + 1) * core.PageSize),
			Location: core.LocationStack,
			Origin:   core.LocationStack,
		}
		owner.Insert(spte)
		sptes = append(sptes, spte)
		if _, err := ft.AllocPage(self, 0, owner, spte); err != nil {
			t.Fatalf("AllocPage %d: %v", i, err)
		}
	}

	// The table is now full. One more allocation must evict a victim via
	// the clock rather than fail.
	extra := &SPTEntry{
		Addr:     uintptr((numFrames + 1) * core.PageSize),
		Location: core.LocationStack,
		Origin:   core.LocationStack,
	}
	owner.Insert(extra)
	if _, err := ft.AllocPage(self, 0, owner, extra); err != nil {
		t.Fatalf("AllocPage under pressure: %v", err)
	}

	evicted := 0
	for _, spte := range sptes {
		if !spte.Loaded {
			evicted++
		}
	}
	if evicted != 1 {
		t.Fatalf("expected exactly one of the original pages evicted, got %d", evicted)
	}
}

func TestReleaseReturnsFrameToFreeList(t *testing.T) {
	self := ksync.NewThread("test", 0)
	sw := newTestSwap(t, 2)
	ft := New(1, sw)
	owner := NewSPT()

	spte := &SPTEntry{Addr: 0x1000, Location: core.LocationZero, Origin: core.LocationZero}
	owner.Insert(spte)

	f, err := ft.AllocPage(self, 0, owner, spte)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	ft.Release(self, f)

	if f.Owner() != nil || f.Entry() != nil {
		t.Fatal("Release should clear the frame's owner and entry")
	}

	spte2 := &SPTEntry{Addr: 0x2000, Location: core.LocationZero, Origin: core.LocationZero}
	owner.Insert(spte2)
	if _, err := ft.AllocPage(self, 0, owner, spte2); err != nil {
		t.Fatalf("AllocPage after Release: %v", err)
	}
}

func TestEvictedMmapPageWritesBackWhenDirty(t *testing.T) {
	self := ksync.NewThread("test", 0)
	sw := newTestSwap(t, 4)
	ft := New(1, sw)
	owner := NewSPT()

	dev := blockdev.NewMemDevice(32)
	c := cache.New(dev)
	defer c.Close()
	alloc := &seqAllocator{next: 2}
	reg := inode.NewRegistry(c, alloc)
	if err := inode.Create(c, 0, inode.KindFile); err != nil {
		t.Fatalf("Create: %v", err)
	}
	file, err := reg.Open(0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteAt(make([]byte, core.PageSize), 0); err != nil {
		t.Fatalf("WriteAt: %v", err)
	}

	spte := &SPTEntry{
		Addr:       0x1000,
		Location:   core.LocationMmap,
		Origin:     core.LocationMmap,
		PageBytes:  core.PageSize,
		FileOffset: 0,
		File:       file,
	}
	owner.Insert(spte)

	f, err := ft.AllocPage(self, 0, owner, spte)
	if err != nil {
		t.Fatalf("AllocPage: %v", err)
	}
	for i := range ft.Bytes(f) {
		ft.Bytes(f)[i] = 0x42
	}
	f.MarkDirty()

	// Force eviction of this single frame by asking for a second page;
	// with numFrames == 1 the clock must pick f as the victim.
	other := &SPTEntry{
		Addr:     0x2000,
		Location: core.LocationZero,
		Origin:   core.LocationZero,
	}
	owner.Insert(other)
	if _, err := ft.AllocPage(self, 0, owner, other); err != nil {
		t.Fatalf("AllocPage forcing eviction: %v", err)
	}

	got := make([]byte, core.PageSize)
	if _, err := file.ReadAt(got, 0); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	for i, b := range got {
		if b != 0x42 {
			t.Fatalf("file byte %d = %d, want 0x42 (dirty mmap page should be written back on eviction)", i, b)
		}
	}
}
