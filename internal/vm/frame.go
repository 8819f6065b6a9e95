package vm

import (
	"sync"

	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/ksync"
	"github.com/arjunsahu/corekernel/internal/swap"
)

// AllocFlags modifies how AllocPage fills a freshly claimed frame.
// AllocPage always fills strictly from the SPT entry's Location, so no
// flags are currently defined; the parameter keeps the allocation
// entry point stable if zeroing or identity flags ever return.
type AllocFlags int

// Frame is one physical user page: its backing bytes, owning thread,
// owning SPT entry, and the lock that pins it against eviction while
// I/O is in flight.
type Frame struct {
	idx  int
	lock *ksync.Lock

	thread   *ksync.Thread
	owner    *SPT
	spte     *SPTEntry
	accessed bool
	dirty    bool
}

// Owner returns the SPT owning this frame's current content, or nil
// if the frame is free.
func (f *Frame) Owner() *SPT { return f.owner }

// Entry returns the SPT entry this frame currently backs, or nil.
func (f *Frame) Entry() *SPTEntry { return f.spte }

// MarkAccessed and MarkDirty stand in for the hardware accessed/dirty
// bits a real MMU would expose through the page table; callers touch
// these explicitly since Go cannot intercept raw memory accesses.
func (f *Frame) MarkAccessed() { f.accessed = true }
func (f *Frame) MarkDirty()    { f.dirty = true }

// Pin acquires the frame's lock, excluding the clock from evicting it
// while self performs I/O into or out of the frame.
func (f *Frame) Pin(self *ksync.Thread) { f.lock.Acquire(self) }

// Unpin releases the frame's lock.
func (f *Frame) Unpin(self *ksync.Thread) { f.lock.Release(self) }

// FrameTable is the fixed-size table of physical user pages, evicted
// via a two-handed clock.
type FrameTable struct {
	frames []*Frame
	arena  [][core.PageSize]byte
	swap   *swap.Area

	mu       sync.Mutex
	freeList []int
	lead     int
	lag      int
}

// New creates a frame table of numFrames physical pages, backed by sw
// for evicted anonymous pages.
func New(numFrames int, sw *swap.Area) *FrameTable {
	ft := &FrameTable{
		frames: make([]*Frame, numFrames),
		arena:  make([][core.PageSize]byte, numFrames),
		swap:   sw,
	}
	for i := range ft.frames {
		ft.frames[i] = &Frame{idx: i, lock: ksync.NewLock()}
		ft.freeList = append(ft.freeList, i)
	}
	if numFrames >= 4 {
		ft.lag = numFrames / 4
	}
	return ft
}

// Bytes returns f's backing page buffer.
func (ft *FrameTable) Bytes(f *Frame) []byte {
	return ft.arena[f.idx][:]
}

// NumFrames returns the table's fixed frame count.
func (ft *FrameTable) NumFrames() int { return len(ft.frames) }

// AllocPage claims a physical page for spte — a free one if any
// remain, otherwise the victim chosen by the two-handed clock — fills
// it per spte.Location, and marks spte loaded.
func (ft *FrameTable) AllocPage(self *ksync.Thread, flags AllocFlags, owner *SPT, spte *SPTEntry) (*Frame, error) {
	f := ft.takeFree()
	if f == nil {
		victim, err := ft.clockFind(self)
		if err != nil {
			return nil, err
		}
		if err := ft.evict(victim); err != nil {
			victim.lock.Release(self)
			return nil, err
		}
		f = victim
	} else {
		f.lock.Acquire(self)
	}

	f.thread = self
	f.owner = owner
	f.spte = spte
	f.accessed = true
	f.dirty = false

	if err := ft.fill(f, spte); err != nil {
		f.thread, f.owner, f.spte = nil, nil, nil
		f.lock.Release(self)
		ft.putFree(f.idx)
		return nil, err
	}

	spte.Loaded = true
	f.lock.Release(self)
	return f, nil
}

// Release returns f to the free list, clearing its ownership. Used on
// process exit to reclaim pages without writing them anywhere.
func (ft *FrameTable) Release(self *ksync.Thread, f *Frame) {
	f.lock.Acquire(self)
	f.thread, f.owner, f.spte = nil, nil, nil
	f.accessed, f.dirty = false, false
	f.lock.Release(self)
	ft.putFree(f.idx)
}

func (ft *FrameTable) takeFree() *Frame {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	if len(ft.freeList) == 0 {
		return nil
	}
	idx := ft.freeList[len(ft.freeList)-1]
	ft.freeList = ft.freeList[:len(ft.freeList)-1]
	return ft.frames[idx]
}

func (ft *FrameTable) putFree(idx int) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	ft.freeList = append(ft.freeList, idx)
}

// clockFind runs the two-handed clock sweep,
// returning the chosen victim with its lock still held.
func (ft *FrameTable) clockFind(self *ksync.Thread) (*Frame, error) {
	ft.mu.Lock()
	n := len(ft.frames)
	if n == 0 {
		ft.mu.Unlock()
		return nil, core.NewError(core.ErrOutOfSpace)
	}

	for {
		lag := ft.frames[ft.lag]
		lead := ft.frames[ft.lead]

		if !lag.lock.TryAcquire(self) {
			ft.advanceLocked(n)
			continue
		}
		if lag.thread == nil {
			lag.lock.Release(self)
			ft.advanceLocked(n)
			continue
		}
		if lag.accessed {
			lag.lock.Release(self)
			lead.accessed = false
			ft.advanceLocked(n)
			continue
		}

		ft.mu.Unlock()
		return lag, nil
	}
}

func (ft *FrameTable) advanceLocked(n int) {
	ft.lead = (ft.lead + 1) % n
	ft.lag = (ft.lag + 1) % n
}

// evict writes out victim's current occupant, then clears its
// ownership so the caller can repurpose it. victim.lock is already
// held by the caller.
func (ft *FrameTable) evict(victim *Frame) error {
	spte := victim.spte
	if spte != nil {
		switch {
		case spte.Location == core.LocationStack || spte.Location == core.LocationSwap:
			idx, err := ft.swap.WritePage(ft.Bytes(victim))
			if err != nil {
				return err
			}
			spte.SwapIndex = idx
			spte.Location = core.LocationSwap
		case (spte.Location == core.LocationZero || spte.Location == core.LocationDisk) && victim.dirty:
			idx, err := ft.swap.WritePage(ft.Bytes(victim))
			if err != nil {
				return err
			}
			spte.SwapIndex = idx
			spte.Location = core.LocationSwap
		case spte.Location == core.LocationMmap && victim.dirty:
			if _, err := spte.File.WriteAt(ft.Bytes(victim)[:spte.PageBytes], spte.FileOffset); err != nil {
				return err
			}
		default:
			// Discardable: re-fetchable from its file or zero-fill.
		}
		spte.Loaded = false
	}

	victim.thread, victim.owner, victim.spte = nil, nil, nil
	victim.accessed, victim.dirty = false, false
	return nil
}

// fill loads f's backing bytes from spte's current location.
func (ft *FrameTable) fill(f *Frame, spte *SPTEntry) error {
	buf := ft.Bytes(f)
	switch spte.Location {
	case core.LocationSwap:
		if err := ft.swap.ReadPage(buf, spte.SwapIndex); err != nil {
			return err
		}
		spte.Location = spte.Origin
		// The restored bytes no longer match what Origin would
		// re-fetch, and the swap slot was freed by the read; a later
		// eviction must write them out again, never discard them.
		f.dirty = true
	case core.LocationZero, core.LocationStack:
		for i := range buf {
			buf[i] = 0
		}
	case core.LocationDisk, core.LocationMmap:
		n, err := spte.File.ReadAt(buf[:spte.PageBytes], spte.FileOffset)
		if err != nil {
			return err
		}
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	}
	return nil
}
