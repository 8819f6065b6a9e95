// Package vm implements the demand-paged virtual memory core: a
// per-process supplemental page table describing
// where each user page's data originates, and a frame table that fills
// and evicts physical pages using a two-handed clock.
package vm

import (
	"sync"
	"unsafe"

	"github.com/arjunsahu/corekernel/internal/core"
	"github.com/arjunsahu/corekernel/internal/fastmap"
	"github.com/arjunsahu/corekernel/internal/inode"
)

// SPTEntry describes one user page: where its data comes from, and
// (once faulted in) where it currently lives.
type SPTEntry struct {
	Addr uintptr

	// Location is the page's current backing store. It starts equal
	// to Origin and is overwritten to LocationSwap while the page is
	// evicted; Origin remembers what to restore it to once the page
	// is faulted back in, since swap is never a permanent home.
	Location core.PageLocation
	Origin   core.PageLocation

	File       *inode.Inode
	FileOffset int64
	PageBytes  int
	Writable   bool
	Loaded     bool
	SwapIndex  uint32
}

// SPT is a per-process hash table from page-aligned user virtual
// address to its SPTEntry.
type SPT struct {
	mu sync.Mutex
	m  fastmap.Uint32Map
}

// NewSPT creates an empty supplemental page table.
func NewSPT() *SPT {
	return &SPT{}
}

// PageAlign rounds addr down to the nearest page boundary.
func PageAlign(addr uintptr) uintptr {
	return addr &^ uintptr(core.PageSize-1)
}

func pageNumber(addr uintptr) uint32 {
	return uint32(PageAlign(addr) / core.PageSize)
}

// Insert adds e, keyed by its page-aligned address. Called on
// load-segment, mmap, and first stack access. Callers
// must set e.Location (and e.Origin, normally equal to e.Location)
// before inserting.
func (s *SPT) Insert(e *SPTEntry) {
	e.Addr = PageAlign(e.Addr)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Set(pageNumber(e.Addr), unsafe.Pointer(e))
}

// Lookup rounds addr down to its page and returns the entry for it, or
// nil if no entry is mapped there.
func (s *SPT) Lookup(addr uintptr) *SPTEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.m.Get(pageNumber(addr))
	if p == nil {
		return nil
	}
	return (*SPTEntry)(p)
}

// Delete removes the entry for addr's page, if any.
func (s *SPT) Delete(addr uintptr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Delete(pageNumber(addr))
}

// DeleteAll clears every entry, called on process exit.
func (s *SPT) DeleteAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.Clear()
}
