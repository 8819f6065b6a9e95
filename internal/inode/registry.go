package inode

import (
	"sync"

	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/core"
)

// SectorAllocator grants and reclaims data sectors for file growth. It
// is implemented by the free-map package; the interface lives here,
// not there, so inode can grow files without importing freemap and
// freemap can in turn store its own bookkeeping as an inode-backed
// file without an import cycle.
type SectorAllocator interface {
	AllocateSector() (uint32, error)
	FreeSector(sector uint32) error
}

// Registry is the kernel-wide table of in-memory inodes: for any live
// sector there is at most one *Inode, and reopening it increments its
// open count rather than constructing a second copy.
type Registry struct {
	cache *cache.Cache
	alloc SectorAllocator

	mu   sync.Mutex
	open map[uint32]*Inode
}

// NewRegistry creates an empty open-inode table backed by c and alloc.
func NewRegistry(c *cache.Cache, alloc SectorAllocator) *Registry {
	return &Registry{cache: c, alloc: alloc, open: make(map[uint32]*Inode)}
}

// Create formats a new, empty inode of the given kind at sector,
// which must already be reserved in the free-map.
func Create(c *cache.Cache, sector uint32, kind Kind) error {
	e, err := c.GetExclusive(sector, core.SectorKindInode)
	if err != nil {
		return err
	}
	d := newDiskInode(kind)
	encodeDiskInode(d, e.Bytes())
	e.MarkDirty()
	e.Release()
	return nil
}

// Open returns the in-memory inode for sector, loading it from disk on
// first open and incrementing its open count on every subsequent call.
func (r *Registry) Open(sector uint32) (*Inode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ino, ok := r.open[sector]; ok {
		ino.openCount++
		return ino, nil
	}

	e, err := r.cache.GetShared(sector, core.SectorKindInode)
	if err != nil {
		return nil, err
	}
	d, err := decodeDiskInode(e.Bytes())
	e.Release()
	if err != nil {
		return nil, err
	}

	ino := newInode(r, r.cache, r.alloc, sector, d.Kind, int64(d.Length))
	r.open[sector] = ino
	return ino, nil
}

// closeLocked drops sector from the registry; called by (*Inode).Close
// once its open count reaches zero.
func (r *Registry) closeLocked(sector uint32) {
	delete(r.open, sector)
}

// SetAllocator replaces the allocator new Open calls hand to freshly
// constructed inodes. The free-map uses this to bootstrap itself (it
// must open and grow its own backing inode before it exists as an
// allocator) and then install itself as the registry's live allocator
// for every inode opened afterward.
func (r *Registry) SetAllocator(a SectorAllocator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alloc = a
}
