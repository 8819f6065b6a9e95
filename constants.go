package corekernel

import "github.com/arjunsahu/corekernel/internal/core"

// The geometry constants live in internal/core so every subsystem can
// share them without importing this top-level package; they are
// re-exported here for callers.
const (
	// SectorSize is the size in bytes of a single disk sector.
	SectorSize = core.SectorSize

	// SectorNotPresent marks an unallocated sector slot (sparse inode
	// entries, indirect-block gaps).
	SectorNotPresent = core.SectorNotPresent

	// FreeMapSector holds the free-sector bitmap inode.
	FreeMapSector = core.FreeMapSector

	// RootDirSector holds the root directory inode.
	RootDirSector = core.RootDirSector

	// CacheSize is the number of 512-byte slots held in memory at once.
	CacheSize = core.CacheSize

	// FlushIntervalSeconds is how often the background flusher walks
	// the cache writing back dirty slots.
	FlushIntervalSeconds = core.FlushIntervalSeconds

	// InodeMagic identifies a valid inode sector.
	InodeMagic = core.InodeMagic

	// DirectSectors is the number of sector pointers stored directly
	// in the inode.
	DirectSectors = core.DirectSectors

	// IndirectIndex is the slot in the sector array holding the
	// singly-indirect block pointer.
	IndirectIndex = core.IndirectIndex

	// DoublyIndirectIndex is the slot holding the doubly-indirect
	// block pointer.
	DoublyIndirectIndex = core.DoublyIndirectIndex

	// InodeSectors is the total length of the on-disk sector array.
	InodeSectors = core.InodeSectors

	// PointersPerSector is how many 4-byte sector numbers fit in one
	// indirect block.
	PointersPerSector = core.PointersPerSector

	// MaxFileSectors is the largest file representable by the
	// direct/indirect/doubly-indirect chain.
	MaxFileSectors = core.MaxFileSectors

	// MaxConsecutiveReaders and MaxConsecutiveWriters bound how many
	// consecutive admissions one side of a reader-writer lock may get
	// while the other side waits.
	MaxConsecutiveReaders = core.MaxConsecutiveReaders
	MaxConsecutiveWriters = core.MaxConsecutiveWriters

	// PageSize is the size in bytes of a virtual memory page.
	PageSize = core.PageSize

	// SectorsPerPage is how many disk sectors back one page of swap.
	SectorsPerPage = core.SectorsPerPage
)

// SectorKind distinguishes cache slots holding inode metadata from
// slots holding file data, for eviction preference.
type SectorKind = core.SectorKind

const (
	// SectorKindInode holds an inode_disk structure.
	SectorKindInode = core.SectorKindInode
	// SectorKindData holds file contents or an indirect block.
	SectorKindData = core.SectorKindData
)

// PageLocation describes where the data backing a supplemental page
// table entry currently lives.
type PageLocation = core.PageLocation

const (
	// LocationZero is a page not yet materialized, filled with zeros
	// on first fault.
	LocationZero = core.LocationZero
	// LocationDisk is a page backed by an executable segment on disk.
	LocationDisk = core.LocationDisk
	// LocationSwap is a page currently written out to the swap area.
	LocationSwap = core.LocationSwap
	// LocationStack is a page belonging to the growable user stack.
	LocationStack = core.LocationStack
	// LocationMmap is a page backed by a memory-mapped file.
	LocationMmap = core.LocationMmap
)
