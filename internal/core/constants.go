// Package core holds the geometry constants and the error type shared
// by every kernel subsystem. It sits below all of them so the cache,
// inode, swap, and vm packages can agree on sector and page layout
// without importing the top-level corekernel package.
package core

// Sector geometry. All storage is addressed in fixed-size sectors; the
// buffer cache, inode layer, and swap area all share this unit.
const (
	// SectorSize is the size in bytes of a single disk sector.
	SectorSize = 512

	// SectorNotPresent marks an unallocated sector slot (sparse inode
	// entries, indirect-block gaps).
	SectorNotPresent = ^uint32(0)
)

// On-disk layout: fixed well-known sectors assigned
// before the free-map exists to assign anything else.
const (
	// FreeMapSector holds the free-sector bitmap inode.
	FreeMapSector = 0

	// RootDirSector holds the root directory inode.
	RootDirSector = 1
)

// Buffer cache geometry.
const (
	// CacheSize is the number of 512-byte slots held in memory at once.
	CacheSize = 64

	// FlushIntervalSeconds is how often the background flusher walks
	// the cache writing back dirty slots.
	FlushIntervalSeconds = 10
)

// SectorKind distinguishes cache slots holding inode metadata from
// slots holding file data, for eviction preference.
type SectorKind int

const (
	// SectorKindInode holds an inode_disk structure.
	SectorKindInode SectorKind = iota
	// SectorKindData holds file contents or an indirect block.
	SectorKindData
)

// On-disk inode layout.
const (
	// InodeMagic identifies a valid inode sector.
	InodeMagic = 0x494e4f44

	// DirectSectors is the number of sector pointers stored directly
	// in the inode.
	DirectSectors = 123

	// IndirectIndex is the slot in the sector array holding the
	// singly-indirect block pointer.
	IndirectIndex = DirectSectors

	// DoublyIndirectIndex is the slot holding the doubly-indirect
	// block pointer.
	DoublyIndirectIndex = DirectSectors + 1

	// InodeSectors is the total length of the on-disk sector array
	// (direct + indirect + doubly-indirect).
	InodeSectors = DirectSectors + 2

	// PointersPerSector is how many 4-byte sector numbers fit in one
	// indirect block.
	PointersPerSector = SectorSize / 4

	// MaxFileSectors is the largest file representable by the
	// direct/indirect/doubly-indirect chain.
	MaxFileSectors = DirectSectors + PointersPerSector + PointersPerSector*PointersPerSector
)

// Fair reader-writer lock admission thresholds. These bound how many
// consecutive readers (or writers) may be admitted while the opposite
// side is waiting, so neither side starves.
const (
	MaxConsecutiveReaders = 5
	MaxConsecutiveWriters = 10
)

// Virtual memory geometry.
const (
	// PageSize is the size in bytes of a virtual memory page.
	PageSize = 4096

	// SectorsPerPage is how many disk sectors back one page of swap.
	SectorsPerPage = PageSize / SectorSize
)

// PageLocation describes where the data backing a supplemental page
// table entry currently lives.
type PageLocation int

const (
	// LocationZero is a page not yet materialized, filled with zeros
	// on first fault.
	LocationZero PageLocation = iota
	// LocationDisk is a page backed by an executable segment on disk.
	LocationDisk
	// LocationSwap is a page currently written out to the swap area.
	LocationSwap
	// LocationStack is a page belonging to the growable user stack.
	LocationStack
	// LocationMmap is a page backed by a memory-mapped file.
	LocationMmap
)
