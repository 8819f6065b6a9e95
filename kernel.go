package corekernel

import (
	"os"

	"github.com/arjunsahu/corekernel/internal/blockdev"
	"github.com/arjunsahu/corekernel/internal/cache"
	"github.com/arjunsahu/corekernel/internal/freemap"
	"github.com/arjunsahu/corekernel/internal/inode"
	"github.com/arjunsahu/corekernel/internal/ksync"
	"github.com/arjunsahu/corekernel/internal/swap"
	"github.com/arjunsahu/corekernel/internal/vm"
)

// Config configures Boot. DiskSectors and SwapSectors give each
// device's size in sectors: a missing image is created at that size,
// an existing image must be exactly that size, and an empty path gets
// an in-memory device of that size.
type Config struct {
	DiskPath    string
	DiskSectors uint32

	SwapPath    string
	SwapSectors uint32

	// NumFrames sizes the physical frame table; 0 (or less) means
	// CacheSize*4, a reasonable instructional default.
	NumFrames int

	// MLFQS selects the multi-level feedback queue scheduler mode,
	// which disables priority donation.
	MLFQS bool
}

const defaultFrameMultiplier = 4

// Kernel is the booted collection of storage and memory-management
// components: the buffer cache, free-map, open inode registry, swap area, and frame table.
type Kernel struct {
	cfg Config

	Disk    blockdev.Device
	Cache   *cache.Cache
	FreeMap *freemap.FreeMap
	Inodes  *inode.Registry

	SwapDisk blockdev.Device
	Swap     *swap.Area
	Frames   *vm.FrameTable
}

// Boot opens (creating and formatting on first use) the disk image and
// swap area named by cfg, and wires up the cache, free-map, inode
// registry, and frame table on top of them.
func Boot(cfg Config) (*Kernel, error) {
	ksync.SetMLFQS(cfg.MLFQS)

	disk, firstUse, err := openOrCreate(cfg.DiskPath, cfg.DiskSectors)
	if err != nil {
		return nil, err
	}
	c := cache.New(disk)

	var fm *freemap.FreeMap
	var registry *inode.Registry
	if firstUse {
		fm, registry, err = freemap.Format(c, disk.SectorCount())
	} else {
		fm, registry, err = freemap.Open(c, disk.SectorCount())
	}
	if err != nil {
		c.Close()
		disk.Close()
		return nil, err
	}

	swapDisk, _, err := openOrCreate(cfg.SwapPath, cfg.SwapSectors)
	if err != nil {
		c.Close()
		disk.Close()
		return nil, err
	}
	swapArea := swap.New(swapDisk)

	numFrames := cfg.NumFrames
	if numFrames <= 0 {
		numFrames = CacheSize * defaultFrameMultiplier
	}
	frames := vm.New(numFrames, swapArea)

	return &Kernel{
		cfg:      cfg,
		Disk:     disk,
		Cache:    c,
		FreeMap:  fm,
		Inodes:   registry,
		SwapDisk: swapDisk,
		Swap:     swapArea,
		Frames:   frames,
	}, nil
}

// openOrCreate opens path as a block device, creating a zero-filled
// image of sectorCount sectors if it does not already exist. If path
// is empty, an in-memory device is used instead (for tests and
// ephemeral swap areas). firstUse reports whether the image was just
// created.
func openOrCreate(path string, sectorCount uint32) (dev blockdev.Device, firstUse bool, err error) {
	if path == "" {
		return blockdev.NewMemDevice(sectorCount), true, nil
	}
	_, statErr := os.Stat(path)
	firstUse = os.IsNotExist(statErr)
	dev, err = blockdev.OpenFile(path, sectorCount)
	if err != nil {
		return nil, false, err
	}
	return dev, firstUse, nil
}

// Shutdown flushes the cache and closes the disk and swap devices.
func (k *Kernel) Shutdown() error {
	if err := k.FreeMap.Close(); err != nil {
		return err
	}
	if err := k.Cache.Close(); err != nil {
		return err
	}
	if err := k.Disk.Close(); err != nil {
		return err
	}
	return k.SwapDisk.Close()
}
