// Package corekernel implements the storage and memory-management core
// of a small instructional operating system kernel: a buffer cache over
// a raw block device, a multi-level indexed inode format built on top
// of it, and a demand-paged virtual memory subsystem with swap.
//
// Key components:
//   - internal/ksync: priority-donating locks, condition variables, and
//     a fair reader-writer lock
//   - internal/blockdev: a raw sector-addressed block device
//   - internal/cache: a fixed-size buffer cache with clock eviction,
//     read-ahead, and periodic write-back
//   - internal/inode: a direct/indirect/doubly-indirect indexed inode
//   - internal/freemap: free-sector bookkeeping for the block device
//   - internal/swap: the swap area backing evicted virtual memory pages
//   - internal/vm: the supplemental page table and frame table
//
// Basic usage:
//
//	k, err := corekernel.Boot(corekernel.Config{DiskPath: "disk.img", DiskSectors: 8192})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer k.Shutdown()
package corekernel
