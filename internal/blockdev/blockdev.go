// Package blockdev implements the raw sector-addressed block device
// that the buffer cache, inode layer, and swap area all sit on top of.
package blockdev

import "github.com/arjunsahu/corekernel/internal/core"

// Device is a fixed-size array of SectorSize-byte sectors.
type Device interface {
	// ReadSector reads sector into dst, which must be exactly
	// SectorSize bytes long.
	ReadSector(sector uint32, dst []byte) error

	// WriteSector writes src into sector. src must be exactly
	// SectorSize bytes long.
	WriteSector(sector uint32, src []byte) error

	// SectorCount returns the number of sectors the device holds.
	SectorCount() uint32

	// Sync flushes any buffered writes to stable storage.
	Sync() error

	// Close releases resources held by the device.
	Close() error
}

func checkSectorBuf(buf []byte) error {
	if len(buf) != core.SectorSize {
		return core.WrapError(core.ErrFatal, errSectorSize)
	}
	return nil
}

var errSectorSize = sectorSizeError{}

type sectorSizeError struct{}

func (sectorSizeError) Error() string { return "blockdev: buffer is not exactly one sector long" }
