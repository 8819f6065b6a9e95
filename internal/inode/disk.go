package inode

import (
	"encoding/binary"

	"github.com/arjunsahu/corekernel/internal/core"
)

// Kind classifies what an inode's data sectors hold.
type Kind uint32

const (
	// KindFreemap is the free-sector bitmap inode at sector 0.
	KindFreemap Kind = iota
	// KindFile is a regular file.
	KindFile
	// KindDir is a directory, whose data is a sequence of fixed-size
	// directory-entry records (owned by the directory layer).
	KindDir
)

// DiskInode is the exact 512-byte on-disk inode layout:
// a 4-byte length, a 4-byte magic, a 4-byte kind, and 125 4-byte
// sector pointers (123 direct, one indirect, one doubly indirect).
type DiskInode struct {
	Length  int32
	Magic   uint32
	Kind    Kind
	Sectors [core.InodeSectors]uint32
}

func newDiskInode(kind Kind) *DiskInode {
	d := &DiskInode{Magic: core.InodeMagic, Kind: kind}
	for i := range d.Sectors {
		d.Sectors[i] = core.SectorNotPresent
	}
	return d
}

func decodeDiskInode(buf []byte) (*DiskInode, error) {
	if len(buf) != core.SectorSize {
		return nil, core.WrapError(core.ErrFatal, errBadBufLen)
	}
	d := &DiskInode{
		Length: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Magic:  binary.LittleEndian.Uint32(buf[4:8]),
		Kind:   Kind(binary.LittleEndian.Uint32(buf[8:12])),
	}
	if d.Magic != core.InodeMagic {
		return nil, core.NewError(core.ErrInvalidSector)
	}
	off := 12
	for i := range d.Sectors {
		d.Sectors[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return d, nil
}

func encodeDiskInode(d *DiskInode, buf []byte) {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(d.Length))
	binary.LittleEndian.PutUint32(buf[4:8], d.Magic)
	binary.LittleEndian.PutUint32(buf[8:12], uint32(d.Kind))
	off := 12
	for i := range d.Sectors {
		binary.LittleEndian.PutUint32(buf[off:off+4], d.Sectors[i])
		off += 4
	}
}

// indirectBlock is one sector of 128 sector pointers, each missing or
// a data sector.
type indirectBlock [core.PointersPerSector]uint32

func newIndirectBlock() indirectBlock {
	var b indirectBlock
	for i := range b {
		b[i] = core.SectorNotPresent
	}
	return b
}

func decodeIndirectBlock(buf []byte) (indirectBlock, error) {
	var b indirectBlock
	if len(buf) != core.SectorSize {
		return b, core.WrapError(core.ErrFatal, errBadBufLen)
	}
	off := 0
	for i := range b {
		b[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return b, nil
}

func encodeIndirectBlock(b indirectBlock, buf []byte) {
	off := 0
	for i := range b {
		binary.LittleEndian.PutUint32(buf[off:off+4], b[i])
		off += 4
	}
}

type bufLenError struct{}

func (bufLenError) Error() string { return "inode: buffer is not exactly one sector long" }

var errBadBufLen = bufLenError{}
