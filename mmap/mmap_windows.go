//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// MapImage maps the disk image at path for reading and writing. The
// image must be exactly size bytes long. The file handle is opened
// directly through the windows package (not os.File, whose finalizer
// would close the handle out from under the mapping) and stays open
// for the life of the view.
func MapImage(path string, size int64) (*Map, error) {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, err
	}
	h, err := windows.CreateFile(p,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return nil, err
	}

	var fi windows.ByHandleFileInformation
	if err := windows.GetFileInformationByHandle(h, &fi); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	got := int64(fi.FileSizeHigh)<<32 | int64(fi.FileSizeLow)
	if err := checkImageSize(path, got, size); err != nil {
		windows.CloseHandle(h)
		return nil, err
	}

	mapping, err := windows.CreateFileMapping(h, nil, windows.PAGE_READWRITE,
		uint32(uint64(size)>>32), uint32(size), nil)
	if err != nil {
		windows.CloseHandle(h)
		return nil, err
	}
	view, err := windows.MapViewOfFile(mapping,
		windows.FILE_MAP_READ|windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapping)
		windows.CloseHandle(h)
		return nil, err
	}

	return &Map{
		data:    unsafe.Slice((*byte)(unsafe.Pointer(view)), size),
		size:    size,
		file:    uintptr(h),
		mapping: uintptr(mapping),
	}, nil
}

// Sync flushes written sectors back to the image and blocks until
// they reach the file.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.data[0]))
	if err := windows.FlushViewOfFile(addr, uintptr(m.size)); err != nil {
		return err
	}
	return windows.FlushFileBuffers(windows.Handle(m.file))
}

// Close flushes and unmaps the image, releasing both handles. Closing
// an already-closed Map is a no-op.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	if err := m.Sync(); err != nil {
		return err
	}
	addr := uintptr(unsafe.Pointer(&m.data[0]))
	m.data = nil
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return err
	}
	if err := windows.CloseHandle(windows.Handle(m.mapping)); err != nil {
		return err
	}
	return windows.CloseHandle(windows.Handle(m.file))
}
