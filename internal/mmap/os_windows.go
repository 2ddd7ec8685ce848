//go:build windows

package mmap

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func osMap(f *os.File, size int, _ bool) ([]byte, func([]byte) error, error) {
	return mapView(f, size, windows.PAGE_READONLY, windows.FILE_MAP_READ)
}

func osMapRW(f *os.File, size int) ([]byte, func([]byte) error, error) {
	return mapView(f, size, windows.PAGE_READWRITE, windows.FILE_MAP_WRITE)
}

func mapView(f *os.File, size int, prot uint32, access uint32) ([]byte, func([]byte) error, error) {
	if size == 0 {
		return nil, nil, nil
	}

	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, prot, 0, 0, nil)
	if err != nil {
		return nil, nil, err
	}
	// The view keeps its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, 0, 0, uintptr(size))
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)

	return data, func([]byte) error {
		return windows.UnmapViewOfFile(addr)
	}, nil
}

func osSync(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}

// Windows has no madvise; hints are dropped.
func osAdvise([]byte, Advice) error { return nil }
