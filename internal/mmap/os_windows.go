//go:build windows

package mmap

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var procGetSystemInfo = windows.NewLazySystemDLL("kernel32.dll").NewProc("GetSystemInfo")

// systemInfo mirrors SYSTEM_INFO, which x/sys/windows does not export.
type systemInfo struct {
	processorArchitecture     uint16
	reserved                  uint16
	pageSize                  uint32
	minimumApplicationAddress uintptr
	maximumApplicationAddress uintptr
	activeProcessorMask       uintptr
	numberOfProcessors        uint32
	processorType             uint32
	allocationGranularity     uint32
	processorLevel            uint16
	processorRevision         uint16
}

// fallbackGranularity is the allocation granularity of every Windows release.
const fallbackGranularity = 64 << 10

var allocationGranularity = sync.OnceValue(func() int {
	if err := procGetSystemInfo.Find(); err != nil {
		return fallbackGranularity
	}
	var si systemInfo
	// GetSystemInfo returns nothing and cannot fail.
	_, _, _ = procGetSystemInfo.Call(uintptr(unsafe.Pointer(&si)))
	if si.allocationGranularity == 0 {
		return fallbackGranularity
	}
	return int(si.allocationGranularity)
})

// PageSize returns the OS page size.
func PageSize() int {
	return windows.Getpagesize()
}

// Granularity returns dwAllocationGranularity, the alignment required for
// mapping offsets.
func Granularity() int {
	return allocationGranularity()
}

func osMap(fd uintptr, offset int64, length int, mode Mode) ([]byte, func([]byte) error, error) {
	protect := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if mode == ReadWrite {
		protect = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	end := uint64(offset) + uint64(length)
	h, err := windows.CreateFileMapping(windows.Handle(fd), nil, protect, uint32(end>>32), uint32(end), nil)
	if err != nil {
		return nil, nil, err
	}
	// The view keeps its own reference to the mapping object.
	defer windows.CloseHandle(h)

	addr, err := windows.MapViewOfFile(h, access, uint32(uint64(offset)>>32), uint32(offset), uintptr(length))
	if err != nil {
		return nil, nil, err
	}

	data := unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
	return data, osUnmap, nil
}

func osUnmap(data []byte) error {
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}

func osSync(data []byte) error {
	return windows.FlushViewOfFile(uintptr(unsafe.Pointer(&data[0])), uintptr(len(data)))
}

func osAdvise(data []byte, pattern AccessPattern) error {
	// Windows has no madvise; PrefetchVirtualMemory would need Windows 8+.
	_ = data
	_ = pattern
	return nil
}
