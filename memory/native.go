package memory

import (
	"sync"
	"unsafe"
)

type native struct {
	mu   sync.Mutex
	maps map[uint64]mapping
}

var nativeHost = &native{maps: make(map[uint64]mapping)}

// Native returns the host backed by the address space of the running process.
// Images relocated against it can be executed in place.
func Native() Host {
	return nativeHost
}

func (n *native) MemRead(addr, size uint64) ([]byte, error) {
	if addr == 0 {
		return nil, ErrAddressInvalid
	}
	data := make([]byte, size)
	copy(data, rawBytes(addr, size))
	return data, nil
}

func (n *native) MemWrite(addr uint64, data []byte) error {
	if addr == 0 {
		return ErrAddressInvalid
	}
	copy(rawBytes(addr, uint64(len(data))), data)
	return nil
}

func (n *native) store(addr uint64, m mapping) {
	n.mu.Lock()
	n.maps[addr] = m
	n.mu.Unlock()
}

func (n *native) take(addr uint64) (mapping, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.maps[addr]
	if ok {
		delete(n.maps, addr)
	}
	return m, ok
}

// SliceRegion describes memory owned by a Go slice, for use as a caller
// supplied buffer. The caller keeps the slice alive while the region is used.
func SliceRegion(b []byte) MemRegion {
	if len(b) == 0 {
		return MemRegion{}
	}
	return MemRegion{
		Addr: uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))),
		Size: uint64(len(b)),
		Prot: MEM_PROT_READ | MEM_PROT_WRITE,
	}
}

func rawBytes(addr, size uint64) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size)
}
