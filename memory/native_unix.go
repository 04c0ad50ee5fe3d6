//go:build unix

package memory

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

type mapping []byte

func (n *native) PageSize() uint64 {
	return uint64(unix.Getpagesize())
}

func (n *native) MemAlloc(size, align uint64) (MemRegion, error) {
	if size == 0 {
		return MemRegion{}, ErrSizeInvalid
	}
	page := n.PageSize()
	align = max(align, page)
	size = Align(size, page)
	b, err := unix.Mmap(-1, 0, int(size+align-page), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return MemRegion{}, err
	}
	addr := Align(uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))), align)
	n.store(addr, b)
	return MemRegion{Addr: addr, Size: size, Prot: MEM_PROT_READ | MEM_PROT_WRITE}, nil
}

func (n *native) MemFree(region MemRegion) error {
	m, ok := n.take(region.Addr)
	if !ok {
		return ErrAddressInvalid
	}
	return unix.Munmap(m)
}

func (n *native) MemProtect(addr, size uint64, prot MemProt) error {
	page := n.PageSize()
	begin := addr &^ (page - 1)
	end := Align(addr+size, page)
	return unix.Mprotect(rawBytes(begin, end-begin), unixProt(prot))
}

func unixProt(prot MemProt) int {
	p := unix.PROT_NONE
	if prot&MEM_PROT_READ != 0 {
		p |= unix.PROT_READ
	}
	if prot&MEM_PROT_WRITE != 0 {
		p |= unix.PROT_WRITE
	}
	if prot&MEM_PROT_EXEC != 0 {
		p |= unix.PROT_EXEC
	}
	return p
}
