//go:build windows

package memory

import "golang.org/x/sys/windows"

type mapping uintptr

func (n *native) PageSize() uint64 {
	return uint64(windows.Getpagesize())
}

func (n *native) MemAlloc(size, align uint64) (MemRegion, error) {
	if size == 0 {
		return MemRegion{}, ErrSizeInvalid
	}
	page := n.PageSize()
	align = max(align, page)
	size = Align(size, page)
	base, err := windows.VirtualAlloc(0, uintptr(size+align-page), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return MemRegion{}, err
	}
	addr := Align(uint64(base), align)
	n.store(addr, mapping(base))
	return MemRegion{Addr: addr, Size: size, Prot: MEM_PROT_READ | MEM_PROT_WRITE}, nil
}

func (n *native) MemFree(region MemRegion) error {
	m, ok := n.take(region.Addr)
	if !ok {
		return ErrAddressInvalid
	}
	return windows.VirtualFree(uintptr(m), 0, windows.MEM_RELEASE)
}

func (n *native) MemProtect(addr, size uint64, prot MemProt) error {
	var old uint32
	return windows.VirtualProtect(uintptr(addr), uintptr(size), windowsProt(prot), &old)
}

func windowsProt(prot MemProt) uint32 {
	switch prot {
	case MEM_PROT_NONE:
		return windows.PAGE_NOACCESS
	case MEM_PROT_READ:
		return windows.PAGE_READONLY
	case MEM_PROT_READ | MEM_PROT_WRITE, MEM_PROT_WRITE:
		return windows.PAGE_READWRITE
	case MEM_PROT_EXEC:
		return windows.PAGE_EXECUTE
	case MEM_PROT_READ | MEM_PROT_EXEC:
		return windows.PAGE_EXECUTE_READ
	}
	return windows.PAGE_EXECUTE_READWRITE
}
