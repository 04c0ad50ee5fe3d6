package memory

import (
	"sync"
	"unsafe"
)

// HeapHost backs regions with Go heap memory. Protections are recorded but not
// enforced, so images placed in it can be inspected but not executed.
type HeapHost struct {
	page   uint64
	mu     sync.Mutex
	blocks map[uint64][]byte
	prots  map[uint64]MemProt
}

func Heap(pageSize uint64) *HeapHost {
	if !IsPowerOfTwo(pageSize) {
		pageSize = 4096
	}
	return &HeapHost{
		page:   pageSize,
		blocks: make(map[uint64][]byte),
		prots:  make(map[uint64]MemProt),
	}
}

func (h *HeapHost) PageSize() uint64 {
	return h.page
}

func (h *HeapHost) MemAlloc(size, align uint64) (MemRegion, error) {
	if size == 0 {
		return MemRegion{}, ErrSizeInvalid
	}
	align = max(align, h.page)
	size = Align(size, h.page)
	b := make([]byte, size+align)
	addr := Align(uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))), align)
	h.mu.Lock()
	h.blocks[addr] = b
	for page := addr; page < addr+size; page += h.page {
		h.prots[page] = MEM_PROT_READ | MEM_PROT_WRITE
	}
	h.mu.Unlock()
	return MemRegion{Addr: addr, Size: size, Prot: MEM_PROT_READ | MEM_PROT_WRITE}, nil
}

func (h *HeapHost) MemFree(region MemRegion) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.blocks[region.Addr]; !ok {
		return ErrAddressInvalid
	}
	delete(h.blocks, region.Addr)
	for page := region.Addr; page < region.End(); page += h.page {
		delete(h.prots, page)
	}
	return nil
}

func (h *HeapHost) MemProtect(addr, size uint64, prot MemProt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.contains(addr, size) {
		return ErrAddressInvalid
	}
	for page := addr &^ (h.page - 1); page < addr+size; page += h.page {
		h.prots[page] = prot
	}
	return nil
}

// Prot reports the protection last applied to the page holding addr.
func (h *HeapHost) Prot(addr uint64) MemProt {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.prots[addr&^(h.page-1)]
}

func (h *HeapHost) MemRead(addr, size uint64) ([]byte, error) {
	h.mu.Lock()
	ok := h.contains(addr, size)
	h.mu.Unlock()
	if !ok {
		return nil, ErrAddressInvalid
	}
	data := make([]byte, size)
	copy(data, rawBytes(addr, size))
	return data, nil
}

func (h *HeapHost) MemWrite(addr uint64, data []byte) error {
	h.mu.Lock()
	ok := h.contains(addr, uint64(len(data)))
	h.mu.Unlock()
	if !ok {
		return ErrAddressInvalid
	}
	copy(rawBytes(addr, uint64(len(data))), data)
	return nil
}

func (h *HeapHost) contains(addr, size uint64) bool {
	for begin, b := range h.blocks {
		end := uint64(uintptr(unsafe.Pointer(unsafe.SliceData(b)))) + uint64(len(b))
		if addr >= begin && addr+size <= end {
			return true
		}
	}
	return false
}
