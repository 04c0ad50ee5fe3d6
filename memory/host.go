package memory

// Host is the operating environment that backs a relocated image. Addresses
// are absolute addresses in the host's address space.
type Host interface {
	PageSize() uint64
	MemAlloc(size, align uint64) (MemRegion, error)
	MemFree(region MemRegion) error
	MemProtect(addr, size uint64, prot MemProt) error
	MemRead(addr, size uint64) ([]byte, error)
	MemWrite(addr uint64, data []byte) error
}
