package memory

type MemProt int

const (
	MEM_PROT_NONE MemProt = 0
	MEM_PROT_READ MemProt = 1 << (iota - 1)
	MEM_PROT_WRITE
	MEM_PROT_EXEC
)

func (p MemProt) String() string {
	b := []byte("---")
	if p&MEM_PROT_READ != 0 {
		b[0] = 'r'
	}
	if p&MEM_PROT_WRITE != 0 {
		b[1] = 'w'
	}
	if p&MEM_PROT_EXEC != 0 {
		b[2] = 'x'
	}
	return string(b)
}

type MemRegion struct {
	Addr, Size uint64
	Prot       MemProt
}

func (r MemRegion) End() uint64 {
	return r.Addr + r.Size
}

func (r MemRegion) Contains(addr, size uint64) bool {
	return addr >= r.Addr && size <= r.Size && addr-r.Addr <= r.Size-size
}
