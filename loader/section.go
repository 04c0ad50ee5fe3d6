package loader

import "github.com/wnxd/microld/memory"

type SectionID int

type SectionKind int

const (
	SEC_CODE SectionKind = iota
	SEC_RODATA
	SEC_DATA
	SEC_BSS
	SEC_META
)

func (k SectionKind) String() string {
	switch k {
	case SEC_CODE:
		return "code"
	case SEC_RODATA:
		return "rodata"
	case SEC_DATA:
		return "data"
	case SEC_BSS:
		return "bss"
	case SEC_META:
		return "meta"
	}
	return "unknown"
}

// Prot is the protection the section's pages carry once the image is final.
func (k SectionKind) Prot() memory.MemProt {
	switch k {
	case SEC_CODE:
		return memory.MEM_PROT_READ | memory.MEM_PROT_EXEC
	case SEC_RODATA:
		return memory.MEM_PROT_READ
	case SEC_DATA, SEC_BSS:
		return memory.MEM_PROT_READ | memory.MEM_PROT_WRITE
	}
	return memory.MEM_PROT_NONE
}

// Loaded reports whether sections of this kind occupy space in the image.
func (k SectionKind) Loaded() bool {
	return k != SEC_META
}

type Section struct {
	Name  string
	Kind  SectionKind
	Align uint64
	Size  uint64
	Data  []byte
}
