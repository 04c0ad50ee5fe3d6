package amd64

import (
	"encoding/binary"

	internal "github.com/wnxd/microld/internal/linker"
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

const (
	POINTER_SIZE = 8
	STUB_SIZE    = 8
)

type Amd64Lnk struct {
	internal.Lnk
}

func NewAmd64Linker(cfg linker.Config) (linker.Linker, error) {
	lnk := new(Amd64Lnk)
	if cfg.Arch == memory.ARCH_UNKNOWN {
		cfg.Arch = memory.ARCH_X86_64
	}
	err := lnk.Init(lnk, cfg)
	if err != nil {
		return nil, err
	}
	return lnk, nil
}

func (lnk *Amd64Lnk) Arch() memory.Arch {
	return memory.ARCH_X86_64
}

func (lnk *Amd64Lnk) PointerSize() uint64 {
	return POINTER_SIZE
}

func (lnk *Amd64Lnk) Supports(kind loader.RelocKind) bool {
	switch kind {
	case loader.R_ABS64, loader.R_ABS32, loader.R_ABS32S,
		loader.R_PC64, loader.R_PC32,
		loader.R_GOTOFF64, loader.R_GOTPC32, loader.R_GOT32, loader.R_GOTPCREL32, loader.R_GOTABS64,
		loader.R_PLT32:
		return true
	}
	return false
}

func (lnk *Amd64Lnk) StubSize() uint64 {
	return STUB_SIZE
}

func (lnk *Amd64Lnk) StubAlign() uint64 {
	return STUB_SIZE
}

// EncodeStub emits jmp *slot(%rip) padded with int3.
func (lnk *Amd64Lnk) EncodeStub(stub []byte, stubAddr, slotAddr uint64) (int64, error) {
	rel := int64(slotAddr - (stubAddr + 6))
	if rel < -1<<31 || rel >= 1<<31 {
		return rel, loader.ErrRelocationOverflow
	}
	stub[0], stub[1] = 0xff, 0x25
	binary.LittleEndian.PutUint32(stub[2:], uint32(rel))
	for i := 6; i < len(stub); i++ {
		stub[i] = 0xcc
	}
	return rel, nil
}

// ApplyArch has nothing to add on amd64: every supported kind is a plain
// data field.
func (lnk *Amd64Lnk) ApplyArch(kind loader.RelocKind, field, orig []byte, v internal.Values) (int64, error) {
	return 0, loader.ErrRelocationInvalid
}
