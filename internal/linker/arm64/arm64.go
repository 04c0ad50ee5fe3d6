package arm64

import (
	"encoding/binary"

	internal "github.com/wnxd/microld/internal/linker"
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

const (
	POINTER_SIZE = 8
	STUB_SIZE    = 16

	BRANCH_RANGE = 1 << 27
	PAGE_RANGE   = 1 << 32
)

const (
	insnAdrpX16   = 0x90000010
	insnLdrX17X16 = 0xf9400211
	insnBrX17     = 0xd61f0220
	insnNop       = 0xd503201f
)

type Arm64Lnk struct {
	internal.Lnk
}

func NewArm64Linker(cfg linker.Config) (linker.Linker, error) {
	lnk := new(Arm64Lnk)
	if cfg.Arch == memory.ARCH_UNKNOWN {
		cfg.Arch = memory.ARCH_ARM64
	}
	err := lnk.Init(lnk, cfg)
	if err != nil {
		return nil, err
	}
	return lnk, nil
}

func (lnk *Arm64Lnk) Arch() memory.Arch {
	return memory.ARCH_ARM64
}

func (lnk *Arm64Lnk) PointerSize() uint64 {
	return POINTER_SIZE
}

func (lnk *Arm64Lnk) Supports(kind loader.RelocKind) bool {
	switch kind {
	case loader.R_ABS64, loader.R_ABS32, loader.R_ABS32S,
		loader.R_PC64, loader.R_PC32,
		loader.R_GOTABS64, loader.R_GOTOFF64,
		loader.R_CALL26, loader.R_JUMP26,
		loader.R_ADR_PAGE21, loader.R_ADD_LO12, loader.R_LDST64_LO12,
		loader.R_GOT_PAGE21, loader.R_GOT_LO12:
		return true
	}
	return false
}

func (lnk *Arm64Lnk) StubSize() uint64 {
	return STUB_SIZE
}

func (lnk *Arm64Lnk) StubAlign() uint64 {
	return STUB_SIZE
}

// EncodeStub emits
//
//	adrp x16, slot
//	ldr  x17, [x16, :lo12:slot]
//	br   x17
//	nop
func (lnk *Arm64Lnk) EncodeStub(stub []byte, stubAddr, slotAddr uint64) (int64, error) {
	adrp, value, err := adr(insnAdrpX16, slotAddr, stubAddr)
	if err != nil {
		return value, err
	}
	order := binary.LittleEndian
	order.PutUint32(stub[0:], adrp)
	order.PutUint32(stub[4:], lo12(insnLdrX17X16, slotAddr, 3))
	order.PutUint32(stub[8:], insnBrX17)
	order.PutUint32(stub[12:], insnNop)
	return value, nil
}

func (lnk *Arm64Lnk) ApplyArch(kind loader.RelocKind, field, orig []byte, v internal.Values) (int64, error) {
	insn := binary.LittleEndian.Uint32(orig)
	var value int64
	switch kind {
	case loader.R_CALL26, loader.R_JUMP26:
		value = int64(v.S + uint64(v.A) - v.P)
		if value&3 != 0 || value < -BRANCH_RANGE || value >= BRANCH_RANGE {
			return value, loader.ErrRelocationOverflow
		}
		insn = insn&^0x03ffffff | uint32(value>>2)&0x03ffffff
	case loader.R_ADR_PAGE21, loader.R_GOT_PAGE21:
		addr := v.S + uint64(v.A)
		if kind == loader.R_GOT_PAGE21 {
			addr = v.G
		}
		var err error
		insn, value, err = adr(insn, addr, v.P)
		if err != nil {
			return value, err
		}
	case loader.R_ADD_LO12:
		value = int64(v.S+uint64(v.A)) & 0xfff
		insn = lo12(insn, v.S+uint64(v.A), 0)
	case loader.R_LDST64_LO12:
		value = int64(v.S+uint64(v.A)) & 0xfff
		if value&7 != 0 {
			return value, loader.ErrRelocationOverflow
		}
		insn = lo12(insn, v.S+uint64(v.A), 3)
	case loader.R_GOT_LO12:
		value = int64(v.G) & 0xfff
		if value&7 != 0 {
			return value, loader.ErrRelocationOverflow
		}
		insn = lo12(insn, v.G, 3)
	default:
		return 0, loader.ErrRelocationInvalid
	}
	binary.LittleEndian.PutUint32(field, insn)
	return value, nil
}

func page(addr uint64) uint64 {
	return addr &^ 0xfff
}

// adr patches the page delta between addr and pc into an adrp instruction.
func adr(insn uint32, addr, pc uint64) (uint32, int64, error) {
	value := int64(page(addr) - page(pc))
	if value < -PAGE_RANGE || value >= PAGE_RANGE {
		return insn, value, loader.ErrRelocationOverflow
	}
	imm := uint32(value >> 12)
	insn &^= 3<<29 | 0x7ffff<<5
	insn |= (imm&3)<<29 | (imm>>2&0x7ffff)<<5
	return insn, value, nil
}

// lo12 patches the low twelve bits of addr, scaled down by shift, into the
// imm12 field. Callers reject addresses that are not a multiple of the scale.
func lo12(insn uint32, addr uint64, shift uint) uint32 {
	imm := uint32(addr&0xfff) >> shift
	return insn&^(0xfff<<10) | imm<<10
}
