package linker

import (
	"errors"
	"math"

	"github.com/wnxd/microld/loader"
)

// Values are the inputs of a relocation formula.
type Values struct {
	// S is the target address, or its stub for calls that need one.
	S uint64
	A int64
	// P is the address of the patched field.
	P uint64
	// GOT is the base of the indirection table.
	GOT uint64
	// G is the address of the target's slot for indirect kinds.
	G uint64
}

type relocApplier struct {
}

// populate copies the initialized contents of every section into the
// staging image. Everything else stays zero.
func (ra *relocApplier) populate(p *plan, buf Buffer) {
	for _, sec := range p.sections[:p.user] {
		if sec.kind.Loaded() && len(sec.data) != 0 {
			copy(buf[sec.offset:], sec.data)
		}
	}
}

func (ra *relocApplier) applyRelocations(p *plan, buf Buffer, targets targetMap, impl Linker) error {
	stubSize := impl.StubSize()
	for _, rel := range p.relocs {
		sec := p.sections[rel.Section]
		v := Values{
			S:   targets.addr(p, rel.Symbol),
			A:   rel.Addend,
			P:   sec.addr + rel.Offset,
			GOT: p.tableAddr(),
		}
		if rel.Kind.Indirect() {
			v.G = p.slotAddr(p.slotIndex[slotKey{rel.Symbol, SLOT_GOT}])
		}
		if rel.Kind.Call() {
			if stub, ok := p.stubAddr(rel.Symbol, stubSize); ok {
				v.S = stub
			}
		}
		size := rel.Kind.FieldSize()
		off := sec.offset + rel.Offset
		field := buf[off : off+size]
		orig := sec.data[rel.Offset : rel.Offset+size]
		value, err := applyGeneric(rel.Kind, field, v)
		if errors.Is(err, loader.ErrRelocationInvalid) {
			value, err = impl.ApplyArch(rel.Kind, field, orig, v)
		}
		if err != nil {
			return wrapRelocationError(sec.name, rel, value, err)
		}
	}
	return nil
}

// applyGeneric handles the data kinds whose encoding is the same on every
// little-endian target.
func applyGeneric(kind loader.RelocKind, field []byte, v Values) (int64, error) {
	var value uint64
	switch kind {
	case loader.R_ABS64:
		value = v.S + uint64(v.A)
		put64(field, value)
		return int64(value), nil
	case loader.R_PC64:
		value = v.S + uint64(v.A) - v.P
		put64(field, value)
		return int64(value), nil
	case loader.R_GOTOFF64:
		value = v.S + uint64(v.A) - v.GOT
		put64(field, value)
		return int64(value), nil
	case loader.R_GOTABS64:
		value = v.G + uint64(v.A)
		put64(field, value)
		return int64(value), nil
	case loader.R_ABS32:
		value = v.S + uint64(v.A)
		if value > math.MaxUint32 {
			return int64(value), loader.ErrRelocationOverflow
		}
	case loader.R_ABS32S:
		value = v.S + uint64(v.A)
	case loader.R_PC32, loader.R_PLT32:
		value = v.S + uint64(v.A) - v.P
	case loader.R_GOTPC32:
		value = v.GOT + uint64(v.A) - v.P
	case loader.R_GOT32:
		value = v.G - v.GOT + uint64(v.A)
	case loader.R_GOTPCREL32:
		value = v.G + uint64(v.A) - v.P
	default:
		return 0, loader.ErrRelocationInvalid
	}
	if kind != loader.R_ABS32 && !fitsInt32(int64(value)) {
		return int64(value), loader.ErrRelocationOverflow
	}
	put32(field, uint32(value))
	return int64(value), nil
}

func fitsInt32(v int64) bool {
	return v >= math.MinInt32 && v <= math.MaxInt32
}

func wrapRelocationError(section string, rel loader.Relocation, value int64, err error) error {
	if errors.Is(err, loader.ErrRelocationOverflow) {
		return loader.NewRelocationOverflow(section, rel, value)
	}
	return loader.NewRelocationInvalid(section, rel)
}
