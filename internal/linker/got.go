package linker

import (
	"github.com/wnxd/microld/encoding"
	"github.com/wnxd/microld/loader"
)

type SlotKind int

const (
	SLOT_GOT SlotKind = iota
	SLOT_PLT
)

type slotKey struct {
	name string
	kind SlotKind
}

type slot struct {
	slotKey
	stub int
}

// gotManager owns the indirection table. Every slot holds the absolute
// address of one symbol; SLOT_PLT slots also get a stub in .plt that jumps
// through them.
type gotManager struct {
}

func (gm *gotManager) scanRelocations(p *plan, impl Linker, forcePLT bool) error {
	needTable := false
	for rel := range p.sess.Relocations {
		sec := p.sections[rel.Section]
		if !sec.kind.Loaded() {
			continue
		}
		if !impl.Supports(rel.Kind) {
			return loader.NewRelocationInvalid(sec.name, rel)
		}
		p.relocs = append(p.relocs, rel)
		sym, _ := p.sess.Symbol(rel.Symbol)
		switch {
		case rel.Kind.Indirect():
			p.slotFor(rel.Symbol, SLOT_GOT)
		case rel.Kind.Call() && (forcePLT || !sym.InImage()):
			p.slotFor(rel.Symbol, SLOT_PLT)
		}
		if rel.Kind.TableRelative() || (rel.Symbol == gotSymbol && !sym.Defined()) {
			needTable = true
		}
	}
	if len(p.slots) != 0 || needTable {
		p.got = p.synthesize(gotName, loader.SEC_RODATA, p.ptrSize, uint64(len(p.slots))*p.ptrSize)
	}
	if p.stubs != 0 {
		p.plt = p.synthesize(pltName, loader.SEC_CODE, impl.StubAlign(), uint64(p.stubs)*impl.StubSize())
	}
	return nil
}

// slotFor returns the slot of name, allocating it on first use.
func (p *plan) slotFor(name string, kind SlotKind) int {
	key := slotKey{name, kind}
	if i, ok := p.slotIndex[key]; ok {
		return i
	}
	sl := slot{slotKey: key, stub: -1}
	if kind == SLOT_PLT {
		sl.stub = p.stubs
		p.stubs++
	}
	p.slots = append(p.slots, sl)
	p.slotIndex[key] = len(p.slots) - 1
	return len(p.slots) - 1
}

func (p *plan) slotAddr(i int) uint64 {
	return p.sections[p.got].addr + uint64(i)*p.ptrSize
}

func (p *plan) tableAddr() uint64 {
	if p.got == noSection {
		return 0
	}
	return p.sections[p.got].addr
}

// stubAddr returns the stub a call to name must branch to, if it has one.
func (p *plan) stubAddr(name string, stubSize uint64) (uint64, bool) {
	i, ok := p.slotIndex[slotKey{name, SLOT_PLT}]
	if !ok {
		return 0, false
	}
	return p.sections[p.plt].addr + uint64(p.slots[i].stub)*stubSize, true
}

func (gm *gotManager) fillTable(p *plan, buf Buffer, targets targetMap, impl Linker) error {
	if p.got == noSection {
		return nil
	}
	got := p.sections[p.got]
	stream := buf.Stream(got.offset, int(p.ptrSize))
	for i, sl := range p.slots {
		addr := targets.addr(p, sl.name)
		if err := encoding.Encode(stream, uintptr(addr)); err != nil {
			return err
		}
		if sl.stub < 0 {
			continue
		}
		plt := p.sections[p.plt]
		size := impl.StubSize()
		off := plt.offset + uint64(sl.stub)*size
		value, err := impl.EncodeStub(buf[off:off+size], plt.addr+uint64(sl.stub)*size, p.slotAddr(i))
		if err != nil {
			rel := loader.Relocation{Section: -1, Offset: off - plt.offset, Symbol: sl.name, Kind: loader.R_PC32}
			return wrapRelocationError(pltName, rel, value, err)
		}
	}
	return nil
}
