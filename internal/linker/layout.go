package linker

import (
	"math"

	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

const (
	gotName     = ".got"
	pltName     = ".plt"
	commonName  = ".bss.common"
	gotSymbol   = "_GLOBAL_OFFSET_TABLE_"
	noSection   = -1
	numClasses  = 3
	classCode   = 0
	classRodata = 1
	classData   = 2
)

var classProt = [numClasses]memory.MemProt{
	classCode:   memory.MEM_PROT_READ | memory.MEM_PROT_EXEC,
	classRodata: memory.MEM_PROT_READ,
	classData:   memory.MEM_PROT_READ | memory.MEM_PROT_WRITE,
}

type section struct {
	id     loader.SectionID
	name   string
	kind   loader.SectionKind
	align  uint64
	size   uint64
	offset uint64
	addr   uint64
	data   []byte
}

type span struct {
	start, end uint64
}

// plan is everything one Relocate call derives from a session. It is built
// from scratch on every call so identical sessions give identical plans.
type plan struct {
	sess      *loader.Session
	ptrSize   uint64
	sections  []section
	user      int
	got       int
	plt       int
	common    int
	commons   map[string]uint64
	relocs    []loader.Relocation
	slots     []slot
	slotIndex map[slotKey]int
	stubs     int
	classes   [numClasses]span
	size      uint64
	align     uint64
	secAlign  uint64
	base      uint64
}

type layoutPlanner struct {
}

func (lnk *Lnk) newPlan(s *loader.Session) (*plan, error) {
	p := &plan{
		sess:      s,
		ptrSize:   lnk.impl.PointerSize(),
		got:       noSection,
		plt:       noSection,
		common:    noSection,
		slotIndex: make(map[slotKey]int),
	}
	// room for .plt, .got and .bss.common
	p.sections = make([]section, 0, s.NumSections()+3)
	for id, sec := range s.Sections {
		p.sections = append(p.sections, section{
			id:    id,
			name:  sec.Name,
			kind:  sec.Kind,
			align: sec.Align,
			size:  sec.Size,
			data:  sec.Data,
		})
	}
	p.user = len(p.sections)
	if err := lnk.planCommons(p); err != nil {
		return nil, err
	}
	if err := lnk.scanRelocations(p, lnk.impl, lnk.cfg.ForcePLT); err != nil {
		return nil, err
	}
	if err := lnk.planLayout(p, lnk.cfg.PageSize, lnk.impl.Arch().MaxAddr()); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *plan) synthesize(name string, kind loader.SectionKind, align, size uint64) int {
	p.sections = append(p.sections, section{
		id:    noSection,
		name:  name,
		kind:  kind,
		align: align,
		size:  size,
	})
	return len(p.sections) - 1
}

func (lp *layoutPlanner) planCommons(p *plan) error {
	var (
		offset uint64
		align  uint64 = 1
	)
	p.commons = make(map[string]uint64)
	for sym := range p.sess.Symbols {
		if sym.Def != loader.DEF_COMMON {
			continue
		}
		var ok bool
		if offset, ok = alignUp(offset, sym.Align); ok {
			p.commons[sym.Name] = offset
			offset, ok = add(offset, sym.Value)
		}
		if !ok {
			return loader.NewLayoutOverflow(commonName, math.MaxUint64)
		}
		align = max(align, sym.Align)
	}
	if len(p.commons) != 0 {
		p.common = p.synthesize(commonName, loader.SEC_BSS, align, offset)
	}
	return nil
}

// class lists the members of a protection class. Data comes before bss,
// then common storage, and the synthesized tables follow the user sections
// of their class.
func (p *plan) class(class int) []int {
	var members []int
	pick := func(kind loader.SectionKind) {
		for i := range p.user {
			if p.sections[i].kind == kind {
				members = append(members, i)
			}
		}
	}
	switch class {
	case classCode:
		pick(loader.SEC_CODE)
		if p.plt != noSection {
			members = append(members, p.plt)
		}
	case classRodata:
		pick(loader.SEC_RODATA)
		if p.got != noSection {
			members = append(members, p.got)
		}
	case classData:
		pick(loader.SEC_DATA)
		pick(loader.SEC_BSS)
		if p.common != noSection {
			members = append(members, p.common)
		}
	}
	return members
}

func (lp *layoutPlanner) planLayout(p *plan, pageSize, maxAddr uint64) error {
	var (
		offset uint64
		ok     bool
	)
	p.align = pageSize
	p.secAlign = 1
	for class := range numClasses {
		members := p.class(class)
		if len(members) == 0 {
			p.classes[class] = span{offset, offset}
			continue
		}
		if offset, ok = alignUp(offset, pageSize); !ok {
			return loader.NewLayoutOverflow(p.sections[members[0]].name, maxAddr)
		}
		start := offset
		for _, i := range members {
			sec := &p.sections[i]
			if offset, ok = alignUp(offset, sec.align); ok {
				sec.offset = offset
				offset, ok = add(offset, sec.size)
			}
			if !ok || offset > maxAddr {
				return loader.NewLayoutOverflow(sec.name, maxAddr)
			}
			p.secAlign = max(p.secAlign, sec.align)
		}
		p.classes[class] = span{start, offset}
	}
	p.align = max(p.align, p.secAlign)
	size, ok := alignUp(offset, pageSize)
	if ok && size != 0 {
		_, ok = add(size, p.align-p.secAlign)
	}
	if !ok || (size != 0 && size-1 > maxAddr) {
		return loader.NewLayoutOverflow("", maxAddr)
	}
	p.size = size
	return nil
}

// required is the capacity a caller buffer aligned to the largest section
// alignment needs: the image plus the room to move its base up to the next
// page boundary.
func (p *plan) required() uint64 {
	if p.size == 0 {
		return 0
	}
	return p.size + p.align - p.secAlign
}

// assign fixes every section at its final address.
func (p *plan) assign(base uint64) {
	p.base = base
	for i := range p.sections {
		sec := &p.sections[i]
		if sec.kind.Loaded() {
			sec.addr = base + sec.offset
		}
	}
}

func (p *plan) sectionAddrs() []uint64 {
	addrs := make([]uint64, p.user)
	for i := range p.user {
		addrs[i] = p.sections[i].addr
	}
	return addrs
}

func (p *plan) report() linker.Layout {
	l := linker.Layout{
		Size:      p.size,
		Required:  p.required(),
		Align:     p.align,
		BaseAlign: p.secAlign,
		Slots:     len(p.slots),
		Stubs:     p.stubs,
	}
	for class := range numClasses {
		for _, i := range p.class(class) {
			sec := p.sections[i]
			l.Sections = append(l.Sections, linker.Placement{
				ID:     sec.id,
				Name:   sec.name,
				Kind:   sec.kind,
				Offset: sec.offset,
				Size:   sec.size,
				Align:  sec.align,
			})
		}
	}
	return l
}

func alignUp(a, b uint64) (uint64, bool) {
	if b <= 1 {
		return a, true
	}
	if a > math.MaxUint64-(b-1) {
		return 0, false
	}
	return memory.Align(a, b), true
}

func add(a, b uint64) (uint64, bool) {
	sum := a + b
	return sum, sum >= a
}
