package linker

import (
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

// Linker is implemented by the architecture back ends.
type Linker interface {
	linker.Linker
	PointerSize() uint64
	Supports(kind loader.RelocKind) bool
	StubSize() uint64
	StubAlign() uint64
	// EncodeStub writes an indirect jump through the slot at slotAddr into
	// stub, which will live at stubAddr.
	EncodeStub(stub []byte, stubAddr, slotAddr uint64) (int64, error)
	// ApplyArch patches the instruction encoded kinds the generic applier
	// does not know. It returns the computed value and
	// loader.ErrRelocationOverflow when the value does not fit.
	ApplyArch(kind loader.RelocKind, field, orig []byte, v Values) (int64, error)
}

type Lnk struct {
	impl Linker
	cfg  linker.Config
	layoutPlanner
	symbolResolver
	gotManager
	relocApplier
	memoryProvisioner
}

func (lnk *Lnk) Init(impl Linker, cfg linker.Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}
	if cfg.Arch != impl.Arch() {
		return memory.ErrArchMismatch
	}
	if cfg.PageSize < cfg.Host.PageSize() {
		return memory.ErrSizeInvalid
	}
	lnk.impl = impl
	lnk.cfg = cfg
	return nil
}

func (lnk *Lnk) Host() memory.Host {
	return lnk.cfg.Host
}

func (lnk *Lnk) PageSize() uint64 {
	return lnk.cfg.PageSize
}

func (lnk *Lnk) Layout(s *loader.Session) (linker.Layout, error) {
	s.Lock()
	defer s.Unlock()
	p, err := lnk.newPlan(s)
	if err != nil {
		return linker.Layout{}, err
	}
	return p.report(), nil
}

func (lnk *Lnk) Relocate(s *loader.Session, mode linker.Mode) (uint64, error) {
	switch mode.(type) {
	case linker.SizeOnly, linker.UseBuffer, linker.Auto:
	default:
		return 0, linker.ErrModeInvalid
	}
	s.Lock()
	defer s.Unlock()
	_, sizeOnly := mode.(linker.SizeOnly)
	if !sizeOnly && s.State() >= loader.STATE_PROVISIONED {
		return 0, loader.ErrAlreadyRelocated
	}
	p, err := lnk.newPlan(s)
	if err != nil {
		return 0, err
	}
	if s.State() == loader.STATE_BUILT {
		s.SetState(loader.STATE_SIZED)
	}
	if sizeOnly {
		return p.required(), nil
	}
	targets, err := lnk.resolveSymbols(p, lnk.cfg.Resolver)
	if err != nil {
		return 0, err
	}
	region, owned, err := lnk.provision(lnk.cfg.Host, p, mode)
	if err != nil {
		return 0, err
	}
	s.SetState(loader.STATE_PROVISIONED)
	img, err := lnk.link(p, region, targets)
	if err != nil {
		if owned {
			lnk.cfg.Host.MemFree(region)
		}
		return 0, err
	}
	img.Owned = owned
	s.Attach(img)
	s.SetState(loader.STATE_EXECUTABLE)
	return p.required(), nil
}

func (lnk *Lnk) link(p *plan, region memory.MemRegion, targets targetMap) (*loader.Image, error) {
	p.assign(region.Addr)
	buf := make(Buffer, p.size)
	lnk.populate(p, buf)
	err := lnk.fillTable(p, buf, targets, lnk.impl)
	if err != nil {
		return nil, err
	}
	err = lnk.applyRelocations(p, buf, targets, lnk.impl)
	if err != nil {
		return nil, err
	}
	if p.size > 0 {
		err = lnk.cfg.Host.MemWrite(region.Addr, buf)
		if err != nil {
			return nil, err
		}
	}
	p.sess.SetState(loader.STATE_RELOCATED)
	err = lnk.protect(lnk.cfg.Host, p, region.Addr, lnk.cfg.PageSize)
	if err != nil {
		return nil, err
	}
	return &loader.Image{
		Host:     lnk.cfg.Host,
		Arch:     lnk.impl.Arch(),
		Region:   region,
		Sections: p.sectionAddrs(),
		Symbols:  lnk.symbolAddrs(p),
	}, nil
}
