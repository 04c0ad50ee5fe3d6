package linker

import (
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

type memoryProvisioner struct {
}

// provision obtains the region the image is written to. owned reports
// whether the region came from the host and must be released with it. A
// caller buffer only has to honour the section alignments; the image base
// is moved up to the next page boundary inside it.
func (mp *memoryProvisioner) provision(host memory.Host, p *plan, mode linker.Mode) (region memory.MemRegion, owned bool, err error) {
	switch m := mode.(type) {
	case linker.Auto:
		if p.size == 0 {
			return memory.MemRegion{}, false, nil
		}
		region, err = host.MemAlloc(p.size, p.align)
		if err != nil {
			return memory.MemRegion{}, false, err
		}
		if !memory.IsAligned(region.Addr, p.align) || region.Size < p.size {
			host.MemFree(region)
			return memory.MemRegion{}, false, memory.ErrAddressInvalid
		}
		return region, true, nil
	case linker.UseBuffer:
		if p.size == 0 {
			return memory.MemRegion{Addr: m.Addr}, false, nil
		}
		if m.Addr == 0 {
			return memory.MemRegion{}, false, memory.ErrAddressInvalid
		}
		required := p.required()
		if m.Size < required {
			return memory.MemRegion{}, false, loader.NewBufferTooSmall(m.Addr, m.Size, required)
		}
		if !memory.IsAligned(m.Addr, p.secAlign) {
			return memory.MemRegion{}, false, loader.NewMisalignedBuffer(m.Addr, m.Size, p.secAlign)
		}
		base, ok := alignUp(m.Addr, p.align)
		if !ok || base-m.Addr > m.Size-p.size {
			return memory.MemRegion{}, false, memory.ErrAddressInvalid
		}
		return memory.MemRegion{Addr: base, Size: m.Size - (base - m.Addr), Prot: memory.MEM_PROT_READ | memory.MEM_PROT_WRITE}, false, nil
	}
	return memory.MemRegion{}, false, linker.ErrModeInvalid
}

// protect applies the final protection of each class. Classes start on page
// boundaries, so every range covers whole pages of one class only.
func (mp *memoryProvisioner) protect(host memory.Host, p *plan, base, pageSize uint64) error {
	for class, s := range p.classes {
		if s.start == s.end {
			continue
		}
		size := memory.Align(s.end, pageSize) - s.start
		prot := classProt[class]
		if err := host.MemProtect(base+s.start, size, prot); err != nil {
			return loader.NewProtectionChangeFailed(base+s.start, size, prot, err)
		}
	}
	return nil
}
