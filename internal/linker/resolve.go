package linker

import (
	"errors"
	"fmt"

	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
)

type target struct {
	section int
	offset  uint64
}

// targetMap holds where every referenced symbol lives. Entries with section
// noSection are absolute addresses kept in offset.
type targetMap map[string]target

func (m targetMap) addr(p *plan, name string) uint64 {
	return p.addrOf(m[name])
}

type symbolResolver struct {
}

// local returns the in-image location of a defined symbol.
func (p *plan) local(sym loader.Symbol) (target, bool) {
	switch sym.Def {
	case loader.DEF_SECTION:
		return target{int(sym.Section), sym.Value}, true
	case loader.DEF_COMMON:
		return target{p.common, p.commons[sym.Name]}, true
	case loader.DEF_ABSOLUTE:
		return target{noSection, sym.Value}, true
	}
	return target{}, false
}

// resolveSymbols binds every referenced name. Session definitions win over
// the host, and weak references nothing defines become zero. Only
// loader.ErrSymbolNotFound from the resolver counts as a miss; any other
// resolver error aborts the call. It runs before
// any memory is provisioned so an unresolved reference costs nothing.
func (sr *symbolResolver) resolveSymbols(p *plan, resolver linker.Resolver) (targetMap, error) {
	targets := make(targetMap)
	for _, rel := range p.relocs {
		if _, ok := targets[rel.Symbol]; ok {
			continue
		}
		sym, _ := p.sess.Symbol(rel.Symbol)
		if t, ok := p.local(sym); ok {
			targets[rel.Symbol] = t
			continue
		}
		if rel.Symbol == gotSymbol && p.got != noSection {
			targets[rel.Symbol] = target{p.got, 0}
			continue
		}
		addr, err := resolver.FindSymbol(rel.Symbol)
		switch {
		case err == nil:
			targets[rel.Symbol] = target{noSection, addr}
		case !errors.Is(err, loader.ErrSymbolNotFound):
			return nil, fmt.Errorf("resolve %s: %w", rel.Symbol, err)
		case sym.Bind == loader.BIND_WEAK:
			targets[rel.Symbol] = target{noSection, 0}
		default:
			return nil, loader.NewUndefinedSymbol(rel.Symbol)
		}
	}
	return targets, nil
}

// symbolAddrs is the image's export table: every symbol the session defines.
func (sr *symbolResolver) symbolAddrs(p *plan) map[string]uint64 {
	symbols := make(map[string]uint64)
	for sym := range p.sess.Symbols {
		if t, ok := p.local(sym); ok {
			symbols[sym.Name] = p.addrOf(t)
		}
	}
	if p.got != noSection {
		if _, ok := symbols[gotSymbol]; !ok {
			symbols[gotSymbol] = p.tableAddr()
		}
	}
	return symbols
}

func (p *plan) addrOf(t target) uint64 {
	if t.section == noSection {
		return t.offset
	}
	return p.sections[t.section].addr + t.offset
}
