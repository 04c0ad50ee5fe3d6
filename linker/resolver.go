package linker

import (
	"errors"

	"github.com/wnxd/microld/loader"
)

// Resolver looks names up in the host process' already resident symbol
// space. Implementations must tolerate concurrent lookups.
type Resolver interface {
	FindSymbol(name string) (uint64, error)
}

type ResolverFunc func(name string) (uint64, error)

func (f ResolverFunc) FindSymbol(name string) (uint64, error) {
	return f(name)
}

// SymbolTable is a fixed name to address directory.
type SymbolTable map[string]uint64

func (t SymbolTable) FindSymbol(name string) (uint64, error) {
	if addr, ok := t[name]; ok {
		return addr, nil
	}
	return 0, loader.ErrSymbolNotFound
}

// Chain consults each resolver in order and returns the first hit. A
// resolver failing with anything but loader.ErrSymbolNotFound stops the
// search.
func Chain(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(name string) (uint64, error) {
		for _, r := range resolvers {
			if r == nil {
				continue
			}
			addr, err := r.FindSymbol(name)
			if err == nil {
				return addr, nil
			} else if !errors.Is(err, loader.ErrSymbolNotFound) {
				return 0, err
			}
		}
		return 0, loader.ErrSymbolNotFound
	})
}

var noResolver Resolver = ResolverFunc(func(string) (uint64, error) {
	return 0, loader.ErrSymbolNotFound
})

var _ Resolver = (*loader.Session)(nil)
