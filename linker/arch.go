package linker

import (
	"github.com/wnxd/microld/memory"
)

type LnkCtor func(Config) (Linker, error)

var lnkMap = make(map[memory.Arch]LnkCtor)

func Register(arch memory.Arch, ctor LnkCtor) bool {
	if _, ok := lnkMap[arch]; ok {
		return false
	}
	lnkMap[arch] = ctor
	return true
}
