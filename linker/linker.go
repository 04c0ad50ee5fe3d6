package linker

import (
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

// Linker binds sessions into execution-ready images. A Linker holds no
// per-session state and may relocate distinct sessions concurrently.
type Linker interface {
	Arch() memory.Arch
	Host() memory.Host
	PageSize() uint64
	// Relocate runs the session through layout and, unless mode is SizeOnly,
	// provisioning, resolution, patching and protection. It returns the
	// capacity a UseBuffer region needs, see Layout.Required.
	Relocate(s *loader.Session, mode Mode) (uint64, error)
	// Layout reports the placement Relocate would use for s.
	Layout(s *loader.Session) (Layout, error)
}

func New(cfg Config) (Linker, error) {
	if ctor, ok := lnkMap[cfg.Arch]; ok {
		return ctor(cfg)
	}
	return nil, memory.ErrArchUnsupported
}
