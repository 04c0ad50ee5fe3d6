package linker

import (
	"github.com/xyproto/env/v2"

	"github.com/wnxd/microld/memory"
)

type Config struct {
	Arch     memory.Arch
	Host     memory.Host
	Resolver Resolver
	// PageSize is the granule protections are applied at. Zero means the
	// host's page size.
	PageSize uint64
	// ForcePLT routes every call relocation through a stub, including calls
	// to functions defined inside the image.
	ForcePLT bool
}

// DefaultConfig targets the running process: native architecture, native
// host memory and no host symbols.
func DefaultConfig() Config {
	return Config{
		Arch: memory.NativeArch(),
		Host: memory.Native(),
	}
}

// ConfigFromEnv is DefaultConfig adjusted by MICROLD_ARCH, MICROLD_PAGE_SIZE
// and MICROLD_FORCE_PLT.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if env.Has("MICROLD_ARCH") {
		arch, err := memory.ParseArch(env.Str("MICROLD_ARCH"))
		if err != nil {
			return cfg, err
		}
		cfg.Arch = arch
	}
	if size := env.Int("MICROLD_PAGE_SIZE", 0); size != 0 {
		if size < 0 || !memory.IsPowerOfTwo(size) {
			return cfg, memory.ErrSizeInvalid
		}
		cfg.PageSize = uint64(size)
	}
	cfg.ForcePLT = env.Bool("MICROLD_FORCE_PLT")
	return cfg, nil
}

// Normalize fills unset fields with their defaults.
func (cfg Config) Normalize() (Config, error) {
	if cfg.Arch == memory.ARCH_UNKNOWN {
		cfg.Arch = memory.NativeArch()
	}
	if cfg.Host == nil {
		cfg.Host = memory.Native()
	}
	if cfg.Resolver == nil {
		cfg.Resolver = noResolver
	}
	if cfg.PageSize == 0 {
		cfg.PageSize = cfg.Host.PageSize()
	}
	if !memory.IsPowerOfTwo(cfg.PageSize) {
		return cfg, memory.ErrSizeInvalid
	}
	return cfg, nil
}
