package memory

import (
	"fmt"
	"runtime"
	"strings"
)

type Arch int

const (
	ARCH_UNKNOWN Arch = iota
	ARCH_ARM
	ARCH_ARM64
	ARCH_X86
	ARCH_X86_64
)

func (a Arch) String() string {
	switch a {
	case ARCH_ARM:
		return "arm"
	case ARCH_ARM64:
		return "arm64"
	case ARCH_X86:
		return "386"
	case ARCH_X86_64:
		return "amd64"
	}
	return "unknown"
}

// PointerSize returns the width in bytes of an address on the architecture,
// or 0 when it is unknown.
func (a Arch) PointerSize() uint64 {
	switch a {
	case ARCH_ARM, ARCH_X86:
		return 4
	case ARCH_ARM64, ARCH_X86_64:
		return 8
	}
	return 0
}

// MaxAddr is the highest address representable by the architecture.
func (a Arch) MaxAddr() uint64 {
	switch a.PointerSize() {
	case 4:
		return 1<<32 - 1
	case 8:
		return 1<<64 - 1
	}
	return 0
}

// ParseArch accepts GOARCH names as well as the common toolchain spellings.
func ParseArch(s string) (Arch, error) {
	switch strings.ToLower(s) {
	case "arm", "armv7":
		return ARCH_ARM, nil
	case "arm64", "aarch64":
		return ARCH_ARM64, nil
	case "386", "x86", "i386":
		return ARCH_X86, nil
	case "amd64", "x86_64", "x86-64":
		return ARCH_X86_64, nil
	}
	return ARCH_UNKNOWN, fmt.Errorf("%w: %s", ErrArchUnsupported, s)
}

func NativeArch() Arch {
	arch, err := ParseArch(runtime.GOARCH)
	if err != nil {
		return ARCH_UNKNOWN
	}
	return arch
}
