package arm64

import (
	internal "github.com/wnxd/microld/internal/linker/arm64"
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/memory"
)

var _ = linker.Register(memory.ARCH_ARM64, internal.NewArm64Linker)
