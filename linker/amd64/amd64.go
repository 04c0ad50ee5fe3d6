package amd64

import (
	internal "github.com/wnxd/microld/internal/linker/amd64"
	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/memory"
)

var _ = linker.Register(memory.ARCH_X86_64, internal.NewAmd64Linker)
