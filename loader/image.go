package loader

import "github.com/wnxd/microld/memory"

// Image records where a session was placed. Owned images were allocated by
// the linker and are released by Session.Close.
type Image struct {
	Host     memory.Host
	Arch     memory.Arch
	Region   memory.MemRegion
	Owned    bool
	Sections []uint64
	Symbols  map[string]uint64
}

func (img *Image) release() error {
	if !img.Owned || img.Region.Size == 0 {
		return nil
	}
	img.Owned = false
	return img.Host.MemFree(img.Region)
}
