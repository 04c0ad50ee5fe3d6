package linker

import (
	"fmt"
	"strings"

	"github.com/wnxd/microld/loader"
)

// Placement is one section of a planned image. Synthesized sections have
// ID -1.
type Placement struct {
	ID     loader.SectionID
	Name   string
	Kind   loader.SectionKind
	Offset uint64
	Size   uint64
	Align  uint64
}

// Layout describes a planned image. Size is the image itself and Align the
// alignment of its base. Required is what Relocate reports: the capacity a
// UseBuffer region aligned to BaseAlign must offer, slack for moving the base
// to an Align boundary included.
type Layout struct {
	Size      uint64
	Required  uint64
	Align     uint64
	BaseAlign uint64
	Sections  []Placement
	Slots     int
	Stubs     int
}

func (l Layout) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "size: %#x, required: %#x, align: %#x/%#x, slots: %d, stubs: %d\n", l.Size, l.Required, l.Align, l.BaseAlign, l.Slots, l.Stubs)
	for _, p := range l.Sections {
		fmt.Fprintf(&sb, "  %08x %08x %v %-6v %s\n", p.Offset, p.Size, p.Kind.Prot(), p.Kind, p.Name)
	}
	return sb.String()
}

// Find returns the placement of the named section.
func (l Layout) Find(name string) (Placement, bool) {
	for _, p := range l.Sections {
		if p.Name == name {
			return p, true
		}
	}
	return Placement{}, false
}
