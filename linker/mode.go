package linker

// Mode selects how far Relocate goes. It is one of SizeOnly, UseBuffer or
// Auto.
type Mode interface {
	mode()
}

// SizeOnly computes the capacity a UseBuffer region needs without allocating
// or patching anything.
type SizeOnly struct{}

// UseBuffer places the image in caller owned memory at Addr with capacity
// Size, which must come from the linker's host address space. Addr only has to
// honour the section alignments; the image starts at the next page boundary.
type UseBuffer struct {
	Addr, Size uint64
}

// Auto allocates the image from the linker's host.
type Auto struct{}

func (SizeOnly) mode()  {}
func (UseBuffer) mode() {}
func (Auto) mode()      {}
