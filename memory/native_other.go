//go:build !unix && !windows

package memory

import "errors"

type mapping struct{}

func (n *native) PageSize() uint64 {
	return 4096
}

func (n *native) MemAlloc(size, align uint64) (MemRegion, error) {
	return MemRegion{}, errors.ErrUnsupported
}

func (n *native) MemFree(region MemRegion) error {
	return errors.ErrUnsupported
}

func (n *native) MemProtect(addr, size uint64, prot MemProt) error {
	return errors.ErrUnsupported
}
