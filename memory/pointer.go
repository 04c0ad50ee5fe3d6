package memory

import "encoding/binary"

type Pointer struct {
	host Host
	addr uint64
}

func ToPointer(host Host, addr uint64) Pointer {
	return Pointer{host, addr}
}

func (p Pointer) Address() uint64 {
	return p.addr
}

func (p Pointer) Add(offset uint64) Pointer {
	return Pointer{p.host, p.addr + offset}
}

func (p Pointer) Sub(offset uint64) Pointer {
	return Pointer{p.host, p.addr - offset}
}

func (p Pointer) MemRead(size uint64) ([]byte, error) {
	return p.host.MemRead(p.addr, size)
}

func (p Pointer) MemWrite(data []byte) error {
	return p.host.MemWrite(p.addr, data)
}

// MemReadPointer reads an address of the given width stored at p.
func (p Pointer) MemReadPointer(size uint64) (Pointer, error) {
	data, err := p.MemRead(size)
	if err != nil {
		return Pointer{}, err
	}
	switch size {
	case 4:
		return Pointer{p.host, uint64(binary.LittleEndian.Uint32(data))}, nil
	case 8:
		return Pointer{p.host, binary.LittleEndian.Uint64(data)}, nil
	}
	return Pointer{}, ErrSizeInvalid
}

func (p Pointer) ReadAt(b []byte, off int64) (n int, err error) {
	data, err := p.host.MemRead(p.addr+uint64(off), uint64(len(b)))
	if err != nil {
		return 0, err
	}
	return copy(b, data), nil
}

func (p Pointer) WriteAt(b []byte, off int64) (n int, err error) {
	err = p.host.MemWrite(p.addr+uint64(off), b)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}
