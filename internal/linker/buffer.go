package linker

import (
	"encoding/binary"
	"io"

	"github.com/wnxd/microld/encoding"
)

// Buffer is the staging copy of an image. It is assembled completely before
// a single write to target memory.
type Buffer []byte

func (buf Buffer) ReadAt(b []byte, off int64) (n int, err error) {
	if off < 0 || int(off) >= len(buf) {
		return 0, io.EOF
	}
	n = copy(b, buf[off:])
	if n < len(b) {
		err = io.EOF
	}
	return
}

func (buf Buffer) WriteAt(b []byte, off int64) (n int, err error) {
	if off < 0 || int(off)+len(b) > len(buf) {
		return 0, io.ErrShortWrite
	}
	return copy(buf[off:], b), nil
}

func (buf Buffer) Stream(offset uint64, size int) encoding.Stream {
	return &bufferStream{buf, offset, size}
}

type bufferStream struct {
	buf    Buffer
	offset uint64
	size   int
}

func (bs *bufferStream) BlockSize() int {
	return bs.size
}

func (bs *bufferStream) Offset() uint64 {
	return bs.offset
}

func (bs *bufferStream) Skip(n int) error {
	bs.offset += uint64(n)
	return nil
}

func (bs *bufferStream) Read(b []byte) (int, error) {
	n, err := bs.buf.ReadAt(b, int64(bs.offset))
	if err == nil {
		bs.Skip(n)
	}
	return n, err
}

func (bs *bufferStream) Write(b []byte) (int, error) {
	n, err := bs.buf.WriteAt(b, int64(bs.offset))
	if err == nil {
		bs.Skip(n)
	}
	return n, err
}

func put32(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

func put64(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}
