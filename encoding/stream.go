package encoding

// Stream is a sequential cursor over target memory. BlockSize is the target's
// pointer width, which is also the width of int, uint and uintptr values.
type Stream interface {
	BlockSize() int
	Offset() uint64
	Skip(int) error
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}
