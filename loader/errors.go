package loader

import (
	"errors"
	"fmt"

	"github.com/wnxd/microld/memory"
)

var (
	ErrLayoutOverflow         = errors.New("layout overflow")
	ErrBufferTooSmall         = errors.New("buffer too small")
	ErrMisalignedBuffer       = errors.New("misaligned buffer")
	ErrProtectionChangeFailed = errors.New("protection change failed")
	ErrUndefinedSymbol        = errors.New("undefined symbol")
	ErrDuplicateSymbol        = errors.New("duplicate symbol")
	ErrRelocationOverflow     = errors.New("relocation overflow")
	ErrAlreadyRelocated       = errors.New("already relocated")
	ErrNotExecutable          = errors.New("session not executable")
	ErrSymbolNotFound         = errors.New("symbol not found")
	ErrSectionInvalid         = errors.New("section invalid")
	ErrRelocationInvalid      = errors.New("relocation invalid")
)

type SymbolError struct {
	err  error
	name string
}

type BufferError struct {
	err      error
	addr     uint64
	size     uint64
	required uint64
	align    uint64
}

type RelocationError struct {
	err     error
	section string
	offset  uint64
	symbol  string
	kind    RelocKind
	value   int64
}

type ProtectionError struct {
	addr  uint64
	size  uint64
	prot  memory.MemProt
	cause error
}

type LayoutError struct {
	section string
	limit   uint64
}

func NewUndefinedSymbol(name string) error {
	return &SymbolError{ErrUndefinedSymbol, name}
}

func NewDuplicateSymbol(name string) error {
	return &SymbolError{ErrDuplicateSymbol, name}
}

func NewBufferTooSmall(addr, size, required uint64) error {
	return &BufferError{err: ErrBufferTooSmall, addr: addr, size: size, required: required}
}

func NewMisalignedBuffer(addr, size, align uint64) error {
	return &BufferError{err: ErrMisalignedBuffer, addr: addr, size: size, align: align}
}

func NewRelocationOverflow(section string, rel Relocation, value int64) error {
	return &RelocationError{ErrRelocationOverflow, section, rel.Offset, rel.Symbol, rel.Kind, value}
}

func NewRelocationInvalid(section string, rel Relocation) error {
	return &RelocationError{ErrRelocationInvalid, section, rel.Offset, rel.Symbol, rel.Kind, 0}
}

func NewProtectionChangeFailed(addr, size uint64, prot memory.MemProt, cause error) error {
	return &ProtectionError{addr, size, prot, cause}
}

func NewLayoutOverflow(section string, limit uint64) error {
	return &LayoutError{section, limit}
}

func (e *SymbolError) Error() string {
	return fmt.Sprintf("%v: %s", e.err, e.name)
}

func (e *SymbolError) Unwrap() error {
	return e.err
}

func (e *SymbolError) Name() string {
	return e.name
}

func (e *BufferError) Error() string {
	if e.err == ErrMisalignedBuffer {
		return fmt.Sprintf("%v: addr: %016X, align: %d", e.err, e.addr, e.align)
	}
	return fmt.Sprintf("%v: required: %d, actual: %d", e.err, e.required, e.size)
}

func (e *BufferError) Unwrap() error {
	return e.err
}

func (e *BufferError) Address() uint64 {
	return e.addr
}

func (e *BufferError) Size() uint64 {
	return e.size
}

func (e *BufferError) Required() uint64 {
	return e.required
}

func (e *BufferError) Align() uint64 {
	return e.align
}

func (e *RelocationError) Error() string {
	if e.err == ErrRelocationOverflow {
		return fmt.Sprintf("%v: %s+%#x, %v against %s, value: %#x", e.err, e.section, e.offset, e.kind, e.symbol, e.value)
	}
	return fmt.Sprintf("%v: %s+%#x, %v against %s", e.err, e.section, e.offset, e.kind, e.symbol)
}

func (e *RelocationError) Unwrap() error {
	return e.err
}

func (e *RelocationError) Section() string {
	return e.section
}

func (e *RelocationError) Offset() uint64 {
	return e.offset
}

func (e *RelocationError) Symbol() string {
	return e.symbol
}

func (e *RelocationError) Kind() RelocKind {
	return e.kind
}

func (e *RelocationError) Value() int64 {
	return e.value
}

func (e *ProtectionError) Error() string {
	return fmt.Sprintf("%v: addr: %016X, size: %d, prot: %v: %v", ErrProtectionChangeFailed, e.addr, e.size, e.prot, e.cause)
}

func (e *ProtectionError) Unwrap() []error {
	return []error{ErrProtectionChangeFailed, e.cause}
}

func (e *ProtectionError) Address() uint64 {
	return e.addr
}

func (e *ProtectionError) Size() uint64 {
	return e.size
}

func (e *ProtectionError) Prot() memory.MemProt {
	return e.prot
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("%v: section %s exceeds %#x", ErrLayoutOverflow, e.section, e.limit)
}

func (e *LayoutError) Unwrap() error {
	return ErrLayoutOverflow
}

func (e *LayoutError) Section() string {
	return e.section
}

func (e *LayoutError) Limit() uint64 {
	return e.limit
}
