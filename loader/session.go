package loader

import (
	"bytes"
	"sync"

	"github.com/wnxd/microld/encoding"
	"github.com/wnxd/microld/memory"
)

type State int

const (
	STATE_BUILT State = iota
	STATE_SIZED
	STATE_PROVISIONED
	STATE_RELOCATED
	STATE_EXECUTABLE
)

func (s State) String() string {
	switch s {
	case STATE_BUILT:
		return "built"
	case STATE_SIZED:
		return "sized"
	case STATE_PROVISIONED:
		return "provisioned"
	case STATE_RELOCATED:
		return "relocated"
	case STATE_EXECUTABLE:
		return "executable"
	}
	return "unknown"
}

// Session holds one translation unit on its way to becoming an executable
// image. Building methods may be called until the session is provisioned.
type Session struct {
	mu       sync.Mutex
	name     string
	sections []Section
	symbols  map[string]*Symbol
	order    []string
	relocs   []Relocation
	state    State
	image    *Image
}

func NewSession(name string) *Session {
	return &Session{
		name:    name,
		symbols: make(map[string]*Symbol),
	}
}

func (s *Session) Name() string {
	return s.name
}

// Lock gives a linker exclusive use of the session for one relocate call.
func (s *Session) Lock() {
	s.mu.Lock()
}

func (s *Session) Unlock() {
	s.mu.Unlock()
}

func (s *Session) State() State {
	return s.state
}

func (s *Session) SetState(state State) {
	s.state = state
}

func (s *Session) Image() *Image {
	return s.image
}

func (s *Session) Attach(img *Image) {
	s.image = img
}

func (s *Session) mutate() error {
	switch s.state {
	case STATE_BUILT:
	case STATE_SIZED:
		s.state = STATE_BUILT
	default:
		return ErrAlreadyRelocated
	}
	return nil
}

func (s *Session) AddSection(sec Section) (SectionID, error) {
	if err := s.mutate(); err != nil {
		return -1, err
	}
	if sec.Align == 0 {
		sec.Align = 1
	}
	if !memory.IsPowerOfTwo(sec.Align) || sec.Kind < SEC_CODE || sec.Kind > SEC_META {
		return -1, ErrSectionInvalid
	}
	if sec.Kind == SEC_BSS {
		if len(sec.Data) != 0 {
			return -1, ErrSectionInvalid
		}
		sec.Data = nil
	} else {
		if sec.Size == 0 {
			sec.Size = uint64(len(sec.Data))
		} else if sec.Size != uint64(len(sec.Data)) {
			return -1, ErrSectionInvalid
		}
		sec.Data = bytes.Clone(sec.Data)
	}
	s.sections = append(s.sections, sec)
	return SectionID(len(s.sections) - 1), nil
}

func (s *Session) NumSections() int {
	return len(s.sections)
}

func (s *Session) Section(id SectionID) (Section, bool) {
	if id < 0 || int(id) >= len(s.sections) {
		return Section{}, false
	}
	return s.sections[id], true
}

func (s *Session) Sections(yield func(SectionID, Section) bool) {
	for i, sec := range s.sections {
		if !yield(SectionID(i), sec) {
			break
		}
	}
}

// DefineSymbol defines name at offset inside a loaded section.
func (s *Session) DefineSymbol(name string, id SectionID, offset uint64, bind Binding) error {
	sec, ok := s.Section(id)
	if !ok || !sec.Kind.Loaded() || offset > sec.Size {
		return ErrSectionInvalid
	}
	return s.define(Symbol{Name: name, Def: DEF_SECTION, Bind: bind, Section: id, Value: offset})
}

// DefineAbsolute binds name to an address outside the image, such as a
// function already present in the host process.
func (s *Session) DefineAbsolute(name string, addr uint64, bind Binding) error {
	return s.define(Symbol{Name: name, Def: DEF_ABSOLUTE, Bind: bind, Section: -1, Value: addr})
}

// DefineCommon declares zero-initialized storage the linker allocates.
// Repeated declarations keep the largest size and alignment.
func (s *Session) DefineCommon(name string, size, align uint64) error {
	if align == 0 {
		align = 1
	}
	if !memory.IsPowerOfTwo(align) {
		return ErrSectionInvalid
	}
	return s.define(Symbol{Name: name, Def: DEF_COMMON, Bind: BIND_STRONG, Section: -1, Value: size, Align: align})
}

// Reference declares name as used by the session without defining it. A weak
// reference that nothing defines resolves to zero.
func (s *Session) Reference(name string, bind Binding) error {
	if err := s.mutate(); err != nil {
		return err
	}
	if name == "" {
		return ErrSymbolNotFound
	}
	if sym, ok := s.symbols[name]; ok {
		if !sym.Defined() && bind == BIND_STRONG {
			sym.Bind = BIND_STRONG
		}
		return nil
	}
	s.insert(&Symbol{Name: name, Def: DEF_UNDEFINED, Bind: bind, Section: -1})
	return nil
}

func (s *Session) define(sym Symbol) error {
	if err := s.mutate(); err != nil {
		return err
	}
	if sym.Name == "" {
		return ErrSymbolNotFound
	}
	old, ok := s.symbols[sym.Name]
	if !ok {
		s.insert(&sym)
		return nil
	}
	switch {
	case !old.Defined():
		*old = sym
	case old.Def == DEF_COMMON && sym.Def == DEF_COMMON:
		old.Value = max(old.Value, sym.Value)
		old.Align = max(old.Align, sym.Align)
	case sym.Bind == BIND_WEAK:
	case old.Bind == BIND_WEAK:
		*old = sym
	case old.Def == DEF_COMMON:
		*old = sym
	case sym.Def == DEF_COMMON:
	default:
		return NewDuplicateSymbol(sym.Name)
	}
	return nil
}

func (s *Session) insert(sym *Symbol) {
	s.symbols[sym.Name] = sym
	s.order = append(s.order, sym.Name)
}

// AddRelocation records a pending patch. A symbol the session does not know
// yet is declared as a strong reference; an existing weak reference stays
// weak.
func (s *Session) AddRelocation(rel Relocation) error {
	sec, ok := s.Section(rel.Section)
	if !ok || sec.Kind == SEC_BSS {
		return NewRelocationInvalid(sec.Name, rel)
	}
	if rel.Kind <= R_NONE || int(rel.Kind) >= len(relocNames) || rel.Symbol == "" {
		return NewRelocationInvalid(sec.Name, rel)
	}
	if size := rel.Kind.FieldSize(); rel.Offset > sec.Size || sec.Size-rel.Offset < size {
		return NewRelocationInvalid(sec.Name, rel)
	}
	if err := s.mutate(); err != nil {
		return err
	}
	if _, ok := s.symbols[rel.Symbol]; !ok {
		s.insert(&Symbol{Name: rel.Symbol, Def: DEF_UNDEFINED, Bind: BIND_STRONG, Section: -1})
	}
	s.relocs = append(s.relocs, rel)
	return nil
}

func (s *Session) NumRelocations() int {
	return len(s.relocs)
}

func (s *Session) Relocations(yield func(Relocation) bool) {
	for _, rel := range s.relocs {
		if !yield(rel) {
			break
		}
	}
}

func (s *Session) Symbol(name string) (Symbol, bool) {
	if sym, ok := s.symbols[name]; ok {
		return *sym, true
	}
	return Symbol{}, false
}

// Symbols lists the session's symbol table in declaration order.
func (s *Session) Symbols(yield func(Symbol) bool) {
	for _, name := range s.order {
		if !yield(*s.symbols[name]) {
			break
		}
	}
}

// FindSymbol returns the final address of a symbol defined by the session.
func (s *Session) FindSymbol(name string) (uint64, error) {
	if s.state != STATE_EXECUTABLE || s.image == nil {
		return 0, ErrNotExecutable
	}
	if addr, ok := s.image.Symbols[name]; ok {
		return addr, nil
	}
	return 0, ErrSymbolNotFound
}

func (s *Session) SectionAddr(id SectionID) (uint64, error) {
	if s.state != STATE_EXECUTABLE || s.image == nil {
		return 0, ErrNotExecutable
	}
	sec, ok := s.Section(id)
	if !ok || !sec.Kind.Loaded() {
		return 0, ErrSectionInvalid
	}
	return s.image.Sections[id], nil
}

// Extract decodes the value at addr inside the image into val.
func (s *Session) Extract(addr uint64, val any) error {
	if s.state != STATE_EXECUTABLE || s.image == nil {
		return ErrNotExecutable
	}
	bs := int(s.image.Arch.PointerSize())
	size, err := encoding.DecodeSize(bs, val)
	if err != nil {
		return err
	}
	if !s.image.Region.Contains(addr, uint64(size)) {
		return memory.ErrAddressInvalid
	}
	return encoding.Decode(PointerStream(memory.ToPointer(s.image.Host, addr), bs), val)
}

// Reset releases the image and returns the session to STATE_BUILT.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.image != nil {
		err = s.image.release()
		s.image = nil
	}
	s.state = STATE_BUILT
	return err
}

// Close releases an image the linker allocated. The session stays locked
// against further relocation.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.image == nil {
		return nil
	}
	err := s.image.release()
	s.image = nil
	return err
}
