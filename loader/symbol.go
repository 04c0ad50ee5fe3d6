package loader

type Binding int

const (
	BIND_STRONG Binding = iota
	BIND_WEAK
)

func (b Binding) String() string {
	if b == BIND_WEAK {
		return "weak"
	}
	return "strong"
}

type SymbolDef int

const (
	DEF_UNDEFINED SymbolDef = iota
	DEF_SECTION
	DEF_ABSOLUTE
	DEF_COMMON
)

// Symbol is one entry of a session's symbol table. Value is the offset inside
// Section for DEF_SECTION, the address for DEF_ABSOLUTE and the size for
// DEF_COMMON.
type Symbol struct {
	Name    string
	Def     SymbolDef
	Bind    Binding
	Section SectionID
	Value   uint64
	Align   uint64
}

func (s *Symbol) Defined() bool {
	return s.Def != DEF_UNDEFINED
}

// InImage reports whether the symbol's storage is part of the relocated image.
func (s *Symbol) InImage() bool {
	return s.Def == DEF_SECTION || s.Def == DEF_COMMON
}
