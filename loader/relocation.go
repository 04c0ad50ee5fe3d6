package loader

type RelocKind int

const (
	R_NONE RelocKind = iota
	R_ABS64
	R_ABS32
	R_ABS32S
	R_PC64
	R_PC32
	R_GOTOFF64
	R_GOTPC32
	R_GOT32
	R_GOTPCREL32
	R_GOTABS64
	R_PLT32
	R_CALL26
	R_JUMP26
	R_ADR_PAGE21
	R_ADD_LO12
	R_LDST64_LO12
	R_GOT_PAGE21
	R_GOT_LO12
)

var relocNames = [...]string{
	R_NONE:        "R_NONE",
	R_ABS64:       "R_ABS64",
	R_ABS32:       "R_ABS32",
	R_ABS32S:      "R_ABS32S",
	R_PC64:        "R_PC64",
	R_PC32:        "R_PC32",
	R_GOTOFF64:    "R_GOTOFF64",
	R_GOTPC32:     "R_GOTPC32",
	R_GOT32:       "R_GOT32",
	R_GOTPCREL32:  "R_GOTPCREL32",
	R_GOTABS64:    "R_GOTABS64",
	R_PLT32:       "R_PLT32",
	R_CALL26:      "R_CALL26",
	R_JUMP26:      "R_JUMP26",
	R_ADR_PAGE21:  "R_ADR_PAGE21",
	R_ADD_LO12:    "R_ADD_LO12",
	R_LDST64_LO12: "R_LDST64_LO12",
	R_GOT_PAGE21:  "R_GOT_PAGE21",
	R_GOT_LO12:    "R_GOT_LO12",
}

func (k RelocKind) String() string {
	if k >= 0 && int(k) < len(relocNames) {
		return relocNames[k]
	}
	return "R_UNKNOWN"
}

// FieldSize is the number of bytes the kind patches.
func (k RelocKind) FieldSize() uint64 {
	switch k {
	case R_NONE:
		return 0
	case R_ABS64, R_PC64, R_GOTOFF64, R_GOTABS64:
		return 8
	}
	return 4
}

// Indirect kinds read the target through a table slot rather than
// referencing it directly.
func (k RelocKind) Indirect() bool {
	switch k {
	case R_GOT32, R_GOTPCREL32, R_GOTABS64, R_GOT_PAGE21, R_GOT_LO12:
		return true
	}
	return false
}

// Call kinds are branches that go through a stub when the target lives
// outside the image.
func (k RelocKind) Call() bool {
	switch k {
	case R_PLT32, R_CALL26, R_JUMP26:
		return true
	}
	return false
}

// TableRelative kinds are computed against the table base.
func (k RelocKind) TableRelative() bool {
	switch k {
	case R_GOTOFF64, R_GOTPC32:
		return true
	}
	return false
}

type Relocation struct {
	Section SectionID
	Offset  uint64
	Symbol  string
	Kind    RelocKind
	Addend  int64
}
