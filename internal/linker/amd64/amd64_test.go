package amd64

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"

	"github.com/wnxd/microld/linker"
	"github.com/wnxd/microld/loader"
	"github.com/wnxd/microld/memory"
)

const (
	putsAddr = 0x7f0012345678
	farAddr  = 0x1234567890
	pageSize = 4096

	// buildProgram's image spans three pages and its largest section
	// alignment is 16.
	imageSize    = 3 * pageSize
	requiredSize = imageSize + pageSize - 16
)

var errDenied = errors.New("denied")

type testHost struct {
	*memory.HeapHost
	allocs  int
	frees   int
	protect error
}

func newHost() *testHost {
	return &testHost{HeapHost: memory.Heap(pageSize)}
}

func (h *testHost) MemAlloc(size, align uint64) (memory.MemRegion, error) {
	h.allocs++
	return h.HeapHost.MemAlloc(size, align)
}

func (h *testHost) MemFree(region memory.MemRegion) error {
	h.frees++
	return h.HeapHost.MemFree(region)
}

func (h *testHost) MemProtect(addr, size uint64, prot memory.MemProt) error {
	if h.protect != nil {
		return h.protect
	}
	return h.HeapHost.MemProtect(addr, size, prot)
}

func newLinker(t *testing.T, host memory.Host, resolver linker.Resolver) linker.Linker {
	t.Helper()
	lnk, err := NewAmd64Linker(linker.Config{Arch: memory.ARCH_X86_64, Host: host, Resolver: resolver})
	if err != nil {
		t.Fatalf("NewAmd64Linker failed: %v", err)
	}
	return lnk
}

func hostSymbols() linker.Resolver {
	return linker.SymbolTable{"puts": putsAddr, "main": 0x1234, "far": farAddr}
}

// buildProgram is
//
//	main: call puts; call puts; ret
//	.data: .quad main
func buildProgram(t *testing.T) (s *loader.Session, text, data loader.SectionID) {
	t.Helper()
	s = loader.NewSession("prog")
	var err error
	text, err = s.AddSection(loader.Section{
		Name:  ".text",
		Kind:  loader.SEC_CODE,
		Align: 16,
		Data:  []byte{0xe8, 0, 0, 0, 0, 0xe8, 0, 0, 0, 0, 0xc3},
	})
	if err != nil {
		t.Fatalf("AddSection failed: %v", err)
	}
	data, err = s.AddSection(loader.Section{Name: ".data", Kind: loader.SEC_DATA, Align: 8, Data: make([]byte, 16)})
	if err != nil {
		t.Fatalf("AddSection failed: %v", err)
	}
	must(t, s.DefineSymbol("main", text, 0, loader.BIND_STRONG))
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 1, Symbol: "puts", Kind: loader.R_PLT32, Addend: -4}))
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 6, Symbol: "puts", Kind: loader.R_PLT32, Addend: -4}))
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 0, Symbol: "main", Kind: loader.R_ABS64}))
	return s, text, data
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func read(t *testing.T, host memory.Host, addr, size uint64) []byte {
	t.Helper()
	data, err := host.MemRead(addr, size)
	if err != nil {
		t.Fatalf("MemRead failed: %v", err)
	}
	return data
}

func rel32(b []byte) int64 {
	return int64(int32(binary.LittleEndian.Uint32(b)))
}

func TestSizeOnlyDeterministic(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	first, err := lnk.Relocate(s, linker.SizeOnly{})
	if err != nil {
		t.Fatalf("SizeOnly failed: %v", err)
	}
	second, err := lnk.Relocate(s, linker.SizeOnly{})
	if err != nil {
		t.Fatalf("SizeOnly failed: %v", err)
	}
	if first != second || first != requiredSize {
		t.Fatalf("Expected two identical sizes of %d, got %d and %d", requiredSize, first, second)
	}
	if s.State() != loader.STATE_SIZED {
		t.Fatalf("Expected sized, got %v", s.State())
	}
	if host.allocs != 0 {
		t.Fatalf("Expected SizeOnly to provision nothing")
	}
}

func TestLayout(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, _, _ := buildProgram(t)
	layout, err := lnk.Layout(s)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	tests := []struct {
		name   string
		offset uint64
		size   uint64
	}{
		{".text", 0, 11},
		{".plt", 16, STUB_SIZE},
		{".got", pageSize, POINTER_SIZE},
		{".data", 2 * pageSize, 16},
	}
	for _, tt := range tests {
		p, ok := layout.Find(tt.name)
		if !ok {
			t.Fatalf("Expected a %s placement in\n%v", tt.name, layout)
		}
		if p.Offset != tt.offset || p.Size != tt.size {
			t.Errorf("%s: expected %#x+%#x, got %#x+%#x", tt.name, tt.offset, tt.size, p.Offset, p.Size)
		}
	}
	if layout.Slots != 1 || layout.Stubs != 1 || layout.Align != pageSize || layout.BaseAlign != 16 {
		t.Fatalf("Unexpected layout\n%v", layout)
	}
	if layout.Size != imageSize || layout.Required != requiredSize {
		t.Fatalf("Expected size %d and required %d, got\n%v", imageSize, requiredSize, layout)
	}
}

func TestUseBufferExactSize(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	size, err := lnk.Relocate(s, linker.SizeOnly{})
	if err != nil {
		t.Fatalf("SizeOnly failed: %v", err)
	}
	region, err := host.HeapHost.MemAlloc(size+pageSize, pageSize)
	if err != nil {
		t.Fatalf("MemAlloc failed: %v", err)
	}
	// 16 bytes past a page boundary: the worst placement for a buffer that
	// only honours the section alignments.
	addr := region.Addr + 16
	got, err := lnk.Relocate(s, linker.UseBuffer{Addr: addr, Size: size})
	if err != nil {
		t.Fatalf("UseBuffer failed: %v", err)
	}
	if got != size || s.State() != loader.STATE_EXECUTABLE || s.Image().Owned {
		t.Fatalf("Unexpected result %d, state %v", got, s.State())
	}
	base := s.Image().Region.Addr
	if base != region.Addr+pageSize || base+imageSize > addr+size {
		t.Fatalf("Expected the image at %#x inside the buffer, got %#x", region.Addr+pageSize, base)
	}
	main, err := s.FindSymbol("main")
	if err != nil || main != base {
		t.Fatalf("Expected main at the image base, got %#x, %v", main, err)
	}

	s2, _, _ := buildProgram(t)
	_, err = lnk.Relocate(s2, linker.UseBuffer{Addr: addr, Size: size - 1})
	if !errors.Is(err, loader.ErrBufferTooSmall) {
		t.Fatalf("Expected ErrBufferTooSmall, got %v", err)
	}
	var be *loader.BufferError
	if !errors.As(err, &be) || be.Required() != size || be.Size() != size-1 {
		t.Fatalf("Expected required %d and actual %d, got %v", size, size-1, err)
	}
	if s2.State() != loader.STATE_SIZED {
		t.Fatalf("Expected the session to stay reusable, got %v", s2.State())
	}
}

func TestMisalignedBuffer(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	region, err := host.HeapHost.MemAlloc(4*pageSize+requiredSize, pageSize)
	if err != nil {
		t.Fatalf("MemAlloc failed: %v", err)
	}
	_, err = lnk.Relocate(s, linker.UseBuffer{Addr: region.Addr + 8, Size: requiredSize})
	if !errors.Is(err, loader.ErrMisalignedBuffer) {
		t.Fatalf("Expected ErrMisalignedBuffer, got %v", err)
	}
	var be *loader.BufferError
	if !errors.As(err, &be) || be.Align() != 16 {
		t.Fatalf("Expected the section alignment to be reported, got %v", err)
	}
}

func TestUndefinedSymbol(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, data := buildProgram(t)
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 8, Symbol: "missing", Kind: loader.R_ABS64}))
	before, err := lnk.Relocate(s, linker.SizeOnly{})
	if err != nil {
		t.Fatalf("Expected SizeOnly to ignore unresolved names, got %v", err)
	}
	_, err = lnk.Relocate(s, linker.Auto{})
	if !errors.Is(err, loader.ErrUndefinedSymbol) {
		t.Fatalf("Expected ErrUndefinedSymbol, got %v", err)
	}
	var se *loader.SymbolError
	if !errors.As(err, &se) || se.Name() != "missing" {
		t.Fatalf("Expected the error to name missing, got %v", err)
	}
	if host.allocs != 0 {
		t.Fatalf("Expected nothing to be provisioned, got %d allocations", host.allocs)
	}
	after, err := lnk.Relocate(s, linker.SizeOnly{})
	if err != nil || after != before {
		t.Fatalf("Expected size %d to be unchanged, got %d, %v", before, after, err)
	}
}

func TestSharedIndirection(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	layout, err := lnk.Layout(s)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	base := s.Image().Region.Addr
	plt, _ := layout.Find(".plt")
	got, _ := layout.Find(".got")
	code := read(t, host, base, 11)
	first := int64(base+5) + rel32(code[1:])
	second := int64(base+10) + rel32(code[6:])
	if first != second || uint64(first) != base+plt.Offset {
		t.Fatalf("Expected both calls to reach the stub at %#x, got %#x and %#x", base+plt.Offset, first, second)
	}
	stub := read(t, host, base+plt.Offset, STUB_SIZE)
	if stub[0] != 0xff || stub[1] != 0x25 || stub[6] != 0xcc {
		t.Fatalf("Unexpected stub % x", stub)
	}
	if slot := int64(base+plt.Offset+6) + rel32(stub[2:]); uint64(slot) != base+got.Offset {
		t.Fatalf("Expected the stub to jump through %#x, got %#x", base+got.Offset, slot)
	}
	var target uint64
	if err := s.Extract(base+got.Offset, &target); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if target != putsAddr {
		t.Fatalf("Expected the slot to hold %#x, got %#x", putsAddr, target)
	}
}

func TestLocalDefinitionWins(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, text, data := buildProgram(t)
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	main, err := s.FindSymbol("main")
	if err != nil {
		t.Fatalf("FindSymbol failed: %v", err)
	}
	textAddr, _ := s.SectionAddr(text)
	dataAddr, _ := s.SectionAddr(data)
	if main != textAddr || main == 0x1234 {
		t.Fatalf("Expected main at %#x, got %#x", textAddr, main)
	}
	var ptr uint64
	if err := s.Extract(dataAddr, &ptr); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ptr != main {
		t.Fatalf("Expected .data to point at main %#x, got %#x", main, ptr)
	}
	if _, err := s.FindSymbol("puts"); !errors.Is(err, loader.ErrSymbolNotFound) {
		t.Fatalf("Expected host symbols to stay out of the image, got %v", err)
	}
}

func TestProtections(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	base := s.Image().Region.Addr
	want := []memory.MemProt{
		memory.MEM_PROT_READ | memory.MEM_PROT_EXEC,
		memory.MEM_PROT_READ,
		memory.MEM_PROT_READ | memory.MEM_PROT_WRITE,
	}
	for i, prot := range want {
		if got := host.Prot(base + uint64(i)*pageSize); got != prot {
			t.Errorf("page %d: expected %v, got %v", i, prot, got)
		}
	}
}

func TestAutoTwice(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, _, _ := buildProgram(t)
	size, err := lnk.Relocate(s, linker.Auto{})
	if err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if _, err := lnk.Relocate(s, linker.Auto{}); !errors.Is(err, loader.ErrAlreadyRelocated) {
		t.Fatalf("Expected ErrAlreadyRelocated, got %v", err)
	}
	if _, err := lnk.Relocate(s, linker.UseBuffer{Addr: 0x10000, Size: size}); !errors.Is(err, loader.ErrAlreadyRelocated) {
		t.Fatalf("Expected ErrAlreadyRelocated, got %v", err)
	}
	if again, err := lnk.Relocate(s, linker.SizeOnly{}); err != nil || again != size {
		t.Fatalf("Expected SizeOnly to keep working, got %d, %v", again, err)
	}
	if s.State() != loader.STATE_EXECUTABLE {
		t.Fatalf("Expected executable, got %v", s.State())
	}
}

func TestConcurrentRelocate(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, _, _ := buildProgram(t)
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lnk.Relocate(s, linker.Auto{})
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
		}()
	}
	wg.Wait()
	var ok, already int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, loader.ErrAlreadyRelocated):
			already++
		default:
			t.Fatalf("Unexpected error %v", err)
		}
	}
	if ok != 1 || already != 3 {
		t.Fatalf("Expected one winner, got %d successes and %d rejections", ok, already)
	}
}

func TestRelocationOverflow(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, data := buildProgram(t)
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 8, Symbol: "far", Kind: loader.R_ABS32}))
	_, err := lnk.Relocate(s, linker.Auto{})
	if !errors.Is(err, loader.ErrRelocationOverflow) {
		t.Fatalf("Expected ErrRelocationOverflow, got %v", err)
	}
	var re *loader.RelocationError
	if !errors.As(err, &re) {
		t.Fatalf("Expected a RelocationError, got %T", err)
	}
	if re.Section() != ".data" || re.Offset() != 8 || re.Symbol() != "far" || re.Kind() != loader.R_ABS32 || re.Value() != farAddr {
		t.Fatalf("Unexpected error detail: %v", err)
	}
	if host.allocs != 1 || host.frees != 1 {
		t.Fatalf("Expected the image to be released, got %d allocations and %d frees", host.allocs, host.frees)
	}
	if _, err := lnk.Relocate(s, linker.Auto{}); !errors.Is(err, loader.ErrAlreadyRelocated) {
		t.Fatalf("Expected the session to stay locked, got %v", err)
	}
}

func TestPCRelativeOverflow(t *testing.T) {
	lnk := newLinker(t, newHost(), linker.SymbolTable{"puts": putsAddr, "high": 1 << 62})
	s, _, _ := buildProgram(t)
	code, err := s.AddSection(loader.Section{Name: ".text.far", Kind: loader.SEC_CODE, Data: make([]byte, 4)})
	if err != nil {
		t.Fatalf("AddSection failed: %v", err)
	}
	must(t, s.AddRelocation(loader.Relocation{Section: code, Offset: 0, Symbol: "high", Kind: loader.R_PC32, Addend: -4}))
	_, err = lnk.Relocate(s, linker.Auto{})
	var re *loader.RelocationError
	if !errors.As(err, &re) || !errors.Is(err, loader.ErrRelocationOverflow) || re.Section() != ".text.far" {
		t.Fatalf("Expected a PC32 overflow in .text.far, got %v", err)
	}
}

func TestLayoutOverflow(t *testing.T) {
	lnk := newLinker(t, newHost(), nil)
	s := loader.NewSession("huge")
	for _, name := range []string{".bss", ".bss2"} {
		if _, err := s.AddSection(loader.Section{Name: name, Kind: loader.SEC_BSS, Size: 1 << 63}); err != nil {
			t.Fatalf("AddSection failed: %v", err)
		}
	}
	_, err := lnk.Relocate(s, linker.SizeOnly{})
	var le *loader.LayoutError
	if !errors.As(err, &le) || !errors.Is(err, loader.ErrLayoutOverflow) || le.Section() != ".bss2" {
		t.Fatalf("Expected a LayoutOverflow at .bss2, got %v", err)
	}
}

func TestProtectionChangeFailed(t *testing.T) {
	host := newHost()
	host.protect = errDenied
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	_, err := lnk.Relocate(s, linker.Auto{})
	if !errors.Is(err, loader.ErrProtectionChangeFailed) || !errors.Is(err, errDenied) {
		t.Fatalf("Expected ProtectionChangeFailed wrapping the host error, got %v", err)
	}
	var pe *loader.ProtectionError
	if !errors.As(err, &pe) || pe.Prot() != memory.MEM_PROT_READ|memory.MEM_PROT_EXEC {
		t.Fatalf("Expected the code class to fail first, got %v", err)
	}
	if host.frees != host.allocs {
		t.Fatalf("Expected the image to be released")
	}
	if s.State() != loader.STATE_RELOCATED {
		t.Fatalf("Expected relocated, got %v", s.State())
	}
}

func TestWeakReference(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, _, data := buildProgram(t)
	must(t, s.Reference("optional", loader.BIND_WEAK))
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 8, Symbol: "optional", Kind: loader.R_ABS64}))
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	dataAddr, _ := s.SectionAddr(data)
	var ptr uint64
	if err := s.Extract(dataAddr+8, &ptr); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if ptr != 0 {
		t.Fatalf("Expected an unresolved weak reference to be zero, got %#x", ptr)
	}
}

func TestTableRelative(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s := loader.NewSession("pic")
	text, _ := s.AddSection(loader.Section{Name: ".text", Kind: loader.SEC_CODE, Data: make([]byte, 8)})
	data, _ := s.AddSection(loader.Section{Name: ".data", Kind: loader.SEC_DATA, Align: 8, Data: make([]byte, 16)})
	must(t, s.DefineSymbol("var", data, 8, loader.BIND_STRONG))
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 0, Symbol: "_GLOBAL_OFFSET_TABLE_", Kind: loader.R_GOTPC32}))
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 4, Symbol: "puts", Kind: loader.R_GOTPCREL32}))
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 0, Symbol: "var", Kind: loader.R_GOTOFF64}))
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	got, err := s.FindSymbol("_GLOBAL_OFFSET_TABLE_")
	if err != nil {
		t.Fatalf("FindSymbol failed: %v", err)
	}
	textAddr, _ := s.SectionAddr(text)
	dataAddr, _ := s.SectionAddr(data)
	code := read(t, lnk.Host(), textAddr, 8)
	if v := rel32(code); textAddr+uint64(v) != got {
		t.Errorf("Expected GOTPC32 to reach %#x, got %#x", got, textAddr+uint64(v))
	}
	if v := rel32(code[4:]); textAddr+4+uint64(v) != got {
		t.Errorf("Expected GOTPCREL32 to reach the first slot %#x, got %#x", got, textAddr+4+uint64(v))
	}
	var off int64
	if err := s.Extract(dataAddr, &off); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if uint64(off) != dataAddr+8-got {
		t.Errorf("Expected GOTOFF64 %#x, got %#x", dataAddr+8-got, off)
	}
	var slot uint64
	if err := s.Extract(got, &slot); err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if slot != putsAddr {
		t.Errorf("Expected the slot to hold puts, got %#x", slot)
	}
}

func TestCommonSymbol(t *testing.T) {
	lnk := newLinker(t, newHost(), hostSymbols())
	s, _, data := buildProgram(t)
	must(t, s.DefineCommon("counter", 8, 8))
	must(t, s.DefineCommon("table", 64, 32))
	must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 8, Symbol: "table", Kind: loader.R_ABS64}))
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	layout, _ := lnk.Layout(s)
	common, ok := layout.Find(".bss.common")
	if !ok || common.Size != 96 || common.Align != 32 {
		t.Fatalf("Unexpected common placement %+v", common)
	}
	table, err := s.FindSymbol("table")
	if err != nil {
		t.Fatalf("FindSymbol failed: %v", err)
	}
	base := s.Image().Region.Addr
	if table != base+common.Offset+32 {
		t.Fatalf("Expected table at %#x, got %#x", base+common.Offset+32, table)
	}
	dataAddr, _ := s.SectionAddr(data)
	var ptr uint64
	if err := s.Extract(dataAddr+8, &ptr); err != nil || ptr != table {
		t.Fatalf("Expected .data to point at table, got %#x, %v", ptr, err)
	}
}

func TestResetReuse(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, hostSymbols())
	s, _, _ := buildProgram(t)
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Auto failed: %v", err)
	}
	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if host.frees != 1 || s.State() != loader.STATE_BUILT {
		t.Fatalf("Expected Reset to release the image, state %v", s.State())
	}
	if _, err := lnk.Relocate(s, linker.Auto{}); err != nil {
		t.Fatalf("Expected a reset session to relocate again, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if host.frees != 2 || s.State() != loader.STATE_EXECUTABLE {
		t.Fatalf("Expected Close to release without unlocking")
	}
}

func TestForcePLT(t *testing.T) {
	lnk, err := NewAmd64Linker(linker.Config{Host: newHost(), ForcePLT: true})
	if err != nil {
		t.Fatalf("NewAmd64Linker failed: %v", err)
	}
	s := loader.NewSession("force")
	text, _ := s.AddSection(loader.Section{Name: ".text", Kind: loader.SEC_CODE, Data: []byte{0xe8, 0, 0, 0, 0, 0xc3}})
	must(t, s.DefineSymbol("self", text, 0, loader.BIND_STRONG))
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 1, Symbol: "self", Kind: loader.R_PLT32, Addend: -4}))
	layout, err := lnk.Layout(s)
	if err != nil {
		t.Fatalf("Layout failed: %v", err)
	}
	if layout.Stubs != 1 {
		t.Fatalf("Expected a stub for a local call, got %d", layout.Stubs)
	}
}

func TestUnsupportedKind(t *testing.T) {
	lnk := newLinker(t, newHost(), nil)
	s, text, _ := buildProgram(t)
	must(t, s.AddRelocation(loader.Relocation{Section: text, Offset: 0, Symbol: "main", Kind: loader.R_CALL26}))
	if _, err := lnk.Relocate(s, linker.SizeOnly{}); !errors.Is(err, loader.ErrRelocationInvalid) {
		t.Fatalf("Expected ErrRelocationInvalid, got %v", err)
	}
}

func TestEmptySession(t *testing.T) {
	host := newHost()
	lnk := newLinker(t, host, nil)
	s := loader.NewSession("empty")
	size, err := lnk.Relocate(s, linker.Auto{})
	if err != nil || size != 0 {
		t.Fatalf("Expected an empty image, got %d, %v", size, err)
	}
	if host.allocs != 0 || s.State() != loader.STATE_EXECUTABLE {
		t.Fatalf("Expected nothing to be provisioned, state %v", s.State())
	}
}

func TestArchMismatch(t *testing.T) {
	if _, err := NewAmd64Linker(linker.Config{Arch: memory.ARCH_ARM64, Host: newHost()}); !errors.Is(err, memory.ErrArchMismatch) {
		t.Fatalf("Expected ErrArchMismatch, got %v", err)
	}
}

func TestInvalidMode(t *testing.T) {
	lnk := newLinker(t, newHost(), nil)
	s, _, _ := buildProgram(t)
	if _, err := lnk.Relocate(s, nil); !errors.Is(err, linker.ErrModeInvalid) {
		t.Fatalf("Expected ErrModeInvalid, got %v", err)
	}
}

func TestResolverFailure(t *testing.T) {
	errBroken := errors.New("symbol directory unavailable")
	resolver := linker.ResolverFunc(func(name string) (uint64, error) {
		if name == "puts" {
			return putsAddr, nil
		}
		return 0, errBroken
	})
	tests := []struct {
		name string
		bind loader.Binding
	}{
		{"strong", loader.BIND_STRONG},
		{"weak", loader.BIND_WEAK},
	}
	for _, tt := range tests {
		host := newHost()
		lnk := newLinker(t, host, resolver)
		s, _, data := buildProgram(t)
		must(t, s.Reference("optional", tt.bind))
		must(t, s.AddRelocation(loader.Relocation{Section: data, Offset: 8, Symbol: "optional", Kind: loader.R_ABS64}))
		_, err := lnk.Relocate(s, linker.Auto{})
		if !errors.Is(err, errBroken) || errors.Is(err, loader.ErrUndefinedSymbol) {
			t.Fatalf("%s: expected the resolver failure, got %v", tt.name, err)
		}
		if host.allocs != 0 || s.State() != loader.STATE_SIZED {
			t.Fatalf("%s: expected nothing to be provisioned, state %v", tt.name, s.State())
		}
	}
}
