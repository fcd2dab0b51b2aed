package dwarfsession

// NameMangling classifies how a Name's Text was obtained.
type NameMangling int

const (
	// Mangled means Text came from a linkage-name attribute or a symbol
	// table entry and has not been demangled.
	Mangled NameMangling = iota
	// Unmangled means Text came from a plain DW_AT_name attribute.
	Unmangled
	// UnknownMangling means the mangling state could not be determined.
	UnknownMangling
)

// Language is the source language a compilation unit (and therefore its
// functions) was compiled from, derived from DW_AT_language.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageC
	LanguageCpp
	LanguageD
	LanguageGo
	LanguageObjC
	LanguageObjCpp
	LanguageRust
	LanguageSwift
)

// Name is a function's resolved name together with how it was obtained and
// the language of the unit it belongs to.
type Name struct {
	Text     string
	Mangling NameMangling
	Language Language
}

// FileInfo identifies a source file as recorded by a DWARF line program.
// The logical full path is join(compilationDir, Dir, Name), with a later
// absolute fragment overriding an earlier one; see symcache's joinPath.
type FileInfo struct {
	Dir  []byte
	Name []byte
}

// LineInfo maps a contiguous range of addresses starting at Address to a
// single source line. Size is nil only for the final row of a sequence that
// never received a terminating end_sequence marker.
type LineInfo struct {
	Address uint64
	Size    *uint64
	File    FileInfo
	Line    uint64
}

// end returns Address+Size, or Address if Size is unknown.
func (l LineInfo) end() uint64 {
	if l.Size == nil {
		return l.Address
	}
	return l.Address + *l.Size
}

// Function is a reconstructed subprogram or, when Inline is true, an
// inlined call site nested inside one. See spec.md §3 for the invariants
// this type upholds.
type Function struct {
	Address        uint64
	Size           uint64
	Name           Name
	CompilationDir []byte
	Lines          []LineInfo
	Inlinees       []*Function
	Inline         bool
}

// FileEntry pairs a unit's compilation directory with one of its line
// program's declared source files.
type FileEntry struct {
	CompilationDir []byte
	Info           FileInfo
}

func uint64p(v uint64) *uint64 { return &v }
