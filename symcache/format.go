package symcache

import (
	"bytes"
	"encoding/binary"
	"io"
)

// noIndex is the sentinel stored for an absent optional index field
// (SourceLocation.FileIdx, Function name, etc.). spec.md §4.8 models these
// as Option<u32>; this package represents "none" with the all-ones value
// rather than a pointer, since every table is a flat, append-only array
// decoded straight off a byte buffer.
const noIndex uint32 = 0xffffffff

// SourceLocation is one entry of a Format's source_locations table, per
// spec.md §3.
type SourceLocation struct {
	Line           uint32
	FileIdx        uint32
	FunctionIdx    uint32
	InlinedIntoIdx uint32
}

func (s SourceLocation) hasLine() bool        { return s.Line != noIndex }
func (s SourceLocation) hasFile() bool        { return s.FileIdx != noIndex }
func (s SourceLocation) hasFunction() bool    { return s.FunctionIdx != noIndex }
func (s SourceLocation) hasInlinedInto() bool { return s.InlinedIntoIdx != noIndex }

// File is one entry of a Format's files table.
type File struct {
	CompDirIdx   uint32
	DirectoryIdx uint32
	PathNameIdx  uint32
}

// Function is one entry of a Format's functions table.
type Function struct {
	NameIdx uint32
}

// Format is the decoded, read-only symbol-cache buffer: a set of interned
// tables plus the range index that Lookup searches. It borrows nothing
// past decode time; all tables are owned Go slices.
type Format struct {
	AddrOffset uint64

	// Ranges holds N+1 relative addresses for N covered ranges: Ranges[i]
	// is the start of range i, Ranges[i+1] its exclusive end. The last
	// entry is a closing boundary only, with no SourceLocations entry of
	// its own. See Lookup.
	Ranges []uint32

	// SourceLocationStart is the index into SourceLocations where the
	// trailing, range-aligned block begins: SourceLocations[SourceLocationStart+i]
	// is the innermost location for Ranges[i]. Earlier entries are reachable
	// only via InlinedIntoIdx chains, per spec.md §3.
	SourceLocationStart uint32
	SourceLocations     []SourceLocation

	Files     []File
	Functions []Function
	Strings   []string
}

// New builds a Format from already-materialised tables, for callers that
// construct a cache in memory (e.g. a test, or a writer outside this
// package's scope per spec.md §1).
func New(addrOffset uint64, ranges []uint32, sourceLocationStart uint32, sourceLocations []SourceLocation, files []File, functions []Function, strings []string) *Format {
	return &Format{
		AddrOffset:          addrOffset,
		Ranges:              ranges,
		SourceLocationStart: sourceLocationStart,
		SourceLocations:     sourceLocations,
		Files:               files,
		Functions:           functions,
		Strings:             strings,
	}
}

// Decode parses a Format out of buf. The layout is this package's own
// (spec.md leaves on-disk layout for a wrapping format to define): a fixed
// header of little-endian counts followed by each table back to back, 4-
// byte relative addresses as required by spec.md §6.
func Decode(buf []byte) (*Format, error) {
	r := bytes.NewReader(buf)

	var header struct {
		AddrOffset          uint64
		NumRanges           uint32
		NumSourceLocations  uint32
		SourceLocationStart uint32
		NumFiles            uint32
		NumFunctions        uint32
		NumStrings          uint32
	}
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, newError(ErrMalformedBuffer, 0)
	}

	ranges := make([]uint32, header.NumRanges)
	if err := binary.Read(r, binary.LittleEndian, ranges); err != nil {
		return nil, newError(ErrMalformedBuffer, 0)
	}

	sourceLocations := make([]SourceLocation, header.NumSourceLocations)
	for i := range sourceLocations {
		var raw [4]uint32
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, newError(ErrMalformedBuffer, uint32(i))
		}
		sourceLocations[i] = SourceLocation{Line: raw[0], FileIdx: raw[1], FunctionIdx: raw[2], InlinedIntoIdx: raw[3]}
	}

	files := make([]File, header.NumFiles)
	for i := range files {
		var raw [3]uint32
		if err := binary.Read(r, binary.LittleEndian, &raw); err != nil {
			return nil, newError(ErrMalformedBuffer, uint32(i))
		}
		files[i] = File{CompDirIdx: raw[0], DirectoryIdx: raw[1], PathNameIdx: raw[2]}
	}

	functions := make([]Function, header.NumFunctions)
	for i := range functions {
		var nameIdx uint32
		if err := binary.Read(r, binary.LittleEndian, &nameIdx); err != nil {
			return nil, newError(ErrMalformedBuffer, uint32(i))
		}
		functions[i] = Function{NameIdx: nameIdx}
	}

	strs := make([]string, header.NumStrings)
	for i := range strs {
		var length uint32
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, newError(ErrMalformedBuffer, uint32(i))
		}
		b := make([]byte, length)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, newError(ErrMalformedBuffer, uint32(i))
		}
		strs[i] = string(b)
	}

	return &Format{
		AddrOffset:          header.AddrOffset,
		Ranges:              ranges,
		SourceLocationStart: header.SourceLocationStart,
		SourceLocations:     sourceLocations,
		Files:               files,
		Functions:           functions,
		Strings:             strs,
	}, nil
}

// Encode is Decode's inverse, used by tests to round-trip a Format built
// with New.
func (f *Format) Encode() []byte {
	var buf bytes.Buffer

	header := struct {
		AddrOffset          uint64
		NumRanges           uint32
		NumSourceLocations  uint32
		SourceLocationStart uint32
		NumFiles            uint32
		NumFunctions        uint32
		NumStrings          uint32
	}{
		AddrOffset:          f.AddrOffset,
		NumRanges:           uint32(len(f.Ranges)),
		NumSourceLocations:  uint32(len(f.SourceLocations)),
		SourceLocationStart: f.SourceLocationStart,
		NumFiles:            uint32(len(f.Files)),
		NumFunctions:        uint32(len(f.Functions)),
		NumStrings:          uint32(len(f.Strings)),
	}
	binary.Write(&buf, binary.LittleEndian, header)
	binary.Write(&buf, binary.LittleEndian, f.Ranges)
	for _, sl := range f.SourceLocations {
		binary.Write(&buf, binary.LittleEndian, [4]uint32{sl.Line, sl.FileIdx, sl.FunctionIdx, sl.InlinedIntoIdx})
	}
	for _, file := range f.Files {
		binary.Write(&buf, binary.LittleEndian, [3]uint32{file.CompDirIdx, file.DirectoryIdx, file.PathNameIdx})
	}
	for _, fn := range f.Functions {
		binary.Write(&buf, binary.LittleEndian, fn.NameIdx)
	}
	for _, s := range f.Strings {
		binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}
	return buf.Bytes()
}
