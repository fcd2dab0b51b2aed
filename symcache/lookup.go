package symcache

import "sort"

// Lookup resolves addr to an ordered chain of SourceLocations, innermost
// inline frame first, walking outward via InlinedIntoIdx to the enclosing
// non-inline function. Implements spec.md §4.8.
//
// Ranges holds N+1 relative addresses for N covered ranges: Ranges[i] is
// range i's start and Ranges[i+1] its exclusive end, so the trailing entry
// is a closing boundary with no chain of its own. The reference's own
// binary search (ranges.binary_search_by_key, idx used directly whether
// Ok or Err) left this boundary undefined -- its own comments flag the
// question of what marks the end of the final range. Fixing Ranges at
// N+1 entries answers it directly: addresses at or past the closing
// boundary, and addresses before Ranges[0], both miss.
func (f *Format) Lookup(addr uint64) *SourceLocationIter {
	if addr < f.AddrOffset {
		return &SourceLocationIter{done: true}
	}
	rel := uint32(addr - f.AddrOffset)

	n := len(f.Ranges) - 1
	if n <= 0 {
		return &SourceLocationIter{done: true}
	}

	hi := sort.Search(len(f.Ranges), func(i int) bool { return f.Ranges[i] > rel })
	k := hi - 1
	if k < 0 || k >= n {
		return &SourceLocationIter{done: true}
	}

	return &SourceLocationIter{f: f, next: f.SourceLocationStart + uint32(k)}
}

// SourceLocationIter walks one lookup's inline chain, innermost first.
type SourceLocationIter struct {
	f    *Format
	next uint32
	done bool
}

// Next returns the next SourceLocation in the chain, or (SourceLocation{},
// false) once the chain (or an invalid reference) ends.
func (it *SourceLocationIter) Next() (SourceLocation, bool) {
	if it.done || it.f == nil {
		return SourceLocation{}, false
	}
	if int(it.next) >= len(it.f.SourceLocations) {
		it.done = true
		return SourceLocation{}, false
	}

	loc := it.f.SourceLocations[it.next]
	if loc.hasInlinedInto() {
		it.next = loc.InlinedIntoIdx
	} else {
		it.done = true
	}
	return loc, true
}

// LineNumber returns the SourceLocation's line, if known.
func (s SourceLocation) LineNumber() (uint32, bool) {
	if !s.hasLine() {
		return 0, false
	}
	return s.Line, true
}

// File resolves the SourceLocation's file reference, if any.
func (s SourceLocation) File(f *Format) (*File, error) {
	if !s.hasFile() {
		return nil, nil
	}
	if int(s.FileIdx) >= len(f.Files) {
		return nil, newError(ErrInvalidFileReference, s.FileIdx)
	}
	file := f.Files[s.FileIdx]
	return &file, nil
}

// Function resolves the SourceLocation's function reference, if any.
func (s SourceLocation) Function(f *Format) (*Function, error) {
	if !s.hasFunction() {
		return nil, nil
	}
	if int(s.FunctionIdx) >= len(f.Functions) {
		return nil, newError(ErrInvalidFunctionReference, s.FunctionIdx)
	}
	fn := f.Functions[s.FunctionIdx]
	return &fn, nil
}

// Name resolves a Function's interned name.
func (fn Function) Name(f *Format) (string, error) {
	if int(fn.NameIdx) >= len(f.Strings) {
		return "", newError(ErrInvalidStringReference, fn.NameIdx)
	}
	return f.Strings[fn.NameIdx], nil
}

// FullPath resolves a File's full source path, per spec.md §4.8:
// join_path(join_path(comp_dir, directory), path_name).
func (file File) FullPath(f *Format) (string, error) {
	compDir, err := resolveString(f, file.CompDirIdx)
	if err != nil {
		return "", err
	}
	directory, err := resolveString(f, file.DirectoryIdx)
	if err != nil {
		return "", err
	}
	pathName, err := resolveString(f, file.PathNameIdx)
	if err != nil {
		return "", err
	}
	return joinPath(joinPath(compDir, directory), pathName), nil
}

func resolveString(f *Format, idx uint32) (string, error) {
	if idx == noIndex {
		return "", nil
	}
	if int(idx) >= len(f.Strings) {
		return "", newError(ErrInvalidStringReference, idx)
	}
	return f.Strings[idx], nil
}

// joinPath returns b unchanged if it is absolute, otherwise a concatenates
// a and b with exactly one separator, per spec.md §4.8's join_path.
func joinPath(a, b string) string {
	if b == "" {
		return a
	}
	if isAbsolutePath(b) {
		return b
	}
	if a == "" {
		return b
	}
	if a[len(a)-1] == '/' || a[len(a)-1] == '\\' {
		return a + b
	}
	return a + "/" + b
}

func isAbsolutePath(p string) bool {
	if p == "" {
		return false
	}
	if p[0] == '/' {
		return true
	}
	// Windows drive-letter absolute path, e.g. "C:\..." or "C:/...".
	if len(p) >= 3 && isDriveLetter(p[0]) && p[1] == ':' && (p[2] == '\\' || p[2] == '/') {
		return true
	}
	return false
}

func isDriveLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
