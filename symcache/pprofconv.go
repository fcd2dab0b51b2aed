package symcache

import "github.com/google/pprof/profile"

// Lines converts addr's inline chain into pprof's []Line convention
// (innermost inlined frame first, the enclosing caller last), interning profile.Function values into funcs by name so
// repeated addresses resolving to the same function share one entry.
// funcs is caller-owned and reused across calls, the same way
// dispatchrun-wzprof's locationForCall builds up its funcs map across an
// entire profile.
func (f *Format) Lines(addr uint64, funcs map[string]*profile.Function) []profile.Line {
	it := f.Lookup(addr)

	var locs []SourceLocation
	for {
		loc, ok := it.Next()
		if !ok {
			break
		}
		locs = append(locs, loc)
	}
	if len(locs) == 0 {
		return nil
	}

	lines := make([]profile.Line, len(locs))
	for i, loc := range locs {
		name := ""
		if fnRef, err := loc.Function(f); err == nil && fnRef != nil {
			name, _ = fnRef.Name(f)
		}
		filename := ""
		if fileRef, err := loc.File(f); err == nil && fileRef != nil {
			filename, _ = fileRef.FullPath(f)
		}

		pprofFn := funcs[name]
		if pprofFn == nil {
			pprofFn = &profile.Function{
				ID:         uint64(len(funcs)) + 1, // 0 is reserved by pprof
				Name:       name,
				SystemName: name,
				Filename:   filename,
			}
			funcs[name] = pprofFn
		}

		line, _ := loc.LineNumber()
		// Lookup already yields innermost first, which is the order
		// pprof.Location.Line expects, so no reordering is needed.
		lines[i] = profile.Line{Function: pprofFn, Line: int64(line)}
	}
	return lines
}
