package dwarfsession

import (
	"debug/dwarf"
	"sync"
)

// unitRegistry enumerates a session's compilation units and resolves
// cross-unit DIE references, backing both the function builder's unit walk
// (function.go) and the name resolver's reference-chain fallback (name.go).
//
// symbolic-debuginfo's DwarfInfo hand-parses unit headers so it can binary
// search offset → owning unit itself (gimli exposes no such index).
// debug/dwarf already maintains that index internally: Data.Reader().Seek
// looks up the owning unit for an arbitrary debug-info offset and switches
// its abbreviation table before the following Next() decodes the entry
// there. unitRegistry is a thin, lazily-populated wrapper over that,
// grounded on the same Seek-then-Next call shape dispatchrun-wzprof's
// dwarfmapper.namesForSubprogram uses to follow abstract_origin.
type unitRegistry struct {
	d *dwarf.Data

	once  sync.Once
	units []*dwarf.Entry
	err   error
}

func newUnitRegistry(d *dwarf.Data) *unitRegistry {
	return &unitRegistry{d: d}
}

// Units returns every compilation unit's root DIE, in debug-info order.
func (u *unitRegistry) Units() ([]*dwarf.Entry, error) {
	u.once.Do(func() {
		r := u.d.Reader()
		for {
			e, err := r.Next()
			if err != nil {
				u.err = wrapError(ErrCorruptedData, err)
				return
			}
			if e == nil {
				return
			}
			if e.Tag != dwarf.TagCompileUnit {
				// Malformed: the reader should always land on a unit root
				// right after construction or a SkipChildren. Skip it
				// rather than fail the whole registry.
				continue
			}
			u.units = append(u.units, e)
			r.SkipChildren()
		}
	})
	return u.units, u.err
}

// entryAt resolves a debug-info offset (as found in an Attr*Ref attribute)
// to the DIE it addresses, which may live in a different unit than the one
// holding the reference.
func (u *unitRegistry) entryAt(offset dwarf.Offset) (*dwarf.Entry, error) {
	r := u.d.Reader()
	r.Seek(offset)
	e, err := r.Next()
	if err != nil {
		return nil, newErrorf(ErrInvalidUnitRef, uint64(offset))
	}
	if e == nil {
		return nil, newErrorf(ErrInvalidUnitRef, uint64(offset))
	}
	return e, nil
}

// lineReader returns the line-number program for unit, or nil if it has
// none (DW_AT_stmt_list absent, legitimate for units with no code).
func (u *unitRegistry) lineReader(unit *dwarf.Entry) (*dwarf.LineReader, error) {
	r, err := u.d.LineReader(unit)
	if err != nil {
		return nil, wrapError(ErrCorruptedData, err)
	}
	return r, nil
}

func unitCompilationDir(unit *dwarf.Entry) []byte {
	dir, _ := unit.Val(dwarf.AttrCompDir).(string)
	return []byte(dir)
}

func unitLanguage(unit *dwarf.Entry) Language {
	lang, ok := unit.Val(dwarf.AttrLanguage).(int64)
	if !ok {
		return LanguageUnknown
	}
	return languageFromDwarf(lang)
}

func unitName(unit *dwarf.Entry) []byte {
	name, _ := unit.Val(dwarf.AttrName).(string)
	return []byte(name)
}
