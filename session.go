package dwarfsession

import (
	"debug/dwarf"
	"sync"
)

// DebugSession is the façade of C7: it owns the section bundle, the parsed
// dwarf.Data, and the unit registry, and exposes lazy iteration over a
// container's functions and source files. Grounded on symbolic-debuginfo's
// DwarfDebugSession, adapted to Go's pull-based iterator convention of a
// Next() method returning (item, error) with (nil, nil) meaning exhausted.
type DebugSession struct {
	bundle *SectionBundle
	data   *dwarf.Data
	units  *unitRegistry

	objectKind    ObjectKind
	addressOffset uint64
	symtab        SymbolTable
	bsm           BitcodeSymbolMap

	mu          sync.Mutex
	lineIndexes map[dwarf.Offset]*lineProgramIndex
}

// SessionOptions configures the external collaborators a DebugSession
// consults while resolving functions, all optional except the provider
// itself.
type SessionOptions struct {
	ObjectKind    ObjectKind
	AddressOffset uint64
	SymbolTable   SymbolTable
	BitcodeMap    BitcodeSymbolMap
}

// NewDebugSession eagerly loads the section bundle and builds the low-level
// dwarf.Data from it; everything else (unit materialisation, line-program
// preparation, function reconstruction) happens lazily on first use.
func NewDebugSession(provider SectionProvider, opts SessionOptions) (*DebugSession, error) {
	bundle := LoadSectionBundle(provider)
	data, err := bundle.newDwarfData()
	if err != nil {
		return nil, err
	}

	bsm := opts.BitcodeMap
	if bsm == nil {
		bsm = NopBitcodeSymbolMap{}
	}

	return &DebugSession{
		bundle:        bundle,
		data:          data,
		units:         newUnitRegistry(data),
		objectKind:    opts.ObjectKind,
		addressOffset: opts.AddressOffset,
		symtab:        opts.SymbolTable,
		bsm:           bsm,
		lineIndexes:   make(map[dwarf.Offset]*lineProgramIndex),
	}, nil
}

// lineIndexForUnit returns unit's prepared line program, memoised: the
// "lazy unit materialisation" once-cell from spec.md §9 applied to the line
// program specifically, since that is the only per-unit state expensive
// enough to need it (the DIE walk itself is cheap to redo and is never
// repeated within a single iteration pass).
func (s *DebugSession) lineIndexForUnit(unit *dwarf.Entry) (*lineProgramIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx, ok := s.lineIndexes[unit.Offset]; ok {
		return idx, nil
	}

	lr, err := s.units.lineReader(unit)
	if err != nil {
		return nil, err
	}
	if lr == nil {
		s.lineIndexes[unit.Offset] = &lineProgramIndex{}
		return s.lineIndexes[unit.Offset], nil
	}

	idx, err := prepareLineProgram(lr)
	if err != nil {
		return nil, err
	}
	s.lineIndexes[unit.Offset] = idx
	return idx, nil
}

// Functions returns a fresh FunctionIterator over every compilation unit.
func (s *DebugSession) Functions() (*FunctionIterator, error) {
	units, err := s.units.Units()
	if err != nil {
		return nil, err
	}
	return &FunctionIterator{
		sess:       s,
		units:      units,
		seenRanges: make(map[[2]uint64]struct{}),
	}, nil
}

// Files returns a fresh FileIterator over every compilation unit's declared
// source files.
func (s *DebugSession) Files() (*FileIterator, error) {
	units, err := s.units.Units()
	if err != nil {
		return nil, err
	}
	return &FileIterator{sess: s, units: units}, nil
}

// SourceByPath always reports "not found": this core does not embed or
// fetch source text, per spec.md §1's non-goals.
func (s *DebugSession) SourceByPath(string) ([]byte, error) {
	return nil, nil
}

// FunctionIterator is C7's lazy function stream: it drains one unit's
// reconstructed functions at a time before materialising the next, sharing
// a single dedup set across the whole walk so a function linked into
// multiple units is only emitted once.
//
// Fatal-per-unit, like FileIterator: a unit whose line program or function
// reconstruction fails yields that error as the current item, and the next
// call resumes at the following unit. Only true exhaustion fuses the
// iterator.
type FunctionIterator struct {
	sess       *DebugSession
	units      []*dwarf.Entry
	unitIdx    int
	pending    []*Function
	pendingIdx int
	seenRanges map[[2]uint64]struct{}
	done       bool
}

func (it *FunctionIterator) Next() (*Function, error) {
	if it.done {
		return nil, nil
	}
	for {
		if it.pendingIdx < len(it.pending) {
			fn := it.pending[it.pendingIdx]
			it.pendingIdx++
			return fn, nil
		}
		if it.unitIdx >= len(it.units) {
			it.done = true
			return nil, nil
		}

		unit := it.units[it.unitIdx]
		it.unitIdx++

		lineIdx, err := it.sess.lineIndexForUnit(unit)
		if err != nil {
			return nil, err
		}
		fns, err := buildUnitFunctions(it.sess, unit, lineIdx, it.seenRanges)
		if err != nil {
			return nil, err
		}
		it.pending = fns
		it.pendingIdx = 0
	}
}

// FileIterator is C7's lazy file stream. Like FunctionIterator, a unit whose
// line program fails to parse yields that error as the current item, and the
// next call resumes at the following unit.
type FileIterator struct {
	sess       *DebugSession
	units      []*dwarf.Entry
	unitIdx    int
	pending    []FileEntry
	pendingIdx int
}

func (it *FileIterator) Next() (*FileEntry, error) {
	for {
		if it.pendingIdx < len(it.pending) {
			fe := it.pending[it.pendingIdx]
			it.pendingIdx++
			return &fe, nil
		}
		if it.unitIdx >= len(it.units) {
			return nil, nil
		}

		unit := it.units[it.unitIdx]
		it.unitIdx++

		entries, err := filesForUnit(it.sess, unit)
		if err != nil {
			return nil, err
		}
		it.pending = entries
		it.pendingIdx = 0
	}
}

func filesForUnit(sess *DebugSession, unit *dwarf.Entry) ([]FileEntry, error) {
	lr, err := sess.units.lineReader(unit)
	if err != nil {
		return nil, err
	}
	if lr == nil {
		return nil, nil
	}

	compDir := unitCompilationDir(unit)
	files := lr.Files()
	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, FileEntry{
			CompilationDir: compDir,
			Info:           FileInfo{Name: []byte(f.Name)},
		})
	}
	return entries, nil
}
