package dwarfsession

import (
	"debug/dwarf"
	"strings"

	"golang.org/x/exp/slices"
)

// unitFiles is the small wrapper around a unit's line-program file table
// used to resolve a raw DW_AT_call_file index to a FileInfo, independent of
// the per-row FileInfo already folded into lineProgramIndex by prepare().
type unitFiles struct {
	files []dwarf.LineFile
}

func newUnitFiles(lr *dwarf.LineReader) unitFiles {
	if lr == nil {
		return unitFiles{}
	}
	return unitFiles{files: lr.Files()}
}

func (u unitFiles) at(idx uint64) (FileInfo, bool) {
	if idx >= uint64(len(u.files)) {
		return FileInfo{}, false
	}
	f := u.files[idx]
	return FileInfo{Name: []byte(f.Name)}, true
}

// parseFunctionRanges implements spec.md §4.6 "Range parsing": prefer
// DW_AT_ranges (resolved by debug/dwarf's Ranges, which already folds in
// DWARF<5 debug_ranges and DWARF5 rnglists/base-address selection), falling
// back to synthesising a single range from low_pc/high_pc.
//
// debug/dwarf.Data.Ranges reports one error for the whole attribute rather
// than gimli's per-entry Result, so an invalid range here fails the entire
// DIE's range parsing instead of being swallowed entry-by-entry.
func parseFunctionRanges(d *dwarf.Data, e *dwarf.Entry, kind ObjectKind) ([]addressRange, error) {
	if hasAttr(e, dwarf.AttrRanges) {
		pairs, err := d.Ranges(e)
		if err != nil {
			return nil, wrapError(ErrCorruptedData, err)
		}
		var out []addressRange
		for _, p := range pairs {
			if p[0] == 0 && kind != ObjectRelocatable {
				continue
			}
			out = append(out, addressRange{Begin: p[0], End: p[1]})
		}
		return out, nil
	}

	low, ok := e.Val(dwarf.AttrLowpc).(uint64)
	if !ok {
		return nil, nil
	}
	if low == 0 && kind != ObjectRelocatable {
		return nil, nil
	}

	var high uint64
	switch v := e.Val(dwarf.AttrHighpc).(type) {
	case uint64:
		high = v
	case int64:
		high = low + uint64(v)
	default:
		return nil, nil
	}

	switch {
	case low == high:
		return nil, nil
	case low > high:
		return nil, newErrorf(ErrInvertedFunctionRange, low)
	default:
		return []addressRange{{Begin: low, End: high}}, nil
	}
}

func hasAttr(e *dwarf.Entry, attr dwarf.Attr) bool {
	for _, f := range e.Field {
		if f.Attr == attr {
			return true
		}
	}
	return false
}

func callSite(e *dwarf.Entry) (file uint64, line uint64, ok bool) {
	lineVal, lineOK := e.Val(dwarf.AttrCallLine).(int64)
	fileVal, fileOK := e.Val(dwarf.AttrCallFile).(int64)
	if !lineOK || !fileOK {
		return 0, 0, false
	}
	return uint64(fileVal), uint64(lineVal), true
}

// resolveLines implements spec.md §4.6 "resolve_lines": fetch each range's
// rows from the line-program index, clip the first and last row to the
// range's bounds, collapse adjacent rows that share (file, line), and shift
// every address by the session's global address offset.
func resolveLines(idx *lineProgramIndex, ranges []addressRange, addressOffset uint64) []LineInfo {
	if idx == nil {
		return nil
	}
	var out []LineInfo
	for _, rng := range ranges {
		rows := idx.getRows(rng)
		if len(rows) == 0 {
			continue
		}
		for i, row := range rows {
			addr := row.address
			var size uint64
			hasSize := row.size != nil
			if hasSize {
				size = *row.size
			}
			if i == 0 && addr < rng.Begin {
				if hasSize {
					size -= rng.Begin - addr
				}
				addr = rng.Begin
			}

			line := LineInfo{Address: addr - addressOffset, File: row.file, Line: row.line}
			if hasSize {
				line.Size = uint64p(size)
			}

			if n := len(out); n > 0 && sameFile(out[n-1].File, line.File) && out[n-1].Line == line.Line {
				if out[n-1].Size != nil && line.Size != nil {
					out[n-1].Size = uint64p(*out[n-1].Size + *line.Size)
				} else {
					out[n-1].Size = nil
				}
				continue
			}
			out = append(out, line)
		}

		if n := len(out); n > 0 {
			last := &out[n-1]
			end := rng.End - addressOffset
			if end >= last.Address {
				last.Size = uint64p(end - last.Address)
			}
		}
	}
	return out
}

// spliceInlineRange rewrites lines so that the half-open window [rb, re)
// reads as executing at (callInfo, callLine), per spec.md §4.6 "Inline line
// splicing". Any sub-range of the window not covered by an existing record
// (a genuine gap, or no overlap at all) is filled the same way, so the
// window always ends up covered by exactly one merged call-site record.
func spliceInlineRange(lines []LineInfo, rb, re uint64, callInfo FileInfo, callLine uint64) []LineInfo {
	if re <= rb {
		return lines
	}

	out := make([]LineInfo, 0, len(lines)+2)
	inserted := false
	insertCallSite := func() {
		if inserted {
			return
		}
		out = append(out, LineInfo{Address: rb, Size: uint64p(re - rb), File: callInfo, Line: callLine})
		inserted = true
	}

	for _, l := range lines {
		end := l.end()
		switch {
		case end <= rb:
			out = append(out, l)
		case l.Address >= re:
			insertCallSite()
			out = append(out, l)
		default:
			if l.Address < rb {
				before := l
				before.Size = uint64p(rb - l.Address)
				out = append(out, before)
			}
			insertCallSite()
			if l.Size != nil && end > re {
				after := l
				after.Address = re
				after.Size = uint64p(end - re)
				out = append(out, after)
			}
		}
	}
	insertCallSite()

	return out
}

// functionStack is the DFS's pending-function stack: spec.md §4.6's
// FunctionStack, keyed by DFS depth. Flushing at a depth pops every entry
// whose depth is >= that depth, attaching each popped function to the new
// top's Inlinees, or — once the stack empties — to the caller-supplied
// output slice.
type functionStack struct {
	depths []int
	fns    []*Function
}

func (s *functionStack) push(depth int, fn *Function) {
	s.depths = append(s.depths, depth)
	s.fns = append(s.fns, fn)
}

func (s *functionStack) flushTo(depth int, out *[]*Function) {
	for len(s.depths) > 0 && s.depths[len(s.depths)-1] >= depth {
		n := len(s.fns) - 1
		fn := s.fns[n]
		s.depths = s.depths[:n]
		s.fns = s.fns[:n]

		if len(s.fns) > 0 {
			top := s.fns[len(s.fns)-1]
			top.Inlinees = append(top.Inlinees, fn)
		} else {
			*out = append(*out, fn)
		}
	}
}

// functionWalker accumulates the state the DFS in buildUnitFunctions needs
// across DIEs: the pending stack, the skipped-subtree marker, and the
// top-level dedup set shared across every unit in the session (spec.md
// §4.6 step 8, §4.7 "a shared ... seen_ranges set ... reused across
// units").
type functionWalker struct {
	sess       *DebugSession
	unit       *dwarf.Entry
	lineIdx    *lineProgramIndex
	files      unitFiles
	compDir    []byte
	lang       Language
	lossy      bool
	seenRanges map[[2]uint64]struct{}

	stack        functionStack
	skippedDepth *int
	out          []*Function
}

// lossyMangling reports whether unit's producer is known to emit mangled
// names that do not survive a symbol-table round trip, per spec.md §4.5.
func lossyMangling(unit *dwarf.Entry) bool {
	producer, _ := unit.Val(dwarf.AttrProducer).(string)
	return strings.Contains(producer, "Dart VM")
}

// buildUnitFunctions walks unit's DIE tree depth-first and reconstructs its
// top-level functions (with nested inlinees attached), per spec.md §4.6.
func buildUnitFunctions(sess *DebugSession, unit *dwarf.Entry, lineIdx *lineProgramIndex, seenRanges map[[2]uint64]struct{}) ([]*Function, error) {
	lr, err := sess.units.lineReader(unit)
	if err != nil {
		return nil, err
	}

	w := &functionWalker{
		sess:       sess,
		unit:       unit,
		lineIdx:    lineIdx,
		files:      newUnitFiles(lr),
		compDir:    unitCompilationDir(unit),
		lang:       unitLanguage(unit),
		lossy:      lossyMangling(unit),
		seenRanges: seenRanges,
	}

	r := sess.data.Reader()
	r.Seek(unit.Offset)

	depth := 0
	for {
		e, err := r.Next()
		if err != nil {
			return nil, wrapError(ErrCorruptedData, err)
		}
		if e == nil {
			break
		}
		if e.Tag == 0 {
			depth--
			if depth < 0 {
				break
			}
			if w.skippedDepth != nil && depth < *w.skippedDepth {
				w.skippedDepth = nil
			}
			continue
		}
		if depth == 0 && e.Offset != unit.Offset {
			// The reader has moved on to the next unit's root DIE.
			break
		}

		if w.skippedDepth != nil && depth > *w.skippedDepth {
			if e.Children {
				depth++
			}
			continue
		}
		w.skippedDepth = nil

		w.stack.flushTo(depth, &w.out)

		if err := w.visit(e, depth); err != nil {
			return nil, err
		}

		if e.Children {
			depth++
		}
	}

	w.stack.flushTo(0, &w.out)
	return w.out, nil
}

func (w *functionWalker) visit(e *dwarf.Entry, depth int) error {
	var inline bool
	switch e.Tag {
	case dwarf.TagSubprogram:
		inline = false
	case dwarf.TagInlinedSubroutine:
		inline = true
	default:
		return nil
	}

	ranges, err := parseFunctionRanges(w.sess.data, e, w.sess.objectKind)
	if err != nil {
		return err
	}
	callFile, callLine, hasCallSite := callSite(e)

	if len(ranges) == 0 {
		w.skippedDepth = &depth
		return nil
	}

	slices.SortFunc(ranges, func(a, b addressRange) bool { return a.Begin < b.Begin })

	address := ranges[0].Begin - w.sess.addressOffset
	var size uint64
	for _, r := range ranges {
		size += r.End - r.Begin
	}

	if !inline {
		key := [2]uint64{address, size}
		if _, dup := w.seenRanges[key]; dup {
			w.skippedDepth = &depth
			return nil
		}
		w.seenRanges[key] = struct{}{}
	}

	name := w.resolveName(e, inline, address)
	lines := resolveLines(w.lineIdx, ranges, w.sess.addressOffset)

	fn := &Function{
		Address:        address,
		Size:           size,
		Name:           name,
		CompilationDir: w.compDir,
		Lines:          lines,
		Inline:         inline,
	}

	if inline {
		fn.Lines = nil
		if len(w.stack.fns) == 0 {
			return newError(ErrUnexpectedInline)
		}
		if hasCallSite {
			parent := w.stack.fns[len(w.stack.fns)-1]
			callInfo, _ := w.files.at(callFile)
			for _, r := range ranges {
				rb := r.Begin - w.sess.addressOffset
				re := r.End - w.sess.addressOffset
				parent.Lines = spliceInlineRange(parent.Lines, rb, re, callInfo, callLine)
			}
		}
	}

	w.stack.push(depth, fn)
	return nil
}

// resolveName implements the resolution policy from spec.md §4.5: non-
// inline top-level functions prefer the container's own symbol table
// (keyed by the function's adjusted start address), unless the unit's
// producer is lossy-mangling, in which case (and always for inlined
// subroutines) DWARF name resolution is used directly.
func (w *functionWalker) resolveName(e *dwarf.Entry, inline bool, address uint64) Name {
	if !inline && !w.lossy && w.sess.symtab != nil {
		if sym, ok := w.sess.symtab.LookupExact(address); ok {
			return Name{Text: resolveStringName(w.sess.bsm, sym.Name), Mangling: Mangled, Language: w.lang}
		}
	}

	name := resolveFunctionName(w.sess.units, e, w.lang, w.sess.bsm)
	if name.Text == "unknown" {
		return Name{Text: "", Mangling: Unmangled, Language: w.lang}
	}
	return name
}
