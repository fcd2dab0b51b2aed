package dwarfsession

import (
	"debug/dwarf"
	"errors"
	"testing"
)

func entryWith(tag dwarf.Tag, fields ...dwarf.Field) *dwarf.Entry {
	return &dwarf.Entry{Tag: tag, Field: fields}
}

func field(attr dwarf.Attr, val interface{}) dwarf.Field {
	return dwarf.Field{Attr: attr, Val: val}
}

func TestParseFunctionRangesFromLowHighPC(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram,
		field(dwarf.AttrLowpc, uint64(0x1000)),
		field(dwarf.AttrHighpc, uint64(0x1010)),
	)
	ranges, err := parseFunctionRanges(nil, e, ObjectExecutable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 || ranges[0] != (addressRange{Begin: 0x1000, End: 0x1010}) {
		t.Fatalf("got %+v", ranges)
	}
}

func TestParseFunctionRangesHighPCConstant(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram,
		field(dwarf.AttrLowpc, uint64(0x2000)),
		field(dwarf.AttrHighpc, int64(0x30)),
	)
	ranges, err := parseFunctionRanges(nil, e, ObjectExecutable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 || ranges[0].End != 0x2030 {
		t.Fatalf("got %+v", ranges)
	}
}

func TestParseFunctionRangesZeroLowPCEliminated(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram,
		field(dwarf.AttrLowpc, uint64(0)),
		field(dwarf.AttrHighpc, uint64(0x10)),
	)
	ranges, err := parseFunctionRanges(nil, e, ObjectExecutable)
	if err != nil || ranges != nil {
		t.Fatalf("expected no ranges for eliminated zero low_pc, got %+v, %v", ranges, err)
	}
}

func TestParseFunctionRangesZeroLowPCKeptWhenRelocatable(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram,
		field(dwarf.AttrLowpc, uint64(0)),
		field(dwarf.AttrHighpc, uint64(0x10)),
	)
	ranges, err := parseFunctionRanges(nil, e, ObjectRelocatable)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranges) != 1 || ranges[0].Begin != 0 {
		t.Fatalf("got %+v", ranges)
	}
}

func TestParseFunctionRangesInverted(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram,
		field(dwarf.AttrLowpc, uint64(0x3000)),
		field(dwarf.AttrHighpc, uint64(0x2000)),
	)
	_, err := parseFunctionRanges(nil, e, ObjectExecutable)
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if derr.Kind != ErrInvertedFunctionRange {
		t.Fatalf("got kind %v, want ErrInvertedFunctionRange", derr.Kind)
	}
}

func TestParseFunctionRangesNoLowPC(t *testing.T) {
	e := entryWith(dwarf.TagSubprogram)
	ranges, err := parseFunctionRanges(nil, e, ObjectExecutable)
	if err != nil || ranges != nil {
		t.Fatalf("expected no ranges, got %+v, %v", ranges, err)
	}
}

func TestCallSite(t *testing.T) {
	e := entryWith(dwarf.TagInlinedSubroutine,
		field(dwarf.AttrCallFile, int64(2)),
		field(dwarf.AttrCallLine, int64(99)),
	)
	file, line, ok := callSite(e)
	if !ok || file != 2 || line != 99 {
		t.Fatalf("got file=%d line=%d ok=%v", file, line, ok)
	}

	if _, _, ok := callSite(entryWith(dwarf.TagInlinedSubroutine)); ok {
		t.Fatalf("expected ok=false with no call-site attributes")
	}
}

func sz(v uint64) *uint64 { return &v }

// TestResolveLinesClipsFirstAndLastRow covers scenario S1 from spec.md §8.
func TestResolveLinesClipsFirstAndLastRow(t *testing.T) {
	idx := &lineProgramIndex{
		sequences: []dwarfSequence{
			seq(0x1000, 0x1010,
				row(0x1000, 10, sz(8)),
				row(0x1008, 11, sz(8)),
			),
		},
	}
	lines := resolveLines(idx, []addressRange{{Begin: 0x1000, End: 0x1010}}, 0)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %+v", len(lines), lines)
	}
	if lines[0].Address != 0x1000 || *lines[0].Size != 8 || lines[0].Line != 10 {
		t.Fatalf("line 0: %+v", lines[0])
	}
	if lines[1].Address != 0x1008 || *lines[1].Size != 8 || lines[1].Line != 11 {
		t.Fatalf("line 1: %+v", lines[1])
	}
}

func TestResolveLinesUnterminatedSequenceInfersSizeOne(t *testing.T) {
	idx := &lineProgramIndex{
		sequences: []dwarfSequence{
			{start: 0x1000, end: 0x1001, rows: []dwarfRow{row(0x1000, 5, nil)}},
		},
	}
	lines := resolveLines(idx, []addressRange{{Begin: 0x1000, End: 0x1001}}, 0)
	if len(lines) != 1 || lines[0].Size == nil || *lines[0].Size != 1 {
		t.Fatalf("got %+v", lines)
	}
}

// TestSpliceInlineRangeS2 covers scenario S2 from spec.md §8.
func TestSpliceInlineRangeS2(t *testing.T) {
	f1 := FileInfo{Name: []byte("f1")}
	f2 := FileInfo{Name: []byte("f2")}

	lines := []LineInfo{
		{Address: 0x2000, Size: sz(0x10), File: f1, Line: 20},
		{Address: 0x2010, Size: sz(0x10), File: f1, Line: 21},
	}

	spliced := spliceInlineRange(lines, 0x2008, 0x2014, f2, 99)

	want := []LineInfo{
		{Address: 0x2000, Size: sz(0x8), File: f1, Line: 20},
		{Address: 0x2008, Size: sz(0xC), File: f2, Line: 99},
		{Address: 0x2014, Size: sz(0xC), File: f1, Line: 21},
	}
	if len(spliced) != len(want) {
		t.Fatalf("got %+v, want %+v", spliced, want)
	}
	for i := range want {
		g, w := spliced[i], want[i]
		if g.Address != w.Address || !sameFile(g.File, w.File) || g.Line != w.Line {
			t.Fatalf("entry %d: got %+v, want %+v", i, g, w)
		}
		if (g.Size == nil) != (w.Size == nil) || (g.Size != nil && *g.Size != *w.Size) {
			t.Fatalf("entry %d size: got %v, want %v", i, g.Size, w.Size)
		}
	}
}

func TestSpliceInlineRangeFillsGapWithNoOverlap(t *testing.T) {
	f1 := FileInfo{Name: []byte("f1")}
	callInfo := FileInfo{Name: []byte("callee")}

	lines := []LineInfo{
		{Address: 0x1000, Size: sz(0x10), File: f1, Line: 1},
	}
	spliced := spliceInlineRange(lines, 0x3000, 0x3010, callInfo, 42)
	if len(spliced) != 2 {
		t.Fatalf("got %+v", spliced)
	}
	if spliced[1].Address != 0x3000 || *spliced[1].Size != 0x10 || spliced[1].Line != 42 {
		t.Fatalf("gap filler: %+v", spliced[1])
	}
}

func TestFunctionStackFlush(t *testing.T) {
	var stack functionStack
	var out []*Function

	outer := &Function{Name: Name{Text: "outer"}}
	stack.push(1, outer)

	inner := &Function{Name: Name{Text: "inner"}, Inline: true}
	stack.push(2, inner)

	// Flushing at depth 2 should attach inner to outer as an inlinee, but
	// leave outer on the stack.
	stack.flushTo(2, &out)
	if len(outer.Inlinees) != 1 || outer.Inlinees[0] != inner {
		t.Fatalf("expected inner to be attached to outer, got %+v", outer.Inlinees)
	}
	if len(out) != 0 {
		t.Fatalf("expected nothing flushed to output yet, got %+v", out)
	}

	// Flushing at depth 0 (end of unit) should move outer to the output.
	stack.flushTo(0, &out)
	if len(out) != 1 || out[0] != outer {
		t.Fatalf("expected outer flushed to output, got %+v", out)
	}
}

func TestLossyManglingDetection(t *testing.T) {
	unit := entryWith(dwarf.TagCompileUnit, field(dwarf.AttrProducer, "Dart VM version 1.2.3"))
	if !lossyMangling(unit) {
		t.Fatalf("expected Dart VM producer to be recognised as lossy-mangling")
	}

	unit2 := entryWith(dwarf.TagCompileUnit, field(dwarf.AttrProducer, "clang 17"))
	if lossyMangling(unit2) {
		t.Fatalf("did not expect clang to be recognised as lossy-mangling")
	}
}
