package dwarfsession

import "testing"

func seq(start, end uint64, rows ...dwarfRow) dwarfSequence {
	return dwarfSequence{start: start, end: end, rows: rows}
}

func row(addr uint64, line uint64, size *uint64) dwarfRow {
	return dwarfRow{address: addr, line: line, size: size}
}

func TestLineProgramIndexGetRowsExactAndMidRange(t *testing.T) {
	idx := &lineProgramIndex{
		sequences: []dwarfSequence{
			seq(0x1000, 0x1010,
				row(0x1000, 10, uint64p(8)),
				row(0x1008, 11, uint64p(8)),
			),
		},
	}

	rows := idx.getRows(addressRange{Begin: 0x1000, End: 0x1010})
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}

	rows = idx.getRows(addressRange{Begin: 0x1004, End: 0x1010})
	if len(rows) != 2 || rows[0].address != 0x1000 {
		t.Fatalf("mid-range query should include the covering row, got %+v", rows)
	}
}

func TestLineProgramIndexGetRowsNoOverlap(t *testing.T) {
	idx := &lineProgramIndex{
		sequences: []dwarfSequence{
			seq(0x1000, 0x1010, row(0x1000, 10, uint64p(0x10))),
		},
	}
	if rows := idx.getRows(addressRange{Begin: 0x2000, End: 0x2010}); rows != nil {
		t.Fatalf("expected no rows for a disjoint range, got %+v", rows)
	}
}

// TestLineProgramIndexOverlappingSequencesFirstMatchWins pins spec.md §9's
// third open question: when sequences overlap, get_rows resolves to the
// first (lowest start, after sorting) matching sequence rather than
// merging or erroring.
func TestLineProgramIndexOverlappingSequencesFirstMatchWins(t *testing.T) {
	idx := &lineProgramIndex{
		sequences: []dwarfSequence{
			seq(0x1000, 0x1020, row(0x1000, 1, uint64p(0x20))),
			seq(0x1010, 0x1030, row(0x1010, 2, uint64p(0x20))),
		},
	}
	rows := idx.getRows(addressRange{Begin: 0x1015, End: 0x1018})
	if len(rows) != 1 || rows[0].line != 1 {
		t.Fatalf("expected the first overlapping sequence's row to win, got %+v", rows)
	}
}
