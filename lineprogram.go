package dwarfsession

import (
	"debug/dwarf"
	"errors"
	"io"
	"sort"

	"golang.org/x/exp/slices"
)

// addressRange is a half-open [Begin, End) instruction address range, the Go
// rendering of gimli's Range used throughout spec.md §4.3/§4.6.
type addressRange struct {
	Begin uint64
	End   uint64
}

// dwarfRow is one row of a prepared line-number program. Unlike
// symbolic-debuginfo's DwarfRow, File is the already-resolved FileInfo
// rather than a numeric file index: debug/dwarf's LineReader hands back a
// resolved *dwarf.LineFile per entry instead of an index into a separate
// file table, so the index → FileInfo step spec.md §4.6's resolve_lines
// performs is folded into prepare() instead.
type dwarfRow struct {
	address uint64
	file    FileInfo
	line    uint64
	size    *uint64
}

// dwarfSequence is a maximal run of rows terminated by end_sequence (or, for
// a malformed program, by the end of the stream).
type dwarfSequence struct {
	start uint64
	end   uint64
	rows  []dwarfRow
}

// lineProgramIndex is a compilation unit's line-number program, replayed
// once into sorted, sized sequences so range queries resolve in sub-linear
// time. Grounded on symbolic-debuginfo's DwarfLineProgram.
type lineProgramIndex struct {
	sequences []dwarfSequence
}

func lineFileInfo(f *dwarf.LineFile) FileInfo {
	if f == nil {
		return FileInfo{}
	}
	// debug/dwarf already joins the file's directory into Name for us, so
	// Dir is left empty; FileInfo.full path construction still composes
	// correctly since joining against an empty fragment is a no-op.
	return FileInfo{Name: []byte(f.Name)}
}

func sameFile(a, b FileInfo) bool {
	return string(a.Dir) == string(b.Dir) && string(a.Name) == string(b.Name)
}

// prepareLineProgram replays r row by row into sequences, following
// spec.md §4.3 Prepare exactly.
func prepareLineProgram(r *dwarf.LineReader) (*lineProgramIndex, error) {
	var sequences []dwarfSequence
	var rows []dwarfRow
	var prevAddress uint64

	var entry dwarf.LineEntry
	for {
		err := r.Next(&entry)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapError(ErrCorruptedData, err)
		}

		address := entry.Address

		// Some toolchains (rustc targeting WASM among them) emit a bogus
		// sequence spanning address 0; DWARF forbids code at address 0 so
		// it is always safe to drop it.
		if address == 0 {
			continue
		}

		if len(rows) > 0 && address >= rows[len(rows)-1].address {
			size := address - rows[len(rows)-1].address
			rows[len(rows)-1].size = &size
		}

		switch {
		case entry.EndSequence:
			if len(rows) > 0 {
				end := address
				if address < prevAddress {
					end = prevAddress + 1
				}
				sequences = append(sequences, dwarfSequence{
					start: rows[0].address,
					end:   end,
					rows:  rows,
				})
				rows = nil
			}
			prevAddress = 0

		case address < prevAddress:
			// "Within a sequence, addresses and operation pointers may
			// only increase." Invalid per DWARF; drop the row rather than
			// starting a new sequence.

		default:
			file := lineFileInfo(entry.File)
			line := uint64(entry.Line)
			if len(rows) > 0 && rows[len(rows)-1].address == address {
				rows[len(rows)-1].file = file
				rows[len(rows)-1].line = line
			} else {
				rows = append(rows, dwarfRow{address: address, file: file, line: line})
			}
			prevAddress = address
		}
	}

	if len(rows) > 0 {
		sequences = append(sequences, dwarfSequence{
			start: rows[0].address,
			end:   prevAddress + 1,
			rows:  rows,
		})
	}

	slices.SortFunc(sequences, func(a, b dwarfSequence) bool { return a.start < b.start })

	return &lineProgramIndex{sequences: sequences}, nil
}

// getRows returns the rows of the first sequence overlapping rng, clipped to
// [rng.Begin, rng.End) by index (callers clip the boundary rows' address and
// size themselves, per spec.md §4.6 resolve_lines).
func (idx *lineProgramIndex) getRows(rng addressRange) []dwarfRow {
	for _, seq := range idx.sequences {
		if seq.end <= rng.Begin || seq.start > rng.End {
			continue
		}

		from, ok := sort.Find(len(seq.rows), func(i int) int {
			switch {
			case seq.rows[i].address < rng.Begin:
				return 1
			case seq.rows[i].address > rng.Begin:
				return -1
			default:
				return 0
			}
		})
		if !ok {
			if from == 0 {
				return nil
			}
			from--
		}

		tail := seq.rows[from:]
		length, _ := sort.Find(len(tail), func(i int) int {
			switch {
			case tail[i].address < rng.End:
				return 1
			case tail[i].address > rng.End:
				return -1
			default:
				return 0
			}
		})
		return tail[:length]
	}
	return nil
}
