package symcache

import "testing"

// buildTwoDeepInlineCache builds the fixture scenario S5 from spec.md §8: a
// single range [0x5000,0x5010) whose innermost source location chains
// inner_inline -> outer_inline -> outer.
func buildTwoDeepInlineCache() *Format {
	strs := []string{"inner", "outer_inline", "outer"}

	// Index 0 and 1 are chain-only entries (reachable solely through
	// InlinedIntoIdx); index 2 is the range-aligned, innermost entry.
	locs := []SourceLocation{
		{Line: 10, FunctionIdx: 2, FileIdx: noIndex, InlinedIntoIdx: noIndex}, // outer (chain end)
		{Line: 20, FunctionIdx: 1, FileIdx: noIndex, InlinedIntoIdx: 0},       // outer_inline -> outer
		{Line: 30, FunctionIdx: 0, FileIdx: noIndex, InlinedIntoIdx: 1},       // inner_inline -> outer_inline
	}

	funcs := []Function{{NameIdx: 0}, {NameIdx: 1}, {NameIdx: 2}}

	// Ranges holds the range's start (0x5000) and its closing boundary
	// (0x5010); only the start has a SourceLocations entry.
	return New(0, []uint32{0x5000, 0x5010}, 2, locs, nil, funcs, strs)
}

func TestLookupTwoDeepInlineChain(t *testing.T) {
	f := buildTwoDeepInlineCache()

	it := f.Lookup(0x5004)
	var names []string
	for {
		loc, ok := it.Next()
		if !ok {
			break
		}
		fn, err := loc.Function(f)
		if err != nil {
			t.Fatalf("unexpected error resolving function: %v", err)
		}
		name, err := fn.Name(f)
		if err != nil {
			t.Fatalf("unexpected error resolving name: %v", err)
		}
		names = append(names, name)
	}

	want := []string{"inner", "outer_inline", "outer"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v, want %v", names, want)
		}
	}
}

func TestLookupBelowBoundsIsEmpty(t *testing.T) {
	f := buildTwoDeepInlineCache()
	it := f.Lookup(0x4FFF)
	if _, ok := it.Next(); ok {
		t.Fatalf("expected an empty iterator below the first range")
	}
}

// TestLookupAtClosingBoundaryIsEmpty covers scenario S5's "lookup(0x5010)
// yields the next range's chain if present else empty" for the "absent"
// half: with only one range, its closing boundary itself is a miss.
func TestLookupAtClosingBoundaryIsEmpty(t *testing.T) {
	f := buildTwoDeepInlineCache()
	it := f.Lookup(0x5010)
	if _, ok := it.Next(); ok {
		t.Fatalf("expected an empty iterator exactly at the closing boundary")
	}
}

// TestLookupAtBoundaryHitsNextRange covers S5's "if present" half: a probe
// exactly at one range's closing boundary, which is the next range's start.
func TestLookupAtBoundaryHitsNextRange(t *testing.T) {
	locs := []SourceLocation{
		{Line: 10, FunctionIdx: 0, FileIdx: noIndex, InlinedIntoIdx: noIndex},
		{Line: 20, FunctionIdx: 1, FileIdx: noIndex, InlinedIntoIdx: noIndex},
	}
	funcs := []Function{{NameIdx: 0}, {NameIdx: 1}}
	f := New(0, []uint32{0x5000, 0x5010, 0x5020}, 0, locs, nil, funcs, []string{"first", "second"})

	it := f.Lookup(0x5010)
	loc, ok := it.Next()
	if !ok || loc.Line != 20 {
		t.Fatalf("expected the second range's chain at its start, got %+v ok=%v", loc, ok)
	}
}

func TestLookupAboveAllRangesIsEmpty(t *testing.T) {
	f := New(0, []uint32{0x5000, 0x5010}, 0, []SourceLocation{{Line: 1, FunctionIdx: noIndex, FileIdx: noIndex, InlinedIntoIdx: noIndex}}, nil, nil, nil)
	it := f.Lookup(0x9999)
	if _, ok := it.Next(); ok {
		t.Fatalf("expected an empty iterator above all ranges")
	}
}

func TestFormatEncodeDecodeRoundTrip(t *testing.T) {
	orig := buildTwoDeepInlineCache()
	decoded, err := Decode(orig.Encode())
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if decoded.AddrOffset != orig.AddrOffset || len(decoded.Ranges) != len(orig.Ranges) {
		t.Fatalf("round trip mismatch: %+v vs %+v", decoded, orig)
	}

	it := decoded.Lookup(0x5004)
	loc, ok := it.Next()
	if !ok || loc.Line != 30 {
		t.Fatalf("round-tripped format produced wrong innermost location: %+v", loc)
	}
}

func TestJoinPath(t *testing.T) {
	cases := []struct{ a, b, want string }{
		{"", "", ""},
		{"/home/user/proj", "", "/home/user/proj"},
		{"/home/user/proj", "main.go", "/home/user/proj/main.go"},
		{"/home/user/proj/", "main.go", "/home/user/proj/main.go"},
		{"/home/user/proj", "/abs/main.go", "/abs/main.go"},
		{"", "main.go", "main.go"},
	}
	for _, c := range cases {
		if got := joinPath(c.a, c.b); got != c.want {
			t.Errorf("joinPath(%q, %q) = %q, want %q", c.a, c.b, got, c.want)
		}
	}
}

func TestFileFullPath(t *testing.T) {
	f := New(0, nil, 0, nil,
		[]File{{CompDirIdx: 0, DirectoryIdx: noIndex, PathNameIdx: 1}},
		nil,
		[]string{"/home/user/proj", "main.go"},
	)
	path, err := f.Files[0].FullPath(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/home/user/proj/main.go" {
		t.Fatalf("got %q", path)
	}
}

func TestInvalidFunctionReference(t *testing.T) {
	f := New(0, []uint32{0x1000, 0x1010}, 0, []SourceLocation{{Line: 1, FunctionIdx: 7, FileIdx: noIndex, InlinedIntoIdx: noIndex}}, nil, nil, nil)
	it := f.Lookup(0x1000)
	loc, ok := it.Next()
	if !ok {
		t.Fatalf("expected a location")
	}
	if _, err := loc.Function(f); err == nil {
		t.Fatalf("expected an invalid function reference error")
	}
}
