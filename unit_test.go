package dwarfsession

import (
	"debug/dwarf"
	"testing"
)

func TestUnitCompilationDir(t *testing.T) {
	unit := entryWith(dwarf.TagCompileUnit, field(dwarf.AttrCompDir, "/home/user/proj"))
	if got := string(unitCompilationDir(unit)); got != "/home/user/proj" {
		t.Fatalf("got %q", got)
	}

	empty := entryWith(dwarf.TagCompileUnit)
	if got := unitCompilationDir(empty); got != nil && string(got) != "" {
		t.Fatalf("expected empty comp dir, got %q", got)
	}
}

func TestUnitLanguage(t *testing.T) {
	unit := entryWith(dwarf.TagCompileUnit, field(dwarf.AttrLanguage, int64(dwarfLangGo)))
	if got := unitLanguage(unit); got != LanguageGo {
		t.Fatalf("got %v, want LanguageGo", got)
	}

	unknown := entryWith(dwarf.TagCompileUnit)
	if got := unitLanguage(unknown); got != LanguageUnknown {
		t.Fatalf("got %v, want LanguageUnknown", got)
	}
}

func TestUnitName(t *testing.T) {
	unit := entryWith(dwarf.TagCompileUnit, field(dwarf.AttrName, "main.c"))
	if got := string(unitName(unit)); got != "main.c" {
		t.Fatalf("got %q", got)
	}
}
