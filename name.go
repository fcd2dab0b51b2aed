package dwarfsession

import "debug/dwarf"

// resolveFunctionName implements spec.md §4.5: scan e's attributes once for
// a linkage name, a plain name, and a reference fallback (abstract_origin or
// specification), then fall back to following the reference across units if
// neither name was present directly on e. units resolves a cross-unit
// reference to the DIE it points at (unit.go); bsm applies the bitcode
// symbol map, if any.
//
// debug/dwarf's Offset is unique across the whole object (not re-based per
// unit the way gimli's UnitOffset is), so the self-loop guard symbolic-
// debuginfo implements as a (unit, offset) pair collapses to a plain offset
// comparison here.
//
// Grounded on symbolic-debuginfo's UnitRef::resolve_function_name and
// dispatchrun-wzprof's dwarfmapper.namesForSubprogram, which performs the
// same abstract_origin walk via dwarf.Reader.Seek.
func resolveFunctionName(units *unitRegistry, e *dwarf.Entry, lang Language, bsm BitcodeSymbolMap) Name {
	if linkage, ok := stringAttr(e, dwarf.AttrLinkageName); ok {
		return Name{Text: resolveStringName(bsm, linkage), Mangling: Mangled, Language: lang}
	}
	if linkage, ok := stringAttr(e, attrMIPSLinkageName); ok {
		return Name{Text: resolveStringName(bsm, linkage), Mangling: Mangled, Language: lang}
	}

	if name, ok := stringAttr(e, dwarf.AttrName); ok {
		return Name{Text: resolveStringName(bsm, name), Mangling: Unmangled, Language: lang}
	}

	ref, ok := referenceAttr(e, dwarf.AttrAbstractOrigin)
	if !ok {
		ref, ok = referenceAttr(e, dwarf.AttrSpecification)
	}
	if !ok {
		return Name{Text: "unknown", Mangling: UnknownMangling, Language: lang}
	}

	target, err := units.entryAt(ref)
	if err != nil || target == nil {
		return Name{Text: "unknown", Mangling: UnknownMangling, Language: lang}
	}
	if target.Offset == e.Offset {
		return Name{Text: "unknown", Mangling: UnknownMangling, Language: lang}
	}

	return resolveFunctionName(units, target, lang, bsm)
}

// attrMIPSLinkageName is DW_AT_MIPS_linkage_name (0x2007), the legacy
// attribute GCC and some other producers emit instead of DW_AT_linkage_name.
const attrMIPSLinkageName = dwarf.Attr(0x2007)

func stringAttr(e *dwarf.Entry, attr dwarf.Attr) (string, bool) {
	v, ok := e.Val(attr).(string)
	return v, ok
}

func referenceAttr(e *dwarf.Entry, attr dwarf.Attr) (dwarf.Offset, bool) {
	v, ok := e.Val(attr).(dwarf.Offset)
	return v, ok
}

// languageFromDwarf maps a DW_AT_language constant to a Language, per
// spec.md §GLOSSARY's "Language mapping" table.
func languageFromDwarf(v int64) Language {
	switch v {
	case dwarfLangC, dwarfLangC89, dwarfLangC99, dwarfLangC11, dwarfLangC17:
		return LanguageC
	case dwarfLangCpp, dwarfLangCpp03, dwarfLangCpp11, dwarfLangCpp14, dwarfLangCpp17:
		return LanguageCpp
	case dwarfLangD:
		return LanguageD
	case dwarfLangGo:
		return LanguageGo
	case dwarfLangObjC:
		return LanguageObjC
	case dwarfLangObjCpp:
		return LanguageObjCpp
	case dwarfLangRust:
		return LanguageRust
	case dwarfLangSwift:
		return LanguageSwift
	default:
		return LanguageUnknown
	}
}

// DW_LANG_* constants not exposed by debug/dwarf.
const (
	dwarfLangC      = 0x0002
	dwarfLangC89    = 0x0001
	dwarfLangCpp    = 0x0004
	dwarfLangCpp03  = 0x0019
	dwarfLangCpp11  = 0x001a
	dwarfLangCpp14  = 0x0021
	dwarfLangCpp17  = 0x002a
	dwarfLangD      = 0x0013
	dwarfLangGo     = 0x0016
	dwarfLangC99    = 0x000c
	dwarfLangC11    = 0x001d
	dwarfLangC17    = 0x002c
	dwarfLangObjC   = 0x0010
	dwarfLangObjCpp = 0x0011
	dwarfLangRust   = 0x001c
	dwarfLangSwift  = 0x001e
)
