package dwarfsession

import "debug/dwarf"

// loadSection returns one section's bytes; if the provider has no such
// section it returns nil rather than the bundle erroring out.
func loadSection(p SectionProvider, name string) []byte {
	section, ok := p.Section(name)
	if !ok {
		return nil
	}
	return section.Data
}

// SectionBundle eagerly loads the fixed set of sections a DWARF session
// needs and owns them for the lifetime of the session; everything parsed
// out of them (units, line programs, entries) borrows from this bundle.
// Missing sections become empty slices, never errors, mirroring
// symbolic-debuginfo's DwarfSections::from_dwarf.
type SectionBundle struct {
	DebugAbbrev     []byte
	DebugInfo       []byte
	DebugLine       []byte
	DebugLineStr    []byte
	DebugStr        []byte
	DebugStrOffsets []byte
	DebugRanges     []byte
	DebugRngLists   []byte
}

// LoadSectionBundle eagerly loads all eight sections from the given
// provider.
func LoadSectionBundle(p SectionProvider) *SectionBundle {
	return &SectionBundle{
		DebugAbbrev:     loadSection(p, sectionDebugAbbrev),
		DebugInfo:       loadSection(p, sectionDebugInfo),
		DebugLine:       loadSection(p, sectionDebugLine),
		DebugLineStr:    loadSection(p, sectionDebugLineStr),
		DebugStr:        loadSection(p, sectionDebugStr),
		DebugStrOffsets: loadSection(p, sectionDebugStrOffsets),
		DebugRanges:     loadSection(p, sectionDebugRanges),
		DebugRngLists:   loadSection(p, sectionDebugRngLists),
	}
}

// newDwarfData builds the debug/dwarf low-level reader from the bundle's
// sections. The 2-4 era sections go through dwarf.New directly; the
// DWARF5-only sections are attached afterwards with AddSection, the same
// two-step shape datadog-agent's pkg/dyninst/object.loadDwarfData uses.
func (b *SectionBundle) newDwarfData() (*dwarf.Data, error) {
	d, err := dwarf.New(
		b.DebugAbbrev,
		nil, // debug_aranges: not part of this core's section set
		nil, // debug_frame: not part of this core's section set
		b.DebugInfo,
		b.DebugLine,
		nil, // debug_pubnames: not part of this core's section set
		b.DebugRanges,
		b.DebugStr,
	)
	if err != nil {
		return nil, wrapError(ErrCorruptedData, err)
	}

	for _, extra := range []struct {
		name string
		data []byte
	}{
		{".debug_line_str", b.DebugLineStr},
		{".debug_str_offsets", b.DebugStrOffsets},
		{".debug_rnglists", b.DebugRngLists},
	} {
		if len(extra.data) == 0 {
			continue
		}
		if err := d.AddSection(extra.name, extra.data); err != nil {
			return nil, wrapError(ErrCorruptedData, err)
		}
	}

	return d, nil
}
