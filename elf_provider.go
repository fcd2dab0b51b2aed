package dwarfsession

import (
	"debug/elf"
	"strings"
)

// ELFProvider is a SectionProvider backed by an *elf.File. Grounded on
// DataDog-datadog-agent's pkg/dyninst/object.loadDebugSections: both map
// the container's own section-name prefix (".debug_" or ".zdebug_" here,
// "__debug_" for Mach-O) to the canonical "debug_" SectionProvider name.
type ELFProvider struct {
	file     *elf.File
	sections map[string]*elf.Section
}

// NewELFProvider indexes f's sections by their canonical (prefix-stripped)
// DWARF name. f is retained; closing it invalidates any Section data
// obtained through the provider.
func NewELFProvider(f *elf.File) *ELFProvider {
	sections := make(map[string]*elf.Section)
	for _, s := range f.Sections {
		name := elfDwarfSectionName(s.Name)
		if name == "" {
			continue
		}
		sections[name] = s
	}
	return &ELFProvider{file: f, sections: sections}
}

func elfDwarfSectionName(name string) string {
	switch {
	case strings.HasPrefix(name, ".debug_"):
		return name[len("."):]
	case strings.HasPrefix(name, ".zdebug_"):
		return "debug_" + name[len(".zdebug_"):]
	default:
		return ""
	}
}

func (p *ELFProvider) Endianity() Endian {
	if p.file.ByteOrder.String() == "BigEndian" {
		return BigEndian
	}
	return LittleEndian
}

func (p *ELFProvider) ObjectKind() ObjectKind {
	if p.file.Type == elf.ET_REL {
		return ObjectRelocatable
	}
	return ObjectExecutable
}

// RawSection returns the section's placement and its bytes as
// elf.Section.Data yields them, which is already decompressed.
func (p *ELFProvider) RawSection(name string) (Section, bool) {
	s, ok := p.sections[name]
	if !ok {
		return Section{}, false
	}
	data, err := s.Data()
	if err != nil {
		return Section{}, false
	}
	return Section{Address: s.Addr, Offset: s.Offset, Align: s.Addralign, Data: data}, true
}

// Section returns the section's decompressed bytes. elf.Section.Data
// already transparently decompresses SHF_COMPRESSED / zdebug sections, so
// this is identical to RawSection for ELF.
func (p *ELFProvider) Section(name string) (Section, bool) {
	return p.RawSection(name)
}

func (p *ELFProvider) HasSection(name string) bool {
	_, ok := p.sections[name]
	return ok
}

// SymbolTable builds a SortedSymbolTable from the ELF symbol table (falling
// back to the dynamic symbol table for stripped executables that only kept
// .dynsym), for use as C5's symbol-table fallback.
func (p *ELFProvider) SymbolTable() (*SortedSymbolTable, error) {
	syms, err := p.file.Symbols()
	if err != nil || len(syms) == 0 {
		syms, err = p.file.DynamicSymbols()
	}
	if err != nil {
		return nil, wrapError(ErrCorruptedData, err)
	}

	addrs := make([]uint64, 0, len(syms))
	names := make([]string, 0, len(syms))
	for _, s := range syms {
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		addrs = append(addrs, s.Value)
		names = append(names, s.Name)
	}
	return NewSortedSymbolTable(addrs, names), nil
}
