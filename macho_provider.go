package dwarfsession

import (
	"debug/macho"
	"strings"
)

// MachOProvider is a SectionProvider backed by a *macho.File. Mach-O
// carries DWARF sections in a "__DWARF" segment with section names
// prefixed "__debug_" rather than ELF's ".debug_".
type MachOProvider struct {
	file     *macho.File
	sections map[string]*macho.Section
}

func NewMachOProvider(f *macho.File) *MachOProvider {
	sections := make(map[string]*macho.Section)
	for _, s := range f.Sections {
		name := machoDwarfSectionName(s.Name)
		if name == "" {
			continue
		}
		sections[name] = s
	}
	return &MachOProvider{file: f, sections: sections}
}

func machoDwarfSectionName(name string) string {
	const prefix = "__debug_"
	if !strings.HasPrefix(name, prefix) {
		return ""
	}
	return "debug_" + name[len(prefix):]
}

func (p *MachOProvider) Endianity() Endian {
	if p.file.ByteOrder.String() == "BigEndian" {
		return BigEndian
	}
	return LittleEndian
}

func (p *MachOProvider) ObjectKind() ObjectKind {
	if p.file.Type == macho.TypeObj {
		return ObjectRelocatable
	}
	return ObjectExecutable
}

func (p *MachOProvider) RawSection(name string) (Section, bool) {
	s, ok := p.sections[name]
	if !ok {
		return Section{}, false
	}
	data, err := s.Data()
	if err != nil {
		return Section{}, false
	}
	return Section{Address: s.Addr, Offset: uint64(s.Offset), Align: uint64(1) << s.Align, Data: data}, true
}

func (p *MachOProvider) Section(name string) (Section, bool) {
	return p.RawSection(name)
}

func (p *MachOProvider) HasSection(name string) bool {
	_, ok := p.sections[name]
	return ok
}

// SymbolTable builds a SortedSymbolTable from the Mach-O symbol table's
// section-defined symbols (N_SECT), for use as C5's symbol-table fallback.
func (p *MachOProvider) SymbolTable() (*SortedSymbolTable, error) {
	if p.file.Symtab == nil {
		return NewSortedSymbolTable(nil, nil), nil
	}

	const nTypeMask = 0x0e
	const nSect = 0x0e

	addrs := make([]uint64, 0, len(p.file.Symtab.Syms))
	names := make([]string, 0, len(p.file.Symtab.Syms))
	for _, s := range p.file.Symtab.Syms {
		if s.Type&nTypeMask != nSect {
			continue
		}
		if s.Name == "" {
			continue
		}
		addrs = append(addrs, s.Value)
		names = append(names, s.Name)
	}
	return NewSortedSymbolTable(addrs, names), nil
}
