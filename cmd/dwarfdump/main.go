package main

import (
	"debug/elf"
	"debug/macho"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/ianlancetaylor/demangle"
	"github.com/spf13/pflag"

	dwarfsession "github.com/stealthrocket/dwarfsession"
	"github.com/stealthrocket/dwarfsession/symcache"
)

func main() {
	log.Default().SetOutput(os.Stderr)
	log.Default().SetFlags(0)

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type program struct {
	filePath   string
	listFuncs  bool
	listFiles  bool
	lookupAddr string
	addrOffset uint64
	demangle   bool
}

func (prog *program) run() error {
	provider, err := openProvider(prog.filePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", prog.filePath, err)
	}

	symtab, err := provider.symbolTable()
	if err != nil {
		return fmt.Errorf("reading symbol table: %w", err)
	}

	sess, err := dwarfsession.NewDebugSession(provider.provider, dwarfsession.SessionOptions{
		ObjectKind:    provider.objectKind(),
		AddressOffset: prog.addrOffset,
		SymbolTable:   symtab,
	})
	if err != nil {
		return fmt.Errorf("building debug session: %w", err)
	}

	if prog.listFiles {
		if err := prog.dumpFiles(sess); err != nil {
			return err
		}
	}

	if prog.listFuncs || prog.lookupAddr == "" {
		if err := prog.dumpFunctions(sess); err != nil {
			return err
		}
	}

	if prog.lookupAddr != "" {
		addr, err := strconv.ParseUint(trimHexPrefix(prog.lookupAddr), 16, 64)
		if err != nil {
			return fmt.Errorf("parsing --lookup address %q: %w", prog.lookupAddr, err)
		}
		if err := prog.lookup(sess, addr); err != nil {
			return err
		}
	}

	return nil
}

func (prog *program) dumpFunctions(sess *dwarfsession.DebugSession) error {
	it, err := sess.Functions()
	if err != nil {
		return err
	}
	for {
		fn, err := it.Next()
		if err != nil {
			fmt.Fprintf(os.Stderr, "function error: %v\n", err)
			continue
		}
		if fn == nil {
			return nil
		}
		fmt.Printf("%#x %#x %s\n", fn.Address, fn.Size, prog.displayName(fn.Name))
		for _, inlinee := range fn.Inlinees {
			fmt.Printf("  %#x %#x %s (inline)\n", inlinee.Address, inlinee.Size, prog.displayName(inlinee.Name))
		}
	}
}

func (prog *program) dumpFiles(sess *dwarfsession.DebugSession) error {
	it, err := sess.Files()
	if err != nil {
		return err
	}
	for {
		fe, err := it.Next()
		if err != nil {
			fmt.Fprintf(os.Stderr, "file error: %v\n", err)
			continue
		}
		if fe == nil {
			return nil
		}
		fmt.Printf("%s\n", fe.Info.Name)
	}
}

// lookup walks sess's functions once to find the one covering addr, then
// prints its name and the inline chain at that address the same way a
// symcache.Format would via Lookup. A real deployment builds the cache
// ahead of time; this demo builds it on the fly to exercise the symcache
// package end to end without requiring a pre-baked cache file on disk.
func (prog *program) lookup(sess *dwarfsession.DebugSession, addr uint64) error {
	it, err := sess.Functions()
	if err != nil {
		return err
	}

	for {
		fn, err := it.Next()
		if err != nil {
			fmt.Fprintf(os.Stderr, "function error: %v\n", err)
			continue
		}
		if fn == nil {
			fmt.Printf("%#x: no function found\n", addr)
			return nil
		}
		if addr < fn.Address || addr >= fn.Address+fn.Size {
			continue
		}

		chain := buildLookupChain(fn, addr)
		iter := chain.Lookup(addr)
		for {
			loc, ok := iter.Next()
			if !ok {
				return nil
			}
			name := ""
			if f, err := loc.Function(chain); err == nil && f != nil {
				name, _ = f.Name(chain)
			}
			line, _ := loc.LineNumber()
			fmt.Printf("%#x: %s:%d\n", addr, prog.demangleName(name), line)
		}
	}
}

// buildLookupChain assembles a one-range symcache.Format covering fn's
// address range so its pre-built Lookup logic, rather than ad hoc
// traversal, resolves the inline chain at addr. Only the immediately
// covering inlinee (if any) is included; this is a display aid for the
// demo CLI, not a general cache builder.
func buildLookupChain(fn *dwarfsession.Function, addr uint64) *symcache.Format {
	outerLine := uint32(0)
	for _, line := range fn.Lines {
		if line.Size != nil && addr >= line.Address && addr < line.Address+*line.Size {
			outerLine = uint32(line.Line)
		}
	}

	var inner *dwarfsession.Function
	for _, inlinee := range fn.Inlinees {
		if addr >= inlinee.Address && addr < inlinee.Address+inlinee.Size {
			inner = inlinee
			break
		}
	}

	strs := []string{fn.Name.Text}
	funcs := []symcache.Function{{NameIdx: 0}}
	outer := symcache.SourceLocation{Line: outerLine, FileIdx: noSymIdx, FunctionIdx: 0, InlinedIntoIdx: noSymIdx}

	// locs is ordered chain-only ancestors first, the range-aligned
	// (innermost) entry last, per symcache.Format's own convention.
	var locs []symcache.SourceLocation
	if inner != nil {
		innerLine := uint32(0)
		for _, line := range inner.Lines {
			if line.Size != nil && addr >= line.Address && addr < line.Address+*line.Size {
				innerLine = uint32(line.Line)
			}
		}
		strs = append(strs, inner.Name.Text)
		funcs = append(funcs, symcache.Function{NameIdx: 1})
		locs = []symcache.SourceLocation{
			outer,
			{Line: innerLine, FileIdx: noSymIdx, FunctionIdx: 1, InlinedIntoIdx: 0},
		}
	} else {
		locs = []symcache.SourceLocation{outer}
	}

	sourceLocationStart := uint32(len(locs) - 1)
	return symcache.New(fn.Address, []uint32{0, uint32(fn.Size)}, sourceLocationStart, locs, nil, funcs, strs)
}

const noSymIdx = 0xffffffff

func (prog *program) displayName(n dwarfsession.Name) string {
	return prog.demangleName(n.Text)
}

func (prog *program) demangleName(name string) string {
	if !prog.demangle {
		return name
	}
	return demangle.Filter(name)
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

// fileProvider pairs the generic SectionProvider a DebugSession consumes
// with the concrete ELF/Mach-O provider backing it, since ObjectKind and
// SymbolTable are container-specific and not part of the SectionProvider
// interface itself.
type fileProvider struct {
	provider dwarfsession.SectionProvider
	elf      *dwarfsession.ELFProvider
	macho    *dwarfsession.MachOProvider
}

func (p *fileProvider) symbolTable() (dwarfsession.SymbolTable, error) {
	switch {
	case p.elf != nil:
		return p.elf.SymbolTable()
	case p.macho != nil:
		return p.macho.SymbolTable()
	default:
		return nil, nil
	}
}

func (p *fileProvider) objectKind() dwarfsession.ObjectKind {
	switch {
	case p.elf != nil:
		return p.elf.ObjectKind()
	case p.macho != nil:
		return p.macho.ObjectKind()
	default:
		return dwarfsession.ObjectExecutable
	}
}

// openProvider sniffs the file's magic number and opens it as ELF or
// Mach-O, the same dispatch DataDog-datadog-agent's object loader performs
// before building a SectionProvider.
func openProvider(path string) (*fileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		f.Close()
		return nil, err
	}

	switch binary.LittleEndian.Uint32(magic[:]) {
	case 0x464c457f: // "\x7fELF"
		ef, err := elf.NewFile(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		p := dwarfsession.NewELFProvider(ef)
		return &fileProvider{provider: p, elf: p}, nil
	case 0xfeedface, 0xfeedfacf, 0xcafebabe, 0xbebafeca:
		mf, err := macho.NewFile(f)
		if err != nil {
			f.Close()
			return nil, err
		}
		p := dwarfsession.NewMachOProvider(mf)
		return &fileProvider{provider: p, macho: p}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("unrecognised object file format")
	}
}

func run() error {
	var prog program

	pflag.BoolVar(&prog.listFuncs, "functions", false, "List every reconstructed function.")
	pflag.BoolVar(&prog.listFiles, "files", false, "List every unit's declared source files.")
	pflag.StringVar(&prog.lookupAddr, "lookup", "", "Look up a single address (hex, e.g. 0x1000) and print its inline chain.")
	pflag.Uint64Var(&prog.addrOffset, "addr-offset", 0, "Base address to subtract from DWARF addresses (for PIE/relocatable objects).")
	pflag.BoolVar(&prog.demangle, "demangle", false, "Demangle C++/Rust symbol names for display.")
	pflag.Parse()

	args := pflag.Args()
	if len(args) != 1 {
		pflag.Usage()
		return fmt.Errorf("usage: dwarfdump [flags] </path/to/binary>")
	}
	prog.filePath = args[0]

	return prog.run()
}
