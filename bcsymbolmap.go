package dwarfsession

// BitcodeSymbolMap is an optional, consumed collaborator that replaces
// obfuscated names and paths produced by bitcode-based builds (notably
// Apple's bitcode symbol maps) with their real values. It is identity-like
// by contract: ResolveOpt returns the replacement for raw, or false if raw
// is not present in the map.
//
// Name demangling and the map's own file format are out of scope for this
// package (see spec.md §1); only the resolver interface is consumed.
type BitcodeSymbolMap interface {
	ResolveOpt(raw []byte) (string, bool)
}

// NopBitcodeSymbolMap is the identity BitcodeSymbolMap: it never resolves
// anything, matching symbolic-debuginfo's non-macho stub implementation of
// BcSymbolMap.
type NopBitcodeSymbolMap struct{}

func (NopBitcodeSymbolMap) ResolveOpt([]byte) (string, bool) { return "", false }

// resolveByteName returns the bcsymbolmap replacement for s if present,
// otherwise s unchanged.
func resolveByteName(m BitcodeSymbolMap, s []byte) []byte {
	if m == nil || len(s) == 0 {
		return s
	}
	if resolved, ok := m.ResolveOpt(s); ok {
		return []byte(resolved)
	}
	return s
}

// resolveStringName is resolveByteName for an already-decoded string.
func resolveStringName(m BitcodeSymbolMap, s string) string {
	if m == nil || s == "" {
		return s
	}
	if resolved, ok := m.ResolveOpt([]byte(s)); ok {
		return resolved
	}
	return s
}
