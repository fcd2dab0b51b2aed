package dwarfsession

import "fmt"

// ErrorKind identifies the class of failure behind an Error, mirroring the
// taxonomy a DWARF consumer needs to tell a recoverable-per-item problem
// (already swallowed before the caller sees it) apart from a structural one.
type ErrorKind int

const (
	// ErrCorruptedData wraps an underlying debug/dwarf (or container) error.
	ErrCorruptedData ErrorKind = iota
	// ErrInvalidUnitRef means a cross-unit reference pointed outside the
	// known set of compilation units.
	ErrInvalidUnitRef
	// ErrInvalidFileRef means a line-program file index had no entry.
	ErrInvalidFileRef
	// ErrUnexpectedInline means an inlined_subroutine DIE was encountered
	// with no enclosing function on the walk stack.
	ErrUnexpectedInline
	// ErrInvertedFunctionRange means a function's high_pc was below its low_pc.
	ErrInvertedFunctionRange
)

func (k ErrorKind) String() string {
	switch k {
	case ErrCorruptedData:
		return "corrupted dwarf debug data"
	case ErrInvalidUnitRef:
		return "invalid compilation unit reference"
	case ErrInvalidFileRef:
		return "invalid file reference"
	case ErrUnexpectedInline:
		return "unexpected inline function without parent"
	case ErrInvertedFunctionRange:
		return "function with inverted address range"
	default:
		return "unknown dwarf error"
	}
}

// Error is the error type returned by this package. It carries a Kind that
// callers can switch on without string matching, and an optional wrapped
// cause reachable through errors.Unwrap/errors.Is/errors.As.
type Error struct {
	Kind   ErrorKind
	Offset uint64 // the offending offset/index for ErrInvalidUnitRef/ErrInvalidFileRef, the low_pc for ErrInvertedFunctionRange, else 0
	cause  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrInvalidUnitRef:
		return fmt.Sprintf("compilation unit for offset %d does not exist", e.Offset)
	case ErrInvalidFileRef:
		return fmt.Sprintf("referenced file %d does not exist", e.Offset)
	}
	if e.cause != nil {
		return fmt.Sprintf("dwarf: %s: %s", e.Kind, e.cause)
	}
	return "dwarf: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.cause }

func newError(kind ErrorKind) error {
	return &Error{Kind: kind}
}

func newErrorf(kind ErrorKind, offset uint64) error {
	return &Error{Kind: kind, Offset: offset}
}

func wrapError(kind ErrorKind, cause error) error {
	if cause == nil {
		return newError(kind)
	}
	return &Error{Kind: kind, cause: cause}
}
