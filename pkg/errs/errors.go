// Package errs defines the generator's structured error taxonomy. Errors
// are values (kind + source position + message) whose Error method renders
// them as one line; the driver adds stage context with github.com/pkg/errors
// at call boundaries, mirroring db47h/ngaro's vm package where vm.Error
// carries structured fields.
package errs

import "fmt"

// Position is a source offset an AST node or token carries. The zero value
// means "position unknown" (used by errors raised on synthetic nodes, e.g.
// the driver's trailing RETURN).
type Position struct {
	Line, Column int
}

func (p Position) String() string {
	if p.Line == 0 {
		return "?"
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Kind identifies which member of the taxonomy an Error belongs to.
type Kind uint8

const (
	IndexIsNil Kind = iota
	IndexIsNaN
	ConstantOverflow
	TooManyLocals
	TooManyVariablesInAssignment
	StackOverflow
	CompileError
	AllocationFailure
)

func (k Kind) String() string {
	switch k {
	case IndexIsNil:
		return "index is nil"
	case IndexIsNaN:
		return "index is NaN"
	case ConstantOverflow:
		return "constant overflow"
	case TooManyLocals:
		return "too many locals"
	case TooManyVariablesInAssignment:
		return "too many variables in assignment"
	case StackOverflow:
		return "stack overflow"
	case CompileError:
		return "compile error"
	case AllocationFailure:
		return "allocation failure"
	default:
		return "unknown error"
	}
}

// Error is the taxonomy's single carrier type: a Kind, a Position, and a
// human-readable detail message. The generator never recovers from one: any
// Error aborts the current compilation and discards partial output.
type Error struct {
	Kind    Kind
	Pos     Position
	Message string
}

func New(kind Kind, pos Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Pos)
}
