package parser

import (
	"errors"
	"fmt"

	"github.com/roach88/chainql/internal/expr"
)

// StructureError reports an operation chain the parser cannot turn into a
// query model. It is always fatal to the whole parse, including when it is
// raised inside a sub-query.
type StructureError struct {
	// Code identifies the error category.
	Code StructureErrorCode

	// Message is a human-readable description.
	Message string

	// Node is the offending operation or sub-expression.
	Node expr.Expr

	// Root is the root of the whole input, not of the sub-query being
	// parsed when the error was raised.
	Root *expr.Op
}

// StructureErrorCode categorizes structure errors.
type StructureErrorCode string

const (
	// ErrCodeMalformedChain indicates a chain that does not start with a
	// source, contains a cycle, or has steps after a result operator.
	ErrCodeMalformedChain StructureErrorCode = "MALFORMED_CHAIN"

	// ErrCodeUnsupportedKind indicates an operation kind the builder
	// cannot place in a query body.
	ErrCodeUnsupportedKind StructureErrorCode = "UNSUPPORTED_KIND"

	// ErrCodeMissingProjection indicates an additional source with no
	// projection left to consume.
	ErrCodeMissingProjection StructureErrorCode = "MISSING_PROJECTION"

	// ErrCodeNoTerminalProjection indicates a chain without any
	// projection for its select clause.
	ErrCodeNoTerminalProjection StructureErrorCode = "NO_TERMINAL_PROJECTION"

	// ErrCodeOrderingContinuation indicates a ThenBy with no open
	// ordering group.
	ErrCodeOrderingContinuation StructureErrorCode = "ORDERING_CONTINUATION"

	// ErrCodeUnresolvedReference indicates a parameter that names no
	// clause in scope.
	ErrCodeUnresolvedReference StructureErrorCode = "UNRESOLVED_REFERENCE"

	// ErrCodeMissingOperand indicates an operation without a function,
	// item or source it requires.
	ErrCodeMissingOperand StructureErrorCode = "MISSING_OPERAND"
)

// Error implements the error interface.
func (e *StructureError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Node != nil {
		msg += fmt.Sprintf(" (at %s", expr.Format(e.Node))
		if e.Root != nil && e.Node != expr.Expr(e.Root) {
			msg += fmt.Sprintf(" in %s", expr.Format(e.Root))
		}
		msg += ")"
	}
	return msg
}

// IsStructureError returns true if err is or wraps a *StructureError.
func IsStructureError(err error) bool {
	var se *StructureError
	return errors.As(err, &se)
}

// HasCode returns true if err is or wraps a *StructureError with code.
func HasCode(err error, code StructureErrorCode) bool {
	var se *StructureError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
