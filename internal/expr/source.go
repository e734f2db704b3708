package expr

import (
	"fmt"

	"github.com/roach88/chainql/internal/ir"
)

// ConstantSource is a plain reference to a collection: a named table, or
// an inline constant array. It is the operand of Source, Join and
// GroupJoin operations and may appear as the body of an AdditionalSource
// function.
type ConstantSource struct {
	Name  string
	Type  *Type
	Value ir.IRArray // nil for named collections
}

// NewConstantSource validates that typ is an enumerable collection type.
func NewConstantSource(name string, typ *Type, value ir.IRArray) (*ConstantSource, error) {
	if !typ.IsSequence() {
		return nil, &TypeMismatchError{
			Argument: "source " + name,
			Got:      typ,
			Want:     "an enumerable collection type",
		}
	}
	return &ConstantSource{Name: name, Type: typ, Value: value}, nil
}

// ElementType returns the type of the items the source yields.
func (s *ConstantSource) ElementType() *Type {
	return s.Type.Elem
}

// TypeMismatchError reports a value whose type is not the one an operation
// requires. Node and Root are set when the error comes from parsing a
// chain.
type TypeMismatchError struct {
	Argument string
	Got      *Type
	Want     string
	Node     Expr // offending operation
	Root     *Op  // root of the whole input
}

func (e *TypeMismatchError) Error() string {
	msg := fmt.Sprintf("type mismatch: %s has type %s when %s was expected", e.Argument, e.Got, e.Want)
	if e.Node != nil {
		msg += " (at " + Format(e.Node)
		if e.Root != nil && e.Node != Expr(e.Root) {
			msg += " in " + Format(e.Root)
		}
		msg += ")"
	}
	return msg
}
