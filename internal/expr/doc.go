// Package expr defines the input boundary of chainql: resolved types,
// function-body expressions and operation-chain nodes.
//
// An operation chain is a linked list of *Op values, last step first:
//
//	cooks := expr.From(s, cooksSource).
//		Where(expr.NewLambda(s, expr.Bin(expr.OpGt, expr.Field(s, "Age"), expr.Const(ir.IRInt(5))))).
//		Select(expr.NewLambda(s, s))
//
// Ops are themselves expressions, so a chain may appear as the body of a
// function; the parser turns such operands into sub-queries.
//
// Identity matters. Parameters are compared by pointer, never by name, so
// a nested chain may reuse an outer name without ambiguity. Substitute and
// Rewrite rely on this and never mutate their input tree.
package expr
