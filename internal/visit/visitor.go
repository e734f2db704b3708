// Package visit walks query models.
//
// A Visitor has one method per clause kind. Embed Base to get the default
// walk and override only the methods you need:
//
//	type whereCounter struct {
//		visit.Base
//		n int
//	}
//
//	func (w *whereCounter) VisitWhereClause(ctx *visit.Context, c *queryir.WhereClause) error {
//		w.n++
//		return nil
//	}
//
//	err := visit.Walk(&whereCounter{}, model)
//
// Traversal state lives in the *Context passed to every call, never in
// the visitor, so one visitor value can walk several models or recurse
// into sub-queries with Context.WalkSubQuery.
//
// Visitors may insert and remove body clauses, joins, orderings and result
// modifiers while they are being walked. Removing the element under visit
// makes the element now at its position the next one visited.
package visit

import "github.com/roach88/chainql/internal/queryir"

// Visitor receives the clauses of a model.
type Visitor interface {
	VisitModel(ctx *Context, m *queryir.Model) error
	VisitMainFromClause(ctx *Context, c *queryir.MainFromClause) error
	VisitAdditionalFromClause(ctx *Context, c *queryir.AdditionalFromClause) error
	VisitSubQueryFromClause(ctx *Context, c *queryir.SubQueryFromClause) error
	VisitJoinClause(ctx *Context, c *queryir.JoinClause) error
	VisitGroupJoinClause(ctx *Context, c *queryir.GroupJoinClause) error
	VisitWhereClause(ctx *Context, c *queryir.WhereClause) error
	VisitOrderByClause(ctx *Context, c *queryir.OrderByClause) error
	VisitOrdering(ctx *Context, o *queryir.Ordering) error
	VisitSelectClause(ctx *Context, c *queryir.SelectClause) error
	VisitResultModifier(ctx *Context, r *queryir.ResultModifier) error
}

// Walk visits m with v, starting at VisitModel.
func Walk(v Visitor, m *queryir.Model) error {
	if v == nil || m == nil {
		return &UsageError{Op: "Walk", Message: "visitor and model are required"}
	}
	return v.VisitModel(newContext(v, m, nil), m)
}

// Base implements the default walk. Its methods dispatch through the
// context's visitor, so overrides in an embedding type take effect.
type Base struct{}

// VisitModel visits the main from clause, the body clauses in order and
// the select clause.
func (Base) VisitModel(ctx *Context, m *queryir.Model) error {
	return WalkModel(ctx, m)
}

// VisitMainFromClause visits the clause's joins.
func (Base) VisitMainFromClause(ctx *Context, c *queryir.MainFromClause) error {
	return WalkJoins(ctx, c)
}

// VisitAdditionalFromClause visits the clause's joins.
func (Base) VisitAdditionalFromClause(ctx *Context, c *queryir.AdditionalFromClause) error {
	return WalkJoins(ctx, c)
}

// VisitSubQueryFromClause visits the clause's joins. It does not enter the
// sub-query; call ctx.WalkSubQuery for that.
func (Base) VisitSubQueryFromClause(ctx *Context, c *queryir.SubQueryFromClause) error {
	return WalkJoins(ctx, c)
}

func (Base) VisitJoinClause(*Context, *queryir.JoinClause) error { return nil }

// VisitGroupJoinClause visits the wrapped join clause. JoinIndex is not
// available during that call.
func (Base) VisitGroupJoinClause(ctx *Context, c *queryir.GroupJoinClause) error {
	return ctx.v.VisitJoinClause(ctx, c.Join)
}

func (Base) VisitWhereClause(*Context, *queryir.WhereClause) error { return nil }

// VisitOrderByClause visits the clause's orderings.
func (Base) VisitOrderByClause(ctx *Context, c *queryir.OrderByClause) error {
	return WalkOrderings(ctx, c)
}

func (Base) VisitOrdering(*Context, *queryir.Ordering) error { return nil }

// VisitSelectClause visits the clause's result modifiers.
func (Base) VisitSelectClause(ctx *Context, c *queryir.SelectClause) error {
	return WalkResultModifiers(ctx, c)
}

func (Base) VisitResultModifier(*Context, *queryir.ResultModifier) error { return nil }

var _ Visitor = Base{}
