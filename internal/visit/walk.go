package visit

import (
	"fmt"

	"github.com/roach88/chainql/internal/queryir"
)

// WalkModel is the default model walk: main from clause, body clauses in
// stored order, select clause.
func WalkModel(ctx *Context, m *queryir.Model) error {
	if err := ctx.v.VisitMainFromClause(ctx, m.MainFrom()); err != nil {
		return err
	}
	if err := WalkBodyClauses(ctx, m); err != nil {
		return err
	}
	if m.Select() == nil {
		return &UsageError{Op: "WalkModel", Message: "model has no select clause"}
	}
	return ctx.v.VisitSelectClause(ctx, m.Select())
}

// WalkBodyClauses visits m's body clauses with BodyClauseIndex available.
func WalkBodyClauses(ctx *Context, m *queryir.Model) error {
	return m.BodyClauses().Iterate(func(cur *queryir.Cursor, c queryir.BodyClause) error {
		defer ctx.enter(&ctx.body, cur)()
		return visitBodyClause(ctx, c)
	})
}

func visitBodyClause(ctx *Context, c queryir.BodyClause) error {
	switch c := c.(type) {
	case *queryir.AdditionalFromClause:
		return ctx.v.VisitAdditionalFromClause(ctx, c)
	case *queryir.SubQueryFromClause:
		return ctx.v.VisitSubQueryFromClause(ctx, c)
	case *queryir.WhereClause:
		return ctx.v.VisitWhereClause(ctx, c)
	case *queryir.OrderByClause:
		return ctx.v.VisitOrderByClause(ctx, c)
	case *queryir.GroupJoinClause:
		return ctx.v.VisitGroupJoinClause(ctx, c)
	default:
		return fmt.Errorf("visit: unknown body clause %T", c)
	}
}

// WalkJoins visits from's join clauses with JoinIndex available.
func WalkJoins(ctx *Context, from queryir.FromClause) error {
	return from.Joins().Iterate(func(cur *queryir.Cursor, j *queryir.JoinClause) error {
		defer ctx.enter(&ctx.joins, cur)()
		return ctx.v.VisitJoinClause(ctx, j)
	})
}

// WalkOrderings visits c's orderings with OrderingIndex available.
func WalkOrderings(ctx *Context, c *queryir.OrderByClause) error {
	return c.Orderings().Iterate(func(cur *queryir.Cursor, o *queryir.Ordering) error {
		defer ctx.enter(&ctx.orderings, cur)()
		return ctx.v.VisitOrdering(ctx, o)
	})
}

// WalkResultModifiers visits c's result modifiers with
// ResultModifierIndex available.
func WalkResultModifiers(ctx *Context, c *queryir.SelectClause) error {
	return c.ResultModifiers().Iterate(func(cur *queryir.Cursor, r *queryir.ResultModifier) error {
		defer ctx.enter(&ctx.modifiers, cur)()
		return ctx.v.VisitResultModifier(ctx, r)
	})
}
