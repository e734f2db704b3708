package visit

import "github.com/roach88/chainql/internal/queryir"

// UsageError reports a traversal API misused, such as reading a position
// outside its window.
type UsageError = queryir.UsageError

// Context is the state of one model walk.
type Context struct {
	v      Visitor
	model  *queryir.Model
	parent *Context

	body      *queryir.Cursor
	joins     *queryir.Cursor
	orderings *queryir.Cursor
	modifiers *queryir.Cursor
}

func newContext(v Visitor, m *queryir.Model, parent *Context) *Context {
	return &Context{v: v, model: m, parent: parent}
}

// Model returns the model being walked.
func (c *Context) Model() *queryir.Model { return c.model }

// Parent returns the context of the enclosing model, or nil at the top.
func (c *Context) Parent() *Context { return c.parent }

// Depth returns 0 for the top-level model and n for a sub-query nested n
// levels deep.
func (c *Context) Depth() int {
	d := 0
	for p := c.parent; p != nil; p = p.parent {
		d++
	}
	return d
}

// WalkSubQuery walks sub with the same visitor and a fresh child context.
// Positions of the current walk are not visible from the child.
func (c *Context) WalkSubQuery(sub *queryir.Model) error {
	if sub == nil {
		return &UsageError{Op: "WalkSubQuery", Message: "model is required"}
	}
	return c.v.VisitModel(newContext(c.v, sub, c), sub)
}

// BodyClauseIndex returns the position of the body clause under visit.
func (c *Context) BodyClauseIndex() (int, error) {
	return index(c.body, "BodyClauseIndex", "body clauses")
}

// JoinIndex returns the position of the join clause under visit within
// its from clause.
func (c *Context) JoinIndex() (int, error) {
	return index(c.joins, "JoinIndex", "join clauses")
}

// OrderingIndex returns the position of the ordering under visit within
// its order by clause.
func (c *Context) OrderingIndex() (int, error) {
	return index(c.orderings, "OrderingIndex", "orderings")
}

// ResultModifierIndex returns the position of the result modifier under
// visit.
func (c *Context) ResultModifierIndex() (int, error) {
	return index(c.modifiers, "ResultModifierIndex", "result modifiers")
}

func index(cur *queryir.Cursor, op, what string) (int, error) {
	if i, ok := cur.Index(); ok {
		return i, nil
	}
	return -1, &UsageError{Op: op, Message: "can only be called while visiting " + what}
}

// enter opens a position window on slot and returns the function that
// closes it again.
func (c *Context) enter(slot **queryir.Cursor, cur *queryir.Cursor) func() {
	prev := *slot
	*slot = cur
	return func() { *slot = prev }
}
