package queryir

import (
	"fmt"

	"github.com/roach88/chainql/internal/expr"
)

// ClauseID is a handle into a model's clause arena.
type ClauseID int

// NoClause is the Previous of a main from clause.
const NoClause ClauseID = -1

// Clause is a node of a query model.
//
// This is a sealed interface: only types in this package implement it.
// Supported clauses:
//   - *MainFromClause
//   - *AdditionalFromClause
//   - *SubQueryFromClause
//   - *WhereClause
//   - *OrderByClause
//   - *JoinClause
//   - *GroupJoinClause
//   - *SelectClause
type Clause interface {
	ID() ClauseID
	// Previous is the clause whose output this clause consumes, or
	// NoClause for the main from clause. It is fixed at construction.
	Previous() ClauseID
	clauseNode()
}

// BodyClause is a clause that may appear between the main from clause and
// the select clause.
type BodyClause interface {
	Clause
	bodyClause()
}

// FromClause is a clause that introduces query items and owns the join
// clauses applied to them.
type FromClause interface {
	Clause
	expr.QuerySource
	Joins() *Collection[*JoinClause]
}

type link struct {
	id   ClauseID
	prev ClauseID
}

func (l link) ID() ClauseID       { return l.id }
func (l link) Previous() ClauseID { return l.prev }

type item struct {
	name string
	typ  *expr.Type
}

func newItem(name string, typ *expr.Type) item { return item{name: name, typ: typ} }

func (i item) ItemName() string     { return i.name }
func (i item) ItemType() *expr.Type { return i.typ }
func (i item) header() string       { return i.typ.String() + " " + i.name }

// MainFromClause is the source clause of a model. FromExpr is either an
// *expr.ConstantSource or an *expr.SubQuery.
type MainFromClause struct {
	link
	item
	FromExpr expr.Expr
	joins    *Collection[*JoinClause]
}

// Joins returns the join clauses applied to this clause's items.
func (c *MainFromClause) Joins() *Collection[*JoinClause] { return c.joins }

// AdditionalFromClause draws a second sequence from each current element.
// FromExpr is the resolved collection selector and Projection the resolved
// result selector consumed with it.
type AdditionalFromClause struct {
	link
	item
	FromExpr   expr.Expr
	Projection expr.Expr
	joins      *Collection[*JoinClause]
}

// Joins returns the join clauses applied to this clause's items.
func (c *AdditionalFromClause) Joins() *Collection[*JoinClause] { return c.joins }

// SubQueryFromClause is an additional source whose collection is itself a
// query. The clause owns SubModel.
type SubQueryFromClause struct {
	link
	item
	SubModel   *Model
	Projection expr.Expr
	joins      *Collection[*JoinClause]
}

// Joins returns the join clauses applied to this clause's items.
func (c *SubQueryFromClause) Joins() *Collection[*JoinClause] { return c.joins }

// WhereClause filters the current elements.
type WhereClause struct {
	link
	Predicate expr.Expr
}

// Ordering is one key of an order by clause.
type Ordering struct {
	Expr      expr.Expr
	Direction expr.Direction
}

// NewOrdering returns an ordering on e.
func NewOrdering(e expr.Expr, dir expr.Direction) (*Ordering, error) {
	if e == nil {
		return nil, required("NewOrdering", "expression")
	}
	return &Ordering{Expr: e, Direction: dir}, nil
}

// OrderByClause is an ordering group: one OrderBy followed by any number
// of ThenBy keys.
type OrderByClause struct {
	link
	orderings *Collection[*Ordering]
}

// Orderings returns the group's keys in order.
func (c *OrderByClause) Orderings() *Collection[*Ordering] { return c.orderings }

// AddOrdering appends a continuation key.
func (c *OrderByClause) AddOrdering(o *Ordering) error {
	if o == nil {
		return required("AddOrdering", "ordering")
	}
	c.orderings.Append(o)
	return nil
}

// JoinClause is an inner join owned by a from clause. OuterKey is resolved
// against the outer items, InnerKey against the join's own item.
type JoinClause struct {
	link
	item
	Inner    *expr.ConstantSource
	OuterKey expr.Expr
	InnerKey expr.Expr
}

// GroupJoinClause correlates each current element with the group of inner
// items matching it. Its item is the group.
type GroupJoinClause struct {
	link
	item
	Join *JoinClause
}

// ResultModifier is an operator applied to the projected sequence.
type ResultModifier struct {
	Kind  expr.ModifierKind
	Count int64
}

func (r *ResultModifier) String() string {
	switch r.Kind {
	case expr.ModTake, expr.ModSkip:
		return fmt.Sprintf("%s(%d)", r.Kind, r.Count)
	default:
		return r.Kind.String() + "()"
	}
}

// SelectClause is the terminal projection of a model.
type SelectClause struct {
	link
	Selector  expr.Expr
	Distinct  bool
	modifiers *Collection[*ResultModifier]
}

// ResultModifiers returns the operators applied after projection, in order.
func (c *SelectClause) ResultModifiers() *Collection[*ResultModifier] { return c.modifiers }

// AddResultModifier appends a result operator.
func (c *SelectClause) AddResultModifier(r *ResultModifier) error {
	if r == nil {
		return required("AddResultModifier", "result modifier")
	}
	c.modifiers.Append(r)
	return nil
}

func (*MainFromClause) clauseNode()       {}
func (*AdditionalFromClause) clauseNode() {}
func (*SubQueryFromClause) clauseNode()   {}
func (*WhereClause) clauseNode()          {}
func (*OrderByClause) clauseNode()        {}
func (*JoinClause) clauseNode()           {}
func (*GroupJoinClause) clauseNode()      {}
func (*SelectClause) clauseNode()         {}

func (*AdditionalFromClause) bodyClause() {}
func (*SubQueryFromClause) bodyClause()   {}
func (*WhereClause) bodyClause()          {}
func (*OrderByClause) bodyClause()        {}
func (*GroupJoinClause) bodyClause()      {}
