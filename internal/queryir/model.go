package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/chainql/internal/expr"
)

// Model is a parsed query: one main from clause, an ordered body and one
// select clause.
//
// The model owns every clause it creates; clauses refer to each other
// through ClauseID handles into the model's arena. Clauses are only
// created through the New* methods so that every handle is valid.
type Model struct {
	arena    []Clause
	mainFrom *MainFromClause
	body     *Collection[BodyClause]
	sel      *SelectClause
}

// NewModel starts a model whose main from clause iterates fromExpr, naming
// its items itemName. fromExpr must be an *expr.ConstantSource or an
// *expr.SubQuery.
func NewModel(itemName string, itemType *expr.Type, fromExpr expr.Expr) (*Model, error) {
	if err := checkItem("NewModel", itemName, itemType); err != nil {
		return nil, err
	}
	switch fromExpr.(type) {
	case *expr.ConstantSource, *expr.SubQuery:
	case nil:
		return nil, required("NewModel", "from expression")
	default:
		return nil, &UsageError{Op: "NewModel", Message: fmt.Sprintf("from expression must be a source or sub-query, got %T", fromExpr)}
	}

	m := &Model{body: NewCollection[BodyClause]()}
	m.mainFrom = &MainFromClause{
		link:     m.nextLink(NoClause),
		item:     newItem(itemName, itemType),
		FromExpr: fromExpr,
		joins:    NewCollection[*JoinClause](),
	}
	m.arena = append(m.arena, m.mainFrom)
	return m, nil
}

// MainFrom returns the source clause.
func (m *Model) MainFrom() *MainFromClause { return m.mainFrom }

// BodyClauses returns the body in order. The collection may be mutated
// directly; prefer AddBodyClause and InsertBodyClause, which check
// ownership.
func (m *Model) BodyClauses() *Collection[BodyClause] { return m.body }

// Select returns the terminal clause, or nil while the model is being
// built.
func (m *Model) Select() *SelectClause { return m.sel }

// Clause looks up a clause by handle.
func (m *Model) Clause(id ClauseID) (Clause, bool) {
	if id < 0 || int(id) >= len(m.arena) {
		return nil, false
	}
	return m.arena[id], true
}

// Chain returns the clauses from id back to the main from clause,
// following Previous handles. It fails if a handle dangles or the chain
// does not reach the main from clause.
func (m *Model) Chain(id ClauseID) ([]Clause, error) {
	var chain []Clause
	for cur := id; cur != NoClause; {
		c, ok := m.Clause(cur)
		if !ok {
			return nil, fmt.Errorf("clause %d: dangling previous handle %d", id, cur)
		}
		chain = append(chain, c)
		if len(chain) > len(m.arena) {
			return nil, fmt.Errorf("clause %d: previous chain does not terminate", id)
		}
		cur = c.Previous()
	}
	if len(chain) == 0 || chain[len(chain)-1] != Clause(m.mainFrom) {
		return nil, fmt.Errorf("clause %d: previous chain does not reach the main from clause", id)
	}
	return chain, nil
}

// NewAdditionalFromClause creates an additional from clause consuming prev.
// The caller sets Projection once it is resolved.
func (m *Model) NewAdditionalFromClause(prev ClauseID, itemName string, itemType *expr.Type, fromExpr expr.Expr) (*AdditionalFromClause, error) {
	const op = "NewAdditionalFromClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if err := checkItem(op, itemName, itemType); err != nil {
		return nil, err
	}
	if fromExpr == nil {
		return nil, required(op, "from expression")
	}
	c := &AdditionalFromClause{
		link:     m.nextLink(prev),
		item:     newItem(itemName, itemType),
		FromExpr: fromExpr,
		joins:    NewCollection[*JoinClause](),
	}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewSubQueryFromClause creates a from clause over sub, which the clause
// takes ownership of.
func (m *Model) NewSubQueryFromClause(prev ClauseID, itemName string, itemType *expr.Type, sub *Model) (*SubQueryFromClause, error) {
	const op = "NewSubQueryFromClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if err := checkItem(op, itemName, itemType); err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, required(op, "sub-query model")
	}
	if sub == m {
		return nil, &UsageError{Op: op, Message: "a model cannot own itself"}
	}
	c := &SubQueryFromClause{
		link:     m.nextLink(prev),
		item:     newItem(itemName, itemType),
		SubModel: sub,
		joins:    NewCollection[*JoinClause](),
	}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewWhereClause creates a filter consuming prev.
func (m *Model) NewWhereClause(prev ClauseID, predicate expr.Expr) (*WhereClause, error) {
	const op = "NewWhereClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if predicate == nil {
		return nil, required(op, "predicate")
	}
	c := &WhereClause{link: m.nextLink(prev), Predicate: predicate}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewOrderByClause opens an ordering group whose first key is first.
func (m *Model) NewOrderByClause(prev ClauseID, first *Ordering) (*OrderByClause, error) {
	const op = "NewOrderByClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if first == nil {
		return nil, required(op, "first ordering")
	}
	c := &OrderByClause{link: m.nextLink(prev), orderings: NewCollection(first)}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewJoinClause creates a join of inner consuming prev. The caller sets
// OuterKey and InnerKey once they are resolved and attaches the clause to
// a from clause's Joins.
func (m *Model) NewJoinClause(prev ClauseID, itemName string, itemType *expr.Type, inner *expr.ConstantSource) (*JoinClause, error) {
	const op = "NewJoinClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if err := checkItem(op, itemName, itemType); err != nil {
		return nil, err
	}
	if inner == nil {
		return nil, required(op, "inner sequence")
	}
	c := &JoinClause{link: m.nextLink(prev), item: newItem(itemName, itemType), Inner: inner}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewGroupJoinClause wraps join, naming each group intoName.
func (m *Model) NewGroupJoinClause(prev ClauseID, intoName string, intoType *expr.Type, join *JoinClause) (*GroupJoinClause, error) {
	const op = "NewGroupJoinClause"
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if err := checkItem(op, intoName, intoType); err != nil {
		return nil, err
	}
	if join == nil {
		return nil, required(op, "join clause")
	}
	c := &GroupJoinClause{link: m.nextLink(prev), item: newItem(intoName, intoType), Join: join}
	m.arena = append(m.arena, c)
	return c, nil
}

// NewSelectClause creates the terminal clause. A model has exactly one.
func (m *Model) NewSelectClause(prev ClauseID, selector expr.Expr, distinct bool) (*SelectClause, error) {
	const op = "NewSelectClause"
	if m.sel != nil {
		return nil, &UsageError{Op: op, Message: "model already has a select clause"}
	}
	if err := m.checkPrev(op, prev); err != nil {
		return nil, err
	}
	if selector == nil {
		return nil, required(op, "selector")
	}
	m.sel = &SelectClause{
		link:      m.nextLink(prev),
		Selector:  selector,
		Distinct:  distinct,
		modifiers: NewCollection[*ResultModifier](),
	}
	m.arena = append(m.arena, m.sel)
	return m.sel, nil
}

// AddBodyClause appends c to the body.
func (m *Model) AddBodyClause(c BodyClause) error {
	return m.InsertBodyClause(m.body.Len(), c)
}

// InsertBodyClause places c at position i of the body. c must have been
// created by m and must not already be in the body.
func (m *Model) InsertBodyClause(i int, c BodyClause) error {
	const op = "InsertBodyClause"
	if c == nil {
		return required(op, "clause")
	}
	if owned, ok := m.Clause(c.ID()); !ok || owned != Clause(c) {
		return &UsageError{Op: op, Message: fmt.Sprintf("clause %d does not belong to this model", c.ID())}
	}
	if m.body.Contains(c) {
		return &UsageError{Op: op, Message: fmt.Sprintf("clause %d is already in the body", c.ID())}
	}
	return m.body.Insert(i, c)
}

// RemoveBodyClause removes c from the body and reports whether it was
// there. The clause stays in the arena so handles to it remain valid.
func (m *Model) RemoveBodyClause(c BodyClause) bool {
	return m.body.Remove(c)
}

// String renders the model in query-expression syntax, e.g.
//
//	from Cook s in Cooks where ([s].Age > 5) orderby [s].Name asc select [s]
func (m *Model) String() string {
	var parts []string
	parts = append(parts, fromText(m.mainFrom.header(), expr.Format(m.mainFrom.FromExpr), m.mainFrom.joins))
	for _, c := range m.body.Items() {
		parts = append(parts, bodyText(c))
	}
	if m.sel != nil {
		parts = append(parts, selectText(m.sel))
	}
	return strings.Join(parts, " ")
}

func bodyText(c BodyClause) string {
	switch c := c.(type) {
	case *AdditionalFromClause:
		return fromText(c.header(), expr.Format(c.FromExpr), c.joins)
	case *SubQueryFromClause:
		return fromText(c.header(), "{"+c.SubModel.String()+"}", c.joins)
	case *WhereClause:
		return "where " + expr.Format(c.Predicate)
	case *OrderByClause:
		keys := make([]string, 0, c.orderings.Len())
		for _, o := range c.orderings.Items() {
			keys = append(keys, expr.Format(o.Expr)+" "+o.Direction.String())
		}
		return "orderby " + strings.Join(keys, ", ")
	case *GroupJoinClause:
		return joinText(c.Join) + " into " + c.header()
	default:
		return fmt.Sprintf("<%T>", c)
	}
}

func fromText(header, source string, joins *Collection[*JoinClause]) string {
	s := "from " + header + " in " + source
	for _, j := range joins.Items() {
		s += " " + joinText(j)
	}
	return s
}

func joinText(j *JoinClause) string {
	return fmt.Sprintf("join %s in %s on %s equals %s",
		j.header(), expr.Format(j.Inner), expr.Format(j.OuterKey), expr.Format(j.InnerKey))
}

func selectText(s *SelectClause) string {
	text := "select "
	if s.Distinct {
		text += "distinct "
	}
	text += expr.Format(s.Selector)
	for _, r := range s.modifiers.Items() {
		text += " => " + r.String()
	}
	return text
}

func (m *Model) nextLink(prev ClauseID) link {
	return link{id: ClauseID(len(m.arena)), prev: prev}
}

func (m *Model) checkPrev(op string, prev ClauseID) error {
	if _, ok := m.Clause(prev); !ok {
		return &UsageError{Op: op, Message: fmt.Sprintf("previous clause %d is not part of this model", prev)}
	}
	return nil
}

func checkItem(op, name string, typ *expr.Type) error {
	if name == "" {
		return required(op, "item name")
	}
	if typ == nil {
		return required(op, "item type")
	}
	return nil
}
