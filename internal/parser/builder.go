package parser

import (
	"fmt"
	"log/slog"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/queryir"
)

// builder turns one collected chain into a model in a single left-to-right
// pass. Sub-queries get their own builder whose scope encloses this one.
type builder struct {
	root  *expr.Op // root of the whole input, for diagnostics
	chain *expr.Op
	depth int

	scope *scope
	model *queryir.Model

	previous          queryir.Clause
	current           expr.QuerySource // producer of the current element
	lastFrom          queryir.FromClause
	projectionCursor  int
	currentOrderGroup *queryir.OrderByClause
}

func newBuilder(chain, root *expr.Op, parent *scope, depth int) *builder {
	return &builder{root: root, chain: chain, depth: depth, scope: newScope(parent)}
}

func (b *builder) fail(code StructureErrorCode, node expr.Expr, msg string) error {
	return &StructureError{Code: code, Message: msg, Node: node, Root: b.root}
}

// parseNested parses an operation chain found inside this builder's
// model, with s as the enclosing scope.
func (b *builder) parseNested(chain *expr.Op, s *scope) (*queryir.Model, error) {
	slog.Debug("parsing sub-query", "depth", b.depth+1, "chain", chainValue{chain})
	return newBuilder(chain, b.root, s, b.depth+1).build()
}

// chainValue formats a chain only when a handler asks for the value.
type chainValue struct{ op *expr.Op }

func (c chainValue) LogValue() slog.Value {
	return slog.StringValue(expr.Format(c.op))
}

func (b *builder) build() (*queryir.Model, error) {
	col, err := Collect(b.chain, b.root)
	if err != nil {
		return nil, err
	}
	src, err := col.ExtractSource()
	if err != nil {
		return nil, err
	}
	if err := b.mainFrom(src); err != nil {
		return nil, err
	}

	for _, op := range col.BodyOps {
		c, err := b.clause(op, col)
		if err != nil {
			return nil, err
		}
		if bc, ok := c.(queryir.BodyClause); ok {
			if !b.model.BodyClauses().Contains(bc) {
				if err := b.model.AddBodyClause(bc); err != nil {
					return nil, err
				}
			}
		}
		b.previous = c
		slog.Debug("clause created", "depth", b.depth, "kind", op.Kind.String(), "id", int(c.ID()))
	}

	if err := b.selectClause(col); err != nil {
		return nil, err
	}
	return b.model, nil
}

func (b *builder) mainFrom(src *expr.Op) error {
	if src.Item == nil {
		return b.fail(ErrCodeMissingOperand, src, "source operation has no item")
	}

	var (
		fromExpr expr.Expr
		itemType = src.Item.Type
	)
	switch {
	case src.Chain != nil:
		sub, err := b.parseNested(src.Chain, b.scope)
		if err != nil {
			return fmt.Errorf("main source %s: %w", src.Item.Name, err)
		}
		fromExpr = &expr.SubQuery{Model: sub}
	case src.Source != nil:
		elem, err := b.elementType(src.Source, src)
		if err != nil {
			return err
		}
		if itemType == nil {
			itemType = elem
		}
		fromExpr = src.Source
	default:
		return b.fail(ErrCodeMissingOperand, src, "source operation has no collection")
	}
	if itemType == nil {
		return b.fail(ErrCodeMissingOperand, src, fmt.Sprintf("item %s has no type", src.Item.Name))
	}

	m, err := queryir.NewModel(src.Item.Name, itemType, fromExpr)
	if err != nil {
		return err
	}
	b.model = m
	b.previous = m.MainFrom()
	b.introduce(src.Item, m.MainFrom())
	b.lastFrom = m.MainFrom()
	return nil
}

// introduce puts item in scope as produced by src, which also becomes the
// producer of the current element.
func (b *builder) introduce(item *expr.Parameter, src expr.QuerySource) {
	b.scope.bind(item, src)
	b.current = src
}

func (b *builder) clause(op *expr.Op, col *Collected) (queryir.Clause, error) {
	switch op.Kind {
	case expr.KindAdditionalSource:
		return b.additionalFrom(op, col)
	case expr.KindFilter:
		pred, err := b.resolveLambda(op.Lambda, op, "predicate")
		if err != nil {
			return nil, err
		}
		return b.model.NewWhereClause(b.previous.ID(), pred)
	case expr.KindOrder:
		return b.orderBy(op)
	case expr.KindJoin:
		return b.join(op)
	case expr.KindGroupJoin:
		return b.groupJoin(op)
	default:
		return nil, b.fail(ErrCodeUnsupportedKind, op, fmt.Sprintf("operation kind %s is not supported in a query body", op.Kind))
	}
}

func (b *builder) additionalFrom(op *expr.Op, col *Collected) (queryir.Clause, error) {
	if b.projectionCursor >= len(col.Projections) {
		name := "?"
		if op.Item != nil {
			name = op.Item.Name
		}
		return nil, b.fail(ErrCodeMissingProjection, op, fmt.Sprintf("from expression %s has no projection", name))
	}
	projection := col.Projections[b.projectionCursor]
	b.projectionCursor++

	if op.Item == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "additional source has no item")
	}
	if op.Lambda == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "additional source has no collection function")
	}
	item := op.Item

	if chain, ok := op.Lambda.Body.(*expr.Op); ok {
		// The collection function's parameter stays visible inside the
		// sub-query.
		s := newScope(b.scope)
		s.bind(op.Lambda.Param, b.bindTarget(op.Lambda.Param))
		sub, err := b.parseNested(chain, s)
		if err != nil {
			return nil, fmt.Errorf("sub-query %s: %w", item.Name, err)
		}
		if item.Type == nil {
			return nil, b.fail(ErrCodeMissingOperand, op, fmt.Sprintf("item %s has no type", item.Name))
		}
		c, err := b.model.NewSubQueryFromClause(b.previous.ID(), item.Name, item.Type, sub)
		if err != nil {
			return nil, err
		}
		b.introduce(item, c)
		b.lastFrom = c
		if c.Projection, err = b.resolveLambda(projection, op, "projection"); err != nil {
			return nil, err
		}
		return c, nil
	}

	itemType := item.Type
	if src, ok := op.Lambda.Body.(*expr.ConstantSource); ok {
		elem, err := b.elementType(src, op)
		if err != nil {
			return nil, err
		}
		if itemType == nil {
			itemType = elem
		}
	}
	if itemType == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, fmt.Sprintf("item %s has no type", item.Name))
	}

	fromExpr, err := b.resolveLambda(op.Lambda, op, "collection function")
	if err != nil {
		return nil, err
	}
	c, err := b.model.NewAdditionalFromClause(b.previous.ID(), item.Name, itemType, fromExpr)
	if err != nil {
		return nil, err
	}
	b.introduce(item, c)
	b.lastFrom = c
	if c.Projection, err = b.resolveLambda(projection, op, "projection"); err != nil {
		return nil, err
	}
	return c, nil
}

func (b *builder) orderBy(op *expr.Op) (queryir.Clause, error) {
	if !op.GroupStart && b.currentOrderGroup == nil {
		return nil, b.fail(ErrCodeOrderingContinuation, op, "expected beginning of an ordering clause")
	}
	key, err := b.resolveLambda(op.Lambda, op, "key")
	if err != nil {
		return nil, err
	}
	ordering, err := queryir.NewOrdering(key, op.Direction)
	if err != nil {
		return nil, err
	}

	if !op.GroupStart {
		if err := b.currentOrderGroup.AddOrdering(ordering); err != nil {
			return nil, err
		}
		return b.currentOrderGroup, nil
	}
	c, err := b.model.NewOrderByClause(b.previous.ID(), ordering)
	if err != nil {
		return nil, err
	}
	b.currentOrderGroup = c
	return c, nil
}

// newJoin builds the join clause shared by Join and GroupJoin. The outer
// key sees the current element; the inner key sees the join's item.
func (b *builder) newJoin(op *expr.Op) (*queryir.JoinClause, error) {
	if op.Item == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "join has no item")
	}
	if op.Source == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "join has no inner sequence")
	}
	if op.OuterKey == nil || op.InnerKey == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "join needs an outer and an inner key")
	}
	elem, err := b.elementType(op.Source, op)
	if err != nil {
		return nil, err
	}
	itemType := op.Item.Type
	if itemType == nil {
		itemType = elem
	}

	outer, err := b.resolveLambda(op.OuterKey, op, "outer key")
	if err != nil {
		return nil, err
	}
	j, err := b.model.NewJoinClause(b.previous.ID(), op.Item.Name, itemType, op.Source)
	if err != nil {
		return nil, err
	}
	j.OuterKey = outer
	if j.InnerKey, err = b.resolveLambdaTo(op.InnerKey, j); err != nil {
		return nil, err
	}
	return j, nil
}

func (b *builder) join(op *expr.Op) (queryir.Clause, error) {
	j, err := b.newJoin(op)
	if err != nil {
		return nil, err
	}
	b.lastFrom.Joins().Append(j)
	b.introduce(op.Item, j)
	return j, nil
}

func (b *builder) groupJoin(op *expr.Op) (queryir.Clause, error) {
	if op.Into == nil {
		return nil, b.fail(ErrCodeMissingOperand, op, "group join has no into item")
	}
	j, err := b.newJoin(op)
	if err != nil {
		return nil, err
	}
	intoType := op.Into.Type
	if intoType == nil {
		intoType = expr.SequenceOf(j.ItemType())
	}
	g, err := b.model.NewGroupJoinClause(b.previous.ID(), op.Into.Name, intoType, j)
	if err != nil {
		return nil, err
	}
	b.introduce(op.Into, g)
	return g, nil
}

func (b *builder) selectClause(col *Collected) error {
	if len(col.Projections) == 0 {
		return b.fail(ErrCodeNoTerminalProjection, b.chain, "no projection for terminal clause")
	}
	last := col.Projections[len(col.Projections)-1]
	selector, err := b.resolveLambdaTo(last, b.bindTarget(last.Param))
	if err != nil {
		return err
	}
	sel, err := b.model.NewSelectClause(b.previous.ID(), selector, col.Distinct)
	if err != nil {
		return err
	}
	for _, op := range col.ResultModifiers {
		if (op.Modifier == expr.ModTake || op.Modifier == expr.ModSkip) && op.Count < 0 {
			return b.fail(ErrCodeMissingOperand, op, fmt.Sprintf("%s needs a non-negative count", op.Modifier))
		}
		if err := sel.AddResultModifier(&queryir.ResultModifier{Kind: op.Modifier, Count: op.Count}); err != nil {
			return err
		}
	}
	return nil
}

// elementType checks that src, the operand of node, is enumerable and
// returns its item type.
func (b *builder) elementType(src *expr.ConstantSource, node *expr.Op) (*expr.Type, error) {
	if !src.Type.IsSequence() {
		return nil, &expr.TypeMismatchError{
			Argument: "source " + src.Name,
			Got:      src.Type,
			Want:     "an enumerable collection type",
			Node:     node,
			Root:     b.root,
		}
	}
	return src.ElementType(), nil
}
