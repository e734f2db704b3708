package querysql

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/queryir"
	"github.com/roach88/chainql/internal/visit"
)

// ErrUnsupported is wrapped by every error reporting a model shape that
// has no SQL translation.
var ErrUnsupported = errors.New("no SQL translation")

// SQLCompiler compiles query models to parameterized SQL for SQLite.
//
// All values are parameterized, never interpolated. Identifiers are
// double-quoted.
type SQLCompiler struct {
	// Tables maps collection names to table names. Collections without an
	// entry are queried under their own name.
	Tables map[string]string
}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{
		Tables: make(map[string]string),
	}
}

// Compile converts a model to parameterized SQL.
// Returns (sql, params, error) tuple.
//
// Clauses map as follows: the main from clause becomes FROM, additional
// from clauses CROSS JOIN, join clauses JOIN ... ON, where clauses WHERE,
// ordering groups ORDER BY and result modifiers LIMIT/OFFSET or a
// COUNT/EXISTS wrapper. Sub-query sources become derived tables.
func (c *SQLCompiler) Compile(m *queryir.Model) (string, []any, error) {
	if m == nil {
		return "", nil, fmt.Errorf("cannot compile nil model")
	}
	v := &sqlVisitor{c: c, used: make(map[string]int)}
	if err := visit.Walk(v, m); err != nil {
		return "", nil, err
	}
	sql, args, err := v.built.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("render sql: %w", err)
	}
	slog.Debug("compiled query", "sql", sql, "params", len(args))
	return sql, args, nil
}

func (c *SQLCompiler) table(src *expr.ConstantSource) (string, error) {
	if src.Value != nil {
		return "", unsupported("inline array %s", src.Name)
	}
	if t, ok := c.Tables[src.Name]; ok {
		return t, nil
	}
	return src.Name, nil
}

func unsupported(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrUnsupported)
}

// sqlVisitor builds one SELECT per model. Sub-query models are walked
// through the same visitor; each gets its own frame.
type sqlVisitor struct {
	visit.Base
	c      *SQLCompiler
	frames []*frame
	used   map[string]int // alias names taken anywhere in the statement
	built  sq.SelectBuilder
}

// frame is the state of the SELECT for one model.
type frame struct {
	qb      sq.SelectBuilder
	aliases map[expr.QuerySource]string

	groups [][]sqlPart // ordering groups in body order

	limit    int64 // -1 when unbounded
	offset   int64
	terminal *queryir.ResultModifier
}

type sqlPart struct {
	sql  string
	args []any
}

func (v *sqlVisitor) top() *frame { return v.frames[len(v.frames)-1] }

// alias names src in the current frame. Items sharing a name get a
// numeric suffix.
func (v *sqlVisitor) alias(src expr.QuerySource) string {
	name := src.ItemName()
	v.used[name]++
	if n := v.used[name]; n > 1 {
		name = fmt.Sprintf("%s_%d", name, n)
	}
	v.top().aliases[src] = name
	return name
}

func (v *sqlVisitor) VisitModel(ctx *visit.Context, m *queryir.Model) error {
	f := &frame{
		qb:      sq.Select(),
		aliases: make(map[expr.QuerySource]string),
		limit:   -1,
	}
	v.frames = append(v.frames, f)
	defer func() { v.frames = v.frames[:len(v.frames)-1] }()

	if err := visit.WalkModel(ctx, m); err != nil {
		return err
	}
	built, err := f.finish()
	if err != nil {
		return err
	}
	v.built = built
	return nil
}

func (v *sqlVisitor) VisitMainFromClause(ctx *visit.Context, c *queryir.MainFromClause) error {
	switch src := c.FromExpr.(type) {
	case *expr.ConstantSource:
		table, err := v.c.table(src)
		if err != nil {
			return err
		}
		v.top().qb = v.top().qb.From(qi(table) + " AS " + qi(v.alias(c)))
	case *expr.SubQuery:
		sub, ok := src.Model.(*queryir.Model)
		if !ok {
			return fmt.Errorf("main source %s: unexpected sub-query model %T", c.ItemName(), src.Model)
		}
		if err := ctx.WalkSubQuery(sub); err != nil {
			return fmt.Errorf("main source %s: %w", c.ItemName(), err)
		}
		v.top().qb = v.top().qb.FromSelect(v.built, qi(v.alias(c)))
	default:
		return unsupported("main source %s of type %T", c.ItemName(), c.FromExpr)
	}
	return visit.WalkJoins(ctx, c)
}

func (v *sqlVisitor) VisitAdditionalFromClause(ctx *visit.Context, c *queryir.AdditionalFromClause) error {
	src, ok := c.FromExpr.(*expr.ConstantSource)
	if !ok {
		return unsupported("from clause %s over %s", c.ItemName(), expr.Format(c.FromExpr))
	}
	table, err := v.c.table(src)
	if err != nil {
		return err
	}
	v.top().qb = v.top().qb.CrossJoin(qi(table) + " AS " + qi(v.alias(c)))
	return visit.WalkJoins(ctx, c)
}

func (v *sqlVisitor) VisitSubQueryFromClause(ctx *visit.Context, c *queryir.SubQueryFromClause) error {
	if err := ctx.WalkSubQuery(c.SubModel); err != nil {
		return fmt.Errorf("sub-query %s: %w", c.ItemName(), err)
	}
	sql, args, err := v.built.ToSql()
	if err != nil {
		return fmt.Errorf("sub-query %s: %w", c.ItemName(), err)
	}
	v.top().qb = v.top().qb.CrossJoin("("+sql+") AS "+qi(v.alias(c)), args...)
	return visit.WalkJoins(ctx, c)
}

func (v *sqlVisitor) VisitJoinClause(_ *visit.Context, c *queryir.JoinClause) error {
	table, err := v.c.table(c.Inner)
	if err != nil {
		return err
	}
	outer, err := v.expr(c.OuterKey)
	if err != nil {
		return fmt.Errorf("outer key of %s: %w", c.ItemName(), err)
	}
	alias := v.alias(c)
	inner, err := v.expr(c.InnerKey)
	if err != nil {
		return fmt.Errorf("inner key of %s: %w", c.ItemName(), err)
	}
	on := fmt.Sprintf("%s AS %s ON %s = %s", qi(table), qi(alias), outer.sql, inner.sql)
	v.top().qb = v.top().qb.Join(on, append(outer.args, inner.args...)...)
	return nil
}

func (v *sqlVisitor) VisitGroupJoinClause(_ *visit.Context, c *queryir.GroupJoinClause) error {
	return unsupported("group join into %s", c.ItemName())
}

func (v *sqlVisitor) VisitWhereClause(_ *visit.Context, c *queryir.WhereClause) error {
	pred, err := v.expr(c.Predicate)
	if err != nil {
		return fmt.Errorf("where clause: %w", err)
	}
	v.top().qb = v.top().qb.Where(sq.Expr(pred.sql, pred.args...))
	return nil
}

func (v *sqlVisitor) VisitOrderByClause(ctx *visit.Context, c *queryir.OrderByClause) error {
	f := v.top()
	f.groups = append(f.groups, nil)
	return visit.WalkOrderings(ctx, c)
}

func (v *sqlVisitor) VisitOrdering(_ *visit.Context, o *queryir.Ordering) error {
	key, err := v.expr(o.Expr)
	if err != nil {
		return fmt.Errorf("ordering: %w", err)
	}
	key.sql += " " + strings.ToUpper(o.Direction.String())
	f := v.top()
	last := len(f.groups) - 1
	f.groups[last] = append(f.groups[last], key)
	return nil
}

func (v *sqlVisitor) VisitSelectClause(ctx *visit.Context, c *queryir.SelectClause) error {
	col, err := v.column(c.Selector)
	if err != nil {
		return fmt.Errorf("select clause: %w", err)
	}
	f := v.top()
	f.qb = f.qb.Column(col.sql, col.args...)
	if c.Distinct {
		f.qb = f.qb.Distinct()
	}
	return visit.WalkResultModifiers(ctx, c)
}

func (v *sqlVisitor) VisitResultModifier(_ *visit.Context, r *queryir.ResultModifier) error {
	f := v.top()
	if f.terminal != nil {
		return unsupported("result operator %s after %s", r, f.terminal)
	}
	switch r.Kind {
	case expr.ModTake:
		f.take(r.Count)
	case expr.ModSkip:
		f.offset += r.Count
		if f.limit >= 0 {
			f.limit = max(0, f.limit-r.Count)
		}
	case expr.ModFirst:
		f.take(1)
		f.terminal = r
	case expr.ModCount, expr.ModAny:
		f.terminal = r
	default:
		return unsupported("result operator %s", r)
	}
	return nil
}

func (f *frame) take(n int64) {
	if f.limit < 0 || n < f.limit {
		f.limit = n
	}
}

// finish applies ordering and the result window and wraps the statement
// for aggregate result operators. Later ordering groups take precedence,
// so their keys come first.
func (f *frame) finish() (sq.SelectBuilder, error) {
	qb := f.qb
	for i := len(f.groups) - 1; i >= 0; i-- {
		for _, key := range f.groups[i] {
			qb = qb.OrderByClause(key.sql, key.args...)
		}
	}
	switch {
	case f.limit >= 0:
		qb = qb.Limit(uint64(f.limit))
	case f.offset > 0:
		// SQLite only accepts OFFSET after a LIMIT.
		qb = qb.Limit(math.MaxInt64)
	}
	if f.offset > 0 {
		qb = qb.Offset(uint64(f.offset))
	}

	if f.terminal == nil {
		return qb, nil
	}
	switch f.terminal.Kind {
	case expr.ModCount:
		return sq.Select("COUNT(*)").FromSelect(qb, "q"), nil
	case expr.ModAny:
		sql, args, err := qb.ToSql()
		if err != nil {
			return qb, err
		}
		return sq.Select().Column("EXISTS ("+sql+")", args...), nil
	}
	return qb, nil
}

// column translates a selector. A whole item selects all of its columns.
func (v *sqlVisitor) column(e expr.Expr) (sqlPart, error) {
	if ref, ok := e.(*expr.Reference); ok {
		alias, err := v.aliasOf(ref)
		if err != nil {
			return sqlPart{}, err
		}
		return sqlPart{sql: qi(alias) + ".*"}, nil
	}
	p, err := v.expr(e)
	if err != nil {
		return sqlPart{}, err
	}
	if _, ok := e.(*expr.Member); !ok {
		p.sql += ` AS "value"`
	}
	return p, nil
}

func (v *sqlVisitor) aliasOf(ref *expr.Reference) (string, error) {
	if _, ok := ref.Source.(*queryir.GroupJoinClause); ok {
		return "", unsupported("reference to group %s", ref.Source.ItemName())
	}
	alias, ok := v.top().aliases[ref.Source]
	if !ok {
		return "", unsupported("reference to %s from outside its query", ref.Source.ItemName())
	}
	return alias, nil
}

var binaryOps = map[expr.BinaryOp]string{
	expr.OpEq:  "=",
	expr.OpNe:  "<>",
	expr.OpLt:  "<",
	expr.OpLe:  "<=",
	expr.OpGt:  ">",
	expr.OpGe:  ">=",
	expr.OpAnd: "AND",
	expr.OpOr:  "OR",
	expr.OpAdd: "+",
	expr.OpSub: "-",
	expr.OpMul: "*",
	expr.OpDiv: "/",
}

var functions = map[string]string{
	"lower":  "LOWER",
	"upper":  "UPPER",
	"length": "LENGTH",
	"abs":    "ABS",
	"trim":   "TRIM",
}

// expr translates a scalar expression. Every sub-expression with more than
// one operand is parenthesized.
func (v *sqlVisitor) expr(e expr.Expr) (sqlPart, error) {
	switch n := e.(type) {
	case *expr.Constant:
		if _, ok := n.Value.(ir.IRNull); ok || n.Value == nil {
			return sqlPart{sql: "NULL"}, nil
		}
		param, err := ir.ToParam(n.Value)
		if err != nil {
			return sqlPart{}, fmt.Errorf("constant %s: %w", ir.Literal(n.Value), err)
		}
		return sqlPart{sql: "?", args: []any{param}}, nil

	case *expr.Member:
		ref, ok := n.Target.(*expr.Reference)
		if !ok {
			return sqlPart{}, unsupported("member access %s", expr.Format(n))
		}
		alias, err := v.aliasOf(ref)
		if err != nil {
			return sqlPart{}, err
		}
		return sqlPart{sql: qi(alias) + "." + qi(n.Name)}, nil

	case *expr.Binary:
		l, err := v.expr(n.Left)
		if err != nil {
			return sqlPart{}, err
		}
		if isNull(n.Right) && (n.Op == expr.OpEq || n.Op == expr.OpNe) {
			if n.Op == expr.OpEq {
				return sqlPart{sql: "(" + l.sql + " IS NULL)", args: l.args}, nil
			}
			return sqlPart{sql: "(" + l.sql + " IS NOT NULL)", args: l.args}, nil
		}
		r, err := v.expr(n.Right)
		if err != nil {
			return sqlPart{}, err
		}
		op, ok := binaryOps[n.Op]
		if !ok {
			return sqlPart{}, unsupported("operator %s", n.Op)
		}
		return sqlPart{
			sql:  fmt.Sprintf("(%s %s %s)", l.sql, op, r.sql),
			args: append(l.args, r.args...),
		}, nil

	case *expr.Unary:
		operand, err := v.expr(n.Operand)
		if err != nil {
			return sqlPart{}, err
		}
		switch n.Op {
		case expr.OpNot:
			return sqlPart{sql: "(NOT " + operand.sql + ")", args: operand.args}, nil
		case expr.OpNeg:
			return sqlPart{sql: "(-" + operand.sql + ")", args: operand.args}, nil
		}
		return sqlPart{}, unsupported("operator %s", n.Op)

	case *expr.Call:
		fn, ok := functions[n.Func]
		if !ok {
			return sqlPart{}, unsupported("function %s", n.Func)
		}
		var (
			args []string
			vals []any
		)
		for _, a := range n.Args {
			p, err := v.expr(a)
			if err != nil {
				return sqlPart{}, err
			}
			args = append(args, p.sql)
			vals = append(vals, p.args...)
		}
		return sqlPart{sql: fn + "(" + strings.Join(args, ", ") + ")", args: vals}, nil

	case *expr.Reference:
		return sqlPart{}, unsupported("whole item %s used as a value", n.Source.ItemName())

	case *expr.Parameter:
		return sqlPart{}, fmt.Errorf("unresolved parameter %s", n.Name)

	default:
		return sqlPart{}, unsupported("expression %s", expr.Format(e))
	}
}

func isNull(e expr.Expr) bool {
	c, ok := e.(*expr.Constant)
	if !ok {
		return false
	}
	_, null := c.Value.(ir.IRNull)
	return null || c.Value == nil
}

// qi quotes an identifier.
func qi(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
