package compiler

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chainql/internal/expr"
)

// chain is a compiled operation chain. elem is the type of the chain's
// items when its projection selects a bare item, nil otherwise.
type chain struct {
	op   *expr.Op
	elem *expr.Type
}

// scope maps item names to the parameters naming them. A nested chain
// sees the items of the chain it is nested in.
type scope struct {
	parent *scope
	items  map[string]*expr.Parameter
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, items: map[string]*expr.Parameter{}}
}

func (s *scope) lookup(name string) (*expr.Parameter, bool) {
	for ; s != nil; s = s.parent {
		if p, ok := s.items[name]; ok {
			return p, true
		}
	}
	return nil, false
}

// chainState is a chain under construction. cur is the most recently
// introduced item; functions take it as their parameter.
type chainState struct {
	scope *scope
	cur   *expr.Parameter
	op    *expr.Op
	mods  []modifier
}

func (st *chainState) introduce(p *expr.Parameter) {
	st.scope.items[p.Name] = p
	st.cur = p
}

type modifier struct {
	name  string
	kind  expr.ModifierKind
	count int64
}

var bodySteps = []string{
	"where",
	"orderBy", "orderByDescending", "thenBy", "thenByDescending",
	"from", "join", "groupJoin",
}

var modifierSteps = map[string]expr.ModifierKind{
	"take":   expr.ModTake,
	"skip":   expr.ModSkip,
	"count":  expr.ModCount,
	"first":  expr.ModFirst,
	"last":   expr.ModLast,
	"single": expr.ModSingle,
	"any":    expr.ModAny,
}

// chain compiles {from, steps, select, distinct} into an operation chain.
// Body steps come first, then the projection, then result operators.
func (c *compiler) chain(v cue.Value, field string, outer *scope) (*chain, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	st := &chainState{scope: newScope(outer)}

	fromV := v.LookupPath(cue.ParsePath("from"))
	if !fromV.Exists() {
		return nil, &CompileError{Field: field + ".from", Message: "from is required", Pos: v.Pos()}
	}
	item, body, err := c.source(fromV, field+".from", st.scope, false)
	if err != nil {
		return nil, err
	}
	switch b := body.(type) {
	case *expr.ConstantSource:
		st.op = expr.From(item, b)
	case *expr.Op:
		st.op = expr.FromChain(item, b)
	}
	st.introduce(item)

	if stepsV := v.LookupPath(cue.ParsePath("steps")); stepsV.Exists() {
		if stepsV.IncompleteKind() != cue.ListKind {
			return nil, &CompileError{Field: field + ".steps", Message: "must be a list", Pos: stepsV.Pos()}
		}
		iter, err := stepsV.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; iter.Next(); i++ {
			if err := c.step(st, iter.Value(), fmt.Sprintf("%s.steps[%d]", field, i)); err != nil {
				return nil, err
			}
		}
	}

	if !v.LookupPath(cue.ParsePath("select")).Exists() {
		return nil, &CompileError{Field: field + ".select", Message: "select is required", Pos: v.Pos()}
	}
	sel, err := c.function(st, v.LookupPath(cue.ParsePath("select")), field+".select")
	if err != nil {
		return nil, err
	}
	distinct := false
	if d := v.LookupPath(cue.ParsePath("distinct")); d.Exists() {
		if distinct, err = d.Bool(); err != nil {
			return nil, &CompileError{Field: field + ".distinct", Message: "must be a bool", Pos: d.Pos()}
		}
	}
	if distinct {
		st.op = st.op.SelectDistinct(sel)
	} else {
		st.op = st.op.Select(sel)
	}

	for _, m := range st.mods {
		switch m.kind {
		case expr.ModTake:
			st.op = st.op.Take(m.count)
		case expr.ModSkip:
			st.op = st.op.Skip(m.count)
		default:
			st.op = st.op.Result(m.kind)
		}
	}

	ch := &chain{op: st.op}
	if p, ok := sel.Body.(*expr.Parameter); ok {
		ch.elem = p.Type
	}
	return ch, nil
}

// source compiles {item, in | chain | query | expr, type?}. The item's
// type is taken from type when given, else from the collection or from a
// chain selecting a bare item. expr sources are only valid after the
// first from.
func (c *compiler) source(v cue.Value, field string, s *scope, allowExpr bool) (*expr.Parameter, expr.Expr, error) {
	if v.IncompleteKind() != cue.StructKind {
		return nil, nil, &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	name, err := requiredString(v, "item", field)
	if err != nil {
		return nil, nil, err
	}
	typeName, hasType, err := stringField(v, "type", field)
	if err != nil {
		return nil, nil, err
	}

	forms := []string{"in", "chain", "query"}
	if allowExpr {
		forms = append(forms, "expr")
	}
	var present []string
	for _, f := range forms {
		if v.LookupPath(cue.ParsePath(f)).Exists() {
			present = append(present, f)
		}
	}
	if !allowExpr && v.LookupPath(cue.ParsePath("expr")).Exists() {
		return nil, nil, &CompileError{Field: field + ".expr", Message: "the first source must be a collection, chain or query", Pos: v.Pos()}
	}
	if len(present) != 1 {
		return nil, nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("exactly one of %s is required", strings.Join(forms, ", ")),
			Pos:     v.Pos(),
		}
	}

	var (
		body     expr.Expr
		inferred *expr.Type
	)
	switch present[0] {
	case "in":
		colName, err := requiredString(v, "in", field)
		if err != nil {
			return nil, nil, err
		}
		col, ok := c.collections[colName]
		if !ok {
			return nil, nil, &CompileError{
				Field:   field + ".in",
				Message: fmt.Sprintf("unknown collection %s", colName),
				Pos:     v.LookupPath(cue.ParsePath("in")).Pos(),
			}
		}
		body, inferred = col.Source, col.Source.ElementType()
	case "chain":
		ch, err := c.chain(v.LookupPath(cue.ParsePath("chain")), field+".chain", s)
		if err != nil {
			return nil, nil, err
		}
		body, inferred = ch.op, ch.elem
	case "query":
		qName, err := requiredString(v, "query", field)
		if err != nil {
			return nil, nil, err
		}
		if _, ok := c.defs[qName]; !ok {
			return nil, nil, &CompileError{
				Field:   field + ".query",
				Message: fmt.Sprintf("unknown query %s", qName),
				Pos:     v.LookupPath(cue.ParsePath("query")).Pos(),
			}
		}
		ch, err := c.query(qName)
		if err != nil {
			return nil, nil, err
		}
		body, inferred = ch.op, ch.elem
	case "expr":
		e, err := parseValue(v.LookupPath(cue.ParsePath("expr")), field+".expr", s)
		if err != nil {
			return nil, nil, err
		}
		body = e
	}

	typ := inferred
	if hasType {
		typ = c.typeNamed(typeName)
	}
	if typ == nil {
		return nil, nil, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("type of item %s cannot be inferred; set type", name),
			Pos:     v.Pos(),
		}
	}
	return expr.NewParameter(name, typ), body, nil
}

func (c *compiler) step(st *chainState, v cue.Value, field string) error {
	kind, err := stepKind(v, field)
	if err != nil {
		return err
	}
	arg := v.LookupPath(cue.ParsePath(kind))

	if m, ok := modifierSteps[kind]; ok {
		return addModifier(st, arg, kind, m, field)
	}
	if len(st.mods) > 0 {
		return &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s after result operator %s", kind, st.mods[len(st.mods)-1].name),
			Pos:     v.Pos(),
		}
	}

	switch kind {
	case "where", "orderBy", "orderByDescending", "thenBy", "thenByDescending":
		l, err := c.function(st, arg, field+"."+kind)
		if err != nil {
			return err
		}
		switch kind {
		case "where":
			st.op = st.op.Where(l)
		case "orderBy":
			st.op = st.op.OrderBy(l)
		case "orderByDescending":
			st.op = st.op.OrderByDescending(l)
		case "thenBy":
			st.op = st.op.ThenBy(l)
		default:
			st.op = st.op.ThenByDescending(l)
		}
	case "from":
		item, body, err := c.source(arg, field+".from", st.scope, true)
		if err != nil {
			return err
		}
		collection := expr.NewLambda(st.cur, body)
		st.introduce(item)
		var projection *expr.Lambda
		if sel := v.LookupPath(cue.ParsePath("select")); sel.Exists() {
			if projection, err = c.function(st, sel, field+".select"); err != nil {
				return err
			}
		}
		st.op = st.op.SelectMany(item, collection, projection)
	case "join", "groupJoin":
		return c.join(st, arg, field+"."+kind, kind == "groupJoin")
	}
	return nil
}

// join compiles {item, in, on, equals, into?}. on sees the items in
// scope; equals sees only the joined item. After a group join only the
// into item is visible.
func (c *compiler) join(st *chainState, v cue.Value, field string, group bool) error {
	if v.IncompleteKind() != cue.StructKind {
		return &CompileError{Field: field, Message: "must be a struct", Pos: v.Pos()}
	}
	name, err := requiredString(v, "item", field)
	if err != nil {
		return err
	}
	colName, err := requiredString(v, "in", field)
	if err != nil {
		return err
	}
	col, ok := c.collections[colName]
	if !ok {
		return &CompileError{
			Field:   field + ".in",
			Message: fmt.Sprintf("unknown collection %s", colName),
			Pos:     v.LookupPath(cue.ParsePath("in")).Pos(),
		}
	}
	typ := col.Source.ElementType()
	if typeName, ok, err := stringField(v, "type", field); err != nil {
		return err
	} else if ok {
		typ = c.typeNamed(typeName)
	}
	item := expr.NewParameter(name, typ)

	for _, key := range []string{"on", "equals"} {
		if !v.LookupPath(cue.ParsePath(key)).Exists() {
			return &CompileError{Field: field + "." + key, Message: key + " is required", Pos: v.Pos()}
		}
	}
	outer, err := c.function(st, v.LookupPath(cue.ParsePath("on")), field+".on")
	if err != nil {
		return err
	}
	innerScope := newScope(nil)
	innerScope.items[name] = item
	innerBody, err := parseValue(v.LookupPath(cue.ParsePath("equals")), field+".equals", innerScope)
	if err != nil {
		return err
	}
	inner := expr.NewLambda(item, innerBody)

	if !group {
		st.op = st.op.Join(item, col.Source, outer, inner)
		st.introduce(item)
		return nil
	}
	intoName, err := requiredString(v, "into", field)
	if err != nil {
		return err
	}
	into := expr.NewParameter(intoName, expr.SequenceOf(typ))
	st.op = st.op.GroupJoin(item, col.Source, outer, inner, into)
	st.introduce(into)
	return nil
}

func addModifier(st *chainState, v cue.Value, name string, kind expr.ModifierKind, field string) error {
	m := modifier{name: name, kind: kind}
	switch kind {
	case expr.ModTake, expr.ModSkip:
		n, err := v.Int64()
		if err != nil {
			return &CompileError{Field: field + "." + name, Message: "must be an integer", Pos: v.Pos()}
		}
		if n < 0 {
			return &CompileError{Field: field + "." + name, Message: name + " needs a non-negative count", Pos: v.Pos()}
		}
		m.count = n
	default:
		if b, err := v.Bool(); err != nil || !b {
			return &CompileError{Field: field + "." + name, Message: "must be true", Pos: v.Pos()}
		}
	}
	st.mods = append(st.mods, m)
	return nil
}

// stepKind returns the one operation a step names.
func stepKind(v cue.Value, field string) (string, error) {
	if v.IncompleteKind() != cue.StructKind {
		return "", &CompileError{Field: field, Message: "step must be a struct", Pos: v.Pos()}
	}
	iter, err := v.Fields()
	if err != nil {
		return "", formatCUEError(err)
	}
	kind, hasSelect := "", false
	for iter.Next() {
		label := iter.Label()
		_, isModifier := modifierSteps[label]
		switch {
		case label == "select":
			hasSelect = true
		case isModifier || slices.Contains(bodySteps, label):
			if kind != "" {
				return "", &CompileError{
					Field:   field,
					Message: fmt.Sprintf("step has both %s and %s", kind, label),
					Pos:     v.Pos(),
				}
			}
			kind = label
		default:
			return "", &CompileError{Field: field, Message: fmt.Sprintf("unknown step %s", label), Pos: iter.Value().Pos()}
		}
	}
	if kind == "" {
		return "", &CompileError{Field: field, Message: "step names no operation", Pos: v.Pos()}
	}
	if hasSelect && kind != "from" {
		return "", &CompileError{Field: field + ".select", Message: "select is only allowed on from steps", Pos: v.Pos()}
	}
	return kind, nil
}

// function parses the expression string v as a function of the current
// item.
func (c *compiler) function(st *chainState, v cue.Value, field string) (*expr.Lambda, error) {
	body, err := parseValue(v, field, st.scope)
	if err != nil {
		return nil, err
	}
	return expr.NewLambda(st.cur, body), nil
}

func parseValue(v cue.Value, field string, s *scope) (expr.Expr, error) {
	src, err := v.String()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a string", Pos: v.Pos()}
	}
	return parseAt(src, s, field, v.Pos())
}

func parseAt(src string, s *scope, field string, pos token.Pos) (expr.Expr, error) {
	e, err := ParseExpr(src, s.lookup)
	var ee *ExprError
	if errors.As(err, &ee) {
		return nil, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("%s at offset %d in %q", ee.Message, ee.Offset, src),
			Pos:     pos,
		}
	}
	return e, err
}
