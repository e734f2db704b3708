package parser

import (
	"fmt"

	"github.com/roach88/chainql/internal/expr"
)

// scope maps parameters to the clauses producing their values. A nil
// source marks a parameter bound by a lambda inside the body being
// resolved; such parameters stay as they are.
type scope struct {
	parent  *scope
	sources map[*expr.Parameter]expr.QuerySource
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, sources: make(map[*expr.Parameter]expr.QuerySource)}
}

func (s *scope) bind(p *expr.Parameter, src expr.QuerySource) {
	s.sources[p] = src
}

// lookup finds p in s or an enclosing scope, innermost first.
func (s *scope) lookup(p *expr.Parameter) (src expr.QuerySource, found bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if src, ok := cur.sources[p]; ok {
			return src, true
		}
	}
	return nil, false
}

// resolver rewrites one function body. Parameters become references to
// the clause producing them, nested lambdas keep their own parameter, and
// operation chains become parsed sub-queries.
type resolver struct {
	b     *builder
	scope *scope
}

func (r *resolver) resolve(body expr.Expr) (expr.Expr, error) {
	return expr.Rewrite(body, r.visit)
}

func (r *resolver) visit(e expr.Expr) (expr.Expr, bool, error) {
	switch n := e.(type) {
	case *expr.Parameter:
		src, found := r.scope.lookup(n)
		if !found {
			return nil, false, r.b.fail(ErrCodeUnresolvedReference, n, fmt.Sprintf("unresolved reference %s", n.Name))
		}
		if src == nil {
			return n, true, nil
		}
		return &expr.Reference{Source: src}, true, nil

	case *expr.Lambda:
		inner := &resolver{b: r.b, scope: newScope(r.scope)}
		inner.scope.bind(n.Param, nil)
		body, err := inner.resolve(n.Body)
		if err != nil {
			return nil, false, err
		}
		if body == n.Body {
			return n, true, nil
		}
		return expr.NewLambda(n.Param, body), true, nil

	case *expr.Op:
		sub, err := r.b.parseNested(n, r.scope)
		if err != nil {
			return nil, false, err
		}
		return &expr.SubQuery{Model: sub}, true, nil
	}
	return nil, false, nil
}

// bindTarget picks the clause a function's own parameter stands for: the
// clause that introduced that parameter as its item, or else the clause
// producing the current element.
func (b *builder) bindTarget(p *expr.Parameter) expr.QuerySource {
	if src, found := b.scope.lookup(p); found && src != nil {
		return src
	}
	return b.current
}

// resolveLambda resolves l's body with l's parameter bound by bindTarget.
func (b *builder) resolveLambda(l *expr.Lambda, node *expr.Op, what string) (expr.Expr, error) {
	if l == nil {
		return nil, b.fail(ErrCodeMissingOperand, node, fmt.Sprintf("%s operation has no %s", node.Kind, what))
	}
	return b.resolveLambdaTo(l, b.bindTarget(l.Param))
}

// resolveLambdaTo resolves l's body with l's parameter bound to target.
// The parameter is substituted first, by identity; every parameter left
// must then name an item in scope.
func (b *builder) resolveLambdaTo(l *expr.Lambda, target expr.QuerySource) (expr.Expr, error) {
	body := expr.Substitute(l.Body, l.Param, &expr.Reference{Source: target})

	s := newScope(b.scope)
	s.bind(l.Param, target)
	r := &resolver{b: b, scope: s}
	return r.resolve(body)
}
