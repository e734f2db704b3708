package expr

import "fmt"

// RewriteFunc inspects one node before its children. Returning
// replaced=true substitutes repl for the node and skips its children.
type RewriteFunc func(e Expr) (repl Expr, replaced bool, err error)

// Rewrite rebuilds e bottom-up, applying fn to every node first. Nodes
// whose children are unchanged are returned as-is; changed nodes are
// shallow-copied so the input tree is never mutated.
//
// Rewrite does not descend into *Op chains, *SubQuery models or the
// sources of *Reference nodes; fn sees them and decides.
func Rewrite(e Expr, fn RewriteFunc) (Expr, error) {
	if e == nil {
		return nil, nil
	}
	if repl, ok, err := fn(e); err != nil || ok {
		return repl, err
	}

	switch n := e.(type) {
	case *Parameter, *Constant, *Reference, *SubQuery, *ConstantSource, *Op:
		return e, nil
	case *Member:
		target, err := Rewrite(n.Target, fn)
		if err != nil {
			return nil, err
		}
		if target == n.Target {
			return n, nil
		}
		return &Member{Target: target, Name: n.Name}, nil
	case *Binary:
		left, err := Rewrite(n.Left, fn)
		if err != nil {
			return nil, err
		}
		right, err := Rewrite(n.Right, fn)
		if err != nil {
			return nil, err
		}
		if left == n.Left && right == n.Right {
			return n, nil
		}
		return &Binary{Op: n.Op, Left: left, Right: right}, nil
	case *Unary:
		operand, err := Rewrite(n.Operand, fn)
		if err != nil {
			return nil, err
		}
		if operand == n.Operand {
			return n, nil
		}
		return &Unary{Op: n.Op, Operand: operand}, nil
	case *Call:
		var args []Expr
		for i, a := range n.Args {
			r, err := Rewrite(a, fn)
			if err != nil {
				return nil, err
			}
			if r != a && args == nil {
				args = make([]Expr, len(n.Args))
				copy(args, n.Args[:i])
			}
			if args != nil {
				args[i] = r
			}
		}
		if args == nil {
			return n, nil
		}
		return &Call{Func: n.Func, Args: args}, nil
	case *Lambda:
		body, err := Rewrite(n.Body, fn)
		if err != nil {
			return nil, err
		}
		if body == n.Body {
			return n, nil
		}
		return &Lambda{Param: n.Param, Body: body}, nil
	default:
		return nil, fmt.Errorf("rewrite: unsupported expression %T", e)
	}
}

// Substitute replaces every occurrence of param, by identity, with repl.
// Parameters that merely share param's name are left alone.
func Substitute(body Expr, param *Parameter, repl Expr) Expr {
	out, _ := Rewrite(body, func(e Expr) (Expr, bool, error) {
		if p, ok := e.(*Parameter); ok && p == param {
			return repl, true, nil
		}
		return nil, false, nil
	})
	return out
}

// Inspect calls fn for every node of e in depth-first order. If fn returns
// false the children of that node are skipped. Like Rewrite, Inspect does
// not enter *Op chains or sub-query models.
func Inspect(e Expr, fn func(Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	switch n := e.(type) {
	case *Member:
		Inspect(n.Target, fn)
	case *Binary:
		Inspect(n.Left, fn)
		Inspect(n.Right, fn)
	case *Unary:
		Inspect(n.Operand, fn)
	case *Call:
		for _, a := range n.Args {
			Inspect(a, fn)
		}
	case *Lambda:
		Inspect(n.Body, fn)
	}
}

// FreeParameters returns the parameters of e that are not bound by a
// lambda inside e, in first-occurrence order.
func FreeParameters(e Expr) []*Parameter {
	var out []*Parameter
	seen := map[*Parameter]bool{}
	var walk func(Expr, map[*Parameter]bool)
	walk = func(e Expr, bound map[*Parameter]bool) {
		Inspect(e, func(n Expr) bool {
			switch v := n.(type) {
			case *Parameter:
				if !bound[v] && !seen[v] {
					seen[v] = true
					out = append(out, v)
				}
			case *Lambda:
				inner := make(map[*Parameter]bool, len(bound)+1)
				for k := range bound {
					inner[k] = true
				}
				inner[v.Param] = true
				walk(v.Body, inner)
				return false
			}
			return true
		})
	}
	walk(e, map[*Parameter]bool{})
	return out
}
