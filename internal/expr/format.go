package expr

import (
	"strconv"
	"strings"

	"github.com/roach88/chainql/internal/ir"
)

// Format renders e for diagnostics and model dumps. Resolved references
// print as [name], sub-queries as {model}.
//
// A chain that leads back into itself is cut at the repeated step and
// marked with "...(cycle)".
func Format(e Expr) string {
	p := &printer{active: make(map[*Op]bool)}
	p.format(e)
	return p.String()
}

// printer tracks the steps of the chains being rendered. Only steps on
// the current path count, so a chain shared by two sub-queries prints
// in full both times.
type printer struct {
	strings.Builder
	active map[*Op]bool
}

func (b *printer) format(e Expr) {
	switch n := e.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Parameter:
		b.WriteString(n.Name)
	case *Constant:
		b.WriteString(ir.Literal(n.Value))
	case *Member:
		b.format(n.Target)
		b.WriteByte('.')
		b.WriteString(n.Name)
	case *Binary:
		b.WriteByte('(')
		b.format(n.Left)
		b.WriteByte(' ')
		b.WriteString(string(n.Op))
		b.WriteByte(' ')
		b.format(n.Right)
		b.WriteByte(')')
	case *Unary:
		b.WriteString(string(n.Op))
		b.format(n.Operand)
	case *Call:
		b.WriteString(n.Func)
		b.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			b.format(a)
		}
		b.WriteByte(')')
	case *Lambda:
		b.WriteString(n.Param.Name)
		b.WriteString(" => ")
		b.format(n.Body)
	case *Reference:
		b.WriteByte('[')
		b.WriteString(n.Source.ItemName())
		b.WriteByte(']')
	case *SubQuery:
		b.WriteByte('{')
		b.WriteString(n.Model.String())
		b.WriteByte('}')
	case *ConstantSource:
		if n.Name != "" {
			b.WriteString(n.Name)
		} else {
			b.WriteString(ir.Literal(n.Value))
		}
	case *Op:
		b.formatChain(n)
	}
}

// formatChain renders a chain in method-call syntax, source first.
func (b *printer) formatChain(o *Op) {
	var steps []*Op
	cycle := false
	for cur := o; cur != nil; cur = cur.Prev {
		if b.active[cur] {
			cycle = true
			break
		}
		b.active[cur] = true
		steps = append(steps, cur)
	}
	defer func() {
		for _, s := range steps {
			delete(b.active, s)
		}
	}()

	if cycle {
		b.WriteString("...(cycle)")
	}
	for i := len(steps) - 1; i >= 0; i-- {
		s := steps[i]
		if s.Kind == KindSource {
			if s.Chain != nil {
				b.WriteByte('(')
				b.formatChain(s.Chain)
				b.WriteByte(')')
			} else if s.Source != nil {
				b.format(s.Source)
			}
			continue
		}
		b.WriteByte('.')
		b.WriteString(stepName(s))
		b.WriteByte('(')
		b.writeArgs(s)
		b.WriteByte(')')
	}
}

func stepName(s *Op) string {
	switch s.Kind {
	case KindFilter:
		return "Where"
	case KindOrder:
		name := "ThenBy"
		if s.GroupStart {
			name = "OrderBy"
		}
		if s.Direction == Descending {
			name += "Descending"
		}
		return name
	case KindAdditionalSource:
		return "SelectMany"
	case KindProject:
		if s.Distinct {
			return "SelectDistinct"
		}
		return "Select"
	case KindJoin:
		return "Join"
	case KindGroupJoin:
		return "GroupJoin"
	case KindResult:
		return s.Modifier.String()
	default:
		return s.Kind.String()
	}
}

func (b *printer) writeArgs(s *Op) {
	n := 0
	arg := func(e Expr) {
		if n > 0 {
			b.WriteString(", ")
		}
		n++
		b.format(e)
	}
	switch s.Kind {
	case KindJoin, KindGroupJoin:
		if s.Source != nil {
			arg(s.Source)
		}
		if s.OuterKey != nil {
			arg(s.OuterKey)
		}
		if s.InnerKey != nil {
			arg(s.InnerKey)
		}
		if s.Into != nil {
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteString("into " + s.Into.Name)
		}
	case KindResult:
		if s.Modifier == ModTake || s.Modifier == ModSkip {
			b.WriteString(strconv.FormatInt(s.Count, 10))
		}
	default:
		if s.Lambda != nil {
			arg(s.Lambda)
		}
		if s.Projection != nil {
			arg(s.Projection)
		}
	}
}
