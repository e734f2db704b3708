package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/ir"
)

// ExprError reports a malformed function body. Offset is the byte offset
// into the source string.
type ExprError struct {
	Offset  int
	Message string
}

func (e *ExprError) Error() string {
	return fmt.Sprintf("offset %d: %s", e.Offset, e.Message)
}

// Resolver maps an identifier to the item parameter it names.
type Resolver func(name string) (*expr.Parameter, bool)

// ParseExpr parses a function body such as `s.Age > 5 && !s.Retired`.
//
// Grammar, loosest binding first:
//
//	||
//	&&
//	== !=
//	< <= > >=
//	+ -
//	* /
//	! - (prefix)
//	x.Name  f(a, b)  (e)  literals
//
// Literals are integers, double-quoted strings with Go escapes, true,
// false and null. Identifiers are resolved through resolve; function
// names are not.
func ParseExpr(src string, resolve Resolver) (expr.Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks, resolve: resolve}
	e, err := p.parse(precLowest)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, &ExprError{Offset: t.pos, Message: fmt.Sprintf("unexpected %s", t)}
	}
	return e, nil
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokInt
	tokString
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokDot
)

type exprToken struct {
	kind tokenKind
	text string
	pos  int
}

func (t exprToken) String() string {
	if t.kind == tokEOF {
		return "end of expression"
	}
	return strconv.Quote(t.text)
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}

func lex(src string) ([]exprToken, error) {
	var toks []exprToken
	for i := 0; i < len(src); {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, exprToken{kind: tokIdent, text: src[start:i], pos: start})
		case unicode.IsDigit(c):
			start := i
			for i < len(src) && unicode.IsDigit(rune(src[i])) {
				i++
			}
			toks = append(toks, exprToken{kind: tokInt, text: src[start:i], pos: start})
		case c == '"':
			start := i
			i++
			for i < len(src) && src[i] != '"' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(src) {
				return nil, &ExprError{Offset: start, Message: "unterminated string literal"}
			}
			i++
			toks = append(toks, exprToken{kind: tokString, text: src[start:i], pos: start})
		case c == '(':
			toks = append(toks, exprToken{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, exprToken{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, exprToken{kind: tokComma, text: ",", pos: i})
			i++
		case c == '.':
			toks = append(toks, exprToken{kind: tokDot, text: ".", pos: i})
			i++
		default:
			op := ""
			for _, two := range twoCharOps {
				if strings.HasPrefix(src[i:], two) {
					op = two
					break
				}
			}
			if op == "" && strings.ContainsRune("<>!+-*/", c) {
				op = string(c)
			}
			if op == "" {
				return nil, &ExprError{Offset: i, Message: fmt.Sprintf("unexpected character %q", c)}
			}
			toks = append(toks, exprToken{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	return append(toks, exprToken{kind: tokEOF, pos: len(src)}), nil
}

const (
	precLowest = iota
	precOr
	precAnd
	precEquality
	precCompare
	precSum
	precProduct
	precUnary
)

var infixOps = map[string]struct {
	op   expr.BinaryOp
	prec int
}{
	"||": {expr.OpOr, precOr},
	"&&": {expr.OpAnd, precAnd},
	"==": {expr.OpEq, precEquality},
	"!=": {expr.OpNe, precEquality},
	"<":  {expr.OpLt, precCompare},
	"<=": {expr.OpLe, precCompare},
	">":  {expr.OpGt, precCompare},
	">=": {expr.OpGe, precCompare},
	"+":  {expr.OpAdd, precSum},
	"-":  {expr.OpSub, precSum},
	"*":  {expr.OpMul, precProduct},
	"/":  {expr.OpDiv, precProduct},
}

type exprParser struct {
	toks    []exprToken
	i       int
	resolve Resolver
}

func (p *exprParser) peek() exprToken { return p.toks[p.i] }

func (p *exprParser) next() exprToken {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *exprParser) expect(kind tokenKind, what string) (exprToken, error) {
	t := p.next()
	if t.kind != kind {
		return t, &ExprError{Offset: t.pos, Message: fmt.Sprintf("expected %s, got %s", what, t)}
	}
	return t, nil
}

// parse reads operators binding tighter than minPrec. All binary
// operators are left-associative.
func (p *exprParser) parse(minPrec int) (expr.Expr, error) {
	left, err := p.prefix()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		info, ok := infixOps[t.text]
		if t.kind != tokOp || !ok || info.prec <= minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parse(info.prec)
		if err != nil {
			return nil, err
		}
		left = expr.Bin(info.op, left, right)
	}
}

func (p *exprParser) prefix() (expr.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokOp:
		switch t.text {
		case "!":
			operand, err := p.parse(precUnary)
			if err != nil {
				return nil, err
			}
			return &expr.Unary{Op: expr.OpNot, Operand: operand}, nil
		case "-":
			operand, err := p.parse(precUnary)
			if err != nil {
				return nil, err
			}
			if c, ok := operand.(*expr.Constant); ok {
				if n, ok := c.Value.(ir.IRInt); ok {
					return expr.Const(-n), nil
				}
			}
			return &expr.Unary{Op: expr.OpNeg, Operand: operand}, nil
		}
	case tokInt:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, &ExprError{Offset: t.pos, Message: fmt.Sprintf("integer %s out of range", t.text)}
		}
		return p.postfix(expr.Const(ir.IRInt(n)))
	case tokString:
		s, err := strconv.Unquote(t.text)
		if err != nil {
			return nil, &ExprError{Offset: t.pos, Message: fmt.Sprintf("invalid string literal %s", t.text)}
		}
		return p.postfix(expr.Const(ir.IRString(s)))
	case tokLParen:
		inner, err := p.parse(precLowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, `")"`); err != nil {
			return nil, err
		}
		return p.postfix(inner)
	case tokIdent:
		return p.identifier(t)
	}
	return nil, &ExprError{Offset: t.pos, Message: fmt.Sprintf("unexpected %s", t)}
}

func (p *exprParser) identifier(t exprToken) (expr.Expr, error) {
	switch t.text {
	case "true":
		return expr.Const(ir.IRBool(true)), nil
	case "false":
		return expr.Const(ir.IRBool(false)), nil
	case "null":
		return expr.Const(ir.IRNull{}), nil
	}

	if p.peek().kind == tokLParen {
		p.next()
		call := &expr.Call{Func: t.text}
		if p.peek().kind == tokRParen {
			p.next()
			return p.postfix(call)
		}
		for {
			arg, err := p.parse(precLowest)
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			sep := p.next()
			if sep.kind == tokRParen {
				return p.postfix(call)
			}
			if sep.kind != tokComma {
				return nil, &ExprError{Offset: sep.pos, Message: fmt.Sprintf(`expected "," or ")", got %s`, sep)}
			}
		}
	}

	param, ok := p.resolve(t.text)
	if !ok {
		return nil, &ExprError{Offset: t.pos, Message: fmt.Sprintf("unknown identifier %s", t.text)}
	}
	return p.postfix(param)
}

// postfix applies member accesses to e.
func (p *exprParser) postfix(e expr.Expr) (expr.Expr, error) {
	for p.peek().kind == tokDot {
		p.next()
		name, err := p.expect(tokIdent, "member name")
		if err != nil {
			return nil, err
		}
		e = expr.Field(e, name.text)
	}
	return e, nil
}
