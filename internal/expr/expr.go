package expr

import "github.com/roach88/chainql/internal/ir"

// Expr is a node of a function body.
//
// This is a sealed interface: only types in this package implement it, so
// type switches over Expr are exhaustive. Operation-chain nodes (*Op) are
// expressions too, which is how a nested query shows up as an operand.
type Expr interface {
	exprNode()
}

// QuerySource is something that produces the items a query iterates over:
// a from clause, a join clause or a group join clause. Identifier
// references point at a QuerySource by identity.
type QuerySource interface {
	ItemName() string
	ItemType() *Type
}

// QueryModel is the view of a parsed sub-query that expressions need.
type QueryModel interface {
	String() string
}

// Parameter is the bound parameter of a function, or the identifier a
// source-like operation introduces. Parameters are compared by pointer
// identity; two parameters with the same name are different identifiers.
type Parameter struct {
	Name string
	Type *Type
}

// Constant is a literal value.
type Constant struct {
	Value ir.IRValue
}

// Member accesses a named field of Target.
type Member struct {
	Target Expr
	Name   string
}

// BinaryOp is a binary operator token.
type BinaryOp string

// Binary operators.
const (
	OpEq  BinaryOp = "=="
	OpNe  BinaryOp = "!="
	OpLt  BinaryOp = "<"
	OpLe  BinaryOp = "<="
	OpGt  BinaryOp = ">"
	OpGe  BinaryOp = ">="
	OpAnd BinaryOp = "&&"
	OpOr  BinaryOp = "||"
	OpAdd BinaryOp = "+"
	OpSub BinaryOp = "-"
	OpMul BinaryOp = "*"
	OpDiv BinaryOp = "/"
)

// Binary applies Op to Left and Right.
type Binary struct {
	Op    BinaryOp
	Left  Expr
	Right Expr
}

// UnaryOp is a unary operator token.
type UnaryOp string

// Unary operators.
const (
	OpNot UnaryOp = "!"
	OpNeg UnaryOp = "-"
)

// Unary applies Op to Operand.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// Call invokes a named function.
type Call struct {
	Func string
	Args []Expr
}

// Lambda is a single-parameter function. Body may reference Param and any
// parameter of an enclosing scope.
type Lambda struct {
	Param *Parameter
	Body  Expr
}

// Reference is a resolved identifier: it names the clause producing a
// value. It never owns Source.
type Reference struct {
	Source QuerySource
}

// SubQuery wraps a parsed nested query appearing inside a function body.
type SubQuery struct {
	Model QueryModel
}

func (*Parameter) exprNode()      {}
func (*Constant) exprNode()       {}
func (*Member) exprNode()         {}
func (*Binary) exprNode()         {}
func (*Unary) exprNode()          {}
func (*Call) exprNode()           {}
func (*Lambda) exprNode()         {}
func (*Reference) exprNode()      {}
func (*SubQuery) exprNode()       {}
func (*ConstantSource) exprNode() {}
func (*Op) exprNode()             {}

// NewParameter returns a fresh parameter.
func NewParameter(name string, typ *Type) *Parameter {
	return &Parameter{Name: name, Type: typ}
}

// NewLambda returns param => body.
func NewLambda(param *Parameter, body Expr) *Lambda {
	return &Lambda{Param: param, Body: body}
}

// Const wraps a literal.
func Const(v ir.IRValue) *Constant {
	return &Constant{Value: v}
}

// Field returns target.name.
func Field(target Expr, name string) *Member {
	return &Member{Target: target, Name: name}
}

// Bin returns left op right.
func Bin(op BinaryOp, left, right Expr) *Binary {
	return &Binary{Op: op, Left: left, Right: right}
}
