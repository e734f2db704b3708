package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/testutil"
)

func testResolver() (Resolver, *expr.Parameter) {
	s := expr.NewParameter("s", testutil.CookType)
	k := expr.NewParameter("k", testutil.KitchenType)
	items := map[string]*expr.Parameter{"s": s, "k": k}
	return func(name string) (*expr.Parameter, bool) {
		p, ok := items[name]
		return p, ok
	}, s
}

func TestParseExpr(t *testing.T) {
	resolve, _ := testResolver()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{"comparison", "s.Age > 5", "(s.Age > 5)"},
		{"and binds tighter than or", "s.A || s.B && s.C", "(s.A || (s.B && s.C))"},
		{"not", "s.Age > 5 && !s.Active", "((s.Age > 5) && !s.Active)"},
		{"product before sum", "1 + 2 * 3", "(1 + (2 * 3))"},
		{"parentheses", "(1 + 2) * 3", "((1 + 2) * 3)"},
		{"left associative", "10 - 4 - 3", "((10 - 4) - 3)"},
		{"range", "s.Age >= 18 && s.Age <= 65", "((s.Age >= 18) && (s.Age <= 65))"},
		{"negative literal", "-5", "-5"},
		{"negated member", "-s.Age", "-s.Age"},
		{"call", `lower(s.Name) == "ada"`, `(lower(s.Name) == "ada")`},
		{"call without arguments", "now()", "now()"},
		{"call with arguments", "coalesce(s.Name, k.Name)", "coalesce(s.Name, k.Name)"},
		{"nested members", "s.Kitchen.Name", "s.Kitchen.Name"},
		{"escaped string", `"a\"b"`, `"a\"b"`},
		{"null", "s == null", "(s == null)"},
		{"booleans", "true != false", "(true != false)"},
		{"two items", "k.CookID == s.ID", "(k.CookID == s.ID)"},
		{"whitespace", "  s.Age\t<  3 ", "(s.Age < 3)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseExpr(tt.src, resolve)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Format(e))
		})
	}
}

func TestParseExprResolvesByIdentity(t *testing.T) {
	resolve, s := testResolver()

	e, err := ParseExpr("s", resolve)
	require.NoError(t, err)
	assert.Same(t, s, e)

	e, err = ParseExpr("s.Name", resolve)
	require.NoError(t, err)
	m, ok := e.(*expr.Member)
	require.True(t, ok)
	assert.Same(t, s, m.Target)
}

func TestParseExprErrors(t *testing.T) {
	resolve, _ := testResolver()

	tests := []struct {
		name    string
		src     string
		offset  int
		message string
	}{
		{"unknown identifier", "x.Age", 0, "unknown identifier x"},
		{"unknown identifier later", "s.Age > y", 8, "unknown identifier y"},
		{"missing operand", "s.Age >", 7, "unexpected end of expression"},
		{"bad character", "s.Age @ 3", 6, `unexpected character '@'`},
		{"unterminated string", `"abc`, 0, "unterminated string literal"},
		{"unclosed paren", "(s.Age", 6, `expected ")", got end of expression`},
		{"missing member name", "s.", 2, "expected member name, got end of expression"},
		{"missing comma", "f(1 2)", 4, `expected "," or ")", got "2"`},
		{"trailing token", "s.Age 5", 6, `unexpected "5"`},
		{"integer overflow", "99999999999999999999", 0, "integer 99999999999999999999 out of range"},
		{"empty", "", 0, "unexpected end of expression"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.src, resolve)
			require.Error(t, err)
			var ee *ExprError
			require.ErrorAs(t, err, &ee)
			assert.Equal(t, tt.offset, ee.Offset)
			assert.Equal(t, tt.message, ee.Message)
		})
	}
}
