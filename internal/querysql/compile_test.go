package querysql

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/parser"
	"github.com/roach88/chainql/internal/queryir"
	"github.com/roach88/chainql/internal/testutil"
)

func parse(t *testing.T, root *expr.Op) *queryir.Model {
	t.Helper()
	m, err := parser.Parse(root)
	require.NoError(t, err)
	return m
}

func compile(t *testing.T, root *expr.Op) (string, []any) {
	t.Helper()
	sql, params, err := NewSQLCompiler().Compile(parse(t, root))
	require.NoError(t, err)
	return sql, params
}

func intConst(v int64) *expr.Constant { return expr.Const(ir.IRInt(v)) }

func TestCompile_FilterAndOrdering(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	root := expr.From(s, testutil.Cooks()).
		Where(expr.NewLambda(s, expr.Bin(expr.OpGt, expr.Field(s, "Age"), intConst(5)))).
		OrderBy(testutil.Field(s, "Name")).
		Select(testutil.Identity(s))

	sql, params := compile(t, root)

	assert.Equal(t, `SELECT "s".* FROM "Cooks" AS "s" WHERE ("s"."Age" > ?) ORDER BY "s"."Name" ASC`, sql)
	assert.Equal(t, []any{int64(5)}, params)
}

func TestCompile_NoStringInterpolation(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	root := expr.From(s, testutil.Cooks()).
		Where(expr.NewLambda(s, expr.Bin(expr.OpEq, expr.Field(s, "Name"), expr.Const(ir.IRString("'; DROP TABLE Cooks; --"))))).
		Select(testutil.Identity(s))

	sql, params := compile(t, root)

	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{"'; DROP TABLE Cooks; --"}, params)
}

func TestCompile_LaterOrderingGroupsTakePrecedence(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	root := expr.From(s, testutil.Cooks()).
		OrderBy(testutil.Field(s, "Name")).
		ThenByDescending(testutil.Field(s, "Age")).
		Where(expr.NewLambda(s, expr.Field(s, "Active"))).
		OrderBy(testutil.Field(s, "ID")).
		Select(testutil.Field(s, "Name"))

	sql, _ := compile(t, root)

	assert.Equal(t,
		`SELECT "s"."Name" FROM "Cooks" AS "s" WHERE "s"."Active" ORDER BY "s"."ID" ASC, "s"."Name" ASC, "s"."Age" DESC`,
		sql)
}

func TestCompile_ParametersFollowClauseOrder(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	k := expr.NewParameter("k", testutil.KitchenType)
	root := expr.From(s, testutil.Cooks()).
		Join(k, testutil.Kitchens(),
			expr.NewLambda(s, expr.Bin(expr.OpAdd, expr.Field(s, "ID"), intConst(2))),
			testutil.Field(k, "CookID")).
		Where(expr.NewLambda(k, expr.Bin(expr.OpGe, expr.Field(k, "Floor"), intConst(3)))).
		Select(expr.NewLambda(k, expr.Bin(expr.OpMul, expr.Field(k, "Floor"), intConst(1))))

	sql, params := compile(t, root)

	assert.Equal(t,
		`SELECT ("k"."Floor" * ?) AS "value" FROM "Cooks" AS "s" JOIN "Kitchens" AS "k" ON ("s"."ID" + ?) = "k"."CookID" WHERE ("k"."Floor" >= ?)`,
		sql)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, params)
}

func TestCompile_AdditionalFromIsCrossJoin(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	k := expr.NewParameter("k", testutil.KitchenType)
	root := expr.From(s, testutil.Cooks()).
		SelectMany(k, expr.NewLambda(s, testutil.Kitchens()), nil).
		Where(expr.NewLambda(k, expr.Bin(expr.OpEq, expr.Field(k, "CookID"), expr.Field(s, "ID")))).
		Select(testutil.Field(k, "Name"))

	sql, params := compile(t, root)

	assert.Equal(t,
		`SELECT "k"."Name" FROM "Cooks" AS "s" CROSS JOIN "Kitchens" AS "k" WHERE ("k"."CookID" = "s"."ID")`,
		sql)
	assert.Empty(t, params)
}

func TestCompile_SubQuerySources(t *testing.T) {
	t.Run("additional from", func(t *testing.T) {
		s := expr.NewParameter("s", testutil.CookType)
		k := expr.NewParameter("k", testutil.KitchenType)
		kk := expr.NewParameter("kk", testutil.KitchenType)
		upstairs := expr.From(kk, testutil.Kitchens()).
			Where(expr.NewLambda(kk, expr.Bin(expr.OpGt, expr.Field(kk, "Floor"), intConst(1)))).
			Select(testutil.Identity(kk))
		root := expr.From(s, testutil.Cooks()).
			SelectMany(k, expr.NewLambda(s, upstairs), nil).
			Select(testutil.Field(k, "Name"))

		sql, params := compile(t, root)

		assert.Equal(t,
			`SELECT "k"."Name" FROM "Cooks" AS "s" CROSS JOIN (SELECT "kk".* FROM "Kitchens" AS "kk" WHERE ("kk"."Floor" > ?)) AS "k"`,
			sql)
		assert.Equal(t, []any{int64(1)}, params)
	})

	t.Run("main from", func(t *testing.T) {
		s := expr.NewParameter("s", testutil.CookType)
		c := expr.NewParameter("c", testutil.CookType)
		top := expr.From(s, testutil.Cooks()).Select(testutil.Identity(s)).Take(2)
		root := expr.FromChain(c, top).
			Where(expr.NewLambda(c, expr.Field(c, "Active"))).
			Select(testutil.Field(c, "Name"))

		sql, _ := compile(t, root)

		assert.Equal(t,
			`SELECT "c"."Name" FROM (SELECT "s".* FROM "Cooks" AS "s" LIMIT 2) AS "c" WHERE "c"."Active"`,
			sql)
	})

	t.Run("correlated sub-query", func(t *testing.T) {
		s := expr.NewParameter("s", testutil.CookType)
		k := expr.NewParameter("k", testutil.KitchenType)
		kk := expr.NewParameter("kk", testutil.KitchenType)
		ofCook := expr.From(kk, testutil.Kitchens()).
			Where(expr.NewLambda(kk, expr.Bin(expr.OpEq, expr.Field(kk, "CookID"), expr.Field(s, "ID")))).
			Select(testutil.Identity(kk))
		root := expr.From(s, testutil.Cooks()).
			SelectMany(k, expr.NewLambda(s, ofCook), nil).
			Select(testutil.Field(k, "Name"))

		_, _, err := NewSQLCompiler().Compile(parse(t, root))
		require.ErrorIs(t, err, ErrUnsupported)
		assert.Contains(t, err.Error(), "reference to s from outside its query")
	})
}

func TestCompile_ResultModifiers(t *testing.T) {
	base := `SELECT "s".* FROM "Cooks" AS "s"`
	maxLimit := strconv.FormatUint(math.MaxInt64, 10)

	tests := []struct {
		name  string
		apply func(*expr.Op) *expr.Op
		want  string
	}{
		{"take", func(o *expr.Op) *expr.Op { return o.Take(3) }, base + " LIMIT 3"},
		{"skip then take", func(o *expr.Op) *expr.Op { return o.Skip(1).Take(2) }, base + " LIMIT 2 OFFSET 1"},
		{"take then skip", func(o *expr.Op) *expr.Op { return o.Take(5).Skip(2) }, base + " LIMIT 3 OFFSET 2"},
		{"skip past take", func(o *expr.Op) *expr.Op { return o.Take(2).Skip(4) }, base + " LIMIT 0 OFFSET 4"},
		{"skip only", func(o *expr.Op) *expr.Op { return o.Skip(3) }, base + " LIMIT " + maxLimit + " OFFSET 3"},
		{"smallest take wins", func(o *expr.Op) *expr.Op { return o.Take(2).Take(7) }, base + " LIMIT 2"},
		{"first", func(o *expr.Op) *expr.Op { return o.Result(expr.ModFirst) }, base + " LIMIT 1"},
		{"count", func(o *expr.Op) *expr.Op { return o.Take(4).Result(expr.ModCount) }, "SELECT COUNT(*) FROM (" + base + " LIMIT 4) AS q"},
		{"any", func(o *expr.Op) *expr.Op { return o.Result(expr.ModAny) }, "SELECT EXISTS (" + base + ")"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := expr.NewParameter("s", testutil.CookType)
			root := tt.apply(expr.From(s, testutil.Cooks()).Select(testutil.Identity(s)))

			sql, _ := compile(t, root)
			assert.Equal(t, tt.want, sql)
		})
	}
}

func TestCompile_Distinct(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	root := expr.From(s, testutil.Cooks()).SelectDistinct(testutil.Field(s, "Name"))

	sql, _ := compile(t, root)

	assert.Equal(t, `SELECT DISTINCT "s"."Name" FROM "Cooks" AS "s"`, sql)
}

func TestCompile_Expressions(t *testing.T) {
	tests := []struct {
		name   string
		pred   func(s *expr.Parameter) expr.Expr
		want   string
		params []any
	}{
		{
			name:   "is null",
			pred:   func(s *expr.Parameter) expr.Expr { return expr.Bin(expr.OpEq, expr.Field(s, "Boss"), expr.Const(ir.IRNull{})) },
			want:   `("s"."Boss" IS NULL)`,
			params: nil,
		},
		{
			name:   "is not null",
			pred:   func(s *expr.Parameter) expr.Expr { return expr.Bin(expr.OpNe, expr.Field(s, "Boss"), expr.Const(ir.IRNull{})) },
			want:   `("s"."Boss" IS NOT NULL)`,
			params: nil,
		},
		{
			name: "not and or",
			pred: func(s *expr.Parameter) expr.Expr {
				return expr.Bin(expr.OpOr,
					&expr.Unary{Op: expr.OpNot, Operand: expr.Field(s, "Active")},
					expr.Bin(expr.OpAnd, expr.Field(s, "Senior"), expr.Const(ir.IRBool(true))))
			},
			want:   `((NOT "s"."Active") OR ("s"."Senior" AND ?))`,
			params: []any{true},
		},
		{
			name: "function call",
			pred: func(s *expr.Parameter) expr.Expr {
				return expr.Bin(expr.OpEq,
					&expr.Call{Func: "lower", Args: []expr.Expr{expr.Field(s, "Name")}},
					expr.Const(ir.IRString("ada")))
			},
			want:   `(LOWER("s"."Name") = ?)`,
			params: []any{"ada"},
		},
		{
			name:   "negation",
			pred:   func(s *expr.Parameter) expr.Expr { return expr.Bin(expr.OpLt, &expr.Unary{Op: expr.OpNeg, Operand: expr.Field(s, "Age")}, intConst(0)) },
			want:   `((-"s"."Age") < ?)`,
			params: []any{int64(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := expr.NewParameter("s", testutil.CookType)
			root := expr.From(s, testutil.Cooks()).
				Where(expr.NewLambda(s, tt.pred(s))).
				Select(testutil.Identity(s))

			sql, params := compile(t, root)
			assert.Equal(t, `SELECT "s".* FROM "Cooks" AS "s" WHERE `+tt.want, sql)
			if tt.params == nil {
				assert.Empty(t, params)
			} else {
				assert.Equal(t, tt.params, params)
			}
		})
	}
}

func TestCompile_ShadowedNamesGetDistinctAliases(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	s2 := expr.NewParameter("s", testutil.KitchenType)
	root := expr.From(s, testutil.Cooks()).
		Join(s2, testutil.Kitchens(), testutil.Field(s, "ID"), testutil.Field(s2, "CookID")).
		Select(testutil.Identity(s2))

	sql, _ := compile(t, root)

	assert.Equal(t,
		`SELECT "s_2".* FROM "Cooks" AS "s" JOIN "Kitchens" AS "s_2" ON "s"."ID" = "s_2"."CookID"`,
		sql)
}

func TestCompile_TableMapping(t *testing.T) {
	s := expr.NewParameter("s", testutil.CookType)
	root := expr.From(s, testutil.Cooks()).Select(testutil.Identity(s))

	compiler := NewSQLCompiler()
	compiler.Tables["Cooks"] = "cooks"
	sql, _, err := compiler.Compile(parse(t, root))
	require.NoError(t, err)

	assert.Equal(t, `SELECT "s".* FROM "cooks" AS "s"`, sql)
}

func TestCompile_Unsupported(t *testing.T) {
	nums, err := expr.NewConstantSource("nums", expr.SequenceOf(expr.Int), ir.IRArray{ir.IRInt(1), ir.IRInt(2)})
	require.NoError(t, err)

	tests := []struct {
		name  string
		build func() *expr.Op
		want  string
	}{
		{
			name: "group join",
			build: func() *expr.Op {
				s := expr.NewParameter("s", testutil.CookType)
				k := expr.NewParameter("k", testutil.KitchenType)
				ks := expr.NewParameter("ks", nil)
				return expr.From(s, testutil.Cooks()).
					GroupJoin(k, testutil.Kitchens(), testutil.Field(s, "ID"), testutil.Field(k, "CookID"), ks).
					Select(testutil.Identity(s))
			},
			want: "group join into ks",
		},
		{
			name: "inline array",
			build: func() *expr.Op {
				n := expr.NewParameter("n", expr.Int)
				return expr.From(n, nums).Select(testutil.Identity(n))
			},
			want: "inline array nums",
		},
		{
			name: "last",
			build: func() *expr.Op {
				s := expr.NewParameter("s", testutil.CookType)
				return expr.From(s, testutil.Cooks()).Select(testutil.Identity(s)).Result(expr.ModLast)
			},
			want: "result operator Last()",
		},
		{
			name: "modifier after count",
			build: func() *expr.Op {
				s := expr.NewParameter("s", testutil.CookType)
				return expr.From(s, testutil.Cooks()).Select(testutil.Identity(s)).Result(expr.ModCount).Take(1)
			},
			want: "result operator Take(1) after Count()",
		},
		{
			name: "unknown function",
			build: func() *expr.Op {
				s := expr.NewParameter("s", testutil.CookType)
				return expr.From(s, testutil.Cooks()).
					Where(expr.NewLambda(s, &expr.Call{Func: "soundex", Args: []expr.Expr{expr.Field(s, "Name")}})).
					Select(testutil.Identity(s))
			},
			want: "function soundex",
		},
		{
			name: "whole item as value",
			build: func() *expr.Op {
				s := expr.NewParameter("s", testutil.CookType)
				return expr.From(s, testutil.Cooks()).
					Where(expr.NewLambda(s, expr.Bin(expr.OpEq, s, intConst(1)))).
					Select(testutil.Identity(s))
			},
			want: "whole item s used as a value",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewSQLCompiler().Compile(parse(t, tt.build()))
			require.ErrorIs(t, err, ErrUnsupported)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompile_NilModel(t *testing.T) {
	_, _, err := NewSQLCompiler().Compile(nil)
	require.Error(t, err)
}
