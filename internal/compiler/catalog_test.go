package compiler

import (
	"testing"

	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/parser"
	"github.com/roach88/chainql/internal/queryir"
)

const kitchenCollections = `
collection: Cooks: {type: "Cook", table: "cooks"}
collection: Kitchens: {type: "Kitchen"}
`

func compileCUE(t *testing.T, src string) (*Catalog, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v)
}

func parsedQuery(t *testing.T, cat *Catalog, name string) *queryir.Model {
	t.Helper()
	q, ok := cat.Query(name)
	require.True(t, ok, "query %s not compiled", name)
	m, err := parser.Parse(q.Root)
	require.NoError(t, err)
	return m
}

func TestCompileQueries(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{
			name: "filter and ordering",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{where: "s.Age > 5"}, {orderBy: "s.Name"}, {thenByDescending: "s.Age"}]
				select: "s.Name"
				distinct: true
			}`,
			want: "from Cook s in Cooks where ([s].Age > 5) orderby [s].Name asc, [s].Age desc select distinct [s].Name",
		},
		{
			name: "join",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [
					{join: {item: "k", in: "Kitchens", on: "s.ID", equals: "k.CookID"}},
					{where: "k.Open"},
				]
				select: "k.Name"
			}`,
			want: "from Cook s in Cooks join Kitchen k in Kitchens on [s].ID equals [k].CookID where [k].Open select [k].Name",
		},
		{
			name: "correlated nested chain",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{from: {item: "k", chain: {
					from: {item: "kk", in: "Kitchens"}
					steps: [{where: "kk.CookID == s.ID"}]
					select: "kk"
				}}}]
				select: "k.Name"
			}`,
			want: "from Cook s in Cooks from Kitchen k in {from Kitchen kk in Kitchens where ([kk].CookID == [s].ID) select [kk]} select [k].Name",
		},
		{
			name: "additional collection with projection",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{from: {item: "k", in: "Kitchens"}, select: "k"}]
				select: "k.Name"
			}`,
			want: "from Cook s in Cooks from Kitchen k in Kitchens select [k].Name",
		},
		{
			name: "member collection",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [
					{join: {item: "k", in: "Kitchens", on: "s.ID", equals: "k.CookID"}},
					{from: {item: "d", expr: "k.Dishes", type: "Dish"}},
				]
				select: "d.Name"
			}`,
			want: "from Cook s in Cooks join Kitchen k in Kitchens on [s].ID equals [k].CookID from Dish d in [k].Dishes select [d].Name",
		},
		{
			name: "group join",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{groupJoin: {item: "k", in: "Kitchens", on: "s.ID", equals: "k.CookID", into: "ks"}}]
				select: "ks"
			}`,
			want: "from Cook s in Cooks join Kitchen k in Kitchens on [s].ID equals [k].CookID into []Kitchen ks select [ks]",
		},
		{
			name: "result operators",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{skip: 1}, {take: 2}]
				select: "s.Name"
				distinct: true
			}`,
			want: "from Cook s in Cooks select distinct [s].Name => Skip(1) => Take(2)",
		},
		{
			name: "first",
			query: `query: q: {
				from: {item: "s", in: "Cooks"}
				steps: [{orderByDescending: "s.Age"}, {first: true}]
				select: "s"
			}`,
			want: "from Cook s in Cooks orderby [s].Age desc select [s] => First()",
		},
		{
			name: "nested main source",
			query: `query: q: {
				from: {item: "c", chain: {from: {item: "s", in: "Cooks"}, steps: [{take: 2}], select: "s"}}
				steps: [{where: "c.Active"}]
				select: "c.Name"
			}`,
			want: "from Cook c in {from Cook s in Cooks select [s] => Take(2)} where [c].Active select [c].Name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := compileCUE(t, kitchenCollections+tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, parsedQuery(t, cat, "q").String())
		})
	}
}

func TestCompileQueryReference(t *testing.T) {
	cat, err := compileCUE(t, kitchenCollections+`
		query: firstTwo: {
			from: {item: "s", in: "Cooks"}
			steps: [{take: 2}]
			select: "s"
		}
		query: activeOfFirstTwo: {
			from: {item: "c", query: "firstTwo"}
			steps: [{where: "c.Active"}]
			select: "c.Name"
		}
	`)
	require.NoError(t, err)

	require.Len(t, cat.Queries, 2)
	assert.Equal(t, "activeOfFirstTwo", cat.Queries[0].Name)
	assert.Equal(t, "firstTwo", cat.Queries[1].Name)
	assert.Equal(t,
		"from Cook c in {from Cook s in Cooks select [s] => Take(2)} where [c].Active select [c].Name",
		parsedQuery(t, cat, "activeOfFirstTwo").String())

	outer, _ := cat.Query("activeOfFirstTwo")
	inner, _ := cat.Query("firstTwo")
	src := outer.Root
	for src.Prev != nil {
		src = src.Prev
	}
	assert.Same(t, inner.Root, src.Chain, "references share the compiled chain")
}

func TestCompileCollections(t *testing.T) {
	cat, err := compileCUE(t, kitchenCollections+`
		collection: numbers: {type: "int", values: [1, 7, 9]}
		collection: Chefs: {type: "Cook"}
		query: big: {
			from: {item: "i", in: "numbers"}
			steps: [{where: "i > 5"}]
			select: "i"
		}
	`)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Cooks":    "cooks",
		"Kitchens": "Kitchens",
		"numbers":  "numbers",
		"Chefs":    "Chefs",
	}, cat.Tables())
	assert.Equal(t, ir.IRArray{ir.IRInt(1), ir.IRInt(7), ir.IRInt(9)}, cat.Collections["numbers"].Source.Value)
	assert.Nil(t, cat.Collections["Cooks"].Source.Value)
	assert.Same(t, cat.Collections["Cooks"].Source.ElementType(), cat.Collections["Chefs"].Source.ElementType())

	assert.Equal(t, "from int i in numbers where ([i] > 5) select [i]", parsedQuery(t, cat, "big").String())
}

func TestCompileEmpty(t *testing.T) {
	cat, err := compileCUE(t, ``)
	require.NoError(t, err)
	assert.Empty(t, cat.Collections)
	assert.Empty(t, cat.Queries)
	_, ok := cat.Query("missing")
	assert.False(t, ok)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		field   string
		message string
	}{
		{
			name:    "unknown identifier",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{where: "x.Age > 1"}], select: "s"}`,
			field:   "query.q.steps[0].where",
			message: `unknown identifier x at offset 0 in "x.Age > 1"`,
		},
		{
			name:    "missing select",
			src:     `query: q: {from: {item: "s", in: "Cooks"}}`,
			field:   "query.q.select",
			message: "select is required",
		},
		{
			name:    "missing from",
			src:     `query: q: {select: "s"}`,
			field:   "query.q.from",
			message: "from is required",
		},
		{
			name:    "missing item",
			src:     `query: q: {from: {in: "Cooks"}, select: "s"}`,
			field:   "query.q.from.item",
			message: "item is required",
		},
		{
			name:    "unknown collection",
			src:     `query: q: {from: {item: "s", in: "Nope"}, select: "s"}`,
			field:   "query.q.from.in",
			message: "unknown collection Nope",
		},
		{
			name:    "unknown query",
			src:     `query: q: {from: {item: "s", query: "nope"}, select: "s"}`,
			field:   "query.q.from.query",
			message: "unknown query nope",
		},
		{
			name:    "two sources",
			src:     `query: q: {from: {item: "s", in: "Cooks", query: "q2"}, select: "s"}`,
			field:   "query.q.from",
			message: "exactly one of in, chain, query is required",
		},
		{
			name:    "expression as first source",
			src:     `query: q: {from: {item: "s", expr: "1"}, select: "s"}`,
			field:   "query.q.from.expr",
			message: "the first source must be a collection, chain or query",
		},
		{
			name:    "step after result operator",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{take: 1}, {where: "s.Active"}], select: "s"}`,
			field:   "query.q.steps[1]",
			message: "where after result operator take",
		},
		{
			name:    "unknown step",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{filter: "s.Active"}], select: "s"}`,
			field:   "query.q.steps[0]",
			message: "unknown step filter",
		},
		{
			name:    "two operations in a step",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{where: "s.Active", take: 1}], select: "s"}`,
			field:   "query.q.steps[0]",
			message: "step has both where and take",
		},
		{
			name:    "empty step",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{}], select: "s"}`,
			field:   "query.q.steps[0]",
			message: "step names no operation",
		},
		{
			name:    "select on a filter",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{where: "s.Active", select: "s"}], select: "s"}`,
			field:   "query.q.steps[0].select",
			message: "select is only allowed on from steps",
		},
		{
			name:    "negative take",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{take: -1}], select: "s"}`,
			field:   "query.q.steps[0].take",
			message: "take needs a non-negative count",
		},
		{
			name:    "first false",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{first: false}], select: "s"}`,
			field:   "query.q.steps[0].first",
			message: "must be true",
		},
		{
			name:    "non-string predicate",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{where: 1}], select: "s"}`,
			field:   "query.q.steps[0].where",
			message: "must be a string",
		},
		{
			name: "uninferable item type",
			src: `query: q: {
				from: {item: "c", chain: {from: {item: "s", in: "Cooks"}, select: "s.Name"}}
				select: "c"
			}`,
			field:   "query.q.from.type",
			message: "type of item c cannot be inferred; set type",
		},
		{
			name:    "inner key sees only the joined item",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{join: {item: "k", in: "Kitchens", on: "s.ID", equals: "s.ID"}}], select: "k"}`,
			field:   "query.q.steps[0].join.equals",
			message: `unknown identifier s at offset 0 in "s.ID"`,
		},
		{
			name:    "group join hides the joined item",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{groupJoin: {item: "k", in: "Kitchens", on: "s.ID", equals: "k.CookID", into: "ks"}}, {where: "k.Open"}], select: "ks"}`,
			field:   "query.q.steps[1].where",
			message: `unknown identifier k at offset 0 in "k.Open"`,
		},
		{
			name:    "group join without into",
			src:     `query: q: {from: {item: "s", in: "Cooks"}, steps: [{groupJoin: {item: "k", in: "Kitchens", on: "s.ID", equals: "k.CookID"}}], select: "s"}`,
			field:   "query.q.steps[0].groupJoin.into",
			message: "into is required",
		},
		{
			name:    "float values",
			src:     `collection: ratios: {type: "int", values: [1.5]}`,
			field:   "collection.ratios.values[0]",
			message: "floating point values are not supported; use integers",
		},
		{
			name:    "collection without type",
			src:     `collection: bad: {table: "bad"}`,
			field:   "collection.bad.type",
			message: "type is required",
		},
		{
			name: "query cycle",
			src: `
				query: a: {from: {item: "x", query: "b"}, select: "x"}
				query: b: {from: {item: "y", query: "a"}, select: "y"}
			`,
			field:   "query.a",
			message: "query cycle: a -> b -> a",
		},
		{
			name:    "self reference",
			src:     `query: a: {from: {item: "x", query: "a"}, select: "x"}`,
			field:   "query.a",
			message: "query cycle: a -> a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileCUE(t, kitchenCollections+tt.src)
			require.Error(t, err)
			require.True(t, IsCompileError(err), "got %T: %v", err, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Equal(t, tt.message, ce.Message)
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := compileCUE(t, kitchenCollections+`
query: q: {
	from: {item: "s", in: "Cooks"}
	steps: [{where: "s.Age > nope"}]
	select: "s"
}`)
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 7, ce.Pos.Line())
	assert.Contains(t, ce.Error(), ":7:")
}

func TestCompileCUEError(t *testing.T) {
	v := cuecontext.New().CompileString(`query: q: {select: string}`)
	_, err := Compile(v)
	require.Error(t, err)
}
