package compiler

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/ir"
)

// Collection is a named data source declared under `collection:`.
//
//	collection: Cooks: {type: "Cook", table: "cooks"}
//	collection: Small: {type: "int", values: [1, 2, 3]}
type Collection struct {
	Name   string
	Source *expr.ConstantSource
	Table  string // SQL table name; defaults to Name
	Pos    token.Pos
}

// Query is one operation chain declared under `query:`.
type Query struct {
	Name string
	Root *expr.Op
	Pos  token.Pos
}

// Catalog holds everything compiled from one CUE instance.
type Catalog struct {
	Collections map[string]*Collection
	Queries     []*Query // sorted by name
}

// Query returns the query named name.
func (c *Catalog) Query(name string) (*Query, bool) {
	i, found := slices.BinarySearchFunc(c.Queries, name, func(q *Query, n string) int {
		return strings.Compare(q.Name, n)
	})
	if !found {
		return nil, false
	}
	return c.Queries[i], true
}

// Tables maps collection names to SQL table names.
func (c *Catalog) Tables() map[string]string {
	tables := make(map[string]string, len(c.Collections))
	for name, col := range c.Collections {
		tables[name] = col.Table
	}
	return tables
}

// Compile builds a Catalog from a CUE value holding `collection` and
// `query` structs. Uses the CUE SDK's Go API directly.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`collection: Cooks: {type: "Cook"} ...`)
//	cat, err := Compile(v)
//
// Queries reading each other in a cycle are an error.
func Compile(v cue.Value) (*Catalog, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	c := &compiler{
		types:       map[string]*expr.Type{"int": expr.Int, "string": expr.String, "bool": expr.Bool},
		collections: map[string]*Collection{},
		defs:        map[string]cue.Value{},
		compiled:    map[string]*chain{},
	}
	if err := c.loadCollections(v.LookupPath(cue.ParsePath("collection"))); err != nil {
		return nil, err
	}
	if err := c.loadDefinitions(v.LookupPath(cue.ParsePath("query"))); err != nil {
		return nil, err
	}

	graph := referenceGraph{}
	for name, def := range c.defs {
		graph[name] = queryRefs(def)
	}
	if cycles := findCycles(graph); len(cycles) > 0 {
		err := cycleError(cycles[0])
		err.Pos = c.defs[cycles[0].Path[0]].Pos()
		return nil, err
	}

	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	slices.Sort(names)

	cat := &Catalog{Collections: c.collections, Queries: []*Query{}}
	for _, name := range names {
		ch, err := c.query(name)
		if err != nil {
			return nil, err
		}
		cat.Queries = append(cat.Queries, &Query{Name: name, Root: ch.op, Pos: c.defs[name].Pos()})
	}

	slog.Debug("catalog compiled", "collections", len(cat.Collections), "queries", len(cat.Queries))
	return cat, nil
}

type compiler struct {
	types       map[string]*expr.Type
	collections map[string]*Collection
	defs        map[string]cue.Value
	compiled    map[string]*chain
}

// typeNamed returns the one Type for name, so equal names share identity.
func (c *compiler) typeNamed(name string) *expr.Type {
	if t, ok := c.types[name]; ok {
		return t
	}
	t := expr.Named(name)
	c.types[name] = t
	return t
}

func (c *compiler) loadCollections(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		col, err := c.collection(name, iter.Value())
		if err != nil {
			return err
		}
		c.collections[name] = col
	}
	return nil
}

func (c *compiler) collection(name string, v cue.Value) (*Collection, error) {
	field := "collection." + name
	typeName, err := requiredString(v, "type", field)
	if err != nil {
		return nil, err
	}
	table, ok, err := stringField(v, "table", field)
	if err != nil {
		return nil, err
	}
	if !ok {
		table = name
	}

	var values ir.IRArray
	if vals := v.LookupPath(cue.ParsePath("values")); vals.Exists() {
		if vals.IncompleteKind() != cue.ListKind {
			return nil, &CompileError{Field: field + ".values", Message: "must be a list", Pos: vals.Pos()}
		}
		val, err := irValue(vals, field+".values")
		if err != nil {
			return nil, err
		}
		values = val.(ir.IRArray)
	}

	src, err := expr.NewConstantSource(name, expr.SequenceOf(c.typeNamed(typeName)), values)
	if err != nil {
		return nil, err
	}
	return &Collection{Name: name, Source: src, Table: table, Pos: v.Pos()}, nil
}

func (c *compiler) loadDefinitions(v cue.Value) error {
	if !v.Exists() {
		return nil
	}
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		c.defs[iter.Label()] = iter.Value()
	}
	return nil
}

// query compiles the named query once; later references share the chain.
func (c *compiler) query(name string) (*chain, error) {
	if ch, ok := c.compiled[name]; ok {
		return ch, nil
	}
	def, ok := c.defs[name]
	if !ok {
		return nil, fmt.Errorf("unknown query %s", name)
	}
	ch, err := c.chain(def, "query."+name, nil)
	if err != nil {
		return nil, err
	}
	c.compiled[name] = ch
	return ch, nil
}

// queryRefs lists the queries v reads through `from: {query: ...}`,
// at any depth.
func queryRefs(v cue.Value) []string {
	var refs []string
	var walk func(cue.Value)
	walk = func(v cue.Value) {
		switch v.IncompleteKind() {
		case cue.StructKind:
			if from := v.LookupPath(cue.ParsePath("from")); from.Exists() {
				if q, err := from.LookupPath(cue.ParsePath("query")).String(); err == nil {
					refs = append(refs, q)
				}
			}
			iter, err := v.Fields()
			if err != nil {
				return
			}
			for iter.Next() {
				walk(iter.Value())
			}
		case cue.ListKind:
			iter, err := v.List()
			if err != nil {
				return
			}
			for iter.Next() {
				walk(iter.Value())
			}
		}
	}
	walk(v)
	slices.Sort(refs)
	return slices.Compact(refs)
}
