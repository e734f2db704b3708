// Package parser turns operation chains into query models.
//
// Parsing runs in three steps. Collect scans the chain once and splits it
// into body operations, projections and result operators. The builder then
// makes a single pass over the body operations, creating one clause per
// operation except for ThenBy keys, which join the ordering group opened
// by the preceding OrderBy. Before any function body is stored, the
// resolver replaces its parameters with references to the clauses that
// produce them.
//
// Operation chains nested inside a chain, as the collection of an
// additional source or anywhere inside a function body, are parsed
// recursively into sub-query models. Their free parameters resolve
// through the enclosing scopes.
//
// Every failure is fatal: Parse returns either a complete model or an
// error, never a partial model.
package parser

import (
	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/queryir"
)

// Parse builds the query model of the chain ending at root.
func Parse(root *expr.Op) (*queryir.Model, error) {
	return newBuilder(root, root, nil, 0).build()
}
