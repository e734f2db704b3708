package parser

import (
	"fmt"

	"github.com/roach88/chainql/internal/expr"
)

// Collected is what one scan of an operation chain yields.
type Collected struct {
	// BodyOps are the source, filter, order, additional source and join
	// operations in source order. The first entry is the source until
	// ExtractSource removes it.
	BodyOps []*expr.Op

	// Projections are the result selectors of additional sources and the
	// selectors of Select operations, in source order.
	Projections []*expr.Lambda

	// Distinct is the flag of the last Select operation.
	Distinct bool

	// ResultModifiers are the trailing result operators, in source order.
	ResultModifiers []*expr.Op

	root *expr.Op
}

// Collect scans the chain ending at chain. root is the root of the whole
// input and is only used for diagnostics.
//
// The chain is linked last-step-first, so it is walked innermost-first
// and reversed.
func Collect(chain, root *expr.Op) (*Collected, error) {
	if chain == nil {
		return nil, &StructureError{Code: ErrCodeMalformedChain, Message: "empty operation chain", Root: root}
	}

	var steps []*expr.Op
	seen := make(map[*expr.Op]bool)
	for cur := chain; cur != nil; cur = cur.Prev {
		if seen[cur] {
			return nil, &StructureError{Code: ErrCodeMalformedChain, Message: "operation chain contains a cycle", Node: cur, Root: root}
		}
		seen[cur] = true
		steps = append(steps, cur)
	}

	c := &Collected{root: root}
	for i := len(steps) - 1; i >= 0; i-- {
		op := steps[i]
		if len(c.ResultModifiers) > 0 && op.Kind != expr.KindResult {
			return nil, &StructureError{
				Code:    ErrCodeMalformedChain,
				Message: fmt.Sprintf("%s operation after a result operator", op.Kind),
				Node:    op,
				Root:    root,
			}
		}

		switch op.Kind {
		case expr.KindProject:
			if op.Projection == nil {
				return nil, &StructureError{Code: ErrCodeMissingOperand, Message: "select has no selector", Node: op, Root: root}
			}
			c.Projections = append(c.Projections, op.Projection)
			c.Distinct = op.Distinct
		case expr.KindAdditionalSource:
			c.BodyOps = append(c.BodyOps, op)
			if op.Projection != nil {
				c.Projections = append(c.Projections, op.Projection)
			}
		case expr.KindResult:
			c.ResultModifiers = append(c.ResultModifiers, op)
		default:
			c.BodyOps = append(c.BodyOps, op)
		}
	}
	return c, nil
}

// ExtractSource removes and returns the source operation, which must be
// the first body operation.
func (c *Collected) ExtractSource() (*expr.Op, error) {
	if len(c.BodyOps) == 0 || c.BodyOps[0].Kind != expr.KindSource {
		var node expr.Expr = c.root
		if len(c.BodyOps) > 0 {
			node = c.BodyOps[0]
		}
		return nil, &StructureError{
			Code:    ErrCodeMalformedChain,
			Message: "operation chain must start with a source",
			Node:    node,
			Root:    c.root,
		}
	}
	src := c.BodyOps[0]
	c.BodyOps = c.BodyOps[1:]
	return src, nil
}
