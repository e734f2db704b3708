package queryir

import (
	"fmt"

	"github.com/roach88/chainql/internal/expr"
)

// ValidationResult contains the invariant and portability analysis of a
// model.
type ValidationResult struct {
	// Valid is false when Problems is non-empty. An invalid model was
	// damaged after parsing, usually by a rewrite pass.
	Valid    bool
	Problems []string

	// IsPortable indicates the model uses only features the SQL backend
	// can translate. Warnings lists the ones it cannot.
	IsPortable bool
	Warnings   []string
}

// Validate checks a model's structural invariants and SQL portability.
//
// Invariants:
//  1. The model has a main from clause and a select clause.
//  2. Every clause's Previous chain reaches the main from clause.
//  3. Each body clause appears once and belongs to this model.
//  4. Ordering groups are non-empty.
//  5. No stored expression contains an unresolved parameter.
//
// Sub-query models are validated recursively; their messages are prefixed
// with the owning clause.
//
// Validate is a pure function with no side effects.
func Validate(m *Model) ValidationResult {
	v := &validator{}
	v.validateModel(m, "")
	return ValidationResult{
		Valid:      len(v.problems) == 0,
		Problems:   v.problems,
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates messages during traversal.
type validator struct {
	problems []string
	warnings []string
}

func (v *validator) addProblem(prefix, format string, args ...any) {
	v.problems = append(v.problems, prefix+fmt.Sprintf(format, args...))
}

func (v *validator) addWarning(prefix, format string, args ...any) {
	v.warnings = append(v.warnings, prefix+fmt.Sprintf(format, args...))
}

func (v *validator) validateModel(m *Model, prefix string) {
	if m == nil {
		v.addProblem(prefix, "nil model")
		return
	}
	if m.mainFrom == nil {
		v.addProblem(prefix, "model has no main from clause")
		return
	}
	v.validateSource(m.mainFrom.FromExpr, prefix)
	v.validateJoins(m, m.mainFrom, prefix)

	seen := make(map[BodyClause]bool)
	for i, c := range m.body.Items() {
		if c == nil {
			v.addProblem(prefix, "body clause %d is nil", i)
			continue
		}
		if seen[c] {
			v.addProblem(prefix, "body clause %d appears more than once", c.ID())
			continue
		}
		seen[c] = true
		if owned, ok := m.Clause(c.ID()); !ok || owned != Clause(c) {
			v.addProblem(prefix, "body clause %d does not belong to this model", c.ID())
			continue
		}
		v.validateChain(m, c, prefix)
		v.validateBody(m, c, prefix)
	}

	if m.sel == nil {
		v.addProblem(prefix, "model has no select clause")
		return
	}
	v.validateChain(m, m.sel, prefix)
	v.validateExpr(m.sel.Selector, prefix, "select clause")
	for _, r := range m.sel.modifiers.Items() {
		if r.Kind == expr.ModLast || r.Kind == expr.ModSingle {
			v.addWarning(prefix, "result operator %s has no SQL translation", r)
		}
		if (r.Kind == expr.ModTake || r.Kind == expr.ModSkip) && r.Count < 0 {
			v.addProblem(prefix, "result operator %s has a negative count", r)
		}
	}
}

func (v *validator) validateChain(m *Model, c Clause, prefix string) {
	if _, err := m.Chain(c.ID()); err != nil {
		v.addProblem(prefix, "%v", err)
	}
}

func (v *validator) validateBody(m *Model, c BodyClause, prefix string) {
	switch c := c.(type) {
	case *AdditionalFromClause:
		v.validateExpr(c.FromExpr, prefix, fmt.Sprintf("from clause %s", c.name))
		v.validateExpr(c.Projection, prefix, fmt.Sprintf("projection of %s", c.name))
		v.validateJoins(m, c, prefix)
	case *SubQueryFromClause:
		v.validateModel(c.SubModel, fmt.Sprintf("%ssub-query %s: ", prefix, c.name))
		v.validateExpr(c.Projection, prefix, fmt.Sprintf("projection of %s", c.name))
		v.validateJoins(m, c, prefix)
	case *WhereClause:
		v.validateExpr(c.Predicate, prefix, "where clause")
	case *OrderByClause:
		if c.orderings.Len() == 0 {
			v.addProblem(prefix, "order by clause %d has no orderings", c.id)
		}
		for _, o := range c.orderings.Items() {
			v.validateExpr(o.Expr, prefix, "ordering")
		}
	case *GroupJoinClause:
		v.addWarning(prefix, "group join into %s has no SQL translation", c.name)
		if c.Join == nil {
			v.addProblem(prefix, "group join %s has no join clause", c.name)
			return
		}
		v.validateJoin(m, c.Join, prefix)
	default:
		v.addProblem(prefix, "unknown body clause %T", c)
	}
}

func (v *validator) validateJoins(m *Model, from FromClause, prefix string) {
	for _, j := range from.Joins().Items() {
		v.validateJoin(m, j, prefix)
	}
}

func (v *validator) validateJoin(m *Model, j *JoinClause, prefix string) {
	v.validateChain(m, j, prefix)
	if j.Inner != nil && j.Inner.Value != nil {
		v.addWarning(prefix, "join %s over an inline array has no SQL translation", j.name)
	}
	v.validateExpr(j.OuterKey, prefix, fmt.Sprintf("outer key of %s", j.name))
	v.validateExpr(j.InnerKey, prefix, fmt.Sprintf("inner key of %s", j.name))
}

func (v *validator) validateSource(from expr.Expr, prefix string) {
	switch src := from.(type) {
	case *expr.ConstantSource:
		if src.Value != nil {
			v.addWarning(prefix, "main source over an inline array has no SQL translation")
		}
	case *expr.SubQuery:
		if sub, ok := src.Model.(*Model); ok {
			v.validateModel(sub, prefix+"main sub-query: ")
		}
	}
}

// validateExpr reports missing expressions and parameters left unresolved.
func (v *validator) validateExpr(e expr.Expr, prefix, where string) {
	if e == nil {
		v.addProblem(prefix, "%s has no expression", where)
		return
	}
	for _, p := range expr.FreeParameters(e) {
		v.addProblem(prefix, "%s: unresolved reference %s", where, p.Name)
	}
}
