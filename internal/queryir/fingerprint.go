package queryir

import (
	"fmt"

	"github.com/roach88/chainql/internal/expr"
	"github.com/roach88/chainql/internal/ir"
)

// Fingerprint returns a content hash of m. Structurally equal models hash
// the same regardless of how they were built; clause handles do not take
// part, so inserting and then removing a clause leaves the hash unchanged.
func Fingerprint(m *Model) (string, error) {
	if m == nil || m.mainFrom == nil {
		return "", &UsageError{Op: "Fingerprint", Message: "model is incomplete"}
	}
	return ir.Fingerprint(ir.DomainModel, modelDoc(m))
}

func modelDoc(m *Model) map[string]any {
	body := make([]any, 0, m.body.Len())
	for _, c := range m.body.Items() {
		body = append(body, bodyDoc(c))
	}
	doc := map[string]any{
		"from": fromDoc(m.mainFrom, sourceDoc(m.mainFrom.FromExpr)),
		"body": body,
	}
	if m.sel != nil {
		mods := make([]any, 0, m.sel.modifiers.Len())
		for _, r := range m.sel.modifiers.Items() {
			mods = append(mods, r.String())
		}
		doc["select"] = map[string]any{
			"selector":  expr.Format(m.sel.Selector),
			"distinct":  m.sel.Distinct,
			"modifiers": mods,
		}
	}
	return doc
}

func fromDoc(c FromClause, source any) map[string]any {
	joins := make([]any, 0, c.Joins().Len())
	for _, j := range c.Joins().Items() {
		joins = append(joins, joinDoc(j))
	}
	return map[string]any{
		"item":   c.ItemName(),
		"type":   c.ItemType().String(),
		"source": source,
		"joins":  joins,
	}
}

func sourceDoc(e expr.Expr) any {
	if sq, ok := e.(*expr.SubQuery); ok {
		if sub, ok := sq.Model.(*Model); ok {
			return modelDoc(sub)
		}
	}
	return expr.Format(e)
}

func joinDoc(j *JoinClause) map[string]any {
	return map[string]any{
		"item":     j.name,
		"type":     j.typ.String(),
		"inner":    expr.Format(j.Inner),
		"outerKey": expr.Format(j.OuterKey),
		"innerKey": expr.Format(j.InnerKey),
	}
}

func bodyDoc(c BodyClause) map[string]any {
	switch c := c.(type) {
	case *AdditionalFromClause:
		d := fromDoc(c, expr.Format(c.FromExpr))
		d["kind"] = "from"
		d["projection"] = expr.Format(c.Projection)
		return d
	case *SubQueryFromClause:
		d := fromDoc(c, modelDoc(c.SubModel))
		d["kind"] = "subquery"
		d["projection"] = expr.Format(c.Projection)
		return d
	case *WhereClause:
		return map[string]any{"kind": "where", "predicate": expr.Format(c.Predicate)}
	case *OrderByClause:
		keys := make([]any, 0, c.orderings.Len())
		for _, o := range c.orderings.Items() {
			keys = append(keys, map[string]any{"expr": expr.Format(o.Expr), "direction": o.Direction.String()})
		}
		return map[string]any{"kind": "orderby", "orderings": keys}
	case *GroupJoinClause:
		return map[string]any{"kind": "groupjoin", "into": c.name, "type": c.typ.String(), "join": joinDoc(c.Join)}
	default:
		return map[string]any{"kind": fmt.Sprintf("%T", c)}
	}
}
