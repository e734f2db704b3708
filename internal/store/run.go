package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/chainql/internal/ir"
)

// Run executes a compiled query and returns its rows as objects keyed by
// column name.
//
// Returns an empty slice (not nil) if the query yields no rows. Columns
// holding non-integral numbers are an error since IR values have no float
// variant.
func (s *Store) Run(ctx context.Context, query string, args ...any) ([]ir.IRObject, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("run query: columns: %w", err)
	}
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return nil, fmt.Errorf("run query: duplicate result column %q", c)
		}
		seen[c] = true
	}

	result := []ir.IRObject{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row %d: %w", len(result), err)
		}
		obj := make(ir.IRObject, len(cols))
		for i, c := range cols {
			v, err := ir.FromGo(vals[i])
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", len(result), c, err)
			}
			obj[c] = v
		}
		result = append(result, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// PlanRun records one execution of a saved plan.
type PlanRun struct {
	ID       string
	PlanID   string
	RowCount int
	Revision int64
}

// RunPlan loads the plan saved under name, executes it and records the
// run.
func (s *Store) RunPlan(ctx context.Context, name string) (PlanRun, []ir.IRObject, error) {
	p, err := s.LoadPlan(ctx, name)
	if err != nil {
		return PlanRun{}, nil, err
	}
	rows, err := s.Run(ctx, p.SQL, p.Params...)
	if err != nil {
		return PlanRun{}, nil, fmt.Errorf("plan %s: %w", name, err)
	}

	run := PlanRun{
		ID:       s.ids.Generate(),
		PlanID:   p.ID,
		RowCount: len(rows),
		Revision: s.clock.Next(),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, plan_id, row_count, revision)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.PlanID, run.RowCount, run.Revision)
	if err != nil {
		return PlanRun{}, nil, fmt.Errorf("record run of %s: %w", name, err)
	}

	slog.Info("plan run", "name", name, "run", run.ID, "rows", run.RowCount, "revision", run.Revision)
	return run, rows, nil
}

// RunsOf returns the recorded runs of the plan saved under name, oldest
// first.
//
// Returns an empty slice (not nil) if the plan was never run.
func (s *Store) RunsOf(ctx context.Context, name string) ([]PlanRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.plan_id, r.row_count, r.revision
		FROM runs r
		JOIN plans p ON p.id = r.plan_id
		WHERE p.name = ?
		ORDER BY r.revision ASC, r.id COLLATE BINARY ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []PlanRun{}
	for rows.Next() {
		var r PlanRun
		if err := rows.Scan(&r.ID, &r.PlanID, &r.RowCount, &r.Revision); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
