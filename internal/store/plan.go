package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/chainql/internal/ir"
)

// ErrPlanNotFound is returned when no plan is stored under a name.
var ErrPlanNotFound = errors.New("plan not found")

// Plan is a compiled query saved under a name.
type Plan struct {
	ID          string
	Name        string
	Fingerprint string
	Model       string // rendered model, for diagnostics
	SQL         string
	Params      []any
	Revision    int64
}

// SavePlan stores p under p.Name and returns the stored plan.
//
// If a plan with the same name, fingerprint, SQL and parameters exists,
// it is returned unchanged. Otherwise the plan gets a fresh ID and
// revision, replacing any previous plan of that name; runs of the
// replaced plan are deleted.
func (s *Store) SavePlan(ctx context.Context, p Plan) (Plan, error) {
	if p.Name == "" {
		return Plan{}, fmt.Errorf("save plan: name is required")
	}
	params, err := marshalParams(p.Params)
	if err != nil {
		return Plan{}, fmt.Errorf("save plan %s: %w", p.Name, err)
	}
	existing, err := s.LoadPlan(ctx, p.Name)
	switch {
	case err == nil:
		same, err := samePlan(existing, p.Fingerprint, p.SQL, params)
		if err != nil {
			return Plan{}, fmt.Errorf("save plan %s: %w", p.Name, err)
		}
		if same {
			return existing, nil
		}
	case !errors.Is(err, ErrPlanNotFound):
		return Plan{}, fmt.Errorf("save plan: %w", err)
	}

	p.ID = s.ids.Generate()
	p.Revision = s.clock.Next()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Plan{}, fmt.Errorf("save plan %s: %w", p.Name, err)
	}
	defer tx.Rollback()

	if existing.ID != "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE plan_id = ?`, existing.ID); err != nil {
			return Plan{}, fmt.Errorf("save plan %s: drop runs: %w", p.Name, err)
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (name, id, fingerprint, model, sql, params, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			id = excluded.id,
			fingerprint = excluded.fingerprint,
			model = excluded.model,
			sql = excluded.sql,
			params = excluded.params,
			revision = excluded.revision
	`, p.Name, p.ID, p.Fingerprint, p.Model, p.SQL, params, p.Revision)
	if err != nil {
		return Plan{}, fmt.Errorf("save plan %s: %w", p.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return Plan{}, fmt.Errorf("save plan %s: commit: %w", p.Name, err)
	}

	slog.Info("plan saved", "name", p.Name, "id", p.ID, "revision", p.Revision, "fingerprint", p.Fingerprint)
	return p, nil
}

// samePlan reports whether existing compiles to the same statement. The
// model fingerprint alone is not enough: a changed table mapping yields
// new SQL for an unchanged model.
func samePlan(existing Plan, fingerprint, sqlText, params string) (bool, error) {
	old, err := marshalParams(existing.Params)
	if err != nil {
		return false, err
	}
	a, err := planDigest(existing.Fingerprint, existing.SQL, old)
	if err != nil {
		return false, err
	}
	b, err := planDigest(fingerprint, sqlText, params)
	if err != nil {
		return false, err
	}
	return a == b, nil
}

func planDigest(fingerprint, sqlText, params string) (string, error) {
	return ir.Fingerprint(ir.DomainPlan, map[string]any{
		"fingerprint": fingerprint,
		"sql":         sqlText,
		"params":      params,
	})
}

// LoadPlan returns the plan stored under name, or an error wrapping
// ErrPlanNotFound.
func (s *Store) LoadPlan(ctx context.Context, name string) (Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, fingerprint, model, sql, params, revision
		FROM plans
		WHERE name = ?
	`, name)
	p, err := scanPlan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Plan{}, fmt.Errorf("load plan %s: %w", name, ErrPlanNotFound)
	}
	if err != nil {
		return Plan{}, fmt.Errorf("load plan %s: %w", name, err)
	}
	return p, nil
}

// ListPlans returns all stored plans ordered by revision.
//
// Returns an empty slice (not nil) if no plans exist.
func (s *Store) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, fingerprint, model, sql, params, revision
		FROM plans
		ORDER BY revision ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query plans: %w", err)
	}
	defer rows.Close()

	plans := []Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plans: %w", err)
	}
	return plans, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanPlan(row scanner) (Plan, error) {
	var (
		p      Plan
		params string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Fingerprint, &p.Model, &p.SQL, &params, &p.Revision); err != nil {
		return Plan{}, err
	}
	var err error
	if p.Params, err = unmarshalParams(params); err != nil {
		return Plan{}, fmt.Errorf("plan %s: %w", p.Name, err)
	}
	return p, nil
}
