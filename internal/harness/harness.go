package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	sq "github.com/Masterminds/squirrel"

	"github.com/roach88/chainql/internal/compiler"
	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/parser"
	"github.com/roach88/chainql/internal/queryir"
	"github.com/roach88/chainql/internal/querysql"
	"github.com/roach88/chainql/internal/store"
	"github.com/roach88/chainql/internal/testutil"
)

// Harness runs one scenario against a private in-memory database.
type Harness struct {
	store   *store.Store
	catalog *compiler.Catalog
	sql     *querysql.SQLCompiler
	models  map[string]*queryir.Model
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with deterministic
// IDs and revisions, so identical scenarios produce identical results.
//
// Execution flow:
//  1. Compile the CUE query files into a catalog
//  2. Create and fill the setup tables
//  3. For each step: parse the query, translate it to SQL, save and run
//     the plan, check the step's expectations
//  4. Evaluate assertions
//
// A returned error means the scenario could not be executed at all;
// failed expectations are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	cat, err := loadCatalog(scenario.Queries)
	if err != nil {
		return nil, fmt.Errorf("failed to compile queries: %w", err)
	}

	st, err := store.Open(":memory:",
		store.WithIDGenerator(testutil.SequentialIDs("id", 1024)),
		store.WithClock(testutil.NewDeterministicClock()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	sqlc := querysql.NewSQLCompiler()
	sqlc.Tables = cat.Tables()

	h := &Harness{
		store:   st,
		catalog: cat,
		sql:     sqlc,
		models:  make(map[string]*queryir.Model),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	if err := h.createTables(ctx, scenario.Tables); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	result := NewResult()
	for i, step := range scenario.Run {
		h.runStep(ctx, i, step, result)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, h.models) {
		result.AddError(msg)
	}
	return result, nil
}

// loadCatalog compiles the CUE files as one unified value.
func loadCatalog(paths []string) (*compiler.Catalog, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString("")
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		f := ctx.CompileBytes(data, cue.Filename(p))
		if err := f.Err(); err != nil {
			return nil, err
		}
		v = v.Unify(f)
	}
	return compiler.Compile(v)
}

func (h *Harness) createTables(ctx context.Context, tables []TableSetup) error {
	for _, t := range tables {
		defs := make([]string, len(t.Columns))
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = quoteIdent(c.Name)
			defs[i] = names[i] + " " + strings.ToUpper(c.Type)
		}
		if err := h.store.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if len(t.Rows) == 0 {
			continue
		}

		ins := sq.Insert(quoteIdent(t.Name)).Columns(names...)
		for r, row := range t.Rows {
			vals := make([]any, len(t.Columns))
			for i, c := range t.Columns {
				v, err := ir.FromGo(row[c.Name])
				if err != nil {
					return fmt.Errorf("table %s row %d column %s: %w", t.Name, r, c.Name, err)
				}
				if vals[i], err = ir.ToParam(v); err != nil {
					return fmt.Errorf("table %s row %d column %s: %w", t.Name, r, c.Name, err)
				}
			}
			ins = ins.Values(vals...)
		}
		query, args, err := ins.ToSql()
		if err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		if err := h.store.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
		h.logger.Debug("table created", "table", t.Name, "rows", len(t.Rows))
	}
	return nil
}

// runStep records the outcome of one step and checks its expectations.
func (h *Harness) runStep(ctx context.Context, index int, step RunStep, result *Result) {
	out, err := h.execute(ctx, step.Query)
	if err != nil {
		out.Err = err.Error()
	}
	result.Outcomes = append(result.Outcomes, out)
	h.logger.Debug("step executed", "index", index, "query", step.Query, "rows", len(out.Rows), "error", out.Err)

	for _, msg := range checkExpect(step, out) {
		result.AddError(fmt.Sprintf("run[%d] %s: %s", index, step.Query, msg))
	}
}

func (h *Harness) execute(ctx context.Context, name string) (Outcome, error) {
	out := Outcome{Query: name}
	q, ok := h.catalog.Query(name)
	if !ok {
		return out, fmt.Errorf("unknown query %s", name)
	}

	m, err := parser.Parse(q.Root)
	if err != nil {
		return out, err
	}
	h.models[name] = m
	out.Model = m.String()

	if out.SQL, out.Params, err = h.sql.Compile(m); err != nil {
		return out, err
	}
	fp, err := queryir.Fingerprint(m)
	if err != nil {
		return out, err
	}
	if _, err := h.store.SavePlan(ctx, store.Plan{
		Name:        name,
		Fingerprint: fp,
		Model:       out.Model,
		SQL:         out.SQL,
		Params:      out.Params,
	}); err != nil {
		return out, err
	}
	_, out.Rows, err = h.store.RunPlan(ctx, name)
	return out, err
}

func quoteIdent(name string) string {
	return `"` + name + `"`
}
