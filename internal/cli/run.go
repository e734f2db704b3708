package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/parser"
	"github.com/roach88/chainql/internal/queryir"
	"github.com/roach88/chainql/internal/querysql"
	"github.com/roach88/chainql/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// StoreOptions are passed to store.Open (for testing).
	StoreOptions []store.Option
}

// RunResult is the outcome of running one query.
type RunResult struct {
	Query    string        `json:"query"`
	SQL      string        `json:"sql"`
	Params   []any         `json:"params"`
	PlanID   string        `json:"plan_id"`
	RunID    string        `json:"run_id"`
	Revision int64         `json:"revision"`
	Rows     []ir.IRObject `json:"rows"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <queries-dir> <query>",
		Short: "Run a query against a SQLite database",
		Long: `Compile a query, save its plan in the database and run it.

The plan is saved under the query name. Re-running an unchanged query
reuses the saved plan; a changed query replaces it.

Example:
  chainql run --db ./kitchen.db ./queries adults
  chainql run --db ./kitchen.db ./queries adults --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runQuery(opts *RunOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadQueries(dir)
	if err != nil {
		return failLoad(formatter, err)
	}
	cat := loaded.Catalog
	q, ok := cat.Query(name)
	if !ok {
		return formatter.Fail(ExitCommandError, ErrCodeUnknownQuery, fmt.Sprintf("unknown query %s", name), nil)
	}

	m, err := parser.Parse(q.Root)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeParseFailed, err.Error(), nil)
	}
	sqlc := querysql.NewSQLCompiler()
	sqlc.Tables = cat.Tables()
	query, params, err := sqlc.Compile(m)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeNotPortable, err.Error(), nil)
	}
	fp, err := queryir.Fingerprint(m)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeInvalidModel, err.Error(), nil)
	}

	slog.Debug("opening database", "path", opts.Database)
	st, err := store.Open(opts.Database, opts.StoreOptions...)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to open database: %v", err), nil)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	plan, err := st.SavePlan(ctx, store.Plan{
		Name:        name,
		Fingerprint: fp,
		Model:       m.String(),
		SQL:         query,
		Params:      params,
	})
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeDatabase, fmt.Sprintf("failed to save plan: %v", err), nil)
	}
	run, rows, err := st.RunPlan(ctx, name)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeExecuteFailed, err.Error(), nil)
	}

	result := RunResult{
		Query:    name,
		SQL:      plan.SQL,
		Params:   plan.Params,
		PlanID:   plan.ID,
		RunID:    run.ID,
		Revision: run.Revision,
		Rows:     rows,
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	return outputRunText(formatter, result)
}

func outputRunText(formatter *OutputFormatter, result RunResult) error {
	w := formatter.Writer
	for _, row := range result.Rows {
		data, err := ir.MarshalCanonical(row)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	fmt.Fprintf(w, "(%d row(s), plan %s, run %s)\n", len(result.Rows), result.PlanID, result.RunID)
	formatter.VerboseLog("SQL: %s", result.SQL)
	return nil
}
