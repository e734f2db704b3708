package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chainql/internal/querysql"
)

// TranslatedQuery is the SQL of one query, or why it has none.
type TranslatedQuery struct {
	Name   string `json:"name"`
	SQL    string `json:"sql,omitempty"`
	Params []any  `json:"params,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewSQLCommand creates the sql command.
func NewSQLCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sql <queries-dir> [query]",
		Short: "Print the SQL of queries",
		Long: `Translate queries to SQLite SQL without running them.

With a query name only that query is translated. Queries the SQL
backend cannot translate are reported and fail the command.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 2 {
				name = args[1]
			}
			return runSQL(rootOpts, args[0], name, cmd)
		},
	}

	return cmd
}

func runSQL(opts *RootOptions, dir, name string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loaded, err := LoadQueries(dir)
	if err != nil {
		return failLoad(formatter, err)
	}
	cat := loaded.Catalog
	if name != "" {
		if _, ok := cat.Query(name); !ok {
			return formatter.Fail(ExitCommandError, ErrCodeUnknownQuery, fmt.Sprintf("unknown query %s", name), nil)
		}
	}

	parsed, err := ParseQueries(cmd.Context(), cat)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	sqlc := querysql.NewSQLCompiler()
	sqlc.Tables = cat.Tables()

	var out []TranslatedQuery
	failed := 0
	for _, p := range parsed {
		if name != "" && p.Name != name {
			continue
		}
		tq := TranslatedQuery{Name: p.Name}
		err := p.Err
		if err == nil {
			tq.SQL, tq.Params, err = sqlc.Compile(p.Model)
		}
		if err != nil {
			tq.Error = err.Error()
			failed++
		}
		out = append(out, tq)
	}

	if formatter.JSON() {
		resp := CLIResponse{Status: "ok", Data: out}
		if failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeNotPortable, Message: fmt.Sprintf("%d query(ies) have no SQL translation", failed)}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		for i, tq := range out {
			if i > 0 {
				fmt.Fprintln(formatter.Writer)
			}
			fmt.Fprintf(formatter.Writer, "-- %s\n", tq.Name)
			if tq.Error != "" {
				fmt.Fprintf(formatter.Writer, "-- %s: %s\n", ErrCodeNotPortable, tq.Error)
				continue
			}
			fmt.Fprintf(formatter.Writer, "%s;\n", tq.SQL)
			if len(tq.Params) > 0 {
				fmt.Fprintf(formatter.Writer, "-- params: %v\n", tq.Params)
			}
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d query(ies) have no SQL translation", failed))
	}
	return nil
}
