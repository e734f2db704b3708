package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chainql/internal/queryir"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // portability warnings fail validation
}

// QueryValidation is the validation outcome of one query.
type QueryValidation struct {
	Name     string   `json:"name"`
	Valid    bool     `json:"valid"`
	Portable bool     `json:"portable"`
	Problems []string `json:"problems,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Queries []QueryValidation `json:"queries"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <queries-dir>",
		Short: "Check query models",
		Long: `Compile and parse every query, then check each model's invariants
and whether the SQL backend can translate it.

Portability warnings are reported but only fail with --strict.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "treat portability warnings as errors")

	return cmd
}

func runValidate(opts *ValidateOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loaded, err := LoadQueries(dir)
	if err != nil {
		return failLoad(formatter, err)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, dir)

	parsed, err := ParseQueries(cmd.Context(), loaded.Catalog)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	result := validateAll(parsed, opts.Strict, formatter)
	if formatter.JSON() {
		if err := formatter.encode(validationResponse(result)); err != nil {
			return err
		}
	} else {
		outputValidationText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", countFailures(result, opts.Strict)))
	}
	return nil
}

// validateAll checks every parsed model. A query that failed to parse
// counts as invalid with the parse error as its problem.
func validateAll(parsed []ParsedQuery, strict bool, formatter *OutputFormatter) *ValidationResult {
	result := &ValidationResult{Valid: true, Queries: make([]QueryValidation, 0, len(parsed))}
	for _, p := range parsed {
		formatter.VerboseLog("Validating query: %s", p.Name)
		qv := QueryValidation{Name: p.Name}
		if p.Err != nil {
			qv.Problems = []string{p.Err.Error()}
		} else {
			res := queryir.Validate(p.Model)
			qv.Valid = res.Valid
			qv.Portable = res.IsPortable
			qv.Problems = res.Problems
			qv.Warnings = res.Warnings
		}
		if !qv.Valid || (strict && !qv.Portable) {
			result.Valid = false
		}
		result.Queries = append(result.Queries, qv)
	}
	return result
}

func countFailures(result *ValidationResult, strict bool) int {
	n := 0
	for _, q := range result.Queries {
		n += len(q.Problems)
		if strict {
			n += len(q.Warnings)
		}
	}
	return n
}

func validationResponse(result *ValidationResult) CLIResponse {
	if result.Valid {
		return CLIResponse{Status: "ok", Data: result}
	}
	return CLIResponse{
		Status: "error",
		Data:   result,
		Error:  &CLIError{Code: ErrCodeInvalidModel, Message: "validation failed"},
	}
}

func outputValidationText(formatter *OutputFormatter, result *ValidationResult) {
	w := formatter.Writer
	for _, q := range result.Queries {
		mark := "✓"
		if !q.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, q.Name)
		for _, p := range q.Problems {
			fmt.Fprintf(w, "  %s: %s\n", ErrCodeInvalidModel, p)
		}
		for _, warn := range q.Warnings {
			fmt.Fprintf(w, "  %s: %s\n", ErrCodeNotPortable, warn)
		}
	}
	fmt.Fprintln(w)
	if result.Valid {
		fmt.Fprintf(w, "✓ All %d query(ies) valid\n", len(result.Queries))
	} else {
		fmt.Fprintln(w, "✗ Validation failed")
	}
}
