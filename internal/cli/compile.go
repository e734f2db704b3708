package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chainql/internal/queryir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledQuery is one query as reported by compile.
type CompiledQuery struct {
	Name        string `json:"name"`
	Model       string `json:"model,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

// CompilationResult holds the compiled queries.
type CompilationResult struct {
	Collections int             `json:"collections"`
	Queries     []CompiledQuery `json:"queries"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <queries-dir>",
		Short: "Compile CUE queries to query models",
		Long: `Compile the CUE collections and queries in a directory and parse
every query into a query model.

Prints each model in query-expression syntax with its fingerprint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, dir string, cmd *cobra.Command) error {
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

	result := &CompilationResult{
		Collections: len(loaded.Catalog.Collections),
		Queries:     make([]CompiledQuery, 0, len(parsed)),
	}
	failed := 0
	for _, p := range parsed {
		formatter.VerboseLog("Compiling query: %s", p.Name)
		q := CompiledQuery{Name: p.Name}
		if p.Err == nil {
			q.Model = p.Model.String()
			q.Fingerprint, p.Err = queryir.Fingerprint(p.Model)
		}
		if p.Err != nil {
			q.Error = p.Err.Error()
			failed++
		}
		result.Queries = append(result.Queries, q)
	}

	if failed > 0 {
		return outputCompileErrors(formatter, result, failed)
	}

	if opts.Output != "" {
		if err := writeResultToFile(result, opts.Output); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

// failLoad reports a LoadQueries error. Load errors are command-level
// errors (exit code 2).
func failLoad(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	var details any
	if loadErr.Pos.IsValid() {
		details = map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
		if !formatter.JSON() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
		}
	}
	return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, details)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.JSON() {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d query(ies) over %d collection(s)\n\n", len(result.Queries), result.Collections)
	for _, q := range result.Queries {
		fmt.Fprintf(w, "%s [%s]\n  %s\n", q.Name, shortFingerprint(q.Fingerprint), q.Model)
	}
	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote models to %s\n", outputFile)
	}
	return nil
}

func outputCompileErrors(formatter *OutputFormatter, result *CompilationResult, failed int) error {
	msg := fmt.Sprintf("compilation failed with %d error(s)", failed)
	if formatter.JSON() {
		if err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeParseFailed, Message: msg},
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	for _, q := range result.Queries {
		if q.Error != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n", ErrCodeParseFailed, q.Name, q.Error)
		}
	}
	return NewExitError(ExitCommandError, msg)
}

func shortFingerprint(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

func writeResultToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling models: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}
