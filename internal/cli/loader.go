package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/chainql/internal/compiler"
	"github.com/roach88/chainql/internal/parser"
	"github.com/roach88/chainql/internal/queryir"
)

// LoadResult contains the catalog compiled from a query directory.
type LoadResult struct {
	Catalog   *compiler.Catalog
	FileCount int // Number of CUE files found
}

// LoadError represents an error that occurred while loading queries.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadQueries loads the CUE package in dir and compiles its collections
// and queries. Errors are *LoadError.
func LoadQueries(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("queries directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing queries directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := cuecontext.New().BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	cat, err := compiler.Compile(value)
	if err != nil {
		return nil, convertCompileError(err)
	}
	return &LoadResult{Catalog: cat, FileCount: len(cueFiles)}, nil
}

// FindCUEFiles returns the .cue files directly inside dir. Nested
// directories hold other packages and are not loaded.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}

// convertCompileError converts a compiler error to a LoadError with
// position info.
func convertCompileError(err error) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapCompileErrorCode(compileErr),
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
}

// ParsedQuery is the model of one catalog query, or why it has none.
type ParsedQuery struct {
	Name  string
	Model *queryir.Model
	Err   error
}

// ParseQueries parses every catalog query into a model, in catalog order.
// Queries are parsed concurrently; a failing query does not stop the
// others.
func ParseQueries(ctx context.Context, cat *compiler.Catalog) ([]ParsedQuery, error) {
	parsed := make([]ParsedQuery, len(cat.Queries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, q := range cat.Queries {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := parser.Parse(q.Root)
			parsed[i] = ParsedQuery{Name: q.Name, Model: m, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parsed, nil
}

// Error code constants, unified across all CLI commands.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeDatabase    = "E008" // Database open or write error

	// Query definition errors
	ErrCodeInvalidCollection = "E101" // Bad collection declaration
	ErrCodeInvalidSource     = "E102" // Bad from source
	ErrCodeInvalidStep       = "E103" // Bad step or step expression
	ErrCodeInvalidSelect     = "E104" // Bad select or distinct
	ErrCodeQueryCycle        = "E105" // Queries reference each other

	// Model errors
	ErrCodeParseFailed   = "E201" // Chain could not be parsed into a model
	ErrCodeInvalidModel  = "E202" // Model invariants violated
	ErrCodeNotPortable   = "E203" // Model has no SQL translation
	ErrCodeUnknownQuery  = "E204" // No query of that name
	ErrCodeExecuteFailed = "E205" // SQL execution failed
)

// MapCompileErrorCode maps a compiler error to an error code by the
// field it was reported on.
func MapCompileErrorCode(err *compiler.CompileError) string {
	f := err.Field
	switch {
	case strings.HasPrefix(err.Message, "query cycle"):
		return ErrCodeQueryCycle
	case strings.HasPrefix(f, "collection."):
		return ErrCodeInvalidCollection
	case strings.Contains(f, ".steps"):
		return ErrCodeInvalidStep
	case strings.HasSuffix(f, ".select"), strings.HasSuffix(f, ".distinct"):
		return ErrCodeInvalidSelect
	case strings.Contains(f, ".from"):
		return ErrCodeInvalidSource
	default:
		return ErrCodeGeneric
	}
}
