package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is an end-to-end query test: CUE query files, the tables they
// read, the queries to run and what to expect.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Queries lists CUE files holding collections and queries. Paths are
	// relative to the scenario file.
	Queries []string `yaml:"queries"`

	// Tables are created and filled before any query runs.
	Tables []TableSetup `yaml:"tables,omitempty"`

	// Run lists the queries to execute, in order.
	Run []RunStep `yaml:"run"`

	// Assertions check models, SQL and validation after all steps ran.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// TableSetup declares one SQLite table and its rows.
type TableSetup struct {
	Name    string           `yaml:"name"`
	Columns []Column         `yaml:"columns"`
	Rows    []map[string]any `yaml:"rows,omitempty"`
}

// Column is a column name and its SQLite type.
type Column struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// RunStep executes one compiled query.
type RunStep struct {
	Query  string        `yaml:"query"`
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step. Error excludes
// Rows and Count.
type ExpectClause struct {
	// Rows are matched in order. Each expected row is a subset match:
	// only the listed columns are compared.
	Rows []map[string]any `yaml:"rows,omitempty"`

	// Count is the exact number of rows.
	Count *int `yaml:"count,omitempty"`

	// Error is a substring of the expected error.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks a query after the run.
type Assertion struct {
	// Type is one of model, sql, valid or warning.
	Type string `yaml:"type"`

	// Query names the query the assertion is about.
	Query string `yaml:"query"`

	// Equals is the exact expected text (model, sql).
	Equals string `yaml:"equals,omitempty"`

	// Contains is an expected substring (sql, warning).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertModel   = "model"
	AssertSQL     = "sql"
	AssertValid   = "valid"
	AssertWarning = "warning"
)

// validIdentifier matches SQL identifiers accepted for setup tables and
// columns.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var columnTypes = []string{"INTEGER", "TEXT", "BOOLEAN"}

// LoadScenario reads and parses a scenario YAML file. Query paths are
// resolved relative to the file's directory.
//
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, q := range scenario.Queries {
		if !filepath.IsAbs(q) {
			scenario.Queries[i] = filepath.Join(base, q)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Queries) == 0 {
		return fmt.Errorf("queries list is required and must be non-empty")
	}
	if len(s.Run) == 0 {
		return fmt.Errorf("run list is required and must be non-empty")
	}

	for _, q := range s.Queries {
		if _, err := os.Stat(q); os.IsNotExist(err) {
			return fmt.Errorf("query file not found: %s", q)
		}
	}

	for i, t := range s.Tables {
		if err := validateTable(i, &t); err != nil {
			return err
		}
	}

	for i, step := range s.Run {
		if step.Query == "" {
			return fmt.Errorf("run[%d]: query is required", i)
		}
		if e := step.Expect; e != nil && e.Error != "" && (e.Rows != nil || e.Count != nil) {
			return fmt.Errorf("run[%d].expect: error excludes rows and count", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateTable(index int, t *TableSetup) error {
	if !validIdentifier.MatchString(t.Name) {
		return fmt.Errorf("tables[%d]: invalid table name %q", index, t.Name)
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("tables[%d]: columns list is required", index)
	}
	declared := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if !validIdentifier.MatchString(c.Name) {
			return fmt.Errorf("tables[%d]: invalid column name %q", index, c.Name)
		}
		if !slices.Contains(columnTypes, strings.ToUpper(c.Type)) {
			return fmt.Errorf("tables[%d]: column %s: type must be one of %s", index, c.Name, strings.Join(columnTypes, ", "))
		}
		declared[c.Name] = true
	}
	for r, row := range t.Rows {
		for k := range row {
			if !declared[k] {
				return fmt.Errorf("tables[%d].rows[%d]: unknown column %q", index, r, k)
			}
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Query == "" {
		return fmt.Errorf("assertions[%d]: query is required", index)
	}

	switch a.Type {
	case AssertModel:
		if a.Equals == "" {
			return fmt.Errorf("assertions[%d]: equals is required for model", index)
		}
	case AssertSQL:
		if a.Equals == "" && a.Contains == "" {
			return fmt.Errorf("assertions[%d]: equals or contains is required for sql", index)
		}
	case AssertValid:
	case AssertWarning:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for warning", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
