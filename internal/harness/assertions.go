package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/go-cmp/cmp"

	"github.com/roach88/chainql/internal/ir"
	"github.com/roach88/chainql/internal/queryir"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Query    string
	Expected string
	Actual   string
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Query)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// checkExpect compares a step outcome with the step's expectations.
// A step without expectations must simply not fail.
func checkExpect(step RunStep, out Outcome) []string {
	e := step.Expect
	if e == nil || e.Error == "" {
		if out.Err != "" {
			return []string{"unexpected error: " + out.Err}
		}
	}
	if e == nil {
		return nil
	}

	if e.Error != "" {
		switch {
		case out.Err == "":
			return []string{fmt.Sprintf("expected error containing %q, got %d rows", e.Error, len(out.Rows))}
		case !strings.Contains(out.Err, e.Error):
			return []string{fmt.Sprintf("expected error containing %q, got %q", e.Error, out.Err)}
		}
		return nil
	}

	var msgs []string
	if e.Count != nil && *e.Count != len(out.Rows) {
		msgs = append(msgs, fmt.Sprintf("expected %d rows, got %d", *e.Count, len(out.Rows)))
	}
	if e.Rows != nil {
		if msg := compareRows(e.Rows, out.Rows); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// compareRows matches rows in order. Only the columns an expected row
// lists are compared.
func compareRows(expected []map[string]any, actual []ir.IRObject) string {
	want := make([]ir.IRObject, len(expected))
	for i, row := range expected {
		v, err := ir.FromGo(row)
		if err != nil {
			return fmt.Sprintf("expected row %d: %v", i, err)
		}
		want[i] = v.(ir.IRObject)
	}

	got := make([]ir.IRObject, len(actual))
	for i, row := range actual {
		if i >= len(want) {
			got[i] = row
			continue
		}
		sub := make(ir.IRObject, len(want[i]))
		for k := range want[i] {
			if v, ok := row[k]; ok {
				sub[k] = v
			}
		}
		got[i] = sub
	}

	if diff := cmp.Diff(want, got); diff != "" {
		return fmt.Sprintf("rows mismatch (-want +got):\n%s", diff)
	}
	return ""
}

func assertModel(out Outcome, a Assertion) error {
	if out.Model != a.Equals {
		return &AssertionError{Type: a.Type, Query: a.Query, Expected: a.Equals, Actual: out.Model}
	}
	return nil
}

func assertSQL(out Outcome, a Assertion) error {
	if a.Equals != "" && out.SQL != a.Equals {
		return &AssertionError{Type: a.Type, Query: a.Query, Expected: a.Equals, Actual: out.SQL}
	}
	if a.Contains != "" && !strings.Contains(out.SQL, a.Contains) {
		return &AssertionError{
			Type:     a.Type,
			Query:    a.Query,
			Expected: fmt.Sprintf("SQL containing %q", a.Contains),
			Actual:   out.SQL,
		}
	}
	return nil
}

func assertValid(m *queryir.Model, a Assertion) error {
	res := queryir.Validate(m)
	if !res.Valid || !res.IsPortable {
		msgs := append(append([]string{}, res.Problems...), res.Warnings...)
		sort.Strings(msgs)
		return &AssertionError{
			Type:     a.Type,
			Query:    a.Query,
			Expected: "valid, portable model",
			Actual:   strings.Join(msgs, "; "),
		}
	}
	return nil
}

func assertWarning(m *queryir.Model, a Assertion) error {
	res := queryir.Validate(m)
	for _, w := range res.Warnings {
		if strings.Contains(w, a.Contains) {
			return nil
		}
	}
	return &AssertionError{
		Type:     a.Type,
		Query:    a.Query,
		Expected: fmt.Sprintf("warning containing %q", a.Contains),
		Actual:   fmt.Sprintf("warnings %v", res.Warnings),
	}
}

// EvaluateAssertions evaluates all assertions against the result.
// models holds the parsed model of each query that was run.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, models map[string]*queryir.Model) []string {
	var errors []string

	for i, a := range assertions {
		var err error
		out, ran := result.Outcome(a.Query)
		m := models[a.Query]

		switch {
		case !ran:
			err = fmt.Errorf("assertion[%d]: query %s was not run", i, a.Query)
		case a.Type == AssertModel:
			err = assertModel(out, a)
		case a.Type == AssertSQL:
			err = assertSQL(out, a)
		case (a.Type == AssertValid || a.Type == AssertWarning) && m == nil:
			err = fmt.Errorf("assertion[%d]: query %s has no model: %s", i, a.Query, out.Err)
		case a.Type == AssertValid:
			err = assertValid(m, a)
		case a.Type == AssertWarning:
			err = assertWarning(m, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
