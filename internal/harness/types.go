package harness

import "github.com/roach88/chainql/internal/ir"

// Outcome is what running one step produced. Err is set instead of Rows
// when parsing, SQL translation or execution failed.
type Outcome struct {
	Query  string        `json:"query"`
	Model  string        `json:"model,omitempty"`
	SQL    string        `json:"sql,omitempty"`
	Params []any         `json:"params,omitempty"`
	Rows   []ir.IRObject `json:"rows,omitempty"`
	Err    string        `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool `json:"pass"`

	// Outcomes holds one entry per run step, in order.
	Outcomes []Outcome `json:"outcomes"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Outcomes: []Outcome{},
		Errors:   []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Outcome returns the last outcome of query.
func (r *Result) Outcome(query string) (Outcome, bool) {
	for i := len(r.Outcomes) - 1; i >= 0; i-- {
		if r.Outcomes[i].Query == query {
			return r.Outcomes[i], true
		}
	}
	return Outcome{}, false
}
