package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/chainql/internal/ir"
)

// Snapshot captures what a scenario produced for golden comparison.
type Snapshot struct {
	ScenarioName string    `json:"scenario"`
	Outcomes     []Outcome `json:"queries"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization, since ir.MarshalCanonical only handles IR types and
// primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	queries := make([]any, len(s.Outcomes))
	for i, out := range s.Outcomes {
		q := map[string]any{"name": out.Query}
		if out.Model != "" {
			q["model"] = out.Model
		}
		if out.SQL != "" {
			q["sql"] = out.SQL
			q["params"] = append([]any{}, out.Params...)
		}
		if out.Err != "" {
			q["error"] = out.Err
		} else {
			rows := make([]any, len(out.Rows))
			for j, r := range out.Rows {
				rows[j] = r
			}
			q["rows"] = rows
		}
		queries[i] = q
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"queries":  queries,
	}
}

// SnapshotJSON returns the canonical JSON compared against golden files.
func SnapshotJSON(scenarioName string, result *Result) ([]byte, error) {
	snapshot := Snapshot{ScenarioName: scenarioName, Outcomes: result.Outcomes}
	return ir.MarshalCanonical(snapshot.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its outcomes against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot be executed. A mismatch fails
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against the golden file named
// scenarioName without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := SnapshotJSON(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
