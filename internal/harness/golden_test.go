package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/ir"
)

func TestRunWithGolden_Adults(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/adults.yaml")
	require.NoError(t, err)

	// To regenerate:
	//   go test ./internal/harness -run TestRunWithGolden_Adults -update
	result, err := RunWithGolden(t, scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestSnapshot_CanonicalForm(t *testing.T) {
	snapshot := Snapshot{
		ScenarioName: "mixed",
		Outcomes: []Outcome{
			{
				Query:  "adults",
				Model:  "from Cook s in Cooks select [s].Name",
				SQL:    `SELECT "s"."Name" FROM "cooks" AS "s" WHERE ("s"."Age" >= ?)`,
				Params: []any{int64(21)},
				Rows:   []ir.IRObject{{"Name": ir.IRString("Ada")}},
			},
			{
				Query: "groups",
				Model: "from Cook s in Cooks select [s]",
				Err:   "group join into ks: no SQL translation",
			},
			{Query: "missing", Err: "unknown query missing"},
		},
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)

	want := `{"queries":[` +
		`{"model":"from Cook s in Cooks select [s].Name","name":"adults","params":[21],"rows":[{"Name":"Ada"}],"sql":"SELECT \"s\".\"Name\" FROM \"cooks\" AS \"s\" WHERE (\"s\".\"Age\" >= ?)"},` +
		`{"error":"group join into ks: no SQL translation","model":"from Cook s in Cooks select [s]","name":"groups"},` +
		`{"error":"unknown query missing","name":"missing"}` +
		`],"scenario":"mixed"}`
	assert.Equal(t, want, string(data))
}

func TestSnapshot_EmptyRowsAndParams(t *testing.T) {
	snapshot := Snapshot{
		ScenarioName: "empty",
		Outcomes:     []Outcome{{Query: "adults", Model: "m", SQL: "SELECT 1"}},
	}

	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	require.NoError(t, err)
	assert.Equal(t, `{"queries":[{"model":"m","name":"adults","params":[],"rows":[],"sql":"SELECT 1"}],"scenario":"empty"}`, string(data))
}
