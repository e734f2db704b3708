package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/chainql/internal/ir"
)

func cooksTable(rows ...map[string]any) TableSetup {
	return TableSetup{
		Name: "cooks",
		Columns: []Column{
			{Name: "ID", Type: "INTEGER"},
			{Name: "Name", Type: "TEXT"},
			{Name: "Age", Type: "INTEGER"},
		},
		Rows: rows,
	}
}

func intPtr(n int) *int { return &n }

func TestRun_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Outcomes, len(scenario.Run))
		})
	}
}

func TestRun_MinimalScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "minimal",
		Description: "Minimal test scenario",
		Queries:     []string{writeQueries(t, dir, cooksQueries)},
		Tables: []TableSetup{cooksTable(
			map[string]any{"ID": 1, "Name": "Chen", "Age": 52},
			map[string]any{"ID": 2, "Name": "Brian", "Age": 19},
			map[string]any{"ID": 3, "Name": "Ada", "Age": 34},
		)},
		Run: []RunStep{{Query: "adults"}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	out, ok := result.Outcome("adults")
	require.True(t, ok)
	assert.Equal(t, "from Cook s in Cooks where ([s].Age >= 21) orderby [s].Name asc select [s].Name", out.Model)
	assert.Equal(t, `SELECT "s"."Name" FROM "cooks" AS "s" WHERE ("s"."Age" >= ?) ORDER BY "s"."Name" ASC`, out.SQL)
	assert.Equal(t, []any{int64(21)}, out.Params)
	assert.Equal(t, []ir.IRObject{
		{"Name": ir.IRString("Ada")},
		{"Name": ir.IRString("Chen")},
	}, out.Rows)
	assert.Empty(t, out.Err)
}

func TestRun_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "empty",
		Description: "Table without rows",
		Queries:     []string{writeQueries(t, dir, cooksQueries)},
		Tables:      []TableSetup{cooksTable()},
		Run:         []RunStep{{Query: "adults", Expect: &ExpectClause{Count: intPtr(0)}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Outcomes[0].Rows)
}

func TestRun_ExpectationFailures(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "failing",
		Description: "Every expectation is wrong",
		Queries:     []string{writeQueries(t, dir, cooksQueries)},
		Tables: []TableSetup{cooksTable(
			map[string]any{"ID": 1, "Name": "Ada", "Age": 34},
		)},
		Run: []RunStep{
			{Query: "adults", Expect: &ExpectClause{Count: intPtr(2)}},
			{Query: "adults", Expect: &ExpectClause{Error: "boom"}},
			{Query: "missing"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"run[0] adults: expected 2 rows, got 1",
		`run[1] adults: expected error containing "boom", got 1 rows`,
		"run[2] missing: unexpected error: unknown query missing",
	}, result.Errors)
	assert.Len(t, result.Outcomes, 3)
}

func TestRun_MissingTableFailsStep(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "no_table",
		Description: "Query runs against a table that was never created",
		Queries:     []string{writeQueries(t, dir, cooksQueries)},
		Run:         []RunStep{{Query: "adults", Expect: &ExpectClause{Error: "no such table"}}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.NotEmpty(t, result.Outcomes[0].SQL, "translation succeeds before execution fails")
}

func TestRun_QueryCompileError(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "bad_queries",
		Description: "Query file does not compile",
		Queries: []string{writeQueries(t, dir, `
collection: Cooks: {type: "Cook"}
query: q: {from: {item: "s", in: "Chefs"}, select: "s"}
`)},
		Run: []RunStep{{Query: "q"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile queries")
	assert.Contains(t, err.Error(), "unknown collection Chefs")
}

func TestRun_CUESyntaxError(t *testing.T) {
	dir := t.TempDir()
	scenario := &Scenario{
		Name:        "syntax",
		Description: "Query file is not CUE",
		Queries:     []string{writeQueries(t, dir, "query: {")},
		Run:         []RunStep{{Query: "q"}},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to compile queries")
}

func TestRun_UnifiesQueryFiles(t *testing.T) {
	dir := t.TempDir()
	collections := filepath.Join(t.TempDir(), "collections.cue")
	require.NoError(t, writeFile(collections, `collection: Cooks: {type: "Cook", table: "cooks"}`))
	queries := writeQueries(t, dir, `
query: names: {
	from: {item: "s", in: "Cooks"}
	select: "s.Name"
}
`)

	scenario := &Scenario{
		Name:        "split",
		Description: "Collections and queries live in separate files",
		Queries:     []string{collections, queries},
		Tables:      []TableSetup{cooksTable(map[string]any{"ID": 1, "Name": "Ada", "Age": 34})},
		Run: []RunStep{{
			Query:  "names",
			Expect: &ExpectClause{Rows: []map[string]any{{"Name": "Ada"}}},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/kitchens.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Outcomes, second.Outcomes)
}

func TestRun_KitchensOutcomes(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/kitchens.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	groups, ok := result.Outcome("kitchenGroups")
	require.True(t, ok)
	assert.Equal(t, "from Cook s in Cooks join Kitchen k in Kitchens on [s].ID equals [k].CookID into []Kitchen ks select [ks]", groups.Model)
	assert.Empty(t, groups.SQL)
	assert.Contains(t, groups.Err, "group join into ks")

	lucky, ok := result.Outcome("lucky")
	require.True(t, ok)
	assert.Equal(t, "from int n in luckyNumbers where ([n] > 5) select [n]", lucky.Model)
	assert.Contains(t, lucky.Err, "inline array luckyNumbers")
}
