// Package harness runs end-to-end query scenarios: CUE queries are
// compiled, parsed into query models, translated to SQL and executed
// against a private SQLite database.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: adults
//	description: "Cooks of age, by name"
//	queries:
//	  - ../queries/kitchen.cue
//	tables:
//	  - name: cooks
//	    columns:
//	      - {name: ID, type: INTEGER}
//	      - {name: Name, type: TEXT}
//	    rows:
//	      - {ID: 1, Name: Ada}
//	run:
//	  - query: adults
//	    expect:
//	      rows: [{Name: Ada}]
//	  - query: kitchenGroups
//	    expect:
//	      error: "no SQL translation"
//	assertions:
//	  - type: model
//	    query: adults
//	    equals: "from Cook s in Cooks ... select [s].Name"
//	  - type: sql
//	    query: adults
//	    contains: "ORDER BY"
//
// # Assertion Types
//
//   - model: the rendered query model equals the given text
//   - sql: the generated SQL equals or contains the given text
//   - valid: queryir.Validate reports no problems and no warnings
//   - warning: queryir.Validate reports a warning containing the text
//
// # Deterministic Testing
//
// Plans and runs are stored with sequential IDs and a deterministic
// logical clock in an in-memory database, so outcomes can be compared
// against golden files with RunWithGolden.
package harness
