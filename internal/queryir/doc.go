// Package queryir defines the query model chainql parses operation chains
// into, and the clause types backends consume.
//
// A model is a main from clause, an ordered body and one select clause:
//
//	from Cook s in Cooks
//	where ([s].Age > 5)
//	orderby [s].Name asc, [s].Age desc
//	select [s]
//
// OWNERSHIP:
//
// The model owns every clause. Clauses point at the clause whose output
// they consume through a ClauseID handle (Previous), fixed at
// construction; Model.Clause resolves a handle and Model.Chain follows it
// back to the main from clause. From-like clauses own their join clauses;
// a SubQueryFromClause owns its nested model.
//
// SEALED INTERFACES:
//
// Clause and BodyClause are sealed with marker methods so that type
// switches in backends and in the visit package are exhaustive.
//
// MUTATION:
//
// The body, ordering groups, join lists and result modifiers are
// Collections. Rewrite passes may insert and remove elements while a
// traversal is in progress; Collection keeps every live iteration cursor
// consistent.
//
// References inside expressions (expr.Reference) point at the producing
// clause by identity, so items are never renamed.
package queryir
