// Package search provides cross-project search over environment
// variables stored in the SQL backend.
//
// Queries combine free-text terms with filters:
//
//	database project:webapp kind:linked name:API_* has-description:true
//
// Free-text terms match case-insensitively against variable names,
// stored values (raw literals, link targets, and concatenation
// expressions), and descriptions. The project: and name: filters accept
// * wildcards. Searches are recorded in a history table that powers
// prefix-based query suggestions.
//
// The SQL is restricted to the portable subset shared by PostgreSQL and
// SQLite, so tests run against an in-memory SQLite database.
package search
