// Package resolver implements the environment variable resolution engine.
//
// # Overview
//
// This package parses stored variable values (raw literals, links, and
// concatenation expressions), builds the dependency graph implied by
// cross-project references, detects circular references, and computes the
// final string value of every variable. It also answers reverse-graph
// impact questions ("what changes if this variable changes").
//
// # Key Concepts
//
// Snapshot: an immutable point-in-time view of all variables across all
// projects. The resolver performs no I/O; the caller loads the snapshot.
// Reference: a PROJECT:VAR pair pointing at another variable.
// Dependency Graph: identity-keyed adjacency lists plus their transpose,
// rebuilt fresh for every resolution pass.
//
// # Usage Example
//
// Resolve everything:
//
//	snap := resolver.NewSnapshot(vars)
//	result := resolver.Resolve(snap, resolver.ScopeAll())
//	for id, value := range result.Resolved {
//		fmt.Printf("%s=%s\n", id, value)
//	}
//	for id, err := range result.Errors {
//		fmt.Printf("%s: %s\n", id, err.Message)
//	}
//
// Impact analysis:
//
//	report, err := resolver.AnalyzeImpact(snap, target, exportIndex)
//	if report.CrossProjectImpact {
//		fmt.Println("other projects are affected")
//	}
//
// # Concurrency
//
// Every call is a pure function of its snapshot: no shared mutable state,
// no caches surviving a call. Callers may resolve many snapshots in
// parallel.
//
// # Related Packages
//
//   - pkg/resolver/cache: service-level memoization of resolve results
//   - pkg/api: snapshot loading and the HTTP surface
package resolver
