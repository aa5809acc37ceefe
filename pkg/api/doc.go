// Package api provides the HTTP REST API server for the envlink environment
// variable registry.
//
// # Overview
//
// This package implements the core HTTP API layer that exposes envlink's
// functionality as RESTful endpoints. It handles project and variable
// management, cross-project resolution, impact analysis, export capture,
// and export drift checks.
//
// # Architecture
//
// The API is built on gorilla/mux and organized into domain-specific
// handler groups:
//
//   - Project Management: Create, list, update, and delete projects
//   - Variable Management: CRUD for raw, linked, and concatenated variables
//     with reference validation and cycle rejection at write time
//   - Resolution: Resolve everything, one project, or one variable through
//     a fingerprint-keyed result cache
//   - Impact Analysis: Report which variables and captured exports a change
//     would affect, across project boundaries
//   - Exports: Capture a resolution result with git metadata, and compare
//     stored hashes against fresh resolutions to find stale exports
//
// # Key Types
//
// Server is the main API server that coordinates all functionality:
//
//	server := api.NewServer(storage)
//	http.ListenAndServe(":8080", server)
//
// Project represents a named group of variables (e.g., "shared", "webapp"):
//
//	project := &api.Project{
//		Name:        "shared",
//		Description: "Values shared by every deployable",
//	}
//
// EnvVar represents one variable; exactly one value field is set:
//
//	raw := "postgresql://db.internal:5432/prod"
//	envVar := &api.EnvVar{
//		Project:  "shared",
//		Name:     "DATABASE_URL",
//		RawValue: &raw,
//	}
//
// EnvExport is a capture record of one project resolution, hashed for
// later drift comparison.
//
// # Storage
//
// The Storage interface abstracts persistence. Two backends exist:
// filesystem (pkg/storage) and PostgreSQL with optional Redis caching
// (pkg/storage/postgres). ErrNotFound is the shared missing-entity
// sentinel.
//
// # Validation
//
// Variable writes are validated against the registry as it would look
// after the write: the stored value must parse to exactly one kind, every
// reference must point at an existing variable, and the write must not
// close a reference cycle. Deletes are refused while dependents exist
// unless forced.
package api
