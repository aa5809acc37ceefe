// Package storage provides pluggable persistence backends for the envlink
// environment variable registry.
//
// # Overview
//
// This package defines the storage abstraction layer for envlink, enabling
// multiple backend implementations (filesystem, PostgreSQL with Redis
// caching and S3 archival) behind the api.Storage contract. It manages
// projects, environment variables, and export records.
//
// # Backends
//
//   - FileSystemStorage: JSON files under a root directory, one directory
//     per project. Default for local development and the workspace watcher.
//   - postgres.PostgresStorage: production backend (pkg/storage/postgres)
//     with connection pooling, context-aware method variants, optional
//     read-through Redis caching, and S3 export archival.
//
// # Layout (filesystem backend)
//
//	<root>/<project>/project.json
//	<root>/<project>/vars/<name>.json
//	<root>/<project>/exports/<id>.json
//
// # Error Handling
//
// Backends return api.ErrNotFound (wrapped with entity context) for
// missing entities, so callers can branch with errors.Is regardless of
// backend.
package storage
