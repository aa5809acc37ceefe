// Package workspace implements the file-based variable catalog used
// when no server is available. An envlink.yaml file declares projects
// and variables in the same stored forms the server persists, loads
// into a resolver snapshot, and round-trips through Save.
//
// Watcher powers the lockstep daemon: it watches a workspace directory,
// debounces file events, diffs the reloaded workspace against the
// previous state, and re-resolves the projects affected by each change
// batch, following dependency edges so downstream projects are included.
package workspace
