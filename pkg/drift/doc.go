// Package drift detects stale export captures. A run loads the full
// variable catalog once, re-resolves every project that has exports,
// and compares the canonical hash of each fresh resolution against the
// hash stored when the export was captured. A mismatch means the files
// written at export time no longer reflect the catalog.
//
// Runs are safe to schedule from multiple daemon replicas when a Locker
// is configured; only one replica proceeds per interval.
package drift
