// Package index maintains the derived query index over the dataset: item
// listings with pagination, the tag reverse index, and caption full-text
// search, all backed by SQLite under the cache directory.
//
// The index is a cache, never a source of truth. It is rebuilt wholesale
// when a dataset root is opened, updated incrementally through the Store's
// change hook, and lazily refreshed per item when the scanner marks entries
// stale after external modification. Queries never observe a half-updated
// index: stale entries are reconciled before the query runs.
//
// Caption search prefers an FTS5 trigram table, which requires the SQLite
// driver to be compiled with the sqlite_fts5 build tag:
//
//	go build -tags sqlite_fts5 ./...
//
// Plain builds still work: New detects the missing module at startup and
// routes all caption searches through LIKE scans instead.
package index
