// Package scanner keeps the dataset store and derived index in sync with
// the directory on disk. It runs the initial scan at startup, polls for
// changes with cheap stat-based checks (safe on NFS, no recursive walks in
// the hot path), and falls back to periodic full rescans.
package scanner
