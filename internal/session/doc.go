// Package session implements per-client edit sessions: applying caption and
// tag operations against the dataset store with optimistic concurrency, a
// bounded undo/redo history, and bulk runs over resolved item sets.
package session
