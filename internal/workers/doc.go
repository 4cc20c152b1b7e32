// Package workers provides GOMAXPROCS-aware worker pool sizing for the
// parallel dataset scan and thumbnail prewarm.
package workers
