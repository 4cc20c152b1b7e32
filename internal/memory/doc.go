// Package memory configures the Go runtime's soft memory limit for
// containerized deployments and provides backpressure for bulk thumbnail
// rendering.
//
// # GOMEMLIMIT configuration
//
// Unlike GOMAXPROCS, which the runtime derives from cgroup CPU quotas,
// GOMEMLIMIT is never inferred from the container memory limit; an
// unconfigured process gets OOM-killed under pressure instead of collecting
// harder. [ConfigureFromEnv] closes that gap and should run first thing in
// main, before the index or the thumbnail cache allocate:
//
//   - GOMEMLIMIT: standard runtime variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes, typically wired through the
//     Kubernetes Downward API (resourceFieldRef: limits.memory).
//   - MEMORY_RATIO: fraction of MEMORY_LIMIT given to the Go heap,
//     default 0.85. The remainder is headroom for libvips pipelines, the
//     SQLite page cache and goroutine stacks, none of which count against
//     the Go heap.
//
// GOMEMLIMIT is a soft limit: the collector works harder near it but the
// process may still exceed it briefly. Set MEMORY_RATIO lower when thumbnail
// prewarming runs against very large source images.
//
// # Render backpressure
//
// [Monitor] samples heap usage on an interval and trips a pause when usage
// crosses the critical watermark, resuming only after it falls back under
// the high watermark. The thumbnail cache blocks on WaitIfPaused between
// prewarm renders:
//
//	monitor := memory.NewMonitor(memory.DefaultConfig())
//	monitor.Start()
//	defer monitor.Stop()
//	cache.SetMemoryMonitor(monitor)
//
// Interactive thumbnail requests are never gated; only bulk rendering
// yields to memory pressure.
package memory
