// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// This package centralizes all application configuration and provides consistent
// logging throughout the application lifecycle.
//
// # Configuration
//
// All configuration is loaded from environment variables via [LoadConfig].
// The following environment variables are supported:
//
//   - DATASET_DIR: Path to the dataset directory (default: /dataset)
//   - CACHE_DIR: Path to cache directory for the search index (default: /cache)
//   - PORT: HTTP server port (default: 8080)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - SCAN_INTERVAL: Full rescan interval as Go duration (default: 10m)
//   - POLL_INTERVAL: Filesystem change detection interval as Go duration (default: 10s)
//   - SIDECAR_EXT: Sidecar file extension (default: .txt)
//   - SIDECAR_TRAILING_COMMA: Write a trailing comma after the tag line (default: false)
//   - THUMBNAIL_CACHE_MB: In-memory thumbnail cache budget in MiB (default: 256)
//   - PREWARM_THUMBNAILS: Render thumbnails for all items after the initial scan (default: false)
//   - UNDO_DEPTH: Per-session undo history depth (default: 100)
//   - SESSION_MAX_IDLE: Idle time before an edit session is pruned (default: 2h)
//   - LOG_LEVEL: Logging level - debug, info, warn, error (default: info)
//   - LOG_HEALTH_CHECKS: Log health check requests (default: true)
//   - MEMORY_LIMIT: Container memory limit for automatic GOMEMLIMIT configuration
//   - MEMORY_RATIO: Percentage of MEMORY_LIMIT for Go heap (default: 0.85)
//   - GOMEMLIMIT: Direct override for Go's memory limit
//
// # Directory Setup
//
// The package validates required directories:
//   - Dataset directory: Must exist (should be mounted); never created
//   - Cache directory: Created if missing, must be writable (holds the index)
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
// The package provides structured logging functions for consistent output:
//   - [LogIndexInit]: Index initialization timing
//   - [LogScannerInit]: Scanner configuration and intervals
//   - [LogHTTPRoutes]: Registered HTTP routes (debug level)
//   - [LogServerStarted]: Server endpoints and startup duration
//   - [LogShutdownInitiated]: Graceful shutdown start
//   - [LogShutdownComplete]: Shutdown completion
//   - [LogMemoryConfig]: Memory limit configuration
//
// # Example Usage
//
//	config, err := startup.LoadConfig()
//	if err != nil {
//	    startup.LogFatal("Configuration error: %v", err)
//	}
//
//	// Initialize components...
//	startup.LogIndexInit(indexInitDuration)
//	startup.LogScannerInit(config.ScanInterval, config.PollInterval)
//
//	// Start server...
//	startup.LogServerStarted(startup.ServerConfig{
//	    Port:            config.Port,
//	    MetricsPort:     config.MetricsPort,
//	    MetricsEnabled:  config.MetricsEnabled,
//	    StartupDuration: time.Since(startTime),
//	})
//
//	// On shutdown...
//	startup.LogShutdownInitiated("SIGTERM")
//	// ... cleanup ...
//	startup.LogShutdownComplete()
package startup
