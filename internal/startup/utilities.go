package startup

import (
	"fmt"

	"dataset-studio/internal/logging"
)

// MemoryConfig holds memory limit information for startup logging
type MemoryConfig struct {
	Configured     bool
	Source         string
	ContainerLimit int64
	GoMemLimit     int64
	Ratio          float64
}

// LogMemoryConfig logs the memory limit configuration section
func LogMemoryConfig(mc MemoryConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("MEMORY CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	if !mc.Configured {
		logging.Info("  No memory limit configured (set MEMORY_LIMIT or GOMEMLIMIT)")
		logging.Info("  Go will use all available system memory")
		return
	}

	switch mc.Source {
	case "GOMEMLIMIT":
		logging.Info("  Source:      GOMEMLIMIT (set explicitly)")
		logging.Info("  GOMEMLIMIT:  %s", formatBytesStartup(mc.GoMemLimit))
	case "MEMORY_LIMIT":
		logging.Info("  Source:          MEMORY_LIMIT")
		logging.Info("  Container limit: %s", formatBytesStartup(mc.ContainerLimit))
		logging.Info("  GOMEMLIMIT:      %s (%.0f%% of limit)", formatBytesStartup(mc.GoMemLimit), mc.Ratio*100)
	default:
		logging.Info("  Source:      %s", mc.Source)
		logging.Info("  GOMEMLIMIT:  %s", formatBytesStartup(mc.GoMemLimit))
	}
	logging.Info("  [OK] Memory limit applied")
}

// formatBytesStartup formats a byte count using IEC units
func formatBytesStartup(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
