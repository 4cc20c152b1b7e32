package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"dataset-studio/internal/dataset"
	"dataset-studio/internal/events"
	"dataset-studio/internal/filesystem"
	"dataset-studio/internal/index"
	"dataset-studio/internal/logging"
	"dataset-studio/internal/metrics"
)

const (
	// Default polling interval for change detection
	defaultPollInterval = 10 * time.Second

	// Default interval for periodic full rescans
	defaultScanInterval = 10 * time.Minute
)

// Scanner watches the dataset directory and reconciles the store and index
// with what it finds.
type Scanner struct {
	store *dataset.Store
	idx   *index.Index
	hub   *events.Hub

	scanInterval time.Duration
	pollInterval time.Duration
	stopChan     chan struct{}

	scanMu              sync.Mutex
	isScanning          bool
	lastScanTime        time.Time
	initialScanComplete bool
	initialScanError    error
	startTime           time.Time

	itemsSeen atomic.Int64

	// Callback after the initial scan finishes (thumbnail prewarm hook).
	onInitialScan func([]*dataset.Item)

	// Last known state for lightweight change detection
	stateMu            sync.RWMutex
	lastRootModTime    time.Time
	lastTopLevelCount  int
	lastSubdirModTimes map[string]time.Time
}

// New creates a Scanner. scanInterval is the periodic full-rescan cadence;
// zero means defaultScanInterval.
func New(store *dataset.Store, idx *index.Index, hub *events.Hub, scanInterval time.Duration) *Scanner {
	if scanInterval <= 0 {
		scanInterval = defaultScanInterval
	}
	return &Scanner{
		store:              store,
		idx:                idx,
		hub:                hub,
		scanInterval:       scanInterval,
		pollInterval:       defaultPollInterval,
		stopChan:           make(chan struct{}),
		startTime:          time.Now(),
		lastSubdirModTimes: make(map[string]time.Time),
	}
}

// SetPollInterval overrides the change-detection polling interval.
func (sc *Scanner) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		sc.pollInterval = interval
	}
}

// SetOnInitialScan registers a callback invoked with the scanned items once
// the initial scan completes.
func (sc *Scanner) SetOnInitialScan(fn func([]*dataset.Item)) {
	sc.onInitialScan = fn
}

// Start launches the initial scan and the background loops.
func (sc *Scanner) Start() {
	go func() {
		logging.Info("Starting initial dataset scan in background...")
		if err := sc.FullScan(context.Background()); err != nil {
			logging.Error("Initial scan error: %v", err)
			sc.scanMu.Lock()
			sc.initialScanError = err
			sc.scanMu.Unlock()
		}
	}()

	go sc.pollForChanges()
	go sc.periodicScan()
}

// Stop halts the background loops.
func (sc *Scanner) Stop() {
	close(sc.stopChan)
}

// IsReady reports whether the initial scan has completed.
func (sc *Scanner) IsReady() bool {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()
	return sc.initialScanComplete
}

// HealthStatus contains health check information.
type HealthStatus struct {
	Ready            bool      `json:"ready"`
	Scanning         bool      `json:"scanning"`
	StartTime        time.Time `json:"startTime"`
	Uptime           string    `json:"uptime"`
	LastScanned      time.Time `json:"lastScanned,omitempty"`
	InitialScanError string    `json:"initialScanError,omitempty"`
	ItemsSeen        int64     `json:"itemsSeen"`
}

// GetHealthStatus returns detailed health information.
func (sc *Scanner) GetHealthStatus() HealthStatus {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()

	status := HealthStatus{
		Ready:       sc.initialScanComplete,
		Scanning:    sc.isScanning,
		StartTime:   sc.startTime,
		Uptime:      time.Since(sc.startTime).String(),
		LastScanned: sc.lastScanTime,
		ItemsSeen:   sc.itemsSeen.Load(),
	}
	if sc.initialScanError != nil {
		status.InitialScanError = sc.initialScanError.Error()
	}
	return status
}

// FullScan walks the dataset directory, replaces the store state and
// rebuilds the index from the result.
func (sc *Scanner) FullScan(ctx context.Context) error {
	if !sc.tryStartScan() {
		logging.Info("Scan already in progress, skipping...")
		return nil
	}
	defer sc.finishScan()

	metrics.ScannerRunning.Set(1)
	defer metrics.ScannerRunning.Set(0)
	metrics.ScannerRunsTotal.Inc()

	startTime := time.Now()
	logging.Info("Starting dataset scan...")

	items, err := sc.store.Scan(ctx)
	if err != nil {
		metrics.ScannerErrors.Inc()
		return fmt.Errorf("dataset scan failed: %w", err)
	}

	if err := sc.idx.Rebuild(ctx, items); err != nil {
		metrics.ScannerErrors.Inc()
		return fmt.Errorf("index rebuild failed: %w", err)
	}
	sc.idx.UpdateGauges(ctx)

	sc.itemsSeen.Store(int64(len(items)))
	sc.updateLastKnownState()

	duration := time.Since(startTime)
	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(duration.Seconds())
	metrics.ScannerItemsSeen.Set(float64(len(items)))

	logging.Info("Dataset scan complete: %d items in %v", len(items), duration)

	first := sc.markInitialComplete()
	if first && sc.onInitialScan != nil {
		sc.onInitialScan(items)
	}
	if sc.hub != nil {
		sc.hub.PublishDatasetReloaded(len(items))
	}
	return nil
}

// Resync runs an incremental reconciliation pass: cheaper than a full scan
// and it fires per-item change hooks so the index and clients follow along.
func (sc *Scanner) Resync(ctx context.Context) (dataset.ResyncResult, error) {
	if !sc.tryStartScan() {
		logging.Info("Scan already in progress, skipping resync...")
		return dataset.ResyncResult{}, nil
	}
	defer sc.finishScan()

	metrics.ScannerRunning.Set(1)
	defer metrics.ScannerRunning.Set(0)
	metrics.ScannerRunsTotal.Inc()

	startTime := time.Now()
	res, err := sc.store.Resync(ctx)
	if err != nil {
		metrics.ScannerErrors.Inc()
		return res, err
	}

	metrics.ScannerDriftTotal.WithLabelValues("added").Add(float64(res.Added))
	metrics.ScannerDriftTotal.WithLabelValues("changed").Add(float64(res.Changed))
	metrics.ScannerDriftTotal.WithLabelValues("removed").Add(float64(res.Removed))

	sc.itemsSeen.Store(int64(sc.store.Len()))
	sc.updateLastKnownState()

	metrics.ScannerLastRunTimestamp.Set(float64(time.Now().Unix()))
	metrics.ScannerLastRunDuration.Set(time.Since(startTime).Seconds())
	metrics.ScannerItemsSeen.Set(float64(sc.store.Len()))

	if res.Added+res.Changed+res.Removed > 0 {
		logging.Info("Resync: %d added, %d changed, %d removed", res.Added, res.Changed, res.Removed)
		sc.idx.UpdateGauges(ctx)
		if sc.hub != nil {
			sc.hub.PublishDatasetReloaded(sc.store.Len())
		}
	}
	return res, nil
}

// pollForChanges periodically checks for directory changes.
func (sc *Scanner) pollForChanges() {
	for !sc.IsReady() {
		select {
		case <-time.After(1 * time.Second):
		case <-sc.stopChan:
			return
		}
	}

	logging.Info("Starting change detection polling (interval: %v)", sc.pollInterval)

	ticker := time.NewTicker(sc.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := sc.detectChanges()
			if err != nil {
				logging.Error("Error detecting changes: %v", err)
				continue
			}
			if changed {
				logging.Info("Directory changes detected, resyncing")
				if _, err := sc.Resync(context.Background()); err != nil {
					logging.Error("Resync after change detection failed: %v", err)
				}
			}
		case <-sc.stopChan:
			logging.Info("Change detection polling stopped")
			return
		}
	}
}

// periodicScan performs full rescans on a slow cadence, catching anything
// the cheap polling missed (edits deep in the tree that don't touch
// directory mtimes).
func (sc *Scanner) periodicScan() {
	ticker := time.NewTicker(sc.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			logging.Info("Starting periodic full rescan...")
			if _, err := sc.Resync(context.Background()); err != nil {
				logging.Error("Periodic resync error: %v", err)
			}
		case <-sc.stopChan:
			return
		}
	}
}

// detectChanges performs a lightweight check for directory changes. It only
// stats the root, counts top-level entries and samples subdirectory mtimes,
// avoiding recursive walks on NFS.
func (sc *Scanner) detectChanges() (bool, error) {
	rootInfo, err := filesystem.StatWithRetry(sc.store.Root(), filesystem.DefaultRetryConfig())
	if err != nil {
		return false, fmt.Errorf("failed to stat dataset directory: %w", err)
	}

	sc.stateMu.RLock()
	lastRootModTime := sc.lastRootModTime
	lastTopLevelCount := sc.lastTopLevelCount
	sc.stateMu.RUnlock()

	if rootInfo.ModTime().After(lastRootModTime) {
		logging.Debug("Dataset root modified: %v > %v", rootInfo.ModTime(), lastRootModTime)
		return true, nil
	}

	entries, err := filesystem.ReadDirWithRetry(sc.store.Root(), filesystem.DefaultRetryConfig())
	if err != nil {
		return false, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	topLevelCount := 0
	for _, entry := range entries {
		if !strings.HasPrefix(entry.Name(), ".") {
			topLevelCount++
		}
	}
	if topLevelCount != lastTopLevelCount {
		logging.Debug("Top-level count changed: %d -> %d", lastTopLevelCount, topLevelCount)
		return true, nil
	}

	return sc.checkSubdirectorySample(entries), nil
}

// checkSubdirectorySample compares modification times of subdirectories,
// catching changes in nested folders without walking the whole tree.
func (sc *Scanner) checkSubdirectorySample(entries []fs.DirEntry) bool {
	sc.stateMu.RLock()
	lastSubdirModTimes := sc.lastSubdirModTimes
	sc.stateMu.RUnlock()

	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := filesystem.StatWithRetry(filepath.Join(sc.store.Root(), entry.Name()), filesystem.DefaultRetryConfig())
		if err != nil {
			continue
		}

		if lastMod, exists := lastSubdirModTimes[entry.Name()]; exists {
			if info.ModTime().After(lastMod) {
				logging.Debug("Subdirectory %s modified: %v > %v", entry.Name(), info.ModTime(), lastMod)
				return true
			}
		} else {
			logging.Debug("New subdirectory detected: %s", entry.Name())
			return true
		}
	}
	return false
}

// updateLastKnownState refreshes the cached detection state after a scan.
func (sc *Scanner) updateLastKnownState() {
	rootInfo, err := filesystem.StatWithRetry(sc.store.Root(), filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Failed to stat dataset directory for state update: %v", err)
		return
	}

	entries, err := filesystem.ReadDirWithRetry(sc.store.Root(), filesystem.DefaultRetryConfig())
	if err != nil {
		logging.Warn("Failed to read dataset directory for state update: %v", err)
		return
	}

	topLevelCount := 0
	subdirModTimes := make(map[string]time.Time)
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		topLevelCount++
		if entry.IsDir() {
			if info, err := filesystem.StatWithRetry(filepath.Join(sc.store.Root(), entry.Name()), filesystem.DefaultRetryConfig()); err == nil {
				subdirModTimes[entry.Name()] = info.ModTime()
			}
		}
	}

	sc.stateMu.Lock()
	sc.lastRootModTime = rootInfo.ModTime()
	sc.lastTopLevelCount = topLevelCount
	sc.lastSubdirModTimes = subdirModTimes
	sc.stateMu.Unlock()

	logging.Debug("Updated last known state: rootMod=%v, topLevel=%d, subdirs=%d",
		rootInfo.ModTime(), topLevelCount, len(subdirModTimes))
}

func (sc *Scanner) tryStartScan() bool {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()
	if sc.isScanning {
		return false
	}
	sc.isScanning = true
	return true
}

func (sc *Scanner) finishScan() {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()
	sc.isScanning = false
	sc.lastScanTime = time.Now()
}

// markInitialComplete flips the ready flag, reporting whether this call was
// the one that flipped it.
func (sc *Scanner) markInitialComplete() bool {
	sc.scanMu.Lock()
	defer sc.scanMu.Unlock()
	first := !sc.initialScanComplete
	sc.initialScanComplete = true
	return first
}
