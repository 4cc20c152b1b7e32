package handlers

import (
	"net/http"
	"runtime"

	"dataset-studio/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status           string `json:"status"`
	Ready            bool   `json:"ready"`
	Version          string `json:"version"`
	Uptime           string `json:"uptime"`
	Scanning         bool   `json:"scanning"`
	LastScanned      string `json:"lastScanned,omitempty"`
	InitialScanError string `json:"initialScanError,omitempty"`
	ItemsSeen        int64  `json:"itemsSeen"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	status := h.scanner.GetHealthStatus()

	response := HealthResponse{
		Ready:            status.Ready,
		Version:          startup.Version,
		Uptime:           status.Uptime,
		Scanning:         status.Scanning,
		InitialScanError: status.InitialScanError,
		ItemsSeen:        status.ItemsSeen,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}
	if !status.LastScanned.IsZero() {
		response.LastScanned = status.LastScanned.Format("2006-01-02T15:04:05Z07:00")
	}

	if status.Ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, response)
}

// ReadyCheck returns 200 once the initial scan has completed, 503 before.
// Kubernetes-style readiness probe.
func (h *Handlers) ReadyCheck(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.IsReady() {
		writeJSONStatus(w, "ready")
		return
	}
	writeJSONError(w, "initial scan in progress", http.StatusServiceUnavailable)
}
