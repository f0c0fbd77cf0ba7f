package handlers

import (
	"net/http"
	"runtime"
	"time"

	"asset-library/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status       string `json:"status"`
	Ready        bool   `json:"ready"`
	Version      string `json:"version"`
	Uptime       string `json:"uptime"`
	TotalAssets  int    `json:"totalAssets"`
	LastScan     string `json:"lastScan,omitempty"`
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	stats := h.lib.GetStats()
	ready := h.lib.Ready()

	response := HealthResponse{
		Ready:        ready,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).Round(time.Second).String(),
		TotalAssets:  stats.TotalAssets,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}
	if !stats.LastScanTime.IsZero() {
		response.LastScan = stats.LastScanTime.Format(time.RFC3339)
	}

	writeJSON(w, response)
}

// ReadinessCheck reports 200 once the initial library scan completed
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	if !h.lib.Ready() {
		writeJSONError(w, "initial scan in progress", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, map[string]bool{"ready": true})
}

// GetVersion returns build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, startup.GetBuildInfo())
}
