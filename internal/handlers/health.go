package handlers

import (
	"net/http"
	"runtime"
	"time"

	"fileindex/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusBuilding = "building"
	statusEmpty    = "not_built"
	statusDegraded = "degraded"
	statusDown     = "unavailable"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Built     bool   `json:"built"`
	Building  bool   `json:"building"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Root      string `json:"root"`
	LastBuilt string `json:"lastBuilt,omitempty"`
	LastError string `json:"lastError,omitempty"`

	Files       int `json:"files"`
	Directories int `json:"directories"`

	// Build progress while Building is set
	Progress *ProgressResponse `json:"progress,omitempty"`

	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`
}

// ProgressResponse is the subset of build progress shown in health output.
type ProgressResponse struct {
	Total     int64   `json:"total"`
	Processed int64   `json:"processed"`
	Errors    int64   `json:"errors"`
	Percent   float64 `json:"percent"`
}

// HealthCheck returns the health status of the service. It answers 503 only
// when the store cannot be queried.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := h.index.Health(r.Context())

	response := HealthResponse{
		Ready:        status.Ready,
		Built:        status.Built,
		Building:     status.Building,
		Version:      startup.Version,
		Uptime:       status.Uptime,
		Root:         h.index.Root(),
		LastError:    status.LastError,
		Files:        status.Files,
		Directories:  status.Directories,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}
	if !status.LastBuilt.IsZero() {
		response.LastBuilt = status.LastBuilt.Format(time.RFC3339)
	}

	switch {
	case !status.Ready:
		response.Status = statusDown
	case status.Building:
		response.Status = statusBuilding
		p := h.index.Stats(r.Context()).Progress
		response.Progress = &ProgressResponse{
			Total:     p.Total,
			Processed: p.Processed,
			Errors:    p.Errors,
			Percent:   p.Percent,
		}
	case status.LastError != "":
		response.Status = statusDegraded
	case !status.Built:
		response.Status = statusEmpty
	default:
		response.Status = statusHealthy
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSONStatus(w, code, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{"status": "alive"})
	}
}

// ReadinessCheck returns 200 once the store answers queries. An index that
// is still building is ready: queries see whatever has been written.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	if h.index.Health(r.Context()).Ready {
		writeJSONStatus(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}
	writeJSONStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}
