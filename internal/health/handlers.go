package health

import (
	"encoding/json"
	"net/http"

	"github.com/labforge/intake-api/internal/resilience"
)

// Handler exposes the health, readiness, liveness and metrics endpoints
// backed by the resilience core.
type Handler struct {
	Core *resilience.Core
}

// Live reports liveness. It never consults dependencies and always answers
// 200 while the process accepts connections.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Core.Liveness())
}

// Ready reports readiness based on the start-up gate and the last known
// status of every required dependency.
func (h Handler) Ready(w http.ResponseWriter, _ *http.Request) {
	report := h.Core.Readiness()
	status := http.StatusOK
	if !report.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Health returns the rich report: overall status plus the per-dependency
// and per-breaker snapshot. 200 for healthy/warning, 503 for unhealthy.
func (h Handler) Health(w http.ResponseWriter, _ *http.Request) {
	report := h.Core.Health()
	status := http.StatusOK
	if report.Status == resilience.StatusCritical {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics returns windowed duration statistics for every live operation.
// Absent data yields an empty object, never an error.
func (h Handler) Metrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Core.Metrics())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
