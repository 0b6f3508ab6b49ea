package gateway

import (
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status string `json:"status"` // "ok" or "degraded"
	Uptime int64  `json:"uptime_seconds"`
}

// handleHealth reports liveness. It is degraded (503) only when no
// keep-alive tracker is registered; a failing run does not make the
// daemon unhealthy.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status: "ok",
			Uptime: int64(g.now().Sub(g.startedAt) / time.Second),
		}
		code := http.StatusOK
		if g.tracker == nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
