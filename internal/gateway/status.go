package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/history"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/security"
	"github.com/flemzord/presenced/internal/status"
)

const defaultRunsLimit = 20

// TaskInfo describes the scheduled task.
type TaskInfo struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	InitialDelay float64 `json:"initial_delay_seconds"`
	Interval     float64 `json:"interval_seconds"`
}

func taskInfo(d scheduler.TaskDescriptor) *TaskInfo {
	return &TaskInfo{
		ID:           d.ID,
		Name:         d.Name,
		Description:  d.Description,
		InitialDelay: d.InitialDelay.Seconds(),
		Interval:     d.Interval.Seconds(),
	}
}

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Task     *TaskInfo        `json:"task,omitempty"`
	Status   status.RunStatus `json:"status"`
	Attempts uint64           `json:"attempts"`
	Uptime   int64            `json:"uptime_seconds"`
	Gateway  MetricsSnapshot  `json:"gateway"`
}

func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.tracker == nil {
			writeError(w, http.StatusServiceUnavailable, "keep-alive status unavailable")
			return
		}
		resp := StatusResponse{
			Status:   g.tracker.Snapshot(),
			Attempts: g.tracker.Attempts(),
			Uptime:   int64(g.now().Sub(g.startedAt) / time.Second),
			Gateway:  g.counters.Snapshot(),
		}
		if g.runner != nil {
			resp.Task = taskInfo(g.runner.Descriptor())
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleListRuns serves GET /api/runs?limit=N, newest first.
func (g *Gateway) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.history == nil {
			writeError(w, http.StatusServiceUnavailable, "run history unavailable")
			return
		}

		limit := defaultRunsLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			// The store clamps to its own retention.
			limit = n
		}

		runs, err := g.history.Recent(r.Context(), limit)
		if err != nil {
			g.logger.Error("gateway: listing runs failed", "error", err)
			writeError(w, http.StatusInternalServerError, "listing runs failed")
			return
		}
		if runs == nil {
			runs = []history.Record{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// handleRunNow serves POST /api/run. It blocks until the run finishes
// and answers 409 while another run is in flight.
func (g *Gateway) handleRunNow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.runner == nil {
			writeError(w, http.StatusServiceUnavailable, "keep-alive scheduler unavailable")
			return
		}

		s, err := g.runner.RunNow(r.Context())
		switch {
		case errors.Is(err, scheduler.ErrRunInProgress):
			writeError(w, http.StatusConflict, err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		g.counters.RecordManualRun()
		if g.audit != nil {
			g.audit.Log(security.AuditEvent{
				Type:   security.EventManualRun,
				RunID:  s.RunID,
				Remote: clientAddr(r),
				Path:   r.URL.Path,
				Detail: strconv.FormatBool(s.LastRunSuccess),
			})
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// ModulesResponse is the JSON response for GET /api/modules.
type ModulesResponse struct {
	Compiled []string `json:"compiled"`
	Services []string `json:"services"`
}

func (g *Gateway) handleListModules() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := ModulesResponse{Compiled: []string{}, Services: []string{}}
		for _, m := range core.GetModules() {
			resp.Compiled = append(resp.Compiled, string(m.ID))
		}
		if g.appCtx != nil {
			resp.Services = append(resp.Services, g.appCtx.ServiceNames()...)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
