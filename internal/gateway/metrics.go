package gateway

import (
	"net/http"
	"sync/atomic"
)

// Metrics counts gateway traffic. A nil *Metrics ignores every call.
type Metrics struct {
	requests      atomic.Int64
	authFailures  atomic.Int64
	rateLimited   atomic.Int64
	manualRuns    atomic.Int64
	streamClients atomic.Int64
}

// RecordAuthFailure counts a rejected authentication.
func (m *Metrics) RecordAuthFailure() {
	if m != nil {
		m.authFailures.Add(1)
	}
}

// RecordRateLimited counts a request refused by the auth rate limiter.
func (m *Metrics) RecordRateLimited() {
	if m != nil {
		m.rateLimited.Add(1)
	}
}

// RecordManualRun counts a run triggered through POST /api/run.
func (m *Metrics) RecordManualRun() {
	if m != nil {
		m.manualRuns.Add(1)
	}
}

func (m *Metrics) streamOpened() {
	if m != nil {
		m.streamClients.Add(1)
	}
}

func (m *Metrics) streamClosed() {
	if m != nil {
		m.streamClients.Add(-1)
	}
}

// countRequests is a middleware counting every request served.
func (m *Metrics) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m != nil {
			m.requests.Add(1)
		}
		next.ServeHTTP(w, r)
	})
}

// Snapshot returns a point-in-time view of the counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		Requests:      m.requests.Load(),
		AuthFailures:  m.authFailures.Load(),
		RateLimited:   m.rateLimited.Load(),
		ManualRuns:    m.manualRuns.Load(),
		StreamClients: m.streamClients.Load(),
	}
}

// MetricsSnapshot is the serializable form of Metrics.
type MetricsSnapshot struct {
	Requests      int64 `json:"requests"`
	AuthFailures  int64 `json:"auth_failures"`
	RateLimited   int64 `json:"rate_limited"`
	ManualRuns    int64 `json:"manual_runs"`
	StreamClients int64 `json:"stream_clients"`
}
