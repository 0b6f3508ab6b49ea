// Package history persists a bounded log of recent keep-alive runs.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/flemzord/presenced/internal/status"
)

// DefaultRetention is the number of runs kept by every store unless
// configured otherwise.
const DefaultRetention = 100

// ServiceName is the AppContext service a history backend registers.
const ServiceName = "history.store"

// Record is one persisted run.
type Record struct {
	RunID      string        `json:"run_id"`
	RunNumber  uint64        `json:"run_number"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Success    bool          `json:"success"`
	Outcome    string        `json:"outcome"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// NewRecord builds the Record for a finished run.
func NewRecord(o status.Outcome, s status.RunStatus, outcome string) Record {
	r := Record{
		RunID:      o.Run.ID,
		RunNumber:  o.Run.Number,
		StartedAt:  o.Run.Started,
		FinishedAt: s.LastRunTime,
		Success:    s.LastRunSuccess,
		Outcome:    outcome,
		Duration:   s.Duration,
	}
	if s.LastError != nil {
		r.Error = *s.LastError
	}
	return r
}

// Store appends runs and lists the most recent ones, newest first.
// Implementations keep at most their retention limit of runs, and Recent
// clamps limit to that retention with ClampLimit.
type Store interface {
	Append(ctx context.Context, r Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// Memory is an in-process Store used when no backend is configured.
type Memory struct {
	mu      sync.Mutex
	keep    int
	records []Record // oldest first
}

var _ Store = (*Memory)(nil)

// NewMemory creates a Memory store keeping the newest keep runs.
// keep <= 0 means DefaultRetention.
func NewMemory(keep int) *Memory {
	if keep <= 0 {
		keep = DefaultRetention
	}
	return &Memory{keep: keep}
}

// Append implements Store.
func (m *Memory) Append(_ context.Context, r Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	if over := len(m.records) - m.keep; over > 0 {
		m.records = append(m.records[:0:0], m.records[over:]...)
	}
	return nil
}

// Recent implements Store.
func (m *Memory) Recent(_ context.Context, limit int) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = ClampLimit(limit, m.keep)
	out := make([]Record, 0, min(limit, len(m.records)))
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// ClampLimit bounds a requested listing size to 1..keep, mapping
// non-positive values to keep.
func ClampLimit(limit, keep int) int {
	if limit <= 0 || limit > keep {
		return keep
	}
	return limit
}
