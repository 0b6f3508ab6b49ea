// Package status records the outcome of keep-alive runs and exposes a
// consistent, read-only view of the latest one to observers.
package status

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the snapshot written at the end of every run. It is never
// modified after being published.
type RunStatus struct {
	RunID          string        `json:"run_id,omitempty"`
	LastRunTime    time.Time     `json:"last_run_time,omitzero"`
	LastRunSuccess bool          `json:"last_run_success"`
	LastError      *string       `json:"last_error"`
	RunCount       uint64        `json:"run_count"`
	Duration       time.Duration `json:"duration_ns"`
}

// Never reports whether no run has completed yet.
func (s RunStatus) Never() bool { return s.LastRunTime.IsZero() }

// Run identifies one attempt, handed out by Tracker.Begin.
type Run struct {
	ID      string
	Number  uint64
	Started time.Time

	// Previous is the snapshot that was current when the run began.
	Previous RunStatus
}

// Outcome is the result of a run, passed to Tracker.Record. A nil Err
// means the run succeeded.
type Outcome struct {
	Run      Run
	Finished time.Time
	Err      error
}

// Tracker owns the RunStatus of one task. Only the task body writes to
// it; Snapshot may be called from any goroutine.
type Tracker struct {
	attempts atomic.Uint64
	current  atomic.Pointer[RunStatus]
	now      func() time.Time

	mu   sync.Mutex // serializes Record and guards subs
	subs map[chan RunStatus]struct{}
}

// NewTracker creates a Tracker in the never-run state. A nil now defaults
// to time.Now.
func NewTracker(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	t := &Tracker{now: now, subs: make(map[chan RunStatus]struct{})}
	t.current.Store(&RunStatus{})
	return t
}

// Begin counts a new attempt and returns its identity. The attempt
// counter advances even if the run never reaches Record.
func (t *Tracker) Begin() Run {
	id := uuid.Must(uuid.NewV7()).String()
	return Run{
		ID:       id,
		Number:   t.attempts.Add(1),
		Started:  t.now(),
		Previous: t.Snapshot(),
	}
}

// Attempts returns the number of runs begun so far.
func (t *Tracker) Attempts() uint64 { return t.attempts.Load() }

// Record publishes the outcome of run o.Run as a single snapshot and
// notifies subscribers. LastRunTime never moves backwards.
func (t *Tracker) Record(o Outcome) RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.current.Load()
	finished := o.Finished
	if finished.IsZero() {
		finished = t.now()
	}
	if finished.Before(prev.LastRunTime) {
		finished = prev.LastRunTime
	}

	next := &RunStatus{
		RunID:          o.Run.ID,
		LastRunTime:    finished,
		LastRunSuccess: o.Err == nil,
		RunCount:       max(o.Run.Number, prev.RunCount),
		Duration:       finished.Sub(o.Run.Started),
	}
	if o.Err != nil {
		msg := o.Err.Error()
		next.LastError = &msg
	}
	t.current.Store(next)

	for ch := range t.subs {
		select {
		case ch <- *next:
		default:
			// subscriber is behind; drop rather than block the run
		}
	}
	return *next
}

// Snapshot returns the latest published status.
func (t *Tracker) Snapshot() RunStatus {
	return *t.current.Load()
}

// Subscribe returns a buffered channel that receives every snapshot
// published after the call.
func (t *Tracker) Subscribe() chan RunStatus {
	ch := make(chan RunStatus, 16)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes ch and closes it.
func (t *Tracker) Unsubscribe(ch chan RunStatus) {
	t.mu.Lock()
	_, ok := t.subs[ch]
	delete(t.subs, ch)
	t.mu.Unlock()
	if ok {
		close(ch)
	}
}
