// Package scheduler runs a single task on a fixed cadence: once after an
// initial delay, then at every interval, one run at a time. A failing or
// panicking run never stops the schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flemzord/presenced/internal/status"
)

// TaskDescriptor identifies a task and its cadence. It is not modified
// after New.
type TaskDescriptor struct {
	ID           string
	Name         string // human label used in fault messages; defaults to ID
	Description  string
	InitialDelay time.Duration
	Interval     time.Duration
}

func (d TaskDescriptor) validate() error {
	var errs []error
	if d.ID == "" {
		errs = append(errs, fmt.Errorf("%w: id is required", ErrInvalidTask))
	}
	if d.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("%w: initial delay must not be negative", ErrInvalidTask))
	}
	if d.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: interval must be positive", ErrInvalidTask))
	}
	return errors.Join(errs...)
}

// Body is one run of the task. The returned error becomes the run's
// LastError; nil means success.
type Body func(ctx context.Context, run status.Run) error

// Observer is notified after every recorded run, in order, on the run's
// goroutine.
type Observer interface {
	ObserveRun(ctx context.Context, o status.Outcome, s status.RunStatus)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, o status.Outcome, s status.RunStatus)

// ObserveRun implements Observer.
func (f ObserverFunc) ObserveRun(ctx context.Context, o status.Outcome, s status.RunStatus) {
	f(ctx, o, s)
}

// Config holds optional scheduler settings.
type Config struct {
	QuietHours *QuietHours    // nil = no quiet hours
	Timezone   *time.Location // nil = UTC
	Logger     *slog.Logger
	Traces     status.TraceSink
	Observers  []Observer
	Now        func() time.Time // injectable for testing
}

func (c Config) withDefaults() Config {
	if c.Timezone == nil {
		c.Timezone = time.UTC
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Traces == nil {
		c.Traces = status.LogSink{Logger: c.Logger}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Scheduler drives one task.
type Scheduler struct {
	desc    TaskDescriptor
	body    Body
	tracker *status.Tracker
	cfg     Config

	// running is held for the whole of a run; firings that cannot take it
	// are skipped.
	running sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a Scheduler for desc. Runs are recorded on tracker.
func New(desc TaskDescriptor, body Body, tracker *status.Tracker, cfg Config) (*Scheduler, error) {
	if err := desc.validate(); err != nil {
		return nil, err
	}
	if body == nil {
		return nil, errors.New("scheduler: nil Body")
	}
	if tracker == nil {
		return nil, errors.New("scheduler: nil Tracker")
	}
	if desc.Name == "" {
		desc.Name = desc.ID
	}
	return &Scheduler{
		desc:    desc,
		body:    body,
		tracker: tracker,
		cfg:     cfg.withDefaults(),
	}, nil
}

// Descriptor returns the task descriptor.
func (s *Scheduler) Descriptor() TaskDescriptor { return s.desc }

// Tracker returns the status tracker runs are recorded on.
func (s *Scheduler) Tracker() *status.Tracker { return s.tracker }

// Start schedules the first run after InitialDelay and the following ones
// every Interval.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return ErrAlreadyStarted
	}

	c := cron.New(cron.WithLocation(s.cfg.Timezone))
	c.Schedule(&delaySchedule{
		initial:  s.desc.InitialDelay,
		interval: s.desc.Interval,
	}, cron.FuncJob(s.tick))
	c.Start()
	s.cron = c

	s.cfg.Logger.Info("scheduler: started",
		"task", s.desc.ID,
		"initial_delay", s.desc.InitialDelay,
		"interval", s.desc.Interval,
	)
	return nil
}

// Stop cancels future firings and waits for an in-flight run to finish
// or for ctx to expire, whichever comes first. The in-flight run itself
// is never canceled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return ErrNotStarted
	}

	select {
	case <-c.Stop().Done():
		s.cfg.Logger.Info("scheduler: stopped", "task", s.desc.ID)
		return nil
	case <-ctx.Done():
		s.cfg.Logger.Warn("scheduler: stop timed out waiting for run", "task", s.desc.ID)
		return fmt.Errorf("scheduler: stopping %s: %w", s.desc.ID, ctx.Err())
	}
}

// RunNow executes one run synchronously and returns the status it
// recorded. Quiet hours do not apply. It fails with ErrRunInProgress if a
// run is already executing.
func (s *Scheduler) RunNow(ctx context.Context) (status.RunStatus, error) {
	if !s.running.TryLock() {
		return status.RunStatus{}, ErrRunInProgress
	}
	defer s.running.Unlock()
	return s.execute(ctx), nil
}

// tick is the cron entry point.
func (s *Scheduler) tick() {
	if q := s.cfg.QuietHours; q != nil && q.Contains(s.cfg.Now().In(s.cfg.Timezone)) {
		s.cfg.Logger.Debug("scheduler: quiet hours, skipping firing", "task", s.desc.ID, "window", q.String())
		return
	}

	if !s.running.TryLock() {
		s.cfg.Logger.Warn("scheduler: previous run still outstanding, skipping firing", "task", s.desc.ID)
		return
	}
	defer s.running.Unlock()

	s.execute(context.Background())
}

// execute performs one run. The caller holds s.running.
func (s *Scheduler) execute(ctx context.Context) status.RunStatus {
	run := s.tracker.Begin()

	s.cfg.Logger.Info(fmt.Sprintf("scheduler: run #%d starting (last run: %s)", run.Number, sinceLast(run)),
		"task", s.desc.ID,
		"run_id", run.ID,
	)

	err := s.safeRun(ctx, run)

	outcome := status.Outcome{Run: run, Finished: s.cfg.Now(), Err: err}
	snap := s.tracker.Record(outcome)

	for _, o := range s.cfg.Observers {
		o.ObserveRun(ctx, outcome, snap)
	}
	return snap
}

// safeRun calls the body and converts a panic into a PanicError, sending
// its stack to the trace sink. The sink is the only place a panic is
// reported.
func (s *Scheduler) safeRun(ctx context.Context, run status.Run) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		perr := &PanicError{Task: s.desc.Name, Value: r, Stack: debug.Stack()}
		s.cfg.Traces.WriteTrace(status.Trace{
			Time:      s.cfg.Now(),
			RunID:     run.ID,
			RunNumber: run.Number,
			Message:   perr.Error(),
			Stack:     string(perr.Stack),
		})
		err = perr
	}()
	return s.body(ctx, run)
}

func sinceLast(run status.Run) string {
	if run.Previous.Never() {
		return "never"
	}
	return fmt.Sprintf("%ds ago", int(run.Started.Sub(run.Previous.LastRunTime).Seconds()))
}
