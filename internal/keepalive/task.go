// Package keepalive implements the periodic presence refresh: on every run
// it reads the current location, encodes it as a geohash and asks the
// cascade repository for its first page, recording the outcome.
package keepalive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/flemzord/presenced/internal/capability"
	"github.com/flemzord/presenced/internal/completion"
	"github.com/flemzord/presenced/internal/geo"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/status"
)

// Well-known instance names looked up on every run.
const (
	LocationProvider  = "location.provider"
	CascadeRepository = "cascade.repository"
)

// SuccessMarker is the substring a cascade result must contain to count
// as a success.
const SuccessMarker = "Success"

// InstanceRegistry provides live instances by name. It reports false when
// the instance is absent.
type InstanceRegistry interface {
	Service(name string) (any, bool)
}

// LocationSource reports the current location, or nil when none is known.
type LocationSource interface {
	CurrentLocation() geo.Location
}

// Task is the body of the keep-alive run.
type Task struct {
	registry  InstanceRegistry
	interval  time.Duration
	precision uint
	logger    *slog.Logger
	traces    status.TraceSink
}

// TaskConfig holds the collaborators and settings of a Task.
type TaskConfig struct {
	Interval  time.Duration // only used for the "next run in" log line
	Precision uint          // geohash characters; 0 = geo.DefaultPrecision
	Logger    *slog.Logger
	Traces    status.TraceSink
}

// NewTask creates a Task resolving its instances from registry.
func NewTask(registry InstanceRegistry, cfg TaskConfig) (*Task, error) {
	if registry == nil {
		return nil, errors.New("keepalive: nil InstanceRegistry")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Traces == nil {
		cfg.Traces = status.LogSink{Logger: cfg.Logger}
	}
	return &Task{
		registry:  registry,
		interval:  cfg.Interval,
		precision: cfg.Precision,
		logger:    cfg.Logger,
		traces:    cfg.Traces,
	}, nil
}

var _ scheduler.Body = (*Task)(nil).Run

// Run performs one keep-alive attempt. The returned error is the run's
// LastError; its message is meant for people reading status.
func (t *Task) Run(_ context.Context, run status.Run) error {
	src, ok := lookup[LocationSource](t.registry, LocationProvider)
	if !ok {
		return t.skipped(run, fail(ErrDependencyUnavailable,
			"Failed to get the location provider instance. (app may be in background)", nil))
	}

	loc := src.CurrentLocation()
	if loc == nil {
		return t.skipped(run, fail(ErrLocationUnavailable,
			"Location object is null. Check location permissions.", nil))
	}

	hash, err := geo.Encode(loc, t.precision)
	if err != nil {
		return t.skipped(run, fail(ErrLocationUnavailable,
			fmt.Sprintf("Location is not usable: %v", err), err))
	}

	repo, ok := lookup[capability.Provider](t.registry, CascadeRepository)
	if !ok {
		return t.skipped(run, fail(ErrDependencyUnavailable,
			"Failed to get the cascade repository instance. (app may be in background)", nil))
	}

	args := NewCascadeParams(hash).Args()
	h, err := capability.Resolve(repo, CascadeOperation, args)
	if err != nil {
		err = describeDrift(err)
		t.logger.Error(fmt.Sprintf("keepalive: run #%d failed: %v", run.Number, err), "run_id", run.ID)
		return err
	}
	t.logger.Info(fmt.Sprintf("keepalive: run #%d calling %s (expects %d params + completion)",
		run.Number, CascadeOperation, h.Arity-1), "geohash", hash)

	result, err := h.Call(args)
	if err != nil {
		return t.faulted(run, err)
	}

	if !IsSuccess(result) {
		err := fail(ErrUnexpectedResult, fmt.Sprintf("Unexpected result: %v", result), nil)
		t.logger.Error(fmt.Sprintf("keepalive: run #%d failed: %s", run.Number, err), "run_id", run.ID)
		return err
	}

	t.logger.Info(fmt.Sprintf("keepalive: run #%d completed successfully (next run in %s)", run.Number, t.interval),
		"run_id", run.ID)
	return nil
}

// IsSuccess reports whether a cascade result denotes success: its printed
// form contains SuccessMarker.
func IsSuccess(result any) bool {
	return strings.Contains(fmt.Sprint(result), SuccessMarker)
}

func (t *Task) skipped(run status.Run, err error) error {
	t.logger.Warn(fmt.Sprintf("keepalive: run #%d skipped: %s", run.Number, err), "run_id", run.ID)
	return err
}

// describeDrift rewords a contract drift for operators: the upstream
// changed shape and the task should be turned off until updated.
func describeDrift(err error) error {
	var drift *capability.DriftError
	if !errors.As(err, &drift) {
		return err
	}
	return fail(capability.ErrContractDrift, fmt.Sprintf("Wrong number of arguments in Always Online module. "+
		"Expected %d, got %d. This likely means that this module is outdated and should be disabled for now.",
		drift.Expected, drift.Got), drift)
}

// faulted records an invocation fault. LastError is the cause's own
// message, without the start-failure wrapping.
func (t *Task) faulted(run status.Run, cause error) error {
	msg := cause.Error()
	var start *completion.StartError
	if errors.As(cause, &start) {
		msg = start.Err.Error()
	}
	err := fail(ErrInvocationFault, msg, cause)
	t.logger.Error(fmt.Sprintf("keepalive: run #%d failed: Unknown error in Always Online task: %s", run.Number, err),
		"run_id", run.ID)
	t.traces.WriteTrace(status.Trace{
		Time:      time.Now(),
		RunID:     run.ID,
		RunNumber: run.Number,
		Message:   err.Error(),
		Stack:     string(debug.Stack()),
	})
	return err
}

// lookup fetches name from r and asserts it to T. A missing instance, a
// nil one and one of the wrong type are all reported as absent.
func lookup[T any](r InstanceRegistry, name string) (T, bool) {
	var zero T
	svc, ok := r.Service(name)
	if !ok || svc == nil {
		return zero, false
	}
	v, ok := svc.(T)
	return v, ok
}

// Classify returns a short label for the failure class of err, suitable
// for metrics. A nil err is "success".
func Classify(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrDependencyUnavailable):
		return "dependency_unavailable"
	case errors.Is(err, ErrLocationUnavailable):
		return "location_unavailable"
	case errors.Is(err, capability.ErrCapabilityNotFound):
		return "capability_not_found"
	case errors.Is(err, capability.ErrContractDrift):
		return "contract_drift"
	case errors.Is(err, ErrInvocationFault):
		return "invocation_fault"
	case errors.Is(err, ErrUnexpectedResult):
		return "unexpected_result"
	case errors.Is(err, ErrUnknown):
		return "unknown"
	default:
		return "other"
	}
}
