package keepalive

import (
	"errors"

	"github.com/flemzord/presenced/internal/scheduler"
)

// Run failure classes. Every run error matches exactly one of these, or
// one of capability.ErrCapabilityNotFound and capability.ErrContractDrift.
var (
	ErrDependencyUnavailable = errors.New("keepalive: dependency unavailable")
	ErrLocationUnavailable   = errors.New("keepalive: location unavailable")
	ErrInvocationFault       = errors.New("keepalive: invocation fault")
	ErrUnexpectedResult      = errors.New("keepalive: unexpected result")
	ErrUnknown               = scheduler.ErrUnknown
)

// runError carries the message recorded as LastError while still
// matching its failure class with errors.Is.
type runError struct {
	class error
	msg   string
	cause error
}

func (e *runError) Error() string { return e.msg }

func (e *runError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.class}
	}
	return []error{e.class, e.cause}
}

func fail(class error, msg string, cause error) error {
	return &runError{class: class, msg: msg, cause: cause}
}
