package scheduler

import (
	"errors"
	"fmt"
)

// Sentinel errors for scheduler operations.
var (
	ErrAlreadyStarted = errors.New("scheduler: already started")
	ErrNotStarted     = errors.New("scheduler: not started")
	ErrRunInProgress  = errors.New("scheduler: run in progress")
	ErrInvalidQuiet   = errors.New("scheduler: invalid quiet hours format")
	ErrInvalidTask    = errors.New("scheduler: invalid task descriptor")
	ErrUnknown        = errors.New("scheduler: unknown error")
)

// PanicError is recorded when a run panics. Its message follows the
// "Unknown error in <task> task: <value>" form shown to status observers.
type PanicError struct {
	Task  string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("Unknown error in %s task: %v", e.Task, e.Value)
}

// Unwrap lets errors.Is match ErrUnknown, and the panic value itself when
// it is an error.
func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrUnknown, err}
	}
	return []error{ErrUnknown}
}
