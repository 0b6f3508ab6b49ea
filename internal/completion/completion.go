// Package completion bridges a callback-style asynchronous operation into
// a blocking call.
package completion

import (
	"errors"
	"sync"
)

// ErrStart matches every StartError.
var ErrStart = errors.New("completion: start failed")

// StartError carries the synchronous error returned by the function that
// was supposed to start the operation.
type StartError struct {
	Err error
}

func (e *StartError) Error() string { return ErrStart.Error() + ": " + e.Err.Error() }

// Unwrap lets errors.Is match both ErrStart and the original error.
func (e *StartError) Unwrap() []error { return []error{ErrStart, e.Err} }

// Handle is passed to an asynchronous operation, which signals its outcome
// by calling Resolve or Reject exactly once. Later calls are ignored.
type Handle interface {
	Resolve(value any)
	Reject(err error)
}

type result struct {
	value any
	err   error
}

type handle struct {
	once sync.Once
	ch   chan result
}

func (h *handle) deliver(r result) {
	h.once.Do(func() { h.ch <- r })
}

func (h *handle) Resolve(value any) { h.deliver(result{value: value}) }
func (h *handle) Reject(err error) {
	if err == nil {
		err = errors.New("completion: rejected with nil error")
	}
	h.deliver(result{err: err})
}

// Await calls start with a fresh Handle and blocks until the handle is
// resolved or rejected. There is no timeout: if the operation never
// completes, Await never returns.
//
// A non-nil error from start means the operation could not be launched;
// it is returned as a *StartError without waiting.
func Await(start func(h Handle) error) (any, error) {
	h := &handle{ch: make(chan result, 1)}
	if err := start(h); err != nil {
		return nil, &StartError{Err: err}
	}
	r := <-h.ch
	return r.value, r.err
}
