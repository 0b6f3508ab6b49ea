package capability

import (
	"errors"
	"fmt"
)

// Sentinel errors for capability resolution and invocation.
var (
	ErrCapabilityNotFound = errors.New("capability: not found")
	ErrContractDrift      = errors.New("capability: contract drift")
	ErrInvalidHandle      = errors.New("capability: invalid handle")
)

// DriftError reports a mismatch between the arguments a caller prepared
// and the arity a capability declares.
type DriftError struct {
	Name     string
	Expected int // declared arity minus the completion slot
	Got      int // arguments supplied by the caller
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("capability: %s expects %d arguments, got %d", e.Name, e.Expected, e.Got)
}

// Unwrap lets errors.Is match ErrContractDrift.
func (e *DriftError) Unwrap() error { return ErrContractDrift }

// NotFoundError reports a capability missing from its provider.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return "Unable to find " + e.Name + " method"
}

// Unwrap lets errors.Is match ErrCapabilityNotFound.
func (e *NotFoundError) Unwrap() error { return ErrCapabilityNotFound }
