// Package capability resolves named operations on externally supplied
// targets and calls them after checking their declared arity.
//
// A capability always takes a completion handle as its last argument, so
// a handle declaring Arity n accepts n-1 caller arguments.
package capability

import (
	"fmt"
	"slices"
	"sync"

	"github.com/flemzord/presenced/internal/completion"
)

// Func is the body of a capability. args never includes the completion
// handle; it is passed separately as done.
type Func func(args []any, done completion.Handle) error

// Handle is a named operation together with its declared arity.
type Handle struct {
	Name  string
	Arity int
	Fn    Func
}

// Provider exposes capabilities by name.
type Provider interface {
	Capability(name string) (Handle, bool)
}

// Registry is a concurrency-safe Provider backed by a map.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

var _ Provider = (*Registry)(nil)

// Register adds h, replacing any handle with the same name.
func (r *Registry) Register(h Handle) error {
	if h.Name == "" || h.Fn == nil || h.Arity < 1 {
		return fmt.Errorf("%w: %q (arity %d)", ErrInvalidHandle, h.Name, h.Arity)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.Name] = h
	return nil
}

// Capability implements Provider.
func (r *Registry) Capability(name string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[name]
	return h, ok
}

// Names returns the registered capability names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handles))
	for name := range r.handles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Resolve looks up name on p and checks that it accepts len(args)
// arguments besides the completion handle.
func Resolve(p Provider, name string, args []any) (Handle, error) {
	h, ok := p.Capability(name)
	if !ok {
		return Handle{}, &NotFoundError{Name: name}
	}
	if expected := h.Arity - 1; expected != len(args) {
		return Handle{}, &DriftError{Name: name, Expected: expected, Got: len(args)}
	}
	return h, nil
}

// Call runs the capability with args and blocks until it delivers its
// completion. Callers check the arity with Resolve first.
func (h Handle) Call(args []any) (any, error) {
	return completion.Await(func(done completion.Handle) error {
		return h.Fn(args, done)
	})
}
