// Package capabilitytest provides test doubles for the capability package.
package capabilitytest

import (
	"sync"

	"github.com/flemzord/presenced/internal/capability"
	"github.com/flemzord/presenced/internal/completion"
)

// MockTarget is a Provider exposing a single capability whose behavior is
// set by the test.
type MockTarget struct {
	NameVal  string
	ArityVal int

	// Result is delivered through the completion handle when Err, Panic
	// and StartErr are all unset.
	Result any
	// Err rejects the completion.
	Err error
	// StartErr is returned synchronously, before any completion.
	StartErr error
	// Panic, when non-nil, is raised from the capability body.
	Panic any
	// Async delivers the completion from a separate goroutine.
	Async bool

	mu       sync.Mutex
	calls    int
	lastArgs []any
}

var _ capability.Provider = (*MockTarget)(nil)

// Capability implements capability.Provider.
func (m *MockTarget) Capability(name string) (capability.Handle, bool) {
	if name != m.NameVal {
		return capability.Handle{}, false
	}
	return capability.Handle{Name: m.NameVal, Arity: m.ArityVal, Fn: m.call}, true
}

func (m *MockTarget) call(args []any, done completion.Handle) error {
	m.mu.Lock()
	m.calls++
	m.lastArgs = append([]any(nil), args...)
	m.mu.Unlock()

	if m.Panic != nil {
		panic(m.Panic)
	}
	if m.StartErr != nil {
		return m.StartErr
	}

	deliver := func() {
		if m.Err != nil {
			done.Reject(m.Err)
			return
		}
		done.Resolve(m.Result)
	}
	if m.Async {
		go deliver()
	} else {
		deliver()
	}
	return nil
}

// Calls returns how many times the capability body ran.
func (m *MockTarget) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastArgs returns the arguments of the most recent call.
func (m *MockTarget) LastArgs() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastArgs
}
