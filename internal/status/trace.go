package status

import (
	"log/slog"
	"time"
)

// Trace is a diagnostic record captured for an unexpected run fault.
type Trace struct {
	Time      time.Time
	RunID     string
	RunNumber uint64
	Message   string
	Stack     string
}

// TraceSink receives diagnostic traces. Implementations must be safe for
// concurrent use and must not block for long.
type TraceSink interface {
	WriteTrace(tr Trace)
}

// LogSink writes traces to a logger at error level.
type LogSink struct {
	Logger *slog.Logger
}

// WriteTrace implements TraceSink.
func (s LogSink) WriteTrace(tr Trace) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("keepalive: fault trace",
		"run", tr.RunNumber,
		"run_id", tr.RunID,
		"error", tr.Message,
		"trace", tr.Stack,
	)
}

// MultiSink fans a trace out to several sinks in order.
type MultiSink []TraceSink

// WriteTrace implements TraceSink.
func (m MultiSink) WriteTrace(tr Trace) {
	for _, s := range m {
		if s != nil {
			s.WriteTrace(tr)
		}
	}
}

var (
	_ TraceSink = LogSink{}
	_ TraceSink = MultiSink(nil)
)

// TraceSinkService is the AppContext service name under which an extra
// TraceSink may be registered.
const TraceSinkService = "trace.sink"
