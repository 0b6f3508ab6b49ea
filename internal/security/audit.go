package security

import (
	"encoding/json"
	"io"
	"maps"
	"strconv"
	"sync"
	"time"

	"github.com/flemzord/presenced/internal/status"
)

// AuditService is the AppContext service name of the AuditLogger.
const AuditService = "security.audit"

// EventType categorizes audit events.
type EventType string

// Audit event types.
const (
	EventRunFault    EventType = "run_fault"
	EventManualRun   EventType = "manual_run"
	EventAuthSuccess EventType = "auth_success"
	EventAuthFailure EventType = "auth_failure"
	EventRateLimit   EventType = "rate_limit"
)

// AuditEvent is one line of the audit trail.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      EventType         `json:"type"`
	RunID     string            `json:"run_id,omitempty"`
	Remote    string            `json:"remote,omitempty"`
	Path      string            `json:"path,omitempty"`
	Detail    string            `json:"detail,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditLoggerConfig configures an AuditLogger.
type AuditLoggerConfig struct {
	// Writer receives one JSON object per line. Nil disables writing.
	Writer io.Writer

	// Redactor scrubs Detail and Metadata values when set.
	Redactor *Redactor

	// OnEvent is called for every event after redaction.
	OnEvent func(AuditEvent)

	Now func() time.Time
}

// AuditLogger appends audit events as JSONL.
type AuditLogger struct {
	mu       sync.Mutex
	writer   io.Writer
	redactor *Redactor
	onEvent  func(AuditEvent)
	now      func() time.Time
}

// NewAuditLogger creates an AuditLogger.
func NewAuditLogger(cfg AuditLoggerConfig) *AuditLogger {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &AuditLogger{
		writer:   cfg.Writer,
		redactor: cfg.Redactor,
		onEvent:  cfg.OnEvent,
		now:      cfg.Now,
	}
}

// Log stamps and records event. The caller's Metadata map is not mutated.
func (l *AuditLogger) Log(event AuditEvent) {
	event.Timestamp = l.now()
	event.Metadata = maps.Clone(event.Metadata)

	if l.redactor != nil {
		event.Detail = l.redactor.Redact(event.Detail)
		for k, v := range event.Metadata {
			event.Metadata[k] = l.redactor.Redact(v)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.onEvent != nil {
		l.onEvent(event)
	}
	if l.writer != nil {
		_ = json.NewEncoder(l.writer).Encode(event)
	}
}

// WriteTrace records a run fault trace, so an AuditLogger can be
// registered as the extra trace sink.
func (l *AuditLogger) WriteTrace(tr status.Trace) {
	l.Log(AuditEvent{
		Type:   EventRunFault,
		RunID:  tr.RunID,
		Detail: tr.Message,
		Metadata: map[string]string{
			"run":   strconv.FormatUint(tr.RunNumber, 10),
			"stack": tr.Stack,
		},
	})
}

var _ status.TraceSink = (*AuditLogger)(nil)
