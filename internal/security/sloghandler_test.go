package security

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newRedactingLogger(buf *bytes.Buffer, r *Redactor) *slog.Logger {
	return slog.New(NewRedactingHandler(slog.NewTextHandler(buf, nil), r))
}

func TestRedactingHandler_MessageAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("tok-123")
	logger := newRedactingLogger(&buf, r)

	logger.Info("cascade.http: using tok-123", "header", "Bearer tok-123-long-value", "page", 1)

	out := buf.String()
	if strings.Contains(out, "tok-123") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "page=1") {
		t.Errorf("non-string attr lost: %s", out)
	}
}

func TestRedactingHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger := newRedactingLogger(&buf, r).
		With("dsn", "postgres://u:hunter2@db/x").
		WithGroup("history").
		With(slog.Group("conn", "password", "hunter2"))

	logger.Info("history.postgres: connected")

	out := buf.String()
	if strings.Contains(out, "hunter2") {
		t.Errorf("secret leaked: %s", out)
	}
	if !strings.Contains(out, "history.conn.password") {
		t.Errorf("group structure lost: %s", out)
	}
}

func TestRedactingHandler_ErrorValue(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := NewRedactor()
	r.AddLiteral("hunter2")
	logger := newRedactingLogger(&buf, r)

	logger.Error("history.postgres: ping failed", "error", errors.New("auth failed for hunter2"))

	if strings.Contains(buf.String(), "hunter2") {
		t.Errorf("secret leaked from error value: %s", buf.String())
	}
}

func TestRedactingHandler_Enabled(t *testing.T) {
	t.Parallel()

	inner := slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn})
	h := NewRedactingHandler(inner, NewRedactor())

	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("info should be disabled")
	}
	if !h.Enabled(t.Context(), slog.LevelError) {
		t.Error("error should be enabled")
	}
}
