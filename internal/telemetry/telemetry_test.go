package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/flemzord/presenced/internal/status"
)

func TestMetrics_Observe(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	when := time.Unix(1_700_000_000, 0)

	m.Observe("success", status.RunStatus{LastRunSuccess: true, LastRunTime: when, RunCount: 1, Duration: time.Second})
	m.Observe("contract_drift", status.RunStatus{RunCount: 2, LastRunTime: when.Add(time.Minute)})

	if got := testutil.ToFloat64(m.runs.WithLabelValues("success")); got != 1 {
		t.Errorf("runs{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.runs.WithLabelValues("contract_drift")); got != 1 {
		t.Errorf("runs{contract_drift} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastSuccess); got != float64(when.Unix()) {
		t.Errorf("last success = %v, want %v", got, when.Unix())
	}
	if got := testutil.ToFloat64(m.runCount); got != 2 {
		t.Errorf("run count = %v, want 2", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.Observe("success", status.RunStatus{LastRunSuccess: true, RunCount: 1})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `presenced_runs_total{outcome="success"} 1`) {
		t.Errorf("exposition missing run counter:\n%s", rec.Body.String())
	}
}

func TestTraced(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	fails := true
	body := Traced(tp, "always_online", func(ctx context.Context, run status.Run) error {
		if fails {
			return errors.New("boom")
		}
		return nil
	})

	if err := body(context.Background(), status.Run{ID: "r1", Number: 1}); err == nil {
		t.Fatal("expected error to pass through")
	}
	fails = false
	if err := body(context.Background(), status.Run{ID: "r2", Number: 2}); err != nil {
		t.Fatal(err)
	}

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != "keepalive.run" {
		t.Errorf("span name = %q", spans[0].Name())
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("first span status = %v, want Error", spans[0].Status().Code)
	}
	if spans[1].Status().Code != codes.Ok {
		t.Errorf("second span status = %v, want Ok", spans[1].Status().Code)
	}
}

func TestTraced_PanicMarksSpanErrored(t *testing.T) {
	t.Parallel()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	body := Traced(tp, "always_online", func(context.Context, status.Run) error {
		panic("cascade exploded")
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		_ = body(context.Background(), status.Run{ID: "r1", Number: 1})
	}()

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].Status(); got.Code != codes.Error || !strings.Contains(got.Description, "cascade exploded") {
		t.Errorf("span status = %+v, want Error mentioning the panic", got)
	}
}

func TestNewTracerProvider_NoEndpoint(t *testing.T) {
	t.Parallel()

	tp, err := NewTracerProvider(context.Background(), TracingConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}
