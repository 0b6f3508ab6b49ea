package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/status"
)

const instrumentation = "github.com/flemzord/presenced/internal/keepalive"

// TracingConfig selects where spans go. An empty Endpoint keeps spans in
// process, which is enough for the run ID to be correlated in logs.
type TracingConfig struct {
	Endpoint    string `yaml:"endpoint"` // host:port of an OTLP/HTTP collector
	Insecure    bool   `yaml:"insecure"`
	ServiceName string `yaml:"service_name"`
}

// NewTracerProvider builds an SDK tracer provider for cfg.
func NewTracerProvider(ctx context.Context, cfg TracingConfig) (*sdktrace.TracerProvider, error) {
	name := cfg.ServiceName
	if name == "" {
		name = "presenced"
	}
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	}

	if cfg.Endpoint != "" {
		exOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exOpts = append(exOpts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, exOpts...)
		if err != nil {
			return nil, fmt.Errorf("telemetry: creating OTLP exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// Traced wraps body so every run executes inside a "keepalive.run" span
// tagged with the run number and ID. Failed and panicking runs mark the
// span as errored; a panic is re-raised for the scheduler to recover.
func Traced(tp trace.TracerProvider, taskID string, body scheduler.Body) scheduler.Body {
	tracer := tp.Tracer(instrumentation)
	return func(ctx context.Context, run status.Run) error {
		ctx, span := tracer.Start(ctx, "keepalive.run", trace.WithAttributes(
			attribute.String("task.id", taskID),
			attribute.String("run.id", run.ID),
			attribute.Int64("run.number", int64(run.Number)),
		))
		defer span.End()
		defer func() {
			if r := recover(); r != nil {
				span.SetStatus(codes.Error, fmt.Sprint("panic: ", r))
				panic(r)
			}
		}()

		err := body(ctx, run)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	}
}
