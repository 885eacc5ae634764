// Package telemetry builds the process logger and OpenTelemetry providers.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"fridgefeast/internal/config"
	"fridgefeast/internal/logsink"
)

// Telemetry owns everything that must be flushed before the process exits.
type Telemetry struct {
	Logger   *slog.Logger
	shutdown []func(context.Context) error
}

// Setup builds a logger writing to out at the configured level, fanned out to
// the append blob sink and the OTLP exporter when they are configured. Trace
// export is enabled alongside OTLP logs.
func Setup(ctx context.Context, cfg config.LoggingConfig, out io.Writer) (*Telemetry, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.Level, err)
	}

	opts := &slog.HandlerOptions{Level: level}
	var base slog.Handler
	if cfg.Format == "json" {
		base = slog.NewJSONHandler(out, opts)
	} else {
		base = slog.NewTextHandler(out, opts)
	}

	t := &Telemetry{}
	handlers := []slog.Handler{base}

	sink := logsink.Config{
		AccountName: cfg.BlobAccount,
		AccountKey:  cfg.BlobKey,
		Container:   cfg.BlobContainer,
		Level:       level,
	}
	if sink.Enabled() {
		h, err := logsink.New(ctx, sink)
		if err != nil {
			return nil, fmt.Errorf("failed to create log sink: %w", err)
		}
		handlers = append(handlers, h)
		t.shutdown = append(t.shutdown, func(context.Context) error { return h.Close() })
	}

	if cfg.OTLP != "" {
		h, err := t.setupOTLP(ctx, cfg)
		if err != nil {
			_ = t.Shutdown(ctx)
			return nil, err
		}
		handlers = append(handlers, h)
	}

	t.Logger = slog.New(combine(handlers))
	return t, nil
}

// combine sends each record to every handler that accepts its level.
func combine(handlers []slog.Handler) slog.Handler {
	if len(handlers) == 1 {
		return handlers[0]
	}
	return slog.NewMultiHandler(handlers...)
}

func (t *Telemetry) setupOTLP(ctx context.Context, cfg config.LoggingConfig) (slog.Handler, error) {
	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	traceExporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLP))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	t.shutdown = append(t.shutdown, tp.Shutdown)

	logExporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(cfg.OTLP))
	if err != nil {
		return nil, fmt.Errorf("failed to create log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	t.shutdown = append(t.shutdown, lp.Shutdown)

	return otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp)), nil
}

// Shutdown flushes exporters and sinks in reverse order of creation.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	var errs []error
	for i := len(t.shutdown) - 1; i >= 0; i-- {
		errs = append(errs, t.shutdown[i](ctx))
	}
	t.shutdown = nil
	return errors.Join(errs...)
}
