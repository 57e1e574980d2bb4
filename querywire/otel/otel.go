// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package qwotel instruments a querywire server with OpenTelemetry traces
// and metrics via the dispatch hook. It lives in its own module so the
// core transport does not pull the OpenTelemetry dependency tree.
package qwotel

import (
	"context"
	"fmt"
	"time"

	"github.com/Query-farm/querywire/querywire"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope reported on spans and metrics.
const scopeName = "querywire"

// OtelConfig controls what gets instrumented and where it is exported.
// Zero providers fall back to the OpenTelemetry globals.
type OtelConfig struct {
	// TracerProvider supplies spans. Nil uses otel.GetTracerProvider.
	TracerProvider trace.TracerProvider
	// MeterProvider supplies metrics. Nil uses otel.GetMeterProvider.
	MeterProvider metric.MeterProvider
	// EnableTraces turns span emission on.
	EnableTraces bool
	// EnableMetrics turns the request counter and duration histogram on.
	EnableMetrics bool
	// ServiceName overrides the server's configured service name in the
	// rpc.service attribute.
	ServiceName string
	// CustomAttributes are added to every span and metric data point.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig enables traces and metrics against the global providers.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTraces:  true,
		EnableMetrics: true,
	}
}

// InstrumentServer installs a dispatch hook that records one span and one
// set of metric data points per call.
func InstrumentServer[N comparable](server *querywire.Server[N], cfg OtelConfig) error {
	hook, err := newHook(server.ServiceName(), cfg)
	if err != nil {
		return err
	}
	server.SetDispatchHook(hook)
	return nil
}

type otelHook struct {
	cfg         OtelConfig
	serviceName string
	tracer      trace.Tracer
	requests    metric.Int64Counter
	duration    metric.Float64Histogram
}

func newHook(serviceName string, cfg OtelConfig) (*otelHook, error) {
	if cfg.ServiceName != "" {
		serviceName = cfg.ServiceName
	}
	h := &otelHook{cfg: cfg, serviceName: serviceName}

	if cfg.EnableTraces {
		tp := cfg.TracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		h.tracer = tp.Tracer(scopeName)
	}

	if cfg.EnableMetrics {
		mp := cfg.MeterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		meter := mp.Meter(scopeName)
		var err error
		h.requests, err = meter.Int64Counter("rpc.server.requests",
			metric.WithDescription("Number of RPC requests dispatched."),
			metric.WithUnit("{request}"))
		if err != nil {
			return nil, err
		}
		h.duration, err = meter.Float64Histogram("rpc.server.duration",
			metric.WithDescription("Time spent dispatching RPC requests."),
			metric.WithUnit("s"))
		if err != nil {
			return nil, err
		}
	}
	return h, nil
}

// spanToken carries the open span from dispatch start to dispatch end.
type spanToken struct {
	span  trace.Span
	start time.Time
}

func (h *otelHook) OnDispatchStart(ctx context.Context, info querywire.DispatchInfo) (context.Context, querywire.HookToken) {
	tok := &spanToken{start: time.Now()}
	if h.tracer != nil {
		attrs := h.baseAttrs(info)
		if info.CallID != "" {
			attrs = append(attrs, attribute.String("rpc.querywire.call_id", info.CallID))
		}
		ctx, tok.span = h.tracer.Start(ctx, "querywire/"+info.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attrs...))
	}
	return ctx, tok
}

func (h *otelHook) OnDispatchEnd(ctx context.Context, token querywire.HookToken, info querywire.DispatchInfo, stats *querywire.CallStatistics, err error) {
	tok, ok := token.(*spanToken)
	if !ok {
		return
	}
	elapsed := time.Since(tok.start)

	if h.requests != nil {
		attrs := h.baseAttrs(info)
		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs = append(attrs, attribute.String("rpc.status", status))
		h.requests.Add(ctx, 1, metric.WithAttributes(attrs...))
		h.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	}

	if tok.span != nil {
		if stats != nil {
			tok.span.SetAttributes(
				attribute.Int64("rpc.querywire.input_messages", stats.InputMessages),
				attribute.Int64("rpc.querywire.output_messages", stats.OutputMessages),
				attribute.Int64("rpc.querywire.input_bytes", stats.InputBytes),
				attribute.Int64("rpc.querywire.output_bytes", stats.OutputBytes),
			)
		}
		if err != nil {
			tok.span.SetStatus(codes.Error, err.Error())
			tok.span.RecordError(err)
			tok.span.SetAttributes(attribute.String("error.type", fmt.Sprintf("%T", err)))
		} else {
			tok.span.SetStatus(codes.Ok, "")
		}
		tok.span.End()
	}
}

func (h *otelHook) baseAttrs(info querywire.DispatchInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", "querywire"),
		attribute.String("rpc.method", info.Method),
	}
	if h.serviceName != "" {
		attrs = append(attrs, attribute.String("rpc.service", h.serviceName))
	}
	if info.ServerID != "" {
		attrs = append(attrs, attribute.String("rpc.querywire.server_id", info.ServerID))
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)
	return attrs
}
