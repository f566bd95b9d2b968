// Package otel provides OpenTelemetry integration for chronos cache metrics.
//
// This package implements the chronos.MetricsCollector interface using
// OpenTelemetry, enabling automatic percentile calculation (p50, p95, p99)
// and multi-backend export (Prometheus, Jaeger, DataDog, Grafana).
//
// # Usage
//
//	import (
//	    "github.com/chronos-cache/chronos"
//	    chronosotel "github.com/chronos-cache/chronos/otel"
//	    "go.opentelemetry.io/otel/exporters/prometheus"
//	    "go.opentelemetry.io/otel/sdk/metric"
//	)
//
//	exporter, _ := prometheus.New()
//	provider := metric.NewMeterProvider(metric.WithReader(exporter))
//	collector, _ := chronosotel.NewOTelMetricsCollector(provider)
//
//	cfg := chronos.DefaultConfig()
//	cfg.MetricsCollector = collector
//	store, _ := chronos.NewStore(cfg)
//
// Separate from the core chronos.Metrics sink: this collector is for
// applications that already run an OTEL pipeline and want chronos counters
// folded into it instead of (or alongside) chronos's own health scorer.
package otel

import (
	"context"
	"errors"

	"github.com/chronos-cache/chronos"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetricsCollector implements chronos.MetricsCollector using OpenTelemetry.
//
// Thread-safety: safe for concurrent use; the underlying OTEL instruments
// are themselves thread-safe.
type OTelMetricsCollector struct {
	getLatency      metric.Int64Histogram
	setLatency      metric.Int64Histogram
	deleteLatency   metric.Int64Histogram
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	evictions       metric.Int64Counter
	expirations     metric.Int64Counter
	prefetchDispatch metric.Int64Counter
	prefetchHit     metric.Int64Counter
}

// Options configures OTelMetricsCollector.
type Options struct {
	// MeterName is the name of the OpenTelemetry meter.
	// Default: "github.com/chronos-cache/chronos"
	MeterName string
}

// Option is a functional option for configuring OTelMetricsCollector.
type Option func(*Options)

// WithMeterName sets a custom meter name, useful when distinguishing
// metrics from multiple Store instances in one process.
func WithMeterName(name string) Option {
	return func(o *Options) {
		o.MeterName = name
	}
}

// NewOTelMetricsCollector creates a collector backed by provider. provider
// must not be nil.
func NewOTelMetricsCollector(provider metric.MeterProvider, opts ...Option) (*OTelMetricsCollector, error) {
	if provider == nil {
		return nil, errors.New("meter provider cannot be nil")
	}

	options := Options{MeterName: "github.com/chronos-cache/chronos"}
	for _, opt := range opts {
		opt(&options)
	}

	meter := provider.Meter(options.MeterName)
	collector := &OTelMetricsCollector{}

	var err error
	if collector.getLatency, err = meter.Int64Histogram(
		"chronos_get_latency_ns",
		metric.WithDescription("Latency of Get operations in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if collector.setLatency, err = meter.Int64Histogram(
		"chronos_set_latency_ns",
		metric.WithDescription("Latency of Set operations in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if collector.deleteLatency, err = meter.Int64Histogram(
		"chronos_delete_latency_ns",
		metric.WithDescription("Latency of Delete operations in nanoseconds"),
		metric.WithUnit("ns"),
	); err != nil {
		return nil, err
	}
	if collector.hits, err = meter.Int64Counter(
		"chronos_get_hits_total",
		metric.WithDescription("Total number of cache hits"),
	); err != nil {
		return nil, err
	}
	if collector.misses, err = meter.Int64Counter(
		"chronos_get_misses_total",
		metric.WithDescription("Total number of cache misses"),
	); err != nil {
		return nil, err
	}
	if collector.evictions, err = meter.Int64Counter(
		"chronos_evictions_total",
		metric.WithDescription("Total number of evictions"),
	); err != nil {
		return nil, err
	}
	if collector.expirations, err = meter.Int64Counter(
		"chronos_expirations_total",
		metric.WithDescription("Total number of TTL-based expirations"),
	); err != nil {
		return nil, err
	}
	if collector.prefetchDispatch, err = meter.Int64Counter(
		"chronos_prefetch_dispatch_total",
		metric.WithDescription("Total number of predictions dispatched to the data loader"),
	); err != nil {
		return nil, err
	}
	if collector.prefetchHit, err = meter.Int64Counter(
		"chronos_prefetch_hit_total",
		metric.WithDescription("Total number of dispatched predictions later requested within their expiry window"),
	); err != nil {
		return nil, err
	}

	return collector, nil
}

// RecordGet records a Get operation's latency and hit/miss outcome.
func (c *OTelMetricsCollector) RecordGet(latencyNs int64, hit bool) {
	ctx := context.Background()
	c.getLatency.Record(ctx, latencyNs)
	if hit {
		c.hits.Add(ctx, 1)
	} else {
		c.misses.Add(ctx, 1)
	}
}

// RecordSet records a Set operation's latency.
func (c *OTelMetricsCollector) RecordSet(latencyNs int64) {
	c.setLatency.Record(context.Background(), latencyNs)
}

// RecordDelete records a Delete operation's latency.
func (c *OTelMetricsCollector) RecordDelete(latencyNs int64) {
	c.deleteLatency.Record(context.Background(), latencyNs)
}

// RecordEviction increments the evictions counter.
func (c *OTelMetricsCollector) RecordEviction() {
	c.evictions.Add(context.Background(), 1)
}

// RecordExpiration increments the TTL-expiration counter.
func (c *OTelMetricsCollector) RecordExpiration() {
	c.expirations.Add(context.Background(), 1)
}

// RecordPrefetchDispatch increments the prefetch-dispatch counter.
func (c *OTelMetricsCollector) RecordPrefetchDispatch() {
	c.prefetchDispatch.Add(context.Background(), 1)
}

// RecordPrefetchHit increments the prefetch-hit counter.
func (c *OTelMetricsCollector) RecordPrefetchHit() {
	c.prefetchHit.Add(context.Background(), 1)
}

// Compile-time interface check.
var _ chronos.MetricsCollector = (*OTelMetricsCollector)(nil)
