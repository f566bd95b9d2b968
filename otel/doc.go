// Package otel provides OpenTelemetry integration for chronos cache metrics.
//
// # Overview
//
// This package implements the chronos.MetricsCollector interface using
// OpenTelemetry, giving get/set/delete latencies automatic percentile
// aggregation (p50, p95, p99) and hit/miss/eviction/expiration/prefetch
// counters exportable to any OTEL-compatible backend.
//
// # Quick start
//
//	exporter, err := prometheus.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//	provider := metric.NewMeterProvider(metric.WithReader(exporter))
//	defer provider.Shutdown(context.Background())
//
//	collector, err := chronosotel.NewOTelMetricsCollector(provider)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	cfg := chronos.DefaultConfig()
//	cfg.MetricsCollector = collector
//	store, _ := chronos.NewStore(cfg)
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":2112", nil))
//
// # Metrics exposed
//
// Histograms (automatic percentiles): chronos_get_latency_ns,
// chronos_set_latency_ns, chronos_delete_latency_ns.
//
// Counters: chronos_get_hits_total, chronos_get_misses_total,
// chronos_evictions_total, chronos_expirations_total,
// chronos_prefetch_dispatch_total, chronos_prefetch_hit_total.
//
// # Example Prometheus queries
//
//	histogram_quantile(0.99, rate(chronos_get_latency_ns_bucket[5m]))
//	rate(chronos_get_hits_total[5m]) /
//	  (rate(chronos_get_hits_total[5m]) + rate(chronos_get_misses_total[5m]))
//
// This package is separate from chronos's own built-in Metrics/health
// scorer (see the root package's metrics.go): use this one when an
// application already runs an OTEL pipeline and wants chronos counters
// folded into it instead of polling chronos's native snapshot.
package otel
