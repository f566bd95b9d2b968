// Package httpapi exposes chronos's read-only observability endpoints
// (/health, /metrics, /stats — spec §6: "documented for completeness, not
// part of the core"). Kept as a separate package so the core chronos
// engine has zero HTTP import.
//
// Fiber app shape (recover + CORS middleware, routes registered in the
// constructor) follows
// p-agent-test-kog-demo's internal/mgmt/server.go. /metrics is served by
// prometheus/client_golang's own promhttp handler over a custom Collector,
// adapted into fiber via its net/http adaptor middleware, rather than a
// hand-rolled exposition writer.
package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chronos-cache/chronos"
)

// Server is the chronos observability HTTP application.
type Server struct {
	app     *fiber.App
	metrics *chronos.Metrics
	store   *chronos.Store
	warmer  *chronos.Warmer
}

// NewServer builds a Server backed by metrics and store. warmer is optional
// (nil disables POST /warm with a 503) — chronosd only builds one when an
// upstream DataLoader is configured.
func NewServer(metrics *chronos.Metrics, store *chronos.Store, warmer *chronos.Warmer) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	s := &Server{app: app, metrics: metrics, store: store, warmer: warmer}

	registry := prometheus.NewRegistry()
	registry.MustRegister(&chronosCollector{metrics: metrics, store: store})
	metricsHandler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	app.Get("/health", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(metricsHandler))
	app.Get("/stats", s.stats)
	app.Post("/warm", s.warm)
	return s
}

// Listen starts the HTTP server on addr. Blocks until the server stops.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// App exposes the underlying fiber.App for tests and graceful shutdown.
func (s *Server) App() *fiber.App { return s.app }

type healthResponse struct {
	Score       int      `json:"score"`
	Status      string   `json:"status"`
	Issues      []string `json:"issues"`
	HitRate     float64  `json:"hitRate"`
	P99Latency  int64    `json:"p99Latency"`
	MemoryUsage int64    `json:"memoryUsage"`
}

// health implements GET /health: JSON {score, status, issues[], hitRate,
// p99Latency, memoryUsage}; 200 when score > 70, 503 otherwise (spec §6).
func (s *Server) health(c *fiber.Ctx) error {
	snap := s.metrics.Snapshot()
	result := chronos.ScoreHealth(snap)
	storeStats := s.store.Stats()

	resp := healthResponse{
		Score:       result.Score,
		Status:      result.Status,
		Issues:      result.Issues,
		HitRate:     snap.HitRate,
		P99Latency:  snap.P99GetLatencyNs,
		MemoryUsage: storeStats.MemoryUsed,
	}
	if resp.Issues == nil {
		resp.Issues = []string{}
	}

	status := fiber.StatusOK
	if result.Score <= 70 {
		status = fiber.StatusServiceUnavailable
	}
	return c.Status(status).JSON(resp)
}

var (
	hitsDesc      = prometheus.NewDesc("chronos_hits_total", "Total cache hits", nil, nil)
	missesDesc    = prometheus.NewDesc("chronos_misses_total", "Total cache misses", nil, nil)
	hitRateDesc   = prometheus.NewDesc("chronos_hit_rate", "Hit rate over the lifetime of the process", nil, nil)
	memoryDesc    = prometheus.NewDesc("chronos_memory_bytes", "Current tracked memory usage in bytes", nil, nil)
	latencyDesc   = prometheus.NewDesc("chronos_latency_milliseconds", "Get latency quantiles in milliseconds", []string{"quantile"}, nil)
	evictionsDesc = prometheus.NewDesc("chronos_evictions_total", "Total evictions", nil, nil)
)

// chronosCollector adapts a point-in-time chronos.Metrics/Store snapshot
// into prometheus.Metric values on every scrape, the idiomatic shape for
// derived gauges client_golang itself doesn't track incrementally.
type chronosCollector struct {
	metrics *chronos.Metrics
	store   *chronos.Store
}

func (c *chronosCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- hitsDesc
	ch <- missesDesc
	ch <- hitRateDesc
	ch <- memoryDesc
	ch <- latencyDesc
	ch <- evictionsDesc
}

func (c *chronosCollector) Collect(ch chan<- prometheus.Metric) {
	snap := c.metrics.Snapshot()
	storeStats := c.store.Stats()

	ch <- prometheus.MustNewConstMetric(hitsDesc, prometheus.CounterValue, float64(snap.Hits))
	ch <- prometheus.MustNewConstMetric(missesDesc, prometheus.CounterValue, float64(snap.Misses))
	ch <- prometheus.MustNewConstMetric(hitRateDesc, prometheus.GaugeValue, snap.HitRate)
	ch <- prometheus.MustNewConstMetric(memoryDesc, prometheus.GaugeValue, float64(storeStats.MemoryUsed))
	ch <- prometheus.MustNewConstMetric(evictionsDesc, prometheus.CounterValue, float64(snap.Evictions))
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, float64(snap.P50GetLatencyNs)/1e6, "0.5")
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, float64(snap.P95GetLatencyNs)/1e6, "0.95")
	ch <- prometheus.MustNewConstMetric(latencyDesc, prometheus.GaugeValue, float64(snap.P99GetLatencyNs)/1e6, "0.99")
}

type warmRequest struct {
	Keys []string `json:"keys"`
}

type warmResponse struct {
	Requested int `json:"requested"`
	Loaded    int `json:"loaded"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// warm implements POST /warm: an operator-triggered bulk warm pass over a
// caller-supplied key list (spec §4.5/§5's warming pool), run through the
// configured Warmer and blocked on until every key is attempted. Returns
// 503 if the process was started without an upstream DataLoader, so no
// Warmer was ever built.
func (s *Server) warm(c *fiber.Ctx) error {
	if s.warmer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "warming is disabled: no upstream data loader configured",
		})
	}
	var req warmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result := s.warmer.Warm(c.Context(), req.Keys)
	return c.JSON(warmResponse{
		Requested: result.Requested,
		Loaded:    result.Loaded,
		Skipped:   result.Skipped,
		Failed:    result.Failed,
	})
}

type statsResponse struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	Sets             int64   `json:"sets"`
	Deletes          int64   `json:"deletes"`
	Evictions        int64   `json:"evictions"`
	Expirations      int64   `json:"expirations"`
	PrefetchDispatch int64   `json:"prefetchDispatch"`
	PrefetchHit      int64   `json:"prefetchHit"`
	HitRate          float64 `json:"hitRate"`
	P50LatencyNs     int64   `json:"p50LatencyNs"`
	P95LatencyNs     int64   `json:"p95LatencyNs"`
	P99LatencyNs     int64   `json:"p99LatencyNs"`
	EntryCount       int64   `json:"entryCount"`
	MemoryUsed       int64   `json:"memoryUsed"`
	MemoryLimit      int64   `json:"memoryLimit"`
}

// stats implements GET /stats: a JSON snapshot of every counter and
// latency percentile (spec §6).
func (s *Server) stats(c *fiber.Ctx) error {
	snap := s.metrics.Snapshot()
	storeStats := s.store.Stats()
	return c.JSON(statsResponse{
		Hits:             snap.Hits,
		Misses:           snap.Misses,
		Sets:             snap.Sets,
		Deletes:          snap.Deletes,
		Evictions:        snap.Evictions,
		Expirations:      snap.Expirations,
		PrefetchDispatch: snap.PrefetchDispatch,
		PrefetchHit:      snap.PrefetchHit,
		HitRate:          snap.HitRate,
		P50LatencyNs:     snap.P50GetLatencyNs,
		P95LatencyNs:     snap.P95GetLatencyNs,
		P99LatencyNs:     snap.P99GetLatencyNs,
		EntryCount:       storeStats.EntryCount,
		MemoryUsed:       storeStats.MemoryUsed,
		MemoryLimit:      storeStats.MemoryLimit,
	})
}
