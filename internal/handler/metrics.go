package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Metrics holds all Prometheus collectors for the guest API. Collectors are
// nil until InitMetrics runs; the record helpers tolerate that.
var Metrics = struct {
	ResolutionsTotal       *prometheus.CounterVec
	PostsTotal             *prometheus.CounterVec
	ModerationActionsTotal *prometheus.CounterVec
	EnrichmentLookups      *prometheus.CounterVec
	RequestDuration        *prometheus.HistogramVec
	DBPoolActive           prometheus.GaugeFunc
	DBPoolIdle             prometheus.GaugeFunc
	RequestsInFlight       prometheus.Gauge
}{}

// InitMetrics registers all Prometheus metrics. Call once at startup.
func InitMetrics(pool *pgxpool.Pool) {
	Metrics.ResolutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guest_resolutions_total",
			Help: "Identity resolutions, by outcome.",
		},
		[]string{"outcome"},
	)

	Metrics.PostsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guest_posts_total",
			Help: "Guest post attempts, by gate outcome.",
		},
		[]string{"outcome"},
	)

	Metrics.ModerationActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guest_moderation_actions_total",
			Help: "Admin moderation actions, by action.",
		},
		[]string{"action"},
	)

	Metrics.EnrichmentLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guest_enrichment_lookups_total",
			Help: "Network enrichment lookups, by whether the address was known.",
		},
		[]string{"known"},
	)

	Metrics.RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guest_api_request_duration_seconds",
			Help:    "HTTP request duration in seconds, by endpoint and method.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "method", "status"},
	)

	Metrics.RequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guest_requests_in_flight",
			Help: "Number of HTTP requests currently being served.",
		},
	)

	// DB pool gauges, read live from pgxpool
	if pool != nil {
		Metrics.DBPoolActive = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "guest_db_connection_pool_active",
				Help: "Number of active database connections.",
			},
			func() float64 {
				return float64(pool.Stat().AcquiredConns())
			},
		)

		Metrics.DBPoolIdle = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "guest_db_connection_pool_idle",
				Help: "Number of idle database connections.",
			},
			func() float64 {
				return float64(pool.Stat().IdleConns())
			},
		)

		prometheus.MustRegister(Metrics.DBPoolActive)
		prometheus.MustRegister(Metrics.DBPoolIdle)
	}

	prometheus.MustRegister(
		Metrics.ResolutionsTotal,
		Metrics.PostsTotal,
		Metrics.ModerationActionsTotal,
		Metrics.EnrichmentLookups,
		Metrics.RequestDuration,
		Metrics.RequestsInFlight,
	)
}

func recordResolution(outcome string) {
	if Metrics.ResolutionsTotal != nil {
		Metrics.ResolutionsTotal.WithLabelValues(outcome).Inc()
	}
}

func recordPost(outcome string) {
	if Metrics.PostsTotal != nil {
		Metrics.PostsTotal.WithLabelValues(outcome).Inc()
	}
}

func recordModeration(action string) {
	if Metrics.ModerationActionsTotal != nil {
		Metrics.ModerationActionsTotal.WithLabelValues(action).Inc()
	}
}

func recordEnrichment(known bool) {
	if Metrics.EnrichmentLookups != nil {
		Metrics.EnrichmentLookups.WithLabelValues(strconv.FormatBool(known)).Inc()
	}
}

// MetricsMiddleware records request duration and in-flight count for Prometheus.
func MetricsMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		// Don't instrument the /metrics endpoint itself
		if c.Path() == "/metrics" || Metrics.RequestDuration == nil {
			return c.Next()
		}

		// Copy path and method into owned strings BEFORE c.Next(); Fiber
		// returns slices backed by the fasthttp buffer which can be reused
		// or overwritten by handlers (especially fasthttpadaptor).
		path := string([]byte(c.Path()))
		method := string([]byte(c.Method()))
		endpoint := sanitizeEndpoint(path)

		Metrics.RequestsInFlight.Inc()
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())

		Metrics.RequestDuration.WithLabelValues(endpoint, method, status).Observe(duration)
		Metrics.RequestsInFlight.Dec()

		return err
	}
}

// sanitizeEndpoint normalizes paths to avoid cardinality explosion.
func sanitizeEndpoint(path string) string {
	for _, prefix := range []string{"/api/admin/guests/", "/api/guests/"} {
		rest, ok := strings.CutPrefix(path, prefix)
		if !ok || rest == "" || rest == "resolve" {
			continue
		}
		if _, tail, found := strings.Cut(rest, "/"); found {
			return prefix + ":guestId/" + tail
		}
		return prefix + ":guestId"
	}
	return path
}

// MetricsHandler serves the Prometheus /metrics endpoint via Fiber.
func MetricsHandler() fiber.Handler {
	httpHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	return func(c fiber.Ctx) error {
		httpHandler(c.RequestCtx())
		return nil
	}
}
