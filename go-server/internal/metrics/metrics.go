package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	HTTPResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Application Metrics
	URLCreationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_creation_total",
			Help: "Total number of URL creation attempts by status",
		},
		[]string{"status"},
	)

	URLRedirectTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_redirect_total",
			Help: "Total number of redirects by outcome",
		},
		[]string{"outcome"},
	)

	URLManagementTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "url_management_total",
			Help: "Owner operations on URLs by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LoginTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_total",
			Help: "Total number of credential checks by outcome",
		},
		[]string{"outcome"},
	)

	KeyCollisionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keygen_collisions_total",
			Help: "Generated keys rejected because they were already taken",
		},
	)

	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"limiter"},
	)

	// Database Metrics
	DBConnectionsInUse = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_in_use",
			Help: "Number of database connections currently in use",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	DBConnectionsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "db_connections_total",
			Help: "Total number of database connections in the pool",
		},
	)

	// System Metrics
	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "go_goroutines_count",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
		[]string{"type"},
	)
)

// StartSystemMetricsCollection samples runtime stats until ctx is done.
func StartSystemMetricsCollection(ctx context.Context, interval time.Duration) {
	go every(ctx, interval, collectSystemMetrics)
}

// StartPoolStatsCollection mirrors pgxpool stats into the DB gauges until ctx is done.
func StartPoolStatsCollection(ctx context.Context, pool *pgxpool.Pool, interval time.Duration) {
	go every(ctx, interval, func() { collectPoolStats(pool.Stat()) })
}

func every(ctx context.Context, interval time.Duration, fn func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn()
		}
	}
}

func collectSystemMetrics() {
	GoRoutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryUsage.WithLabelValues("heap_in_use").Set(float64(m.HeapInuse))
	MemoryUsage.WithLabelValues("stack_in_use").Set(float64(m.StackInuse))
}

func collectPoolStats(stat *pgxpool.Stat) {
	DBConnectionsInUse.Set(float64(stat.AcquiredConns()))
	DBConnectionsIdle.Set(float64(stat.IdleConns()))
	DBConnectionsTotal.Set(float64(stat.TotalConns()))
}

// RecordHTTPMetrics records metrics for an HTTP request
func RecordHTTPMetrics(method, path, status string, duration time.Duration, requestSize, responseSize int64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
	HTTPRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	HTTPResponseSize.WithLabelValues(method, path, status).Observe(float64(responseSize))
}

func RecordURLCreation(status string) {
	URLCreationTotal.WithLabelValues(status).Inc()
}

func RecordRedirect(outcome string) {
	URLRedirectTotal.WithLabelValues(outcome).Inc()
}

func RecordManagement(operation, outcome string) {
	URLManagementTotal.WithLabelValues(operation, outcome).Inc()
}

func RecordLogin(outcome string) {
	LoginTotal.WithLabelValues(outcome).Inc()
}

func RecordKeyCollisions(n int) {
	if n > 0 {
		KeyCollisionsTotal.Add(float64(n))
	}
}

func RecordRateLimited(limiter string) {
	RateLimitedTotal.WithLabelValues(limiter).Inc()
}
