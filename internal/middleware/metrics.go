package middleware

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/seakleangnhak/API-Chaos-Monkey-Playground/internal/observability"
)

// MetricsCollector tracks request counts, error counts, and latency
// percentiles per route. The teacher kept a tenant dimension alongside
// route; this engine has no tenant concept (spec.md Non-goals rule out
// authentication/multi-tenancy), so the key collapses to route alone.
type MetricsCollector struct {
	mu sync.RWMutex

	requestCount map[string]int64 // route:status
	errorCount   map[string]int64
	droppedCount map[string]int64 // chaos-dropped requests, keyed by route
	latencies    map[string][]time.Duration
}

var metricsCollector = &MetricsCollector{
	requestCount: make(map[string]int64),
	errorCount:   make(map[string]int64),
	droppedCount: make(map[string]int64),
	latencies:    make(map[string][]time.Duration),
}

// requestCounter is the otel/metric instrument twin of requestCount:
// GetMetrics() serves the JSON snapshot an operator actually polls, while
// this counter makes the same signal visible to any otel metric reader a
// deployment wires up.
var requestCounter metric.Int64Counter

func init() {
	c, err := observability.Meter("chaos-proxy").Int64Counter(
		"proxy_requests_total",
		metric.WithDescription("Requests handled by the management and proxy HTTP surfaces"),
	)
	if err != nil {
		log.Printf("[metrics] failed to create request counter instrument: %v", err)
		return
	}
	requestCounter = c
}

// RecordRequest records a request with labels.
func RecordRequest(route, status string) {
	metricsCollector.mu.Lock()
	defer metricsCollector.mu.Unlock()
	key := route + ":" + status
	metricsCollector.requestCount[key]++
}

// RecordLatency records request latency, keeping the last 1000 samples
// per route.
func RecordLatency(route string, duration time.Duration) {
	metricsCollector.mu.Lock()
	defer metricsCollector.mu.Unlock()
	metricsCollector.latencies[route] = append(metricsCollector.latencies[route], duration)
	if len(metricsCollector.latencies[route]) > 1000 {
		metricsCollector.latencies[route] = metricsCollector.latencies[route][1:]
	}
}

// RecordError records an error response for route.
func RecordError(route string) {
	metricsCollector.mu.Lock()
	defer metricsCollector.mu.Unlock()
	metricsCollector.errorCount[route]++
}

// RecordDropped records a chaos-dropped (rate-limited or failed) request.
func RecordDropped(route string) {
	metricsCollector.mu.Lock()
	defer metricsCollector.mu.Unlock()
	metricsCollector.droppedCount[route]++
}

// GetMetrics returns a snapshot suitable for JSON serving at GET /metrics.
func GetMetrics() map[string]interface{} {
	metricsCollector.mu.RLock()
	defer metricsCollector.mu.RUnlock()

	percentiles := make(map[string]map[string]float64)
	for key, durations := range metricsCollector.latencies {
		if len(durations) == 0 {
			continue
		}
		p50, p95, p99 := calculatePercentiles(durations)
		percentiles[key] = map[string]float64{"p50": p50, "p95": p95, "p99": p99}
	}

	return map[string]interface{}{
		"requests_total":      metricsCollector.requestCount,
		"errors_total":        metricsCollector.errorCount,
		"requests_dropped":    metricsCollector.droppedCount,
		"latency_percentiles": percentiles,
	}
}

func calculatePercentiles(durations []time.Duration) (float64, float64, float64) {
	if len(durations) == 0 {
		return 0, 0, 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if sorted[j] < sorted[i] {
				sorted[i], sorted[j] = sorted[j], sorted[i]
			}
		}
	}

	p50 := float64(sorted[len(sorted)*50/100].Milliseconds())
	p95 := float64(sorted[len(sorted)*95/100].Milliseconds())
	p99 := float64(sorted[len(sorted)*99/100].Milliseconds())

	return p50, p95, p99
}

// statusCapture wraps a ResponseWriter to observe the status code it wrote.
type statusCapture struct {
	http.ResponseWriter
	statusCode int
}

func (sc *statusCapture) WriteHeader(code int) {
	sc.statusCode = code
	sc.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the wrapped ResponseWriter, so handlers behind
// this middleware (the /ws upgrade and the proxy's timeout hang) can take
// over the raw connection.
func (sc *statusCapture) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := sc.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("underlying ResponseWriter does not implement http.Hijacker")
	}
	return hj.Hijack()
}

// Metrics records per-route request count, latency, and error rate for
// every request that passes through it (mounted ahead of both the proxy
// and management routers).
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sc := &statusCapture{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(sc, r)

		duration := time.Since(start)
		route := r.URL.Path
		status := strconv.Itoa(sc.statusCode)

		RecordRequest(route, status)
		RecordLatency(route, duration)

		if sc.statusCode >= 400 {
			RecordError(route)
		}

		if requestCounter != nil {
			requestCounter.Add(context.Background(), 1,
				metric.WithAttributes(
					attribute.String("route", route),
					attribute.String("status", status),
				),
			)
		}

		log.Printf("[metrics] path=%s status=%d duration_ms=%d", route, sc.statusCode, duration.Milliseconds())
	})
}
