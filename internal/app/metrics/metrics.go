package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradevault",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradevault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tradevault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	syncSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradevault",
			Subsystem: "sync",
			Name:      "sessions_total",
			Help:      "Total number of finished sync sessions.",
		},
		[]string{"status"},
	)

	tradesImported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tradevault",
			Subsystem: "sync",
			Name:      "trades_imported_total",
			Help:      "Total number of trades imported from exchanges.",
		},
	)

	priceFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tradevault",
			Subsystem: "pricefeed",
			Name:      "fetches_total",
			Help:      "Total number of price feed fetch attempts.",
		},
		[]string{"result"},
	)

	realtimeClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tradevault",
			Subsystem: "realtime",
			Name:      "connected_clients",
			Help:      "Current number of connected websocket clients.",
		},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		syncSessions,
		tradesImported,
		priceFetches,
		realtimeClients,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordSyncSession records a finished sync session outcome.
func RecordSyncSession(status string) {
	syncSessions.WithLabelValues(status).Inc()
}

// RecordTradesImported adds to the imported trade counter.
func RecordTradesImported(n int) {
	if n > 0 {
		tradesImported.Add(float64(n))
	}
}

// RecordPriceFetch records a price feed fetch attempt.
func RecordPriceFetch(ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	priceFetches.WithLabelValues(result).Inc()
}

// RealtimeClientConnected adjusts the connected websocket client gauge.
func RealtimeClientConnected(delta int) {
	realtimeClients.Add(float64(delta))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Hijack lets websocket upgrades pass through the wrapper.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// canonicalPath collapses resource identifiers so metric cardinality stays
// bounded to the route set.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		if i > 0 && looksLikeID(part) {
			out = append(out, ":id")
			continue
		}
		out = append(out, part)
	}
	return "/" + strings.Join(out, "/")
}

func looksLikeID(part string) bool {
	if len(part) >= 16 {
		return true
	}
	for _, r := range part {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
