package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"memgov/internal/manager"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memgov",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "memgov",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)

	httpInflight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "memgov",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
		[]string{"path"},
	)

	pressureEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memgov",
			Subsystem: "memory",
			Name:      "pressure_events_total",
			Help:      "Raw memory pressure events",
		},
		[]string{"tier"},
	)

	demotionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memgov",
			Subsystem: "memory",
			Name:      "tier_demotions_total",
			Help:      "Tier demotions caused by sustained pressure",
		},
		[]string{"tier"},
	)

	cleanupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "memgov",
			Subsystem: "memory",
			Name:      "cleanups_total",
			Help:      "Emergency cleanup passes",
		},
		[]string{"tier"},
	)

	reclaimedBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "memgov",
			Subsystem: "memory",
			Name:      "reclaimed_bytes_total",
			Help:      "Bytes reclaimed by cleanup passes",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal, httpRequestDuration, httpInflight,
		pressureEventsTotal, demotionsTotal, cleanupsTotal, reclaimedBytesTotal,
	)
}

// PromPublisher translates manager telemetry into Prometheus counters.
type PromPublisher struct{}

func (PromPublisher) Publish(ev manager.Event) {
	switch ev.Name {
	case manager.EventPressure:
		pressureEventsTotal.WithLabelValues(ev.Tier).Inc()
	case manager.EventTierDemoted:
		demotionsTotal.WithLabelValues(ev.Tier).Inc()
	case manager.EventCleanup:
		cleanupsTotal.WithLabelValues(ev.Tier).Inc()
		if n, ok := ev.Fields["reclaimed_bytes"].(uint64); ok {
			reclaimedBytesTotal.Add(float64(n))
		}
	}
}

// statusRecorder wraps http.ResponseWriter to capture status code
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := routePatternOrPath(r)
		method := r.Method
		httpInflight.WithLabelValues(path).Inc()
		defer httpInflight.WithLabelValues(path).Dec()

		sr := &statusRecorder{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sr, r)
		statusLabel := itoa(sr.status)
		dur := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(path, method, statusLabel).Inc()
		httpRequestDuration.WithLabelValues(path, method, statusLabel).Observe(dur)
	})
}

// routePatternOrPath returns the chi route pattern if available, otherwise
// falls back to URL path. This avoids high-cardinality label values.
func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// fast integer to ascii for small set of status codes
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
