// Package metrics provides Prometheus instrumentation for the lockup engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

var (
	// LocksTotal counts committed locks, partitioned by lock class.
	LocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockup_locks_total",
		Help: "Total number of committed locks",
	}, []string{"class"})

	// UnlocksTotal counts committed unlocks, partitioned by maturity.
	UnlocksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockup_unlocks_total",
		Help: "Total number of committed unlocks",
	}, []string{"matured"})

	// TransfersTotal counts committed derivative-token transfers.
	TransfersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lockup_transfers_total",
		Help: "Total number of committed token transfers",
	})

	// Rejections counts engine calls that failed, by error kind.
	Rejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockup_rejections_total",
		Help: "Lock, unlock and transfer calls rejected, by reason",
	}, []string{"op", "reason"})

	// OperationLatency tracks how long a lock or unlock call takes.
	OperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lockup_operation_latency_seconds",
		Help:    "Lock and unlock latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// LockedAmount mirrors the aggregate ledger's locked total.
	LockedAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockup_locked_amount",
		Help: "Base asset currently locked",
	})

	// IssuedAmount mirrors the aggregate ledger's issued total.
	IssuedAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockup_issued_amount",
		Help: "Derivative tokens outstanding",
	})

	// FeesAmount mirrors the aggregate ledger's collected fees.
	FeesAmount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockup_fees_amount",
		Help: "Base asset collected as tax and penalty",
	})

	// OpenPositions tracks the number of open positions.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockup_open_positions",
		Help: "Positions opened minus positions closed since process start",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lockup_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lockup_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lockup_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// SetSupply mirrors the aggregate ledger into the supply gauges.
func SetSupply(locked, issued, fees decimal.Decimal) {
	LockedAmount.Set(locked.InexactFloat64())
	IssuedAmount.Set(issued.InexactFloat64())
	FeesAmount.Set(fees.InexactFloat64())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
