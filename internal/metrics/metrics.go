// Package metrics wires ulogd's Prometheus instruments the way the
// teacher's pkg/metrics/prometheus does: a lazily-initialized registry
// behind InitRegistry/IsEnabled/GetRegistry, promauto-registered
// CounterVec/GaugeVec instruments, and nil-receiver methods so call sites
// never have to branch on whether metrics are enabled.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide Prometheus registry. Call once,
// before constructing any Metrics. A nil-registry state (InitRegistry never
// called) is the "metrics disabled" state.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil if metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}

// Metrics holds every instrument the daemon records against. A nil
// *Metrics is valid: every method no-ops, so callers never need an
// IsEnabled() branch at the call site.
type Metrics struct {
	sessionsActive   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	filehandlersOpen prometheus.Gauge
	bytesWritten     *prometheus.CounterVec
	handshakeErrors  *prometheus.CounterVec
	writeErrorsTotal prometheus.Counter
}

// New constructs a Metrics instance registered against the process
// registry. Returns nil if metrics are disabled (InitRegistry not called),
// matching the teacher's NewBadgerMetrics/NewCacheMetrics convention.
func New() *Metrics {
	if !IsEnabled() {
		return nil
	}
	reg := GetRegistry()

	return &Metrics{
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ulog_sessions_active",
			Help: "Number of currently connected client sessions.",
		}),
		sessionsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ulog_sessions_total",
			Help: "Total number of sessions accepted since startup.",
		}),
		filehandlersOpen: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "ulog_filehandlers_open",
			Help: "Number of distinct file paths currently open for appending.",
		}),
		bytesWritten: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ulog_bytes_written_total",
			Help: "Total bytes appended to each log file path.",
		}, []string{"path"}),
		handshakeErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ulog_handshake_errors_total",
			Help: "Total handshake failures by error kind.",
		}, []string{"kind"}),
		writeErrorsTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ulog_write_errors_total",
			Help: "Total file write failures across all FileHandlers.",
		}),
	}
}

func (m *Metrics) SessionAccepted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
	m.sessionsTotal.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) SetFileHandlersOpen(n int) {
	if m == nil {
		return
	}
	m.filehandlersOpen.Set(float64(n))
}

func (m *Metrics) BytesWritten(path string, n int) {
	if m == nil {
		return
	}
	m.bytesWritten.WithLabelValues(path).Add(float64(n))
}

func (m *Metrics) HandshakeError(kind string) {
	if m == nil {
		return
	}
	m.handshakeErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) WriteError() {
	if m == nil {
		return
	}
	m.writeErrorsTotal.Inc()
}

// Handler returns the HTTP handler to serve at /metrics. Returns nil if
// metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
