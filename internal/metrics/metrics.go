package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Notification kinds used as label values.
const (
	KindCommit = "commit"
	KindReorg  = "reorg"
	KindRevert = "revert"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	notifications   *prometheus.CounterVec
	eventsExtracted prometheus.Counter
	relaysSent      prometheus.Counter
	relaysFailed    prometheus.Counter
	acksEmitted     prometheus.Counter
	errors          prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "root_relay_notifications_total",
				Help: "Total chain notifications processed, by kind",
			}, []string{"kind"}),
			eventsExtracted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "root_relay_events_extracted_total",
				Help: "Total counter events extracted from committed segments",
			}),
			relaysSent: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "root_relay_submissions_total",
				Help: "Total state root submissions accepted by the L1 transport",
			}),
			relaysFailed: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "root_relay_submission_failures_total",
				Help: "Total state root submissions that failed",
			}),
			acksEmitted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "root_relay_acks_total",
				Help: "Total liveness acknowledgements emitted to the host",
			}),
			errors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "root_relay_errors_total",
				Help: "Total number of errors encountered",
			}),
		}
		prometheus.MustRegister(
			metrics.notifications,
			metrics.eventsExtracted,
			metrics.relaysSent,
			metrics.relaysFailed,
			metrics.acksEmitted,
			metrics.errors,
		)
	})
	return metrics
}

// Notification increments the processed counter for the given kind.
func (m *Metrics) Notification(kind string) {
	if m != nil {
		m.notifications.WithLabelValues(kind).Inc()
	}
}

// EventsExtracted adds n extracted events.
func (m *Metrics) EventsExtracted(n int) {
	if m != nil && n > 0 {
		m.eventsExtracted.Add(float64(n))
	}
}

// RelaySent increments the accepted submission counter.
func (m *Metrics) RelaySent() {
	if m != nil {
		m.relaysSent.Inc()
	}
}

// RelayFailed increments the failed submission counter.
func (m *Metrics) RelayFailed() {
	if m != nil {
		m.relaysFailed.Inc()
	}
}

// AckEmitted increments the acknowledgement counter.
func (m *Metrics) AckEmitted() {
	if m != nil {
		m.acksEmitted.Inc()
	}
}

// Errors increments the errors counter.
func (m *Metrics) Errors() {
	if m != nil {
		m.errors.Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
