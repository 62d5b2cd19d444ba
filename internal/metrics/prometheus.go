// Package metrics exposes ThoughtJack's Prometheus metrics (§4.8):
// request/response counters, phase gauges, and side-effect counters, all
// registered against a private registry so one process can run several
// scenarios in tests without collector-already-registered panics.
package metrics

import (
	"regexp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"net/http"

	"github.com/thoughtjack/thoughtjack/internal/mcp"
)

const unknownLabel = "__unknown__"

// Collector owns every metric ThoughtJack publishes and the registry they
// are bound to.
type Collector struct {
	registry *prometheus.Registry

	requestsTotal         *prometheus.CounterVec
	responsesTotal        *prometheus.CounterVec
	requestDurationMs     *prometheus.HistogramVec
	phaseTransitionsTotal *prometheus.CounterVec
	currentPhase          prometheus.Gauge
	connectionsActive     prometheus.Gauge
	sideEffectsTotal      *prometheus.CounterVec
}

// NewCollector builds and registers every metric on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thoughtjack_requests_total",
			Help: "Total JSON-RPC requests received, labeled by sanitized method.",
		}, []string{"method"}),
		responsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thoughtjack_responses_total",
			Help: "Total responses sent, labeled by sanitized method and success.",
		}, []string{"method", "success"}),
		requestDurationMs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "thoughtjack_request_duration_ms",
			Help:    "End-to-end request handling duration in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 16),
		}, []string{"method"}),
		phaseTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thoughtjack_phase_transitions_total",
			Help: "Total phase transitions, labeled by destination phase name.",
		}, []string{"phase"}),
		currentPhase: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thoughtjack_current_phase",
			Help: "Index of the current phase.",
		}),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thoughtjack_connections_active",
			Help: "Number of currently open connections.",
		}),
		sideEffectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thoughtjack_side_effects_total",
			Help: "Total side effects fired, labeled by kind.",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.requestsTotal,
		c.responsesTotal,
		c.requestDurationMs,
		c.phaseTransitionsTotal,
		c.currentPhase,
		c.connectionsActive,
		c.sideEffectsTotal,
	)
	return c
}

// Handler returns the /metrics HTTP handler for this collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordRequest increments the request counter for a sanitized method
// label.
func (c *Collector) RecordRequest(method string) {
	c.requestsTotal.WithLabelValues(sanitizeMethod(method)).Inc()
}

// RecordResponse increments the response counter and observes duration.
func (c *Collector) RecordResponse(method string, success bool, durationMs float64) {
	m := sanitizeMethod(method)
	c.responsesTotal.WithLabelValues(m, successLabel(success)).Inc()
	c.requestDurationMs.WithLabelValues(m).Observe(durationMs)
}

// RecordPhaseTransition increments the transition counter and sets the
// current-phase gauge.
func (c *Collector) RecordPhaseTransition(phaseName string, index int) {
	c.phaseTransitionsTotal.WithLabelValues(sanitizePhaseName(phaseName)).Inc()
	c.currentPhase.Set(float64(index))
}

// RecordSideEffect increments the side-effect counter for kind.
func (c *Collector) RecordSideEffect(kind string) {
	c.sideEffectsTotal.WithLabelValues(kind).Inc()
}

// SetConnectionsActive sets the open-connection gauge.
func (c *Collector) SetConnectionsActive(n int) {
	c.connectionsActive.Set(float64(n))
}

func successLabel(ok bool) string {
	if ok {
		return "true"
	}
	return "false"
}

// sanitizeMethod maps any method name outside the known dispatch table to
// __unknown__, capping label cardinality against a client sending
// arbitrary method strings (§4.8).
func sanitizeMethod(method string) string {
	if mcp.KnownMethods[method] {
		return method
	}
	return unknownLabel
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

const maxPhaseNameLen = 64

// sanitizePhaseName truncates to 64 characters and replaces every
// non-alphanumeric character with an underscore (§4.8), since phase names
// are scenario-author-controlled and otherwise unbounded.
func sanitizePhaseName(name string) string {
	if len(name) > maxPhaseNameLen {
		name = name[:maxPhaseNameLen]
	}
	return nonAlphanumeric.ReplaceAllString(name, "_")
}
