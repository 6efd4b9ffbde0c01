package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domainauth "github.com/eventrentals/portal/internal/domain/auth"
	"github.com/eventrentals/portal/internal/domain/portal"
	obserrors "github.com/eventrentals/portal/internal/observability/errors"
)

// Gate decision labels.
const (
	GateAllowed    = "allowed"
	GatePublic     = "public"
	GateRedirected = "redirected"
	GateFailOpen   = "fail_open"
)

// Config configures the portal collectors.
type Config struct {
	Namespace   string                // Optional: defaults to "portal"
	ConstLabels prometheus.Labels     // Optional
	Buckets     []float64             // Optional: role resolution buckets, defaults to prometheus.DefBuckets
	Registry    prometheus.Registerer // Optional: defaults to prometheus.DefaultRegisterer
	Gatherer    prometheus.Gatherer   // Optional: used by Handler, defaults to prometheus.DefaultGatherer
}

// Metrics holds the Prometheus collectors for gating and role resolution.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	gateDecisions      *prometheus.CounterVec
	guardDecisions     *prometheus.CounterVec
	resolutions        *prometheus.CounterVec
	resolutionDuration prometheus.Histogram
	resolutionErrors   *prometheus.CounterVec
	requests           *prometheus.CounterVec
	gatherer           prometheus.Gatherer
}

// New registers the portal collectors with cfg.Registry.
func New(cfg Config) *Metrics {
	if cfg.Namespace == "" {
		cfg.Namespace = "portal"
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	if cfg.Gatherer == nil {
		cfg.Gatherer = prometheus.DefaultGatherer
	}

	factory := promauto.With(cfg.Registry)
	return &Metrics{
		gateDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "gate_decisions_total",
			Help:        "Edge gate decisions by portal and outcome",
			ConstLabels: cfg.ConstLabels,
		}, []string{"portal", "decision"}),

		guardDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "guard_decisions_total",
			Help:        "Portal guard decisions by portal and state",
			ConstLabels: cfg.ConstLabels,
		}, []string{"portal", "state"}),

		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "role_resolutions_total",
			Help:        "Role resolutions by outcome and deciding step",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind", "source"}),

		resolutionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Name:        "role_resolution_duration_seconds",
			Help:        "Role resolution latency in seconds",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}),

		resolutionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "role_resolution_errors_total",
			Help:        "Failed role resolutions by error class",
			ConstLabels: cfg.ConstLabels,
		}, []string{"error_class"}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Name:        "http_requests_total",
			Help:        "HTTP requests by method and status code",
			ConstLabels: cfg.ConstLabels,
		}, []string{"method", "status"}),

		gatherer: cfg.Gatherer,
	}
}

// ObserveGate counts one edge gate decision.
func (m *Metrics) ObserveGate(p portal.Portal, decision string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(p.String(), decision).Inc()
}

// ObserveGuard counts one portal guard decision.
func (m *Metrics) ObserveGuard(p portal.Portal, state portal.GuardState) {
	if m == nil {
		return
	}
	m.guardDecisions.WithLabelValues(p.String(), state.String()).Inc()
}

// ObserveResolution records the outcome and latency of a role resolution.
func (m *Metrics) ObserveResolution(res domainauth.Resolution, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(res.Kind.String(), string(res.Source)).Inc()
	m.resolutionDuration.Observe(elapsed.Seconds())
	if res.Failed() {
		class := obserrors.Classify(res.Err)
		if class == "" {
			class = "unknown"
		}
		m.resolutionErrors.WithLabelValues(class).Inc()
	}
}

// ObserveRequest counts one served HTTP request.
func (m *Metrics) ObserveRequest(method string, status int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
