package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineCollector bundles Prometheus metrics for link evaluations and
// exposes a /metrics handler. It satisfies core.MetricsRecorder.
type EngineCollector struct {
	gatherer prometheus.Gatherer

	Evaluations *prometheus.CounterVec
	Durations   *prometheus.HistogramVec
	BerFallback prometheus.Counter

	LinkMargin    prometheus.Gauge
	ReceivedPower prometheus.Gauge
	MaxReach      *prometheus.GaugeVec
}

// NewEngineCollector registers engine metrics against reg, defaulting to
// the global Prometheus registry when nil. Registering twice against the
// same registry returns collectors backed by the first registration.
func NewEngineCollector(reg prometheus.Registerer) (*EngineCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	evaluations, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fsoc_evaluations_total",
		Help: "Total link evaluations, labeled by operation and BER path.",
	}, []string{"operation", "path"}), "fsoc_evaluations_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerCollector(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fsoc_evaluation_duration_seconds",
		Help:    "Wall time of engine operations in seconds.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"operation"}), "fsoc_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	fallback, err := registerCollector(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fsoc_ber_fallback_total",
		Help: "BER estimates that used the margin heuristic instead of the noise model.",
	}), "fsoc_ber_fallback_total")
	if err != nil {
		return nil, err
	}

	margin, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_link_margin_db",
		Help: "Link margin of the most recent evaluation in dB.",
	}), "fsoc_link_margin_db")
	if err != nil {
		return nil, err
	}
	prx, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_received_power_dbm",
		Help: "Received optical power of the most recent evaluation in dBm.",
	}), "fsoc_received_power_dbm")
	if err != nil {
		return nil, err
	}
	reach, err := registerCollector(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fsoc_max_reach_meters",
		Help: "Most recent BER-limited reach in meters, labeled by search outcome.",
	}, []string{"outcome"}), "fsoc_max_reach_meters")
	if err != nil {
		return nil, err
	}

	return &EngineCollector{
		gatherer:      gatherer,
		Evaluations:   evaluations,
		Durations:     durations,
		BerFallback:   fallback,
		LinkMargin:    margin,
		ReceivedPower: prx,
		MaxReach:      reach,
	}, nil
}

// ObserveOperation counts one engine operation and records its duration.
func (c *EngineCollector) ObserveOperation(operation, path string, d time.Duration) {
	if c == nil {
		return
	}
	if path == "" {
		path = "none"
	}
	c.Evaluations.WithLabelValues(operation, path).Inc()
	c.Durations.WithLabelValues(operation).Observe(d.Seconds())
}

// SetLinkState publishes the margin and received power of an evaluation.
func (c *EngineCollector) SetLinkState(marginDb, receivedDbm float64) {
	if c == nil {
		return
	}
	c.LinkMargin.Set(marginDb)
	c.ReceivedPower.Set(receivedDbm)
}

// SetMaxReach publishes a max-reach result. Only the latest outcome
// carries a value; the others are reset.
func (c *EngineCollector) SetMaxReach(outcome string, distanceM float64) {
	if c == nil {
		return
	}
	c.MaxReach.Reset()
	c.MaxReach.WithLabelValues(outcome).Set(distanceM)
}

// IncBerFallback counts a heuristic BER estimate.
func (c *EngineCollector) IncBerFallback() {
	if c == nil {
		return
	}
	c.BerFallback.Inc()
}

// Handler exposes a ready-to-use /metrics handler.
func (c *EngineCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// registerCollector registers col, returning the already-registered
// collector of the same type when one exists.
func registerCollector[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
