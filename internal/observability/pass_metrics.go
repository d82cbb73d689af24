package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PassCollector exposes orbital pass metrics.
type PassCollector struct {
	gatherer prometheus.Gatherer

	StepDuration  prometheus.Histogram
	Samples       *prometheus.CounterVec
	LinkUpSeconds prometheus.Gauge
	SlantRangeM   prometheus.Gauge
	ElevationDeg  prometheus.Gauge
	LinkMarginDb  prometheus.Gauge
}

// NewPassCollector registers pass metrics against the provided registerer.
func NewPassCollector(reg prometheus.Registerer) (*PassCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	step, err := registerCollector(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fsoc_pass_step_duration_seconds",
		Help:    "Wall time spent evaluating one pass step.",
		Buckets: []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	}), "fsoc_pass_step_duration_seconds")
	if err != nil {
		return nil, err
	}
	samples, err := registerCollector(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fsoc_pass_samples_total",
		Help: "Pass samples by state: hidden, visible or link_up.",
	}, []string{"state"}), "fsoc_pass_samples_total")
	if err != nil {
		return nil, err
	}
	linkUp, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_pass_link_up_seconds",
		Help: "Simulated time the link met its BER target during the last pass.",
	}), "fsoc_pass_link_up_seconds")
	if err != nil {
		return nil, err
	}
	slant, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_pass_slant_range_meters",
		Help: "Slant range of the latest pass sample.",
	}), "fsoc_pass_slant_range_meters")
	if err != nil {
		return nil, err
	}
	elevation, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_pass_elevation_degrees",
		Help: "Elevation of the latest pass sample.",
	}), "fsoc_pass_elevation_degrees")
	if err != nil {
		return nil, err
	}
	margin, err := registerCollector(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fsoc_pass_margin_db",
		Help: "Link margin of the latest visible pass sample.",
	}), "fsoc_pass_margin_db")
	if err != nil {
		return nil, err
	}

	return &PassCollector{
		gatherer:      gatherer,
		StepDuration:  step,
		Samples:       samples,
		LinkUpSeconds: linkUp,
		SlantRangeM:   slant,
		ElevationDeg:  elevation,
		LinkMarginDb:  margin,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *PassCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveSample records one pass step.
func (c *PassCollector) ObserveSample(d time.Duration, slantRangeM, elevationDeg float64, visible, linkUp bool, marginDb float64) {
	if c == nil {
		return
	}
	c.StepDuration.Observe(d.Seconds())
	c.SlantRangeM.Set(slantRangeM)
	c.ElevationDeg.Set(elevationDeg)
	state := "hidden"
	switch {
	case linkUp:
		state = "link_up"
	case visible:
		state = "visible"
	}
	c.Samples.WithLabelValues(state).Inc()
	if visible {
		c.LinkMarginDb.Set(marginDb)
	}
}

// SetLinkUpDuration publishes the link-up time of a finished pass.
func (c *PassCollector) SetLinkUpDuration(d time.Duration) {
	if c == nil {
		return
	}
	c.LinkUpSeconds.Set(d.Seconds())
}
