// Package observability exposes slew test metrics to Prometheus and sets up
// OpenTelemetry tracing.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/w1xm/slew_interface/slewtest"
)

// Outcome label values for slew_tests_total.
const (
	OutcomeComplete = "complete"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
)

// Collector bundles Prometheus metrics for slew tests. It implements
// slewtest.Observer so it can be attached to a Runner directly.
type Collector struct {
	gatherer prometheus.Gatherer

	Tests    *prometheus.CounterVec
	Speed    *prometheus.HistogramVec
	Distance *prometheus.HistogramVec
	Reads    prometheus.Counter
	Altitude prometheus.Gauge
	Azimuth  prometheus.Gauge
}

var _ slewtest.Observer = (*Collector)(nil)

// NewCollector registers slew metrics against reg, defaulting to the global
// Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "slew_tests_total",
		Help: "Slew tests finished, labeled by outcome.",
	}, []string{"outcome"}), "slew_tests_total")
	if err != nil {
		return nil, err
	}
	speed, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slew_speed_deg_per_second",
		Help:    "Average speed of completed slews.",
		Buckets: []float64{0.5, 1, 2, 4, 6, 8, 10, 15, 20, 30},
	}, []string{"label"}), "slew_speed_deg_per_second")
	if err != nil {
		return nil, err
	}
	distance, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slew_distance_degrees",
		Help:    "Distance covered by completed slews.",
		Buckets: []float64{1, 5, 10, 30, 60, 90, 120, 180, 270},
	}, []string{"label"}), "slew_distance_degrees")
	if err != nil {
		return nil, err
	}
	reads, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "slew_position_reads_total",
		Help: "Mount positions read while waiting for slews to settle.",
	}), "slew_position_reads_total")
	if err != nil {
		return nil, err
	}
	altitude, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slew_altitude_degrees",
		Help: "Last altitude read during a slew.",
	}), "slew_altitude_degrees")
	if err != nil {
		return nil, err
	}
	azimuth, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "slew_azimuth_degrees",
		Help: "Last azimuth read during a slew.",
	}), "slew_azimuth_degrees")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer: gatherer,
		Tests:    tests,
		Speed:    speed,
		Distance: distance,
		Reads:    reads,
		Altitude: altitude,
		Azimuth:  azimuth,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) Progress(altitude, azimuth float64) {
	if c == nil {
		return
	}
	c.Reads.Inc()
	c.Altitude.Set(altitude)
	c.Azimuth.Set(azimuth)
}

func (c *Collector) Complete(r slewtest.Result) {
	if c == nil {
		return
	}
	c.Tests.WithLabelValues(OutcomeComplete).Inc()
	c.Distance.WithLabelValues(r.Label).Observe(r.DistanceDeg)
	if r.ElapsedSec > 0 {
		c.Speed.WithLabelValues(r.Label).Observe(r.SpeedDegPerSec)
	}
}

func (c *Collector) Timeout(label string) {
	if c == nil {
		return
	}
	c.Tests.WithLabelValues(OutcomeTimeout).Inc()
}

func (c *Collector) Error(err error) {
	if c == nil {
		return
	}
	c.Tests.WithLabelValues(OutcomeError).Inc()
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
