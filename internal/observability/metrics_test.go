package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"

	"github.com/w1xm/slew_interface/slewtest"
)

func newCollector(t *testing.T) (*Collector, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("NewCollector: %v", err)
	}
	return c, reg
}

func TestCollectorOutcomes(t *testing.T) {
	c, reg := newCollector(t)
	var o slewtest.Observer = c

	o.Progress(45, 10)
	o.Progress(45.5, 20)
	o.Complete(slewtest.Result{Label: "AZ Full Speed Test", DistanceDeg: 179, ElapsedSec: 30, SpeedDegPerSec: 179.0 / 30})
	o.Timeout("Normal Slew")
	o.Error(errors.New("boom"))

	for outcome, want := range map[string]float64{
		OutcomeComplete: 1,
		OutcomeTimeout:  1,
		OutcomeError:    1,
	} {
		if got := testutil.ToFloat64(c.Tests.WithLabelValues(outcome)); got != want {
			t.Errorf("slew_tests_total{outcome=%q} = %v, want %v", outcome, got, want)
		}
	}
	if got := testutil.ToFloat64(c.Reads); got != 2 {
		t.Errorf("slew_position_reads_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Azimuth); got != 20 {
		t.Errorf("slew_azimuth_degrees = %v, want 20", got)
	}
	if got := histogramSampleCount(t, reg, "slew_speed_deg_per_second", "AZ Full Speed Test"); got != 1 {
		t.Errorf("speed sample count = %d, want 1", got)
	}
	if got := histogramSampleCount(t, reg, "slew_distance_degrees", "AZ Full Speed Test"); got != 1 {
		t.Errorf("distance sample count = %d, want 1", got)
	}
}

func TestCollectorSkipsSpeedForZeroElapsed(t *testing.T) {
	c, reg := newCollector(t)
	c.Complete(slewtest.Result{Label: "Normal Slew"})
	if got := histogramSampleCount(t, reg, "slew_speed_deg_per_second", "Normal Slew"); got != 0 {
		t.Errorf("speed sample count = %d, want 0", got)
	}
	if got := histogramSampleCount(t, reg, "slew_distance_degrees", "Normal Slew"); got != 1 {
		t.Errorf("distance sample count = %d, want 1", got)
	}
}

func TestNewCollectorReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCollector(reg)
	if err != nil {
		t.Fatalf("second NewCollector: %v", err)
	}
	first.Timeout("x")
	if got := testutil.ToFloat64(second.Tests.WithLabelValues(OutcomeTimeout)); got != 1 {
		t.Errorf("shared counter = %v, want 1", got)
	}
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	c.Progress(1, 2)
	c.Complete(slewtest.Result{})
	c.Timeout("x")
	c.Error(errors.New("x"))
}

func TestHandler(t *testing.T) {
	c, _ := newCollector(t)
	c.Timeout("Normal Slew")

	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := rr.Body.String(); !strings.Contains(body, `slew_tests_total{outcome="timeout"} 1`) {
		t.Errorf("metrics output missing timeout counter:\n%s", body)
	}
}

func histogramSampleCount(t *testing.T, reg *prometheus.Registry, name, label string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_HISTOGRAM {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "label" && lp.GetValue() == label {
					return m.GetHistogram().GetSampleCount()
				}
			}
		}
	}
	return 0
}
