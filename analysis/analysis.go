// Package analysis derives slew metrics from recorded position samples.
package analysis

import (
	"errors"
	"math"
	"time"

	"github.com/w1xm/slew_interface/angle"
	"github.com/w1xm/slew_interface/rotator"
)

// ErrNoSamples is returned when a window holds no samples.
var ErrNoSamples = errors.New("no samples in window")

type Axis int

const (
	Altitude Axis = iota
	Azimuth
)

func (a Axis) String() string {
	if a == Azimuth {
		return "azimuth"
	}
	return "altitude"
}

// Rate is a speed in degrees/second that may be undefined.
type Rate struct {
	Value float64
	Valid bool
}

// Report summarizes one window of samples.
type Report struct {
	Start, End rotator.Snapshot
	Elapsed    time.Duration
	// AltitudeMoved is signed; AzimuthMoved is the unsigned wrapped delta.
	AltitudeMoved float64
	AzimuthMoved  float64
	Distance      float64
	// AverageSpeed is Distance over Elapsed, 0 when Elapsed is not positive.
	AverageSpeed         float64
	AverageAltitudeSpeed float64
	AverageAzimuthSpeed  float64
	MaxAltitudeSpeed     Rate
	MaxAzimuthSpeed      Rate
}

// Window returns the samples observed in [start, end], in input order.
// samples is not modified.
func Window(samples []rotator.Snapshot, start, end time.Time) []rotator.Snapshot {
	var out []rotator.Snapshot
	for _, s := range samples {
		if s.ObservedAt.Before(start) || s.ObservedAt.After(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func delta(axis Axis, a, b rotator.Snapshot) float64 {
	if axis == Azimuth {
		return angle.AzimuthDelta(a.Azimuth, b.Azimuth)
	}
	return math.Abs(angle.AltitudeDelta(a.Altitude, b.Altitude))
}

// MaxAxisSpeed returns the largest sample-to-sample rate on axis. Pairs
// whose timestamps do not increase are skipped; the result is invalid when
// no pair remains.
func MaxAxisSpeed(samples []rotator.Snapshot, axis Axis) Rate {
	var r Rate
	for i := 1; i < len(samples); i++ {
		dt := samples[i].ObservedAt.Sub(samples[i-1].ObservedAt).Seconds()
		if dt <= 0 {
			continue
		}
		v := delta(axis, samples[i-1], samples[i]) / dt
		if !r.Valid || v > r.Value {
			r = Rate{Value: v, Valid: true}
		}
	}
	return r
}

// Analyze computes endpoint and peak metrics for samples, which must be
// sorted by ObservedAt.
func Analyze(samples []rotator.Snapshot) (Report, error) {
	if len(samples) == 0 {
		return Report{}, ErrNoSamples
	}
	first, last := samples[0], samples[len(samples)-1]
	r := Report{
		Start:            first,
		End:              last,
		Elapsed:          last.ObservedAt.Sub(first.ObservedAt),
		AltitudeMoved:    angle.AltitudeDelta(first.Altitude, last.Altitude),
		AzimuthMoved:     angle.AzimuthDelta(first.Azimuth, last.Azimuth),
		MaxAltitudeSpeed: MaxAxisSpeed(samples, Altitude),
		MaxAzimuthSpeed:  MaxAxisSpeed(samples, Azimuth),
	}
	r.Distance = angle.Distance(r.AltitudeMoved, r.AzimuthMoved)
	if secs := r.Elapsed.Seconds(); secs > 0 {
		r.AverageSpeed = r.Distance / secs
		r.AverageAltitudeSpeed = r.AltitudeMoved / secs
		r.AverageAzimuthSpeed = r.AzimuthMoved / secs
	}
	return r, nil
}
