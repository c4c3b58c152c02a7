package slewtest

import (
	"time"

	"github.com/w1xm/slew_interface/angle"
	"github.com/w1xm/slew_interface/rotator"
)

// Result is a completed, settled test.
type Result struct {
	Label string           `json:"label"`
	Start rotator.Snapshot `json:"start"`
	End   rotator.Snapshot `json:"end"`
	// DistanceDeg is the planar combination of the altitude change and
	// the wrapped azimuth change.
	DistanceDeg float64 `json:"distance_deg"`
	// SeparationDeg is the on-sky angle between Start and End.
	SeparationDeg  float64   `json:"separation_deg"`
	ElapsedSec     float64   `json:"elapsed_sec"`
	SpeedDegPerSec float64   `json:"speed_deg_per_sec"`
	CompletedAt    time.Time `json:"completed_at"`
}

// NewResult computes distance and speed for a move from start to end that
// took elapsed.
func NewResult(label string, start, end rotator.Snapshot, elapsed time.Duration, completedAt time.Time) Result {
	altDelta := angle.AltitudeDelta(start.Altitude, end.Altitude)
	azDelta := angle.AzimuthDelta(start.Azimuth, end.Azimuth)
	r := Result{
		Label:         label,
		Start:         start,
		End:           end,
		DistanceDeg:   angle.Distance(altDelta, azDelta),
		SeparationDeg: angle.Separation(start.Altitude, start.Azimuth, end.Altitude, end.Azimuth),
		ElapsedSec:    elapsed.Seconds(),
		CompletedAt:   completedAt,
	}
	if r.ElapsedSec > 0 {
		r.SpeedDegPerSec = r.DistanceDeg / r.ElapsedSec
	}
	return r
}
