package recorder

import (
	"errors"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api/write"

	"github.com/w1xm/slew_interface/slewtest"
)

// PointWriter is satisfied by the influx api.WriteApi.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// Influx writes results as points in the "slew.result" measurement.
// Writes are asynchronous; delivery errors surface on the write API's
// error channel.
type Influx struct {
	w PointWriter
}

func NewInflux(w PointWriter) *Influx {
	return &Influx{w: w}
}

func (i *Influx) Record(r slewtest.Result) error {
	p := influxdb2.NewPoint("slew.result",
		map[string]string{"label": r.Label},
		map[string]interface{}{
			"distance_deg":      r.DistanceDeg,
			"separation_deg":    r.SeparationDeg,
			"elapsed_sec":       r.ElapsedSec,
			"speed_deg_per_sec": r.SpeedDegPerSec,
			"start_altitude":    r.Start.Altitude,
			"start_azimuth":     r.Start.Azimuth,
			"end_altitude":      r.End.Altitude,
			"end_azimuth":       r.End.Azimuth,
		},
		r.CompletedAt,
	)
	i.w.WritePoint(p)
	return nil
}

// Multi records to every recorder, returning all failures.
type Multi []slewtest.Recorder

func (m Multi) Record(r slewtest.Result) error {
	var errs []error
	for _, rec := range m {
		if err := rec.Record(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
