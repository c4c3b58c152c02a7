package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/w1xm/slew_interface/angle"
	"github.com/w1xm/slew_interface/rotator"
)

// Telemetry CSV columns.
const (
	ColumnTime     = "utc_time"
	ColumnAltitude = "tele_alt_degs"
	ColumnAzimuth  = "tele_azm_degs"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"01/02/2006 15:04:05.999999999",
}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func cleanHeader(h string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.TrimSpace(h), "#", ""))
}

// ReadTelemetry reads a mount telemetry CSV. Rows with an unparseable time
// or position are dropped. The result is sorted by time. Telemetry carries
// no motion flag, so every sample is marked moving.
func ReadTelemetry(r io.Reader) ([]rotator.Snapshot, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[cleanHeader(h)] = i
	}
	for _, name := range []string{ColumnTime, ColumnAltitude, ColumnAzimuth} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var samples []rotator.Snapshot
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		s, ok := parseRow(rec, cols)
		if !ok {
			continue
		}
		samples = append(samples, s)
	}
	sort.SliceStable(samples, func(i, j int) bool {
		return samples[i].ObservedAt.Before(samples[j].ObservedAt)
	})
	return samples, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func parseRow(rec []string, cols map[string]int) (rotator.Snapshot, bool) {
	field := func(name string) string {
		i := cols[name]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}
	t, err := parseTime(field(ColumnTime))
	if err != nil {
		return rotator.Snapshot{}, false
	}
	alt, err := strconv.ParseFloat(field(ColumnAltitude), 64)
	if err != nil {
		return rotator.Snapshot{}, false
	}
	az, err := strconv.ParseFloat(field(ColumnAzimuth), 64)
	if err != nil {
		return rotator.Snapshot{}, false
	}
	if !finite(alt) || !finite(az) {
		return rotator.Snapshot{}, false
	}
	return rotator.Snapshot{
		Altitude:   alt,
		Azimuth:    angle.NormalizeAzimuth(az),
		Moving:     true,
		ObservedAt: t,
	}, true
}
