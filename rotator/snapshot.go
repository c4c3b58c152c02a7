package rotator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/w1xm/slew_interface/angle"
)

// Status keys, as reported by the mount with or without the "mount." prefix.
const (
	KeyAltitude = "altitude_degs"
	KeyAzimuth  = "azimuth_degs"
	KeySlewing  = "is_slewing"
)

// ErrMalformedSnapshot is returned when a status payload lacks a usable
// position.
var ErrMalformedSnapshot = errors.New("malformed status snapshot")

// Snapshot is one observation of the mount. Azimuth is always normalized
// into [0, 360).
type Snapshot struct {
	Altitude   float64   `json:"altitude"`
	Azimuth    float64   `json:"azimuth"`
	Moving     bool      `json:"moving"`
	ObservedAt time.Time `json:"observed_at"`
}

func (s Snapshot) String() string {
	return fmt.Sprintf("alt=%.3f az=%.3f moving=%t", s.Altitude, s.Azimuth, s.Moving)
}

// Target is a commanded orientation. Tolerance applies to both axes.
type Target struct {
	Altitude  float64
	Azimuth   float64
	Tolerance float64
}

func (t Target) String() string {
	return fmt.Sprintf("alt=%.3f az=%.3f", t.Altitude, t.Azimuth)
}

func lookup(fields map[string]string, key string) (string, bool) {
	if v, ok := fields["mount."+key]; ok {
		return v, true
	}
	v, ok := fields[key]
	return v, ok
}

func parseField(fields map[string]string, key string) (float64, error) {
	raw, ok := lookup(fields, key)
	if !ok {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedSnapshot, key)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrMalformedSnapshot, key, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s is %v", ErrMalformedSnapshot, key, f)
	}
	return f, nil
}

// ParseSnapshot builds a Snapshot from a raw status payload. A missing or
// unreadable is_slewing is treated as moving.
func ParseSnapshot(fields map[string]string, observedAt time.Time) (Snapshot, error) {
	alt, err := parseField(fields, KeyAltitude)
	if err != nil {
		return Snapshot{}, err
	}
	az, err := parseField(fields, KeyAzimuth)
	if err != nil {
		return Snapshot{}, err
	}
	moving := true
	if raw, ok := lookup(fields, KeySlewing); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(raw)); err == nil {
			moving = b
		}
	}
	return Snapshot{
		Altitude:   alt,
		Azimuth:    angle.NormalizeAzimuth(az),
		Moving:     moving,
		ObservedAt: observedAt,
	}, nil
}

// ParseStatus splits a "key=value" per line status body.
func ParseStatus(body string) map[string]string {
	fields := make(map[string]string)
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		i := strings.Index(line, "=")
		if i < 0 {
			continue
		}
		fields[line[:i]] = line[i+1:]
	}
	return fields
}

// Poll fetches and parses one snapshot from m.
func Poll(ctx context.Context, m Mount) (Snapshot, error) {
	fields, err := m.Status(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if fields == nil {
		return Snapshot{}, &TransportError{Op: "status", Err: errors.New("empty response")}
	}
	return ParseSnapshot(fields, time.Now())
}
