package slewtest

import (
	"fmt"
	"strings"
)

// Position is an alt/az orientation in degrees.
type Position struct {
	Altitude float64 `json:"altitude"`
	Azimuth  float64 `json:"azimuth"`
}

func (p Position) String() string {
	return fmt.Sprintf("alt=%.3f az=%.3f", p.Altitude, p.Azimuth)
}

// Plan describes one test. When Staging is set the mount is first driven
// there and only the leg from Staging to Target is measured.
type Plan struct {
	Label   string
	Staging *Position
	Target  Position
}

// NormalSlew measures a single move from wherever the mount is to target.
func NormalSlew(altitude, azimuth float64) Plan {
	return Plan{Label: "Normal Slew", Target: Position{altitude, azimuth}}
}

var (
	AzimuthFullSpeed = Plan{
		Label:   "AZ Full Speed Test",
		Staging: &Position{45, 0},
		Target:  Position{45, 179},
	}
	AltitudeFullSpeed = Plan{
		Label:   "ALT Full Speed Test",
		Staging: &Position{10, 90},
		Target:  Position{80, 90},
	}
	DiagonalFullSpeed = Plan{
		Label:   "Diagonal Full Speed Test",
		Staging: &Position{20, 10},
		Target:  Position{80, 179},
	}
)

// Lookup returns the predefined plan with the given short name.
func Lookup(name string) (Plan, bool) {
	switch strings.ToLower(name) {
	case "az", "azimuth":
		return AzimuthFullSpeed, true
	case "alt", "altitude":
		return AltitudeFullSpeed, true
	case "diagonal", "diag":
		return DiagonalFullSpeed, true
	}
	return Plan{}, false
}
