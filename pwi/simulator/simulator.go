package simulator

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/w1xm/slew_interface/angle"
)

// Loosely inspired by https://github.com/rolandturner/ground-simulator/blob/master/Simulator.js

const (
	modeNone     = "NONE"
	modePosition = "POSITION"
)

type Config struct {
	// Maximum acceleration in degrees/second^2
	MaxAccel float64
	// Maximum velocity in degrees/second
	MaxVel float64
	// Slowest commanded velocity while still approaching a target
	MinVel float64
	// Commanded velocity per degree of remaining move
	Gain float64
	// Acceleration due to drag when not driving
	DragAccel float64
	// Discrete simulation step size
	StepSize time.Duration
}

var DefaultConfig = Config{
	MaxAccel:  30,
	MaxVel:    30,
	MinVel:    0.1,
	Gain:      2,
	DragAccel: 30,
	StepSize:  25 * time.Millisecond,
}

type axis struct {
	Pos, Vel float64
	Command  float64
	Mode     string
	circular bool
}

func (a *axis) error() float64 {
	if a.circular {
		return math.Remainder(a.Command-a.Pos, 360)
	}
	return a.Command - a.Pos
}

// posServo returns a target velocity for the remaining move
func posServo(move float64, c Config) float64 {
	delta := c.Gain * math.Abs(move)
	if delta > c.MaxVel {
		delta = c.MaxVel
	}
	if delta < c.MinVel {
		delta = c.MinVel
	}
	if move < 0 {
		delta = -delta
	}
	return delta
}

// velServo returns an actual velocity for the given current and target velocity
func velServo(s, t float64, c Config) float64 {
	maxDelta := c.MaxAccel * c.StepSize.Seconds()
	delta := math.Abs(t - s)
	if delta > maxDelta {
		delta = maxDelta
	}
	if t < s {
		delta = -delta
	}
	v := s + delta
	if v > c.MaxVel {
		return c.MaxVel
	} else if v < -c.MaxVel {
		return -c.MaxVel
	}
	return v
}

func drag(s float64, c Config) float64 {
	a := math.Abs(s)
	a -= c.DragAccel * c.StepSize.Seconds()
	if a < 0 {
		a = 0
	}
	if s < 0 {
		return -a
	}
	return a
}

func (a *axis) step(c Config) {
	dt := c.StepSize.Seconds()
	switch a.Mode {
	case modePosition:
		move := a.error()
		// Land on the target once it is reachable in one step and the
		// axis can stop within that step.
		if math.Abs(move) <= math.Max(math.Abs(a.Vel), c.MinVel)*dt && math.Abs(a.Vel) <= c.MaxAccel*dt {
			a.Pos, a.Vel, a.Mode = a.Command, 0, modeNone
			return
		}
		a.Vel = velServo(a.Vel, posServo(move, c), c)
	default:
		// Coasting
		a.Vel = drag(a.Vel, c)
	}
	a.Pos += a.Vel * dt
}

// Simulator is an alt/az mount speaking the PWI4 HTTP API.
type Simulator struct {
	config Config

	mu         sync.Mutex
	connected  bool
	enabled    bool
	alt, az    axis
	failStatus int
}

// New returns a simulator parked at alt 15, az 90.
func New(config Config) *Simulator {
	return &Simulator{
		config: config,
		alt:    axis{Pos: 15, Command: 15, Mode: modeNone},
		az:     axis{Pos: 90, Command: 90, Mode: modeNone, circular: true},
	}
}

// Run steps the simulation until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(s.config.StepSize)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		s.Step()
	}
}

// Step advances the simulation by one step.
func (s *Simulator) Step() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alt.step(s.config)
	s.az.step(s.config)

	s.az.Pos = angle.NormalizeAzimuth(s.az.Pos)
	if s.alt.Pos < 0 {
		s.alt.Pos, s.alt.Vel = 0, 0
	} else if s.alt.Pos > 90 {
		s.alt.Pos, s.alt.Vel = 90, 0
	}
}

// Position returns the current altitude and azimuth.
func (s *Simulator) Position() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alt.Pos, s.az.Pos
}

// SetPosition teleports the mount and cancels any move.
func (s *Simulator) SetPosition(alt, az float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alt = axis{Pos: alt, Command: alt, Mode: modeNone}
	s.az = axis{Pos: angle.NormalizeAzimuth(az), Command: angle.NormalizeAzimuth(az), Mode: modeNone, circular: true}
}

// FailStatus makes the next n status requests return an error.
func (s *Simulator) FailStatus(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStatus = n
}

func (s *Simulator) slewing() bool {
	return s.alt.Mode == modePosition || s.az.Mode == modePosition || s.alt.Vel != 0 || s.az.Vel != 0
}

// Goto commands a move.
func (s *Simulator) Goto(alt, az float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.enabled {
		return fmt.Errorf("mount not enabled")
	}
	if alt < 0 || alt > 90 {
		return fmt.Errorf("altitude %v out of range", alt)
	}
	s.alt.Command, s.alt.Mode = alt, modePosition
	s.az.Command, s.az.Mode = angle.NormalizeAzimuth(az), modePosition
	return nil
}

func (s *Simulator) status() string {
	var b strings.Builder
	fmt.Fprintf(&b, "response.timestamp_utc=%s\n", time.Now().UTC().Format("2006-01-02 15:04:05.000000"))
	fmt.Fprintf(&b, "mount.is_connected=%t\n", s.connected)
	fmt.Fprintf(&b, "mount.axis0.is_enabled=%t\n", s.enabled)
	fmt.Fprintf(&b, "mount.axis1.is_enabled=%t\n", s.enabled)
	fmt.Fprintf(&b, "mount.altitude_degs=%.6f\n", s.alt.Pos)
	fmt.Fprintf(&b, "mount.azimuth_degs=%.6f\n", s.az.Pos)
	fmt.Fprintf(&b, "mount.axis0.rms_error_arcsec=0\n")
	fmt.Fprintf(&b, "mount.is_slewing=%t\n", s.slewing())
	return b.String()
}

// Handler serves the mount HTTP API.
func (s *Simulator) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/mount/connect", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		s.connected = true
		body := s.status()
		s.mu.Unlock()
		fmt.Fprint(w, body)
	})
	r.HandleFunc("/mount/enable", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.connected {
			http.Error(w, "mount not connected", http.StatusConflict)
			return
		}
		s.enabled = true
		fmt.Fprint(w, s.status())
	})
	r.HandleFunc("/mount/goto_alt_az", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()
		alt, err := strconv.ParseFloat(q.Get("alt_degs"), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("alt_degs: %v", err), http.StatusBadRequest)
			return
		}
		az, err := strconv.ParseFloat(q.Get("az_degs"), 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("az_degs: %v", err), http.StatusBadRequest)
			return
		}
		if err := s.Goto(alt, az); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		log.Printf("sim: goto alt=%.3f az=%.3f", alt, az)
		s.mu.Lock()
		defer s.mu.Unlock()
		fmt.Fprint(w, s.status())
	})
	r.HandleFunc("/mount/stop", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.alt.Mode, s.az.Mode = modeNone, modeNone
		fmt.Fprint(w, s.status())
	})
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.failStatus > 0 {
			s.failStatus--
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, s.status())
	})
	return r
}
