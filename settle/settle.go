// Package settle decides when a mount has arrived at a commanded target.
package settle

import (
	"context"
	"log"
	"time"

	"github.com/w1xm/slew_interface/angle"
	"github.com/w1xm/slew_interface/rotator"
)

type State int

const (
	Polling State = iota
	Arrived
	TimedOut
	Canceled
)

func (s State) String() string {
	switch s {
	case Polling:
		return "polling"
	case Arrived:
		return "arrived"
	case TimedOut:
		return "timed_out"
	case Canceled:
		return "canceled"
	}
	return "unknown"
}

// Poller returns the mount's current snapshot.
type Poller interface {
	Poll(ctx context.Context) (rotator.Snapshot, error)
}

type PollerFunc func(ctx context.Context) (rotator.Snapshot, error)

func (f PollerFunc) Poll(ctx context.Context) (rotator.Snapshot, error) {
	return f(ctx)
}

// MountPoller polls m's status.
func MountPoller(m rotator.Mount) Poller {
	return PollerFunc(func(ctx context.Context) (rotator.Snapshot, error) {
		return rotator.Poll(ctx, m)
	})
}

type Config struct {
	// Timeout bounds how long Wait polls before giving up.
	Timeout time.Duration
	// Interval is the pause between polls.
	Interval time.Duration
}

// Result is the terminal state of a Wait or Capture.
type Result struct {
	State State
	// Last is the most recent valid snapshot, zero if none was read.
	Last     rotator.Snapshot
	Polls    int
	Failures int
}

type Detector struct {
	config         Config
	poller         Poller
	statusCallback rotator.StatusCallback
}

// New returns a Detector. statusCallback, if non-nil, sees every valid snapshot.
func New(poller Poller, config Config, statusCallback rotator.StatusCallback) *Detector {
	return &Detector{config: config, poller: poller, statusCallback: statusCallback}
}

// Settled reports whether s is at rest within tolerance of target on both axes.
func Settled(s rotator.Snapshot, target rotator.Target) bool {
	azDelta := angle.AzimuthDelta(s.Azimuth, target.Azimuth)
	altDelta := angle.AltitudeDelta(s.Altitude, target.Altitude)
	if altDelta < 0 {
		altDelta = -altDelta
	}
	return !s.Moving && azDelta <= target.Tolerance && altDelta <= target.Tolerance
}

// Wait polls until the mount settles on target, the timeout passes or ctx
// is canceled. Failed polls are skipped.
func (d *Detector) Wait(ctx context.Context, target rotator.Target) Result {
	r := d.until(ctx, func(s rotator.Snapshot) bool {
		return Settled(s, target)
	})
	if r.State == TimedOut {
		log.Printf("no settle on %v after %v, last %v", target, d.config.Timeout, r.Last)
	}
	return r
}

// Capture returns the first valid snapshot, polling through failures until
// the timeout.
func (d *Detector) Capture(ctx context.Context) Result {
	return d.until(ctx, func(rotator.Snapshot) bool { return true })
}

func (d *Detector) until(ctx context.Context, done func(rotator.Snapshot) bool) Result {
	deadline := time.Now().Add(d.config.Timeout)
	var r Result
	for {
		s, err := d.poller.Poll(ctx)
		r.Polls++
		if ctx.Err() != nil {
			r.State = Canceled
			return r
		}
		if time.Now().After(deadline) {
			r.State = TimedOut
			return r
		}
		if err != nil {
			if r.Failures == 0 {
				log.Printf("polling status: %v", err)
			}
			r.Failures++
		} else {
			r.Last = s
			if d.statusCallback != nil {
				d.statusCallback(s)
			}
			if done(s) {
				r.State = Arrived
				return r
			}
		}
		select {
		case <-ctx.Done():
			r.State = Canceled
			return r
		case <-time.After(d.config.Interval):
		}
	}
}
