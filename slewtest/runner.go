// Package slewtest drives a mount through timed slews and measures their
// distance and average speed.
package slewtest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/w1xm/slew_interface/rotator"
	"github.com/w1xm/slew_interface/settle"
)

var (
	// ErrTimeout is returned when the mount does not settle in time.
	ErrTimeout = errors.New("timed out waiting for mount to settle")
	// ErrBusy is returned when a test is already running.
	ErrBusy = errors.New("slew test already running")
)

// CommandError reports a move command that could not be issued.
type CommandError struct {
	Target Position
	Err    error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("commanding move to %v: %v", e.Target, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// RecordError reports a result that was computed but could not be recorded.
type RecordError struct {
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("recording result: %v", e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// Recorder durably stores completed results.
type Recorder interface {
	Record(r Result) error
}

type Config struct {
	Settle settle.Config
	// Tolerance in degrees, applied to both axes.
	Tolerance float64
	// InitDelay is the pause after connect and after enable.
	InitDelay time.Duration
	// StrictInit aborts a test when connect or enable fails. Otherwise
	// failures are logged and the test proceeds.
	StrictInit bool
}

var tracer = otel.Tracer("github.com/w1xm/slew_interface/slewtest")

// Runner runs at most one test at a time against a mount.
type Runner struct {
	mount    rotator.Mount
	config   Config
	recorder Recorder
	observer Observer
	running  atomic.Bool
}

// New returns a Runner. recorder and observer may be nil.
func New(mount rotator.Mount, config Config, recorder Recorder, observer Observer) *Runner {
	if observer == nil {
		observer = NopObserver{}
	}
	return &Runner{mount: mount, config: config, recorder: recorder, observer: observer}
}

// Running reports whether a test is in flight.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Run executes plan and blocks until it completes. A *RecordError is
// returned together with a valid Result.
func (r *Runner) Run(ctx context.Context, plan Plan) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	result, err := r.run(ctx, plan)
	r.notify(plan, result, err)
	return result, err
}

// Start executes plan in the background, reporting through the observer.
// The returned func cancels the test.
func (r *Runner) Start(ctx context.Context, plan Plan) (context.CancelFunc, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		defer cancel()
		result, err := r.run(ctx, plan)
		r.notify(plan, result, err)
		if err != nil {
			log.Printf("%s: %v", plan.Label, err)
		}
	}()
	return cancel, nil
}

// run measures plan. The in-flight guard is released before it returns.
func (r *Runner) run(ctx context.Context, plan Plan) (Result, error) {
	defer r.running.Store(false)
	ctx, span := tracer.Start(ctx, "slewtest.Run", trace.WithAttributes(
		attribute.String("slew.label", plan.Label),
		attribute.Float64("slew.target.altitude", plan.Target.Altitude),
		attribute.Float64("slew.target.azimuth", plan.Target.Azimuth),
	))
	defer span.End()

	result, err := r.measure(ctx, plan)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	var recErr *RecordError
	if err == nil || errors.As(err, &recErr) {
		span.SetAttributes(
			attribute.Float64("slew.distance_deg", result.DistanceDeg),
			attribute.Float64("slew.elapsed_sec", result.ElapsedSec),
			attribute.Float64("slew.speed_deg_per_sec", result.SpeedDegPerSec),
		)
	}
	return result, err
}

func (r *Runner) notify(plan Plan, result Result, err error) {
	var recErr *RecordError
	switch {
	case err == nil:
		r.observer.Complete(result)
	case errors.As(err, &recErr):
		r.observer.Error(err)
		r.observer.Complete(result)
	case errors.Is(err, ErrTimeout):
		r.observer.Timeout(plan.Label)
	default:
		r.observer.Error(err)
	}
}

func (r *Runner) measure(ctx context.Context, plan Plan) (Result, error) {
	if err := r.initialize(ctx); err != nil {
		return Result{}, err
	}
	det := settle.New(settle.MountPoller(r.mount), r.config.Settle, func(s rotator.Snapshot) {
		r.observer.Progress(s.Altitude, s.Azimuth)
	})

	var start rotator.Snapshot
	if plan.Staging != nil {
		s, err := r.leg(ctx, det, *plan.Staging)
		if err != nil {
			return Result{}, fmt.Errorf("staging: %w", err)
		}
		start = s
	} else {
		c := det.Capture(ctx)
		if err := r.stateErr(c.State); err != nil {
			return Result{}, fmt.Errorf("reading start position: %w", err)
		}
		start = c.Last
	}

	t0 := time.Now()
	end, err := r.leg(ctx, det, plan.Target)
	if err != nil {
		return Result{}, err
	}
	result := NewResult(plan.Label, start, end, end.ObservedAt.Sub(t0), time.Now())
	log.Printf("%s: distance %.4f deg in %.4f sec, %.4f deg/sec", plan.Label, result.DistanceDeg, result.ElapsedSec, result.SpeedDegPerSec)

	if r.recorder != nil {
		if err := r.recorder.Record(result); err != nil {
			log.Printf("%s: recording result: %v", plan.Label, err)
			return result, &RecordError{Err: err}
		}
	}
	return result, nil
}

// leg commands a move to p and waits for the mount to settle there.
func (r *Runner) leg(ctx context.Context, det *settle.Detector, p Position) (rotator.Snapshot, error) {
	if err := r.mount.GotoAltAz(ctx, p.Altitude, p.Azimuth); err != nil {
		// The command may have reached the mount before the cancel.
		if ctx.Err() != nil {
			r.stop()
		}
		return rotator.Snapshot{}, &CommandError{Target: p, Err: err}
	}
	res := det.Wait(ctx, rotator.Target{Altitude: p.Altitude, Azimuth: p.Azimuth, Tolerance: r.config.Tolerance})
	if err := r.stateErr(res.State); err != nil {
		if res.State == settle.Canceled {
			r.stop()
		}
		return res.Last, err
	}
	return res.Last, nil
}

func (r *Runner) stateErr(s settle.State) error {
	switch s {
	case settle.Arrived:
		return nil
	case settle.TimedOut:
		return ErrTimeout
	case settle.Canceled:
		return context.Canceled
	}
	return fmt.Errorf("unexpected settle state %v", s)
}

func (r *Runner) stop() {
	stopper, ok := r.mount.(rotator.Stopper)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := stopper.Stop(ctx); err != nil {
		log.Printf("stopping mount: %v", err)
	}
}

func (r *Runner) initialize(ctx context.Context) error {
	for _, step := range []struct {
		name string
		fn   func(context.Context) error
	}{
		{"connect", r.mount.Connect},
		{"enable", r.mount.Enable},
	} {
		if err := step.fn(ctx); err != nil {
			if r.config.StrictInit {
				return fmt.Errorf("%s: %w", step.name, err)
			}
			log.Printf("%s: %v; continuing", step.name, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.InitDelay):
		}
	}
	return nil
}
