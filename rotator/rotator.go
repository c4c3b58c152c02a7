// Package rotator describes the two-axis mount collaborator and the
// position snapshots read back from it.
package rotator

import (
	"context"
	"fmt"
)

// Mount is the command/status API of an alt/az mount.
// GotoAltAz returns once the command is accepted; it does not wait for the
// mount to arrive.
type Mount interface {
	Connect(ctx context.Context) error
	Enable(ctx context.Context) error
	GotoAltAz(ctx context.Context, altitude, azimuth float64) error
	// Status returns the raw key/value status of the mount.
	Status(ctx context.Context) (map[string]string, error)
}

// Stopper is implemented by mounts that can abort a move in progress.
type Stopper interface {
	Stop(ctx context.Context) error
}

// StatusCallback receives every snapshot read from a mount.
type StatusCallback func(s Snapshot)

// TransportError reports a device call that did not reach the mount.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
