// Package realclock implements ports.Clock on the system clock.
package realclock

import (
	"context"
	"time"

	"github.com/user/vidplay/pkg/ports"
)

// Clock reads time from the operating system.
type Clock struct{}

// New creates a system clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time.
func (Clock) Now() time.Time {
	return time.Now()
}

// Sleep waits for d or until ctx is done.
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Clock implements ports.Clock.
var _ ports.Clock = Clock{}
