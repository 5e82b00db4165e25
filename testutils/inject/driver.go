package inject

import (
	"context"
	"time"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/stage"
)

// Driver is an injected step driver.
type Driver struct {
	actuator.Driver
	PulseFunc func(ctx context.Context, s stage.Stage, dir actuator.Direction, count uint, halfPeriod time.Duration) error
}

// NewDriver returns an injected driver that falls back to base.
func NewDriver(base actuator.Driver) *Driver {
	return &Driver{Driver: base}
}

// Pulse calls the injected Pulse or the real version.
func (d *Driver) Pulse(ctx context.Context, s stage.Stage, dir actuator.Direction, count uint, halfPeriod time.Duration) error {
	if d.PulseFunc == nil {
		return d.Driver.Pulse(ctx, s, dir, count, halfPeriod)
	}
	return d.PulseFunc(ctx, s, dir, count, halfPeriod)
}
