// Package actuator defines the pulse/direction stepper drives that move the
// loading carriages.
package actuator

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gdp03/footrig/stage"
)

// Direction is the sense of carriage travel. Forward loads the specimen.
type Direction int

const (
	Forward Direction = iota
	Reverse
)

func (d Direction) String() string {
	if d == Reverse {
		return "reverse"
	}
	return "forward"
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Forward {
		return Reverse
	}
	return Forward
}

// A Driver issues step pulses on a stage's drive.
type Driver interface {
	// Pulse sets the direction line, then issues count symmetric pulses whose
	// high and low phases each last halfPeriod. Once started, all count pulses
	// are issued; ctx is only consulted before the first.
	Pulse(ctx context.Context, s stage.Stage, dir Direction, count uint, halfPeriod time.Duration) error
}

// A Stepper is a single pulse/direction drive.
type Stepper interface {
	Pulse(ctx context.Context, dir Direction, count uint, halfPeriod time.Duration) error
	// Enable energizes or releases the drive coils.
	Enable(ctx context.Context, on bool) error
	// Position is the net pulse count, forward positive, since construction.
	Position() int64
}

// Steppers routes Driver calls to the stepper of each stage.
type Steppers map[stage.Stage]Stepper

// Pulse implements Driver.
func (s Steppers) Pulse(ctx context.Context, st stage.Stage, dir Direction, count uint, halfPeriod time.Duration) error {
	stepper, ok := s[st]
	if !ok {
		return NewUnknownStageError(st)
	}
	return stepper.Pulse(ctx, dir, count, halfPeriod)
}

// Enable switches every stepper's drive on or off, attempting all of them.
func (s Steppers) Enable(ctx context.Context, on bool) error {
	var err error
	for _, st := range stage.All() {
		if stepper, ok := s[st]; ok {
			err = multierr.Combine(err, errors.Wrapf(stepper.Enable(ctx, on), "%s stepper", st))
		}
	}
	return err
}

// NewUnknownStageError is used when no drive is configured for a stage.
func NewUnknownStageError(s stage.Stage) error {
	return errors.Errorf("no stepper configured for stage %q", s)
}
