// Package fake implements a fake stepper drive that records what it was told to do.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/logging"
)

// Call is one recorded Pulse.
type Call struct {
	Direction  actuator.Direction
	Count      uint
	HalfPeriod time.Duration
}

// Stepper is a fake stepper drive.
type Stepper struct {
	Name   string
	Logger logging.Logger

	// PulseFunc, when set, is called before the pulse is recorded. An error
	// aborts the call without recording it.
	PulseFunc func(ctx context.Context, dir actuator.Direction, count uint) error

	mu       sync.Mutex
	calls    []Call
	position int64
	enabled  bool
	forward  uint64
	reverse  uint64
}

// NewStepper returns a fake stepper.
func NewStepper(name string, logger logging.Logger) *Stepper {
	return &Stepper{Name: name, Logger: logger}
}

// Pulse records the call and moves the logical position.
func (s *Stepper) Pulse(ctx context.Context, dir actuator.Direction, count uint, halfPeriod time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.PulseFunc != nil {
		if err := s.PulseFunc(ctx, dir, count); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Direction: dir, Count: count, HalfPeriod: halfPeriod})
	if dir == actuator.Forward {
		s.position += int64(count)
		s.forward += uint64(count)
	} else {
		s.position -= int64(count)
		s.reverse += uint64(count)
	}
	return nil
}

// Enable records the drive state.
func (s *Stepper) Enable(ctx context.Context, on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on
	if s.Logger != nil {
		s.Logger.Debugw("fake drive enable", "stepper", s.Name, "on", on)
	}
	return nil
}

// Enabled reports the last Enable value.
func (s *Stepper) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Position returns the net pulse count.
func (s *Stepper) Position() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Totals returns the forward and reverse pulses issued since the last Reset.
func (s *Stepper) Totals() (forward, reverse uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.forward, s.reverse
}

// Calls returns a copy of the recorded calls.
func (s *Stepper) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// Reset forgets recorded calls and totals; the position is kept.
func (s *Stepper) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
	s.forward = 0
	s.reverse = 0
}
