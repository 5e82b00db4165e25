// Package fake implements force sensors for tests and simulation.
package fake

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/gdp03/footrig/components/forcesensor"
)

// Reading is one scripted Sample result. A NotReady reading makes Sample
// return forcesensor.ErrNotReady.
type Reading struct {
	Force    float64
	NotReady bool
	Err      error
}

// Scripted plays back a fixed list of readings, repeating the last one once
// the list is exhausted. Scale factors are recorded but do not change the
// returned forces.
type Scripted struct {
	// Clock and Advance, when set, move a mock clock forward on every Sample
	// so that time bounds can be exercised.
	Clock   *clock.Mock
	Advance time.Duration

	mu          sync.Mutex
	readings    []Reading
	next        int
	samples     int
	scaleFactor float64
	tared       int
}

// NewScripted returns a sensor that plays back readings in order.
func NewScripted(readings ...Reading) *Scripted {
	return &Scripted{readings: readings, scaleFactor: 1}
}

// Ramp returns readings that start at start and rise by step, crossing
// target on the reading with index crossAt.
func Ramp(target float64, crossAt int) []Reading {
	readings := make([]Reading, crossAt+1)
	for i := range readings {
		readings[i] = Reading{Force: target * float64(i+1) / float64(crossAt+1)}
	}
	readings[crossAt] = Reading{Force: target}
	return readings
}

// Sample returns the next scripted reading.
func (s *Scripted) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	var r Reading
	if len(s.readings) > 0 {
		idx := s.next
		if idx >= len(s.readings) {
			idx = len(s.readings) - 1
		} else {
			s.next++
		}
		r = s.readings[idx]
	}
	s.samples++
	s.mu.Unlock()

	if s.Clock != nil && s.Advance > 0 {
		s.Clock.Add(s.Advance)
	}
	if r.Err != nil {
		return 0, r.Err
	}
	if r.NotReady {
		return 0, forcesensor.ErrNotReady
	}
	return r.Force, nil
}

// Append adds readings to the end of the script.
func (s *Scripted) Append(readings ...Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
}

// Samples returns how many times Sample was called.
func (s *Scripted) Samples() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}

func (s *Scripted) SetScaleFactor(factor float64) error {
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaleFactor = factor
	return nil
}

func (s *Scripted) ScaleFactor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaleFactor
}
