package fake

import (
	"context"
	"sync"

	"github.com/gdp03/footrig/components/forcesensor"
)

// A PositionSource reports carriage travel in pulses.
type PositionSource interface {
	Position() int64
}

// SpringConfig shapes a simulated specimen.
type SpringConfig struct {
	// ContactPulses is the travel before the carriage touches the specimen.
	ContactPulses int64
	// GramsPerPulse is the specimen stiffness once in contact.
	GramsPerPulse float64
	// CountsPerGram is the simulated amplifier gain; the scale factor a
	// correct calibration arrives at. Zero means 1.
	CountsPerGram float64
	// TareCounts is the raw reading with no load.
	TareCounts float64
}

// Spring is a linear specimen in front of a carriage. Its raw reading follows
// the carriage position, so it can be calibrated like a real amplifier.
type Spring struct {
	source PositionSource
	conf   SpringConfig

	mu          sync.Mutex
	scaleFactor float64
	zeroOffset  float64
}

// NewSpring returns a simulated load cell pressed by source.
func NewSpring(source PositionSource, conf SpringConfig) *Spring {
	if conf.CountsPerGram == 0 {
		conf.CountsPerGram = 1
	}
	return &Spring{source: source, conf: conf, scaleFactor: 1}
}

func (s *Spring) raw() float64 {
	grams := 0.0
	if over := s.source.Position() - s.conf.ContactPulses; over > 0 {
		grams = float64(over) * s.conf.GramsPerPulse
	}
	return s.conf.TareCounts + grams*s.conf.CountsPerGram
}

// Sample is always ready.
func (s *Spring) Sample(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return forcesensor.GramsToNewtons((s.raw() - s.zeroOffset) / s.scaleFactor), nil
}

func (s *Spring) SetScaleFactor(factor float64) error {
	if err := forcesensor.ValidateScaleFactor(factor); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scaleFactor = factor
	return nil
}

func (s *Spring) ScaleFactor() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scaleFactor
}

func (s *Spring) Tare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroOffset = s.raw()
	return nil
}

func (s *Spring) RawAverage(ctx context.Context) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.raw() - s.zeroOffset, nil
}
