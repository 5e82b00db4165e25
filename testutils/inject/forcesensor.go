// Package inject provides components whose methods can be replaced per test.
package inject

import (
	"context"

	"github.com/gdp03/footrig/components/forcesensor"
)

// ForceSensor is an injected load cell.
type ForceSensor struct {
	forcesensor.Calibrator
	SampleFunc         func(ctx context.Context) (float64, error)
	SetScaleFactorFunc func(factor float64) error
	ScaleFactorFunc    func() float64
	TareFunc           func(ctx context.Context) error
	RawAverageFunc     func(ctx context.Context) (float64, error)
}

// NewForceSensor returns an injected sensor that falls back to base.
// base may be nil if every method used is injected.
func NewForceSensor(base forcesensor.Calibrator) *ForceSensor {
	return &ForceSensor{Calibrator: base}
}

// Sample calls the injected Sample or the real version.
func (s *ForceSensor) Sample(ctx context.Context) (float64, error) {
	if s.SampleFunc == nil {
		return s.Calibrator.Sample(ctx)
	}
	return s.SampleFunc(ctx)
}

// SetScaleFactor calls the injected SetScaleFactor or the real version.
func (s *ForceSensor) SetScaleFactor(factor float64) error {
	if s.SetScaleFactorFunc == nil {
		return s.Calibrator.SetScaleFactor(factor)
	}
	return s.SetScaleFactorFunc(factor)
}

// ScaleFactor calls the injected ScaleFactor or the real version.
func (s *ForceSensor) ScaleFactor() float64 {
	if s.ScaleFactorFunc == nil {
		return s.Calibrator.ScaleFactor()
	}
	return s.ScaleFactorFunc()
}

// Tare calls the injected Tare or the real version.
func (s *ForceSensor) Tare(ctx context.Context) error {
	if s.TareFunc == nil {
		return s.Calibrator.Tare(ctx)
	}
	return s.TareFunc(ctx)
}

// RawAverage calls the injected RawAverage or the real version.
func (s *ForceSensor) RawAverage(ctx context.Context) (float64, error) {
	if s.RawAverageFunc == nil {
		return s.Calibrator.RawAverage(ctx)
	}
	return s.RawAverageFunc(ctx)
}
