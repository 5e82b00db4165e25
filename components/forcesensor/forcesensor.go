// Package forcesensor defines load-cell force sensors.
package forcesensor

import (
	"context"
	"math"

	"github.com/pkg/errors"
)

// StandardGravity converts a reading in kilograms to newtons.
const StandardGravity = 9.81

// ErrNotReady is returned by Sample when the amplifier has no new conversion.
// Callers are expected to poll again.
var ErrNotReady = errors.New("force sensor has no new sample ready")

// A Sensor reports the force on one load cell in newtons.
type Sensor interface {
	// Sample returns the latest force without blocking, or ErrNotReady.
	Sample(ctx context.Context) (float64, error)
	// SetScaleFactor sets the raw counts per gram.
	SetScaleFactor(factor float64) error
	ScaleFactor() float64
}

// A Calibrator is a Sensor that can also be zeroed and read raw, which is what
// deriving a scale factor from a known mass needs.
type Calibrator interface {
	Sensor
	// Tare averages the unloaded cell and stores it as the zero offset.
	Tare(ctx context.Context) error
	// RawAverage returns the averaged raw value minus the zero offset.
	RawAverage(ctx context.Context) (float64, error)
}

// GramsToNewtons converts a mass reading to the magnitude of its weight.
func GramsToNewtons(grams float64) float64 {
	return math.Abs(grams) / 1000 * StandardGravity
}

// ValidateScaleFactor rejects factors that cannot be divided by.
func ValidateScaleFactor(factor float64) error {
	if factor == 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return errors.Errorf("invalid scale factor %v", factor)
	}
	return nil
}
