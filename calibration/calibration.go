// Package calibration supplies the per-stage load cell scale factors the rig
// runs with: interactively, from a file, or fixed.
package calibration

import (
	"context"

	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/stage"
)

// DefaultScaleFactor is used when no usable factor has been stored.
const DefaultScaleFactor = 1.0

// A Provider supplies the scale factor for a stage's load cell.
type Provider interface {
	ScaleFactor(ctx context.Context, s stage.Stage) (float64, error)
}

// Static is a Provider with fixed factors. Missing stages get DefaultScaleFactor.
type Static map[stage.Stage]float64

// ScaleFactor implements Provider.
func (s Static) ScaleFactor(ctx context.Context, st stage.Stage) (float64, error) {
	factor, ok := s[st]
	if !ok || factor == 0 {
		return DefaultScaleFactor, nil
	}
	return factor, forcesensor.ValidateScaleFactor(factor)
}
