package cycletest

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/gdp03/footrig/stage"
)

var (
	// ErrSeekExceededBound is wrapped by SeekBoundError.
	ErrSeekExceededBound = errors.New("seek exceeded bound")
	// ErrSensorStall is wrapped by SensorStallError.
	ErrSensorStall = errors.New("force sensor stalled")
)

// SeekBoundError reports a seek that took the maximum number of increments
// without reaching the target force.
type SeekBoundError struct {
	Stage       stage.Stage
	Steps       int
	TargetForce float64
	LastForce   float64
}

func (e *SeekBoundError) Error() string {
	return fmt.Sprintf("%s: %s seek reached %d steps at %.3g N without reaching %.3g N",
		ErrSeekExceededBound, e.Stage, e.Steps, e.LastForce, e.TargetForce)
}

// Unwrap returns ErrSeekExceededBound.
func (e *SeekBoundError) Unwrap() error {
	return ErrSeekExceededBound
}

// SensorStallError reports a load cell that produced no sample within the
// stall timeout.
type SensorStallError struct {
	Stage   stage.Stage
	Timeout time.Duration
	Err     error
}

func (e *SensorStallError) Error() string {
	return fmt.Sprintf("%s: %s load cell gave no sample within %s: %v", ErrSensorStall, e.Stage, e.Timeout, e.Err)
}

// Is matches ErrSensorStall.
func (e *SensorStallError) Is(target error) bool {
	return target == ErrSensorStall
}

// Unwrap returns the underlying poll error.
func (e *SensorStallError) Unwrap() error {
	return e.Err
}
