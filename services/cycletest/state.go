package cycletest

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/gdp03/footrig/stage"
)

// FaultPolicy decides what a failed stage does to the rest of the run.
type FaultPolicy string

const (
	// FaultHalt abandons the cycle and ends the run.
	FaultHalt FaultPolicy = "halt"
	// FaultSkipStage abandons the stage for this cycle, marks it for a fresh
	// seek, and carries on.
	FaultSkipStage FaultPolicy = "skip_stage"
)

// Params are the test parameters of a run.
type Params struct {
	TargetForce           float64
	MaxCycles             int
	RecalibrationInterval int
	// MaxSeekSteps bounds the increments of one seek.
	MaxSeekSteps int
	// PulsesPerStep is the pulses in one increment: full steps per increment
	// times the microstep multiplier.
	PulsesPerStep  uint
	FastHalfPeriod time.Duration
	SlowHalfPeriod time.Duration
	// Dwell is the pause at the loaded position before returning.
	Dwell time.Duration
	// SensorStallTimeout bounds the wait for one load cell sample.
	SensorStallTimeout time.Duration
	// SensorPollInterval is waited between not-ready polls. Zero re-polls at once.
	SensorPollInterval time.Duration
	FaultPolicy        FaultPolicy
	// Stages lists the stages driven each cycle, in order.
	Stages []stage.Stage
}

// Validate checks the parameters describe a runnable test.
func (p Params) Validate() error {
	switch {
	case !(p.TargetForce > 0):
		return errors.Errorf("target force must be positive, got %v", p.TargetForce)
	case p.MaxCycles < 1:
		return errors.Errorf("max cycles must be at least 1, got %d", p.MaxCycles)
	case p.RecalibrationInterval < 1:
		return errors.Errorf("recalibration interval must be at least 1, got %d", p.RecalibrationInterval)
	case p.MaxSeekSteps < 1:
		return errors.Errorf("max seek steps must be at least 1, got %d", p.MaxSeekSteps)
	case p.PulsesPerStep < 1:
		return errors.New("pulses per step must be at least 1")
	case p.FastHalfPeriod <= 0 || p.SlowHalfPeriod <= 0:
		return errors.New("pulse half periods must be positive")
	case p.Dwell < 0 || p.SensorPollInterval < 0:
		return errors.New("dwell and poll interval cannot be negative")
	case p.SensorStallTimeout <= 0:
		return errors.New("sensor stall timeout must be positive")
	case p.FaultPolicy != FaultHalt && p.FaultPolicy != FaultSkipStage:
		return errors.Errorf("unknown fault policy %q", p.FaultPolicy)
	case len(p.Stages) == 0:
		return errors.New("at least one stage must be enabled")
	}
	if dup := lo.FindDuplicates(p.Stages); len(dup) > 0 {
		return errors.Errorf("stage %s listed more than once", dup[0])
	}
	for _, s := range p.Stages {
		if !s.Valid() {
			return errors.Errorf("invalid stage %d", int(s))
		}
	}
	return nil
}

// RecalibrationDue reports whether the 1-based cycle re-derives its step counts.
func RecalibrationDue(cycle, interval int) bool {
	return cycle == 1 || (interval > 0 && cycle%interval == 0)
}

// CycleState is the memory of one run.
type CycleState struct {
	// Cycle is the number of completed cycles.
	Cycle int
	// StepCount is the memoized increments to target force per stage.
	StepCount map[stage.Stage]int
	// Pending marks stages whose count must be re-derived by the next cycle.
	Pending map[stage.Stage]bool
	// Skipped counts stage faults absorbed under FaultSkipStage.
	Skipped int
	// Recalibrated lists the stages that re-derived their count in the cycle
	// most recently run.
	Recalibrated []stage.Stage
}

// NewCycleState returns the state of a run that has not started.
func NewCycleState() *CycleState {
	return &CycleState{StepCount: map[stage.Stage]int{}, Pending: map[stage.Stage]bool{}}
}

// needsSeek reports whether s has no usable memoized count.
func (st *CycleState) needsSeek(s stage.Stage) bool {
	_, ok := st.StepCount[s]
	return !ok || st.Pending[s]
}

// HaltReason says why a run stopped.
type HaltReason string

const (
	HaltCompleted         HaltReason = "completed"
	HaltAborted           HaltReason = "aborted"
	HaltSeekBoundExceeded HaltReason = "seek exceeded bound"
	HaltSensorStalled     HaltReason = "sensor stalled"
	HaltFaulted           HaltReason = "faulted"
)

// Result is the terminal state of a run.
type Result struct {
	Reason HaltReason
	// Cycles is the number of completed cycles.
	Cycles    int
	StepCount map[stage.Stage]int
	// SkippedStages counts stage faults absorbed by FaultSkipStage.
	SkippedStages int
	Err           error
}

// haltReason classifies the error that ended a run.
func haltReason(err error) HaltReason {
	switch {
	case err == nil:
		return HaltCompleted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return HaltAborted
	case errors.Is(err, ErrSeekExceededBound):
		return HaltSeekBoundExceeded
	case errors.Is(err, ErrSensorStall):
		return HaltSensorStalled
	default:
		return HaltFaulted
	}
}
