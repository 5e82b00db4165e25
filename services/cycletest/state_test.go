package cycletest

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/gdp03/footrig/stage"
)

func TestParamsValidate(t *testing.T) {
	test.That(t, testParams().Validate(), test.ShouldBeNil)

	for _, tc := range []struct {
		name   string
		modify func(p *Params)
		errStr string
	}{
		{"zero cycles", func(p *Params) { p.MaxCycles = 0 }, "max cycles"},
		{"zero interval", func(p *Params) { p.RecalibrationInterval = 0 }, "recalibration interval"},
		{"zero bound", func(p *Params) { p.MaxSeekSteps = 0 }, "max seek steps"},
		{"zero pulses", func(p *Params) { p.PulsesPerStep = 0 }, "pulses per step"},
		{"no timing", func(p *Params) { p.FastHalfPeriod = 0 }, "half periods"},
		{"no stall timeout", func(p *Params) { p.SensorStallTimeout = 0 }, "stall timeout"},
		{"bad policy", func(p *Params) { p.FaultPolicy = "retry" }, "unknown fault policy"},
		{"no stages", func(p *Params) { p.Stages = nil }, "at least one stage"},
		{"duplicate stage", func(p *Params) { p.Stages = []stage.Stage{stage.Heel, stage.Heel} }, "more than once"},
		{"invalid stage", func(p *Params) { p.Stages = []stage.Stage{stage.Stage(4)} }, "invalid stage"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams()
			tc.modify(&p)
			err := p.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.errStr)
		})
	}
}

func TestCycleStateNeedsSeek(t *testing.T) {
	st := NewCycleState()
	test.That(t, st.needsSeek(stage.Heel), test.ShouldBeTrue)
	st.StepCount[stage.Heel] = 0
	test.That(t, st.needsSeek(stage.Heel), test.ShouldBeFalse)
	st.Pending[stage.Heel] = true
	test.That(t, st.needsSeek(stage.Heel), test.ShouldBeTrue)
}

func TestHaltReason(t *testing.T) {
	test.That(t, haltReason(nil), test.ShouldEqual, HaltCompleted)
	test.That(t, haltReason(errors.Wrap(context.Canceled, "cycle 3")), test.ShouldEqual, HaltAborted)
	test.That(t, haltReason(&SeekBoundError{Stage: stage.Heel, Steps: 10000}), test.ShouldEqual, HaltSeekBoundExceeded)
	test.That(t, haltReason(errors.Wrap(&SensorStallError{Err: errors.New("x")}, "cycle 1")), test.ShouldEqual, HaltSensorStalled)
	test.That(t, haltReason(errors.New("boom")), test.ShouldEqual, HaltFaulted)

	err := &SeekBoundError{Stage: stage.Forefoot, Steps: 12, TargetForce: 1.5, LastForce: 0.25}
	test.That(t, err.Error(), test.ShouldContainSubstring, "forefoot seek reached 12 steps at 0.25 N without reaching 1.5 N")
}
