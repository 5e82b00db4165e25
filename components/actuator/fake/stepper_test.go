package fake

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/stage"
)

func TestFakeStepper(t *testing.T) {
	ctx := context.Background()
	s := NewStepper("forefoot", logging.NewTestLogger(t))

	test.That(t, s.Pulse(ctx, actuator.Forward, 7, time.Microsecond), test.ShouldBeNil)
	test.That(t, s.Pulse(ctx, actuator.Reverse, 3, time.Microsecond), test.ShouldBeNil)
	test.That(t, s.Position(), test.ShouldEqual, int64(4))
	fwd, rev := s.Totals()
	test.That(t, fwd, test.ShouldEqual, uint64(7))
	test.That(t, rev, test.ShouldEqual, uint64(3))
	test.That(t, s.Calls(), test.ShouldResemble, []Call{
		{Direction: actuator.Forward, Count: 7, HalfPeriod: time.Microsecond},
		{Direction: actuator.Reverse, Count: 3, HalfPeriod: time.Microsecond},
	})

	s.Reset()
	test.That(t, s.Calls(), test.ShouldBeEmpty)
	test.That(t, s.Position(), test.ShouldEqual, int64(4))

	s.PulseFunc = func(context.Context, actuator.Direction, uint) error { return errors.New("stalled") }
	test.That(t, s.Pulse(ctx, actuator.Forward, 1, time.Microsecond), test.ShouldNotBeNil)
	test.That(t, s.Position(), test.ShouldEqual, int64(4))
}

func TestSteppersDispatch(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	fore := NewStepper("forefoot", logger)
	heel := NewStepper("heel", logger)
	steppers := actuator.Steppers{stage.Forefoot: fore, stage.Heel: heel}

	test.That(t, steppers.Pulse(ctx, stage.Heel, actuator.Forward, 2, time.Microsecond), test.ShouldBeNil)
	test.That(t, heel.Position(), test.ShouldEqual, int64(2))
	test.That(t, fore.Position(), test.ShouldEqual, int64(0))

	test.That(t, steppers.Enable(ctx, true), test.ShouldBeNil)
	test.That(t, fore.Enabled(), test.ShouldBeTrue)
	test.That(t, heel.Enabled(), test.ShouldBeTrue)

	only := actuator.Steppers{stage.Forefoot: fore}
	err := only.Pulse(ctx, stage.Heel, actuator.Forward, 1, time.Microsecond)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "heel")
}
