package gpiostepper

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.viam.com/test"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/components/board/fake"
	"github.com/gdp03/footrig/logging"
)

type recordingWaiter struct {
	waits []time.Duration
}

func (w *recordingWaiter) Wait(d time.Duration) {
	w.waits = append(w.waits, d)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	err := cfg.Validate("path")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "pins.step")

	cfg.Pins.Step = "34"
	err = cfg.Validate("path")
	test.That(t, err.Error(), test.ShouldContainSubstring, "pins.dir")

	cfg.Pins.Direction = "35"
	test.That(t, cfg.Validate("path"), test.ShouldBeNil)

	cfg.Pins.EnablePinHigh = "1"
	cfg.Pins.EnablePinLow = "2"
	test.That(t, cfg.Validate("path"), test.ShouldNotBeNil)
}

func TestPulse(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	b := fake.NewBoard()
	waiter := &recordingWaiter{}
	conf := Config{Pins: PinConfig{Step: "34", Direction: "35", EnablePinLow: "28"}}

	m, err := New(b, conf, "forefoot", waiter, logger)
	test.That(t, err, test.ShouldBeNil)
	step, _ := b.Pin("34")
	dir, _ := b.Pin("35")
	enable, _ := b.Pin("28")

	t.Run("forward", func(t *testing.T) {
		test.That(t, m.Pulse(ctx, actuator.Forward, 5, 300*time.Microsecond), test.ShouldBeNil)
		test.That(t, step.RisingEdges(), test.ShouldEqual, 5)
		test.That(t, step.High(), test.ShouldBeFalse)
		test.That(t, dir.High(), test.ShouldBeTrue)
		test.That(t, m.Position(), test.ShouldEqual, int64(5))
		test.That(t, waiter.waits, test.ShouldHaveLength, 10)
		for _, w := range waiter.waits {
			test.That(t, w, test.ShouldEqual, 300*time.Microsecond)
		}
	})

	t.Run("reverse", func(t *testing.T) {
		step.Reset()
		test.That(t, m.Pulse(ctx, actuator.Reverse, 3, time.Millisecond), test.ShouldBeNil)
		test.That(t, step.RisingEdges(), test.ShouldEqual, 3)
		test.That(t, dir.High(), test.ShouldBeFalse)
		test.That(t, m.Position(), test.ShouldEqual, int64(2))
	})

	t.Run("enable is active low", func(t *testing.T) {
		test.That(t, m.Enable(ctx, true), test.ShouldBeNil)
		test.That(t, enable.High(), test.ShouldBeFalse)
		test.That(t, m.Enable(ctx, false), test.ShouldBeNil)
		test.That(t, enable.High(), test.ShouldBeTrue)
	})

	t.Run("zero half period", func(t *testing.T) {
		test.That(t, m.Pulse(ctx, actuator.Forward, 1, 0), test.ShouldNotBeNil)
	})

	t.Run("cancelled before start", func(t *testing.T) {
		step.Reset()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		test.That(t, m.Pulse(cctx, actuator.Forward, 4, time.Millisecond), test.ShouldNotBeNil)
		test.That(t, step.RisingEdges(), test.ShouldEqual, 0)
	})
}

func TestDirectionInverted(t *testing.T) {
	b := fake.NewBoard()
	conf := Config{Pins: PinConfig{Step: "36", Direction: "37", EnablePinHigh: "29"}, DirectionInverted: true}
	m, err := New(b, conf, "heel", &recordingWaiter{}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, m.Pulse(context.Background(), actuator.Forward, 1, time.Microsecond), test.ShouldBeNil)
	dir, _ := b.Pin("37")
	test.That(t, dir.High(), test.ShouldBeFalse)

	test.That(t, m.Enable(context.Background(), true), test.ShouldBeNil)
	enable, _ := b.Pin("29")
	test.That(t, enable.High(), test.ShouldBeTrue)
}

func TestClockWaiterSpinsOnRealClock(t *testing.T) {
	w := NewClockWaiter(clock.New())
	start := time.Now()
	w.Wait(500 * time.Microsecond)
	test.That(t, time.Since(start), test.ShouldBeGreaterThanOrEqualTo, 500*time.Microsecond)
}
