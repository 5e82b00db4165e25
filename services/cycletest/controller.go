// Package cycletest implements the force-feedback cycle controller: each
// stage is stepped forward until its load cell reaches the target force, the
// increments taken are memoized, and later cycles replay that count open loop
// until the next recalibration.
package cycletest

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/components/forcesensor"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/operation"
	"github.com/gdp03/footrig/stage"
	"github.com/gdp03/footrig/telemetry"
	"github.com/gdp03/footrig/utils"
)

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used for stall timeouts and dwells.
func WithClock(clk clock.Clock) Option {
	return func(c *Controller) { c.clk = clk }
}

// WithSink sets where telemetry is published.
func WithSink(sink telemetry.Sink) Option {
	return func(c *Controller) { c.sink = sink }
}

// Controller drives the stages of one rig. Its methods must not be called
// concurrently; Run refuses to start while another Run is active.
type Controller struct {
	driver  actuator.Driver
	sensors map[stage.Stage]forcesensor.Sensor
	params  Params
	logger  logging.Logger
	clk     clock.Clock
	sink    telemetry.Sink

	opMgr operation.SingleOperationManager
	em    *telemetry.Emitter
	// cycle is the 1-based cycle in progress, for telemetry.
	cycle int
}

// New returns a controller. Every stage in params needs a sensor.
func New(
	driver actuator.Driver,
	sensors map[stage.Stage]forcesensor.Sensor,
	params Params,
	logger logging.Logger,
	opts ...Option,
) (*Controller, error) {
	if err := params.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid test parameters")
	}
	for _, s := range params.Stages {
		if _, ok := sensors[s]; !ok {
			return nil, errors.Errorf("no load cell for enabled stage %s", s)
		}
	}
	c := &Controller{
		driver:  driver,
		sensors: sensors,
		params:  params,
		logger:  logger,
		clk:     clock.New(),
		sink:    telemetry.Discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.em = telemetry.NewEmitter(c.sink, c.clk)
	return c, nil
}

// Params returns the parameters the controller was built with.
func (c *Controller) Params() Params {
	return c.params
}

// Stop cancels a Run in progress. The run unwinds before returning.
func (c *Controller) Stop(ctx context.Context) {
	c.opMgr.CancelRunning(ctx)
}

// sample polls the stage's load cell until it has a reading, the stall
// timeout passes, or ctx is done.
func (c *Controller) sample(ctx context.Context, s stage.Stage) (float64, error) {
	sensor := c.sensors[s]
	bound := utils.PollBound{Timeout: c.params.SensorStallTimeout, Interval: c.params.SensorPollInterval}
	force, err := utils.Poll(ctx, c.clk, bound, func(ctx context.Context) (float64, bool, error) {
		force, err := sensor.Sample(ctx)
		if errors.Is(err, forcesensor.ErrNotReady) {
			return 0, false, nil
		}
		if err != nil {
			return 0, false, errors.Wrapf(err, "reading %s load cell", s)
		}
		return force, true, nil
	})
	if errors.Is(err, utils.ErrPollBoundExceeded) {
		return 0, &SensorStallError{Stage: s, Timeout: c.params.SensorStallTimeout, Err: err}
	}
	return force, err
}

// report takes a reading that is only published, never acted on.
func (c *Controller) report(ctx context.Context, s stage.Stage, phase telemetry.Phase, steps int) {
	force, err := c.sample(ctx, s)
	if err != nil {
		c.logger.Warnw("informational force reading failed", "stage", s, "phase", phase, "error", err)
		return
	}
	c.em.Force(c.cycle, s, phase, steps, force)
}

// SeekToForce steps s forward one increment at a time, sampling before each,
// until a sample reaches targetForce. It returns the increments taken; on
// error that is how many the caller must return to be home again.
func (c *Controller) SeekToForce(ctx context.Context, s stage.Stage, targetForce float64, halfPeriod time.Duration) (int, error) {
	steps := 0
	for {
		if err := ctx.Err(); err != nil {
			return steps, err
		}
		force, err := c.sample(ctx, s)
		if err != nil {
			return steps, err
		}
		c.em.Force(c.cycle, s, telemetry.PhaseSeek, steps, force)
		if force >= targetForce {
			c.logger.Debugw("target force reached", "stage", s, "steps", steps, "force_n", force)
			return steps, nil
		}
		if steps >= c.params.MaxSeekSteps {
			return steps, &SeekBoundError{Stage: s, Steps: steps, TargetForce: targetForce, LastForce: force}
		}
		if err := c.driver.Pulse(ctx, s, actuator.Forward, c.params.PulsesPerStep, halfPeriod); err != nil {
			return steps, errors.Wrapf(err, "seeking %s", s)
		}
		steps++
	}
}

// ReturnHome reverses s by exactly steps increments, then publishes a reading.
// It runs to completion even if ctx is cancelled.
func (c *Controller) ReturnHome(ctx context.Context, s stage.Stage, steps int, halfPeriod time.Duration) error {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < steps; i++ {
		if err := c.driver.Pulse(ctx, s, actuator.Reverse, c.params.PulsesPerStep, halfPeriod); err != nil {
			return errors.Wrapf(err, "returning %s home, %d of %d steps left", s, steps-i, steps)
		}
	}
	c.report(ctx, s, telemetry.PhaseReturn, steps)
	return nil
}

// Replay steps s forward by steps increments at the fast rate without
// sensing, dwells, and returns home by the same count. A cancelled or failed
// replay returns home the increments already taken.
func (c *Controller) Replay(ctx context.Context, s stage.Stage, steps int) error {
	fast := c.params.FastHalfPeriod
	for i := 0; i < steps; i++ {
		err := ctx.Err()
		if err == nil {
			err = c.driver.Pulse(ctx, s, actuator.Forward, c.params.PulsesPerStep, fast)
		}
		if err != nil {
			return multierr.Combine(errors.Wrapf(err, "replaying %s", s), c.ReturnHome(ctx, s, i, fast))
		}
	}
	c.report(ctx, s, telemetry.PhaseReplay, steps)
	if err := c.dwell(ctx); err != nil {
		return multierr.Combine(err, c.ReturnHome(ctx, s, steps, fast))
	}
	c.em.Phase(c.cycle, s, true, telemetry.PhaseReturn)
	return c.ReturnHome(ctx, s, steps, fast)
}

func (c *Controller) dwell(ctx context.Context) error {
	if c.params.Dwell <= 0 {
		return ctx.Err()
	}
	if !utils.SleepContext(ctx, c.clk, c.params.Dwell) {
		return ctx.Err()
	}
	return nil
}

// runStage seeks and returns s when recalibrate is set, and replays its
// memoized count otherwise.
func (c *Controller) runStage(ctx context.Context, state *CycleState, s stage.Stage, recalibrate bool) error {
	if !recalibrate {
		c.em.Phase(c.cycle, s, true, telemetry.PhaseReplay)
		return c.Replay(ctx, s, state.StepCount[s])
	}

	c.em.Phase(c.cycle, s, true, telemetry.PhaseSeek)
	fast := c.params.FastHalfPeriod
	steps, err := c.SeekToForce(ctx, s, c.params.TargetForce, c.params.SlowHalfPeriod)
	if err != nil {
		c.logger.Warnw("seek failed, returning home", "stage", s, "steps", steps, "error", err)
		return multierr.Combine(err, c.ReturnHome(ctx, s, steps, fast))
	}
	state.StepCount[s] = steps
	delete(state.Pending, s)
	state.Recalibrated = append(state.Recalibrated, s)

	c.report(ctx, s, telemetry.PhaseSeek, steps)
	if err := c.dwell(ctx); err != nil {
		return multierr.Combine(err, c.ReturnHome(ctx, s, steps, fast))
	}
	c.em.Phase(c.cycle, s, true, telemetry.PhaseReturn)
	return c.ReturnHome(ctx, s, steps, fast)
}

// RunCycle runs one cycle over every enabled stage in order and, if no stage
// halted the run, counts it as completed.
func (c *Controller) RunCycle(ctx context.Context, state *CycleState) error {
	c.cycle = state.Cycle + 1
	due := RecalibrationDue(c.cycle, c.params.RecalibrationInterval)
	state.Recalibrated = nil
	for _, s := range c.params.Stages {
		err := c.runStage(ctx, state, s, due || state.needsSeek(s))
		if err == nil {
			continue
		}
		if c.params.FaultPolicy == FaultSkipStage && haltReason(err) != HaltAborted {
			state.Pending[s] = true
			state.Skipped++
			c.logger.Warnw("stage faulted, skipping it this cycle", "cycle", c.cycle, "stage", s, "error", err)
			c.em.Message(c.cycle, s, "stage skipped: "+err.Error())
			continue
		}
		return errors.Wrapf(err, "cycle %d", c.cycle)
	}
	state.Cycle = c.cycle
	c.em.Cycle(c.cycle, state.Recalibrated, state.StepCount)
	return nil
}

// Run repeats RunCycle until MaxCycles cycles have completed or a cycle fails.
// It always returns a Result naming why the run stopped; the error is
// non-nil unless the run completed. No pulses are issued after Run returns.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	ctx, done, err := c.opMgr.TryNew(ctx)
	if err != nil {
		return Result{Reason: HaltFaulted, Err: err}, err
	}
	defer done()

	c.em = telemetry.NewEmitter(c.sink, c.clk)
	state := NewCycleState()
	c.cycle = 0
	c.em.Phase(0, 0, false, telemetry.PhaseIdle)
	c.logger.Infow("test run starting", "run_id", c.em.RunID().String(), "max_cycles", c.params.MaxCycles,
		"target_force_n", c.params.TargetForce, "stages", c.params.Stages)

	for state.Cycle < c.params.MaxCycles {
		if err = c.RunCycle(ctx, state); err != nil {
			break
		}
	}

	result := Result{
		Reason:        haltReason(err),
		Cycles:        state.Cycle,
		StepCount:     state.StepCount,
		SkippedStages: state.Skipped,
		Err:           err,
	}
	message := ""
	if err != nil {
		message = err.Error()
		c.logger.Errorw("test run halted", "reason", result.Reason, "cycles", result.Cycles, "error", err)
	} else {
		c.logger.Infow("test run complete", "cycles", result.Cycles, "step_counts", result.StepCount)
	}
	c.em.Halt(result.Cycles, string(result.Reason), message)
	return result, err
}
