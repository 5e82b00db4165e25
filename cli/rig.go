package cli

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"

	"github.com/gdp03/footrig/components/actuator"
	fakeactuator "github.com/gdp03/footrig/components/actuator/fake"
	"github.com/gdp03/footrig/components/actuator/gpiostepper"
	"github.com/gdp03/footrig/components/board"
	"github.com/gdp03/footrig/components/board/genericlinux"
	"github.com/gdp03/footrig/components/forcesensor"
	fakesensor "github.com/gdp03/footrig/components/forcesensor/fake"
	"github.com/gdp03/footrig/components/forcesensor/hx711"
	"github.com/gdp03/footrig/config"
	"github.com/gdp03/footrig/logging"
	"github.com/gdp03/footrig/stage"
)

// simulated specimens touch after this many increments of travel.
const simulatedContactSteps = 20

// simulatedGramsPerStep is the stiffness of each simulated specimen once in contact.
var simulatedGramsPerStep = map[stage.Stage]float64{stage.Forefoot: 8, stage.Heel: 11}

// rig is the drives and load cells of the enabled stages.
type rig struct {
	steppers actuator.Steppers
	sensors  map[stage.Stage]forcesensor.Calibrator
	board    board.Board
}

func openRig(cfg *config.Config, simulate bool, logger logging.Logger) (*rig, error) {
	if simulate {
		return newSimulatedRig(cfg, logger), nil
	}
	b, err := genericlinux.NewBoard(logger.Sublogger("board"))
	if err != nil {
		return nil, err
	}
	r := &rig{steppers: actuator.Steppers{}, sensors: map[stage.Stage]forcesensor.Calibrator{}, board: b}
	clk := clock.New()
	waiter := gpiostepper.NewClockWaiter(clk)
	for _, s := range cfg.EnabledStages() {
		sc := cfg.Stage(s)
		stepper, err := gpiostepper.New(b, sc.Stepper, s.String(), waiter, logger.Sublogger(s.String()+".stepper"))
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "%s stepper", s), b.Close(context.Background()))
		}
		cell, err := hx711.New(b, sc.LoadCell, s.String(), clk, logger.Sublogger(s.String()+".load_cell"))
		if err != nil {
			return nil, multierr.Combine(errors.Wrapf(err, "%s load cell", s), b.Close(context.Background()))
		}
		r.steppers[s] = stepper
		r.sensors[s] = cell
	}
	return r, nil
}

// newSimulatedRig puts a linear spring in front of a fake drive for each
// enabled stage, read back with a scale factor of 1.
func newSimulatedRig(cfg *config.Config, logger logging.Logger) *rig {
	pulses := int64(cfg.Motion.PulsesPerStep())
	r := &rig{steppers: actuator.Steppers{}, sensors: map[stage.Stage]forcesensor.Calibrator{}}
	for _, s := range cfg.EnabledStages() {
		stepper := fakeactuator.NewStepper(s.String(), logger.Sublogger(s.String()+".stepper"))
		r.steppers[s] = stepper
		r.sensors[s] = fakesensor.NewSpring(stepper, fakesensor.SpringConfig{
			ContactPulses: simulatedContactSteps * pulses,
			GramsPerPulse: simulatedGramsPerStep[s] / float64(pulses),
		})
	}
	logger.Infow("using simulated rig", "stages", cfg.EnabledStages())
	return r
}

func (r *rig) forceSensors() map[stage.Stage]forcesensor.Sensor {
	return lo.MapValues(r.sensors, func(c forcesensor.Calibrator, _ stage.Stage) forcesensor.Sensor { return c })
}

// Close releases the drives and the board.
func (r *rig) Close(ctx context.Context) error {
	err := r.steppers.Enable(ctx, false)
	if r.board != nil {
		err = multierr.Combine(err, r.board.Close(ctx))
	}
	return err
}
