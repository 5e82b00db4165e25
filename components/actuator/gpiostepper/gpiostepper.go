// Package gpiostepper implements a GPIO based stepper drive.
package gpiostepper

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"github.com/gdp03/footrig/components/actuator"
	"github.com/gdp03/footrig/components/board"
	"github.com/gdp03/footrig/logging"
)

// PinConfig defines the mapping of where the drive is wired.
type PinConfig struct {
	Step          string `json:"step"`
	Direction     string `json:"dir"`
	EnablePinHigh string `json:"en_high,omitempty"`
	EnablePinLow  string `json:"en_low,omitempty"`
}

// Config describes the configuration of a stepper drive.
type Config struct {
	Pins PinConfig `json:"pins"`
	// DirectionInverted swaps which level of the direction line means forward.
	DirectionInverted bool `json:"dir_inverted,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Pins.Step == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.step")
	}
	if cfg.Pins.Direction == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "pins.dir")
	}
	if cfg.Pins.EnablePinHigh != "" && cfg.Pins.EnablePinLow != "" {
		return utils.NewConfigValidationError(path, errors.New("only one of en_high and en_low may be set"))
	}
	return nil
}

type gpioStepper struct {
	name                        string
	waiter                      Waiter
	dirInverted                 bool
	enablePinHigh, enablePinLow board.GPIOPin
	stepPin, dirPin             board.GPIOPin
	logger                      logging.Logger

	mu           sync.Mutex
	stepPosition int64
}

// New returns a stepper driving the pins named in conf on b.
func New(b board.Board, conf Config, name string, waiter Waiter, logger logging.Logger) (actuator.Stepper, error) {
	if err := conf.Validate(name); err != nil {
		return nil, err
	}
	if waiter == nil {
		return nil, errors.New("gpiostepper needs a waiter")
	}

	m := &gpioStepper{
		name:        name,
		waiter:      waiter,
		dirInverted: conf.DirectionInverted,
		logger:      logger,
	}

	var err error
	// only set enable pins if they exist
	if conf.Pins.EnablePinHigh != "" {
		if m.enablePinHigh, err = b.GPIOPinByName(conf.Pins.EnablePinHigh); err != nil {
			return nil, err
		}
	}
	if conf.Pins.EnablePinLow != "" {
		if m.enablePinLow, err = b.GPIOPinByName(conf.Pins.EnablePinLow); err != nil {
			return nil, err
		}
	}
	if m.stepPin, err = b.GPIOPinByName(conf.Pins.Step); err != nil {
		return nil, err
	}
	if m.dirPin, err = b.GPIOPinByName(conf.Pins.Direction); err != nil {
		return nil, err
	}
	return m, nil
}

// Pulse sets the direction line, then issues count step pulses.
func (m *gpioStepper) Pulse(ctx context.Context, dir actuator.Direction, count uint, halfPeriod time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if halfPeriod <= 0 {
		return errors.Errorf("stepper (%s) half period must be positive, got %s", m.name, halfPeriod)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.dirPin.Set(ctx, (dir == actuator.Forward) != m.dirInverted, nil); err != nil {
		return errors.Wrapf(err, "stepper (%s) cannot set direction", m.name)
	}
	delta := int64(1)
	if dir == actuator.Reverse {
		delta = -1
	}
	for i := uint(0); i < count; i++ {
		if err := m.doStep(ctx, halfPeriod); err != nil {
			return errors.Wrapf(err, "stepper (%s) failed after %d of %d pulses", m.name, i, count)
		}
		m.stepPosition += delta
	}
	return nil
}

// have to be locked to call.
func (m *gpioStepper) doStep(ctx context.Context, halfPeriod time.Duration) error {
	if err := m.stepPin.Set(ctx, true, nil); err != nil {
		return err
	}
	m.waiter.Wait(halfPeriod)
	if err := m.stepPin.Set(ctx, false, nil); err != nil {
		return err
	}
	m.waiter.Wait(halfPeriod)
	return nil
}

func (m *gpioStepper) Enable(ctx context.Context, on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger.Debugw("setting drive enable", "on", on)

	if m.enablePinHigh != nil {
		return m.enablePinHigh.Set(ctx, on, nil)
	}
	if m.enablePinLow != nil {
		return m.enablePinLow.Set(ctx, !on, nil)
	}
	return nil
}

func (m *gpioStepper) Position() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stepPosition
}
