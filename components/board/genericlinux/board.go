//go:build linux

// Package genericlinux implements a board on top of the Linux GPIO lines
// periph.io exposes.
package genericlinux

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/gdp03/footrig/components/board"
	"github.com/gdp03/footrig/logging"
)

type pinMode int

const (
	modeUnset pinMode = iota
	modeOut
	modeIn
)

// NewBoard initializes the periph host drivers and returns a board whose pins
// are looked up in the periph GPIO registry by name.
func NewBoard(logger logging.Logger) (board.Board, error) {
	state, err := host.Init()
	if err != nil {
		return nil, errors.Wrap(err, "cannot initialize GPIO host drivers")
	}
	for _, failure := range state.Failed {
		logger.Debugw("periph driver failed to load", "driver", failure.D.String(), "error", failure.Err)
	}
	return &sysfsBoard{logger: logger, pins: map[string]*periphGpioPin{}}, nil
}

type sysfsBoard struct {
	mu     sync.Mutex
	logger logging.Logger
	pins   map[string]*periphGpioPin
}

func (b *sysfsBoard) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pin, ok := b.pins[name]; ok {
		return pin, nil
	}
	line := gpioreg.ByName(name)
	if line == nil {
		return nil, board.NewPinNotFoundError(name)
	}
	pin := &periphGpioPin{name: name, pin: line}
	b.pins[name] = pin
	return pin, nil
}

// Close drives every output low and returns the lines to high impedance.
func (b *sysfsBoard) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	for name, pin := range b.pins {
		err = multierr.Combine(err, errors.Wrapf(pin.halt(), "pin %s", name))
	}
	b.pins = map[string]*periphGpioPin{}
	return err
}

type periphGpioPin struct {
	mu   sync.Mutex
	name string
	pin  gpio.PinIO
	mode pinMode
}

func (gp *periphGpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	l := gpio.Low
	if high {
		l = gpio.High
	}
	gp.mode = modeOut
	return gp.pin.Out(l)
}

func (gp *periphGpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.mode == modeUnset {
		if err := gp.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
			return false, errors.Wrapf(err, "cannot configure pin %s as input", gp.name)
		}
		gp.mode = modeIn
	}
	return gp.pin.Read() == gpio.High, nil
}

func (gp *periphGpioPin) halt() error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if gp.mode == modeOut {
		if err := gp.pin.Out(gpio.Low); err != nil {
			return err
		}
	}
	return gp.pin.Halt()
}
