// Package serial opens the serial console the rig is operated from.
package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
	ser "go.bug.st/serial"
)

// DefaultBaudRate is the console speed of the rig.
const DefaultBaudRate = 57600

// Options to be passed to Open.
type Options struct {
	BaudRate int
	DataBits int
	StopBits StopBits
	Parity   Parity
	// ReadTimeout is in milliseconds. Zero blocks until data arrives.
	ReadTimeout int
}

// Parity describes a serial port parity setting.
type Parity int

const (
	// NoParity disables parity control (default).
	NoParity Parity = iota
	OddParity
	EvenParity
	MarkParity
	SpaceParity
)

// StopBits describes a serial port stop bits setting.
type StopBits int

const (
	// OneStopBit sets 1 stop bit (default).
	OneStopBit StopBits = iota
	OnePointFiveStopBits
	TwoStopBits
)

// DefaultOptions is 8N1 at DefaultBaudRate.
func DefaultOptions() Options {
	return Options{BaudRate: DefaultBaudRate, DataBits: 8}
}

// Validate checks the options describe a usable port mode.
func (o Options) Validate() error {
	if o.BaudRate <= 0 {
		return errors.Errorf("baud rate must be positive, got %d", o.BaudRate)
	}
	if o.DataBits < 5 || o.DataBits > 8 {
		return errors.Errorf("data bits must be between 5 and 8, got %d", o.DataBits)
	}
	if o.Parity < NoParity || o.Parity > SpaceParity {
		return errors.Errorf("unknown parity %d", o.Parity)
	}
	if o.StopBits < OneStopBit || o.StopBits > TwoStopBits {
		return errors.Errorf("unknown stop bits %d", o.StopBits)
	}
	if o.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}
	return nil
}

func (o Options) mode() *ser.Mode {
	return &ser.Mode{
		BaudRate: o.BaudRate,
		Parity:   ser.Parity(o.Parity),
		DataBits: o.DataBits,
		StopBits: ser.StopBits(o.StopBits),
	}
}

// Open attempts to open a serial device on the given path. It's a variable
// in case you need to override it during tests.
var Open = func(devicePath string, options Options) (io.ReadWriteCloser, error) {
	if err := options.Validate(); err != nil {
		return nil, err
	}
	device, err := ser.Open(devicePath, options.mode())
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial device %q", devicePath)
	}
	if options.ReadTimeout > 0 {
		if err := device.SetReadTimeout(time.Duration(options.ReadTimeout) * time.Millisecond); err != nil {
			return nil, multiClose(err, device)
		}
	}
	return device, nil
}

// SetOptions changes the configuration of a serial port already open.
func SetOptions(port io.ReadWriteCloser, options Options) error {
	if err := options.Validate(); err != nil {
		return err
	}
	p, ok := port.(ser.Port)
	if !ok {
		return errors.New("couldn't convert to underlying Port interface")
	}
	return p.SetMode(options.mode())
}

func multiClose(err error, c io.Closer) error {
	if closeErr := c.Close(); closeErr != nil {
		return errors.Wrapf(err, "also failed to close: %v", closeErr)
	}
	return err
}
