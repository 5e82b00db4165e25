// Package board defines the GPIO surface the rig's drivers are built on.
package board

import (
	"context"

	"github.com/pkg/errors"
)

// A GPIOPin represents an individual GPIO pin on a board.
type GPIOPin interface {
	// Set sets the pin to either low or high.
	Set(ctx context.Context, high bool, extra map[string]interface{}) error

	// Get gets the high/low state of the pin.
	Get(ctx context.Context, extra map[string]interface{}) (bool, error)
}

// A Board hands out GPIO pins by name.
type Board interface {
	// GPIOPinByName returns a GPIOPin by name. Names are board specific,
	// usually the header or global line number as a string.
	GPIOPinByName(name string) (GPIOPin, error)

	// Close releases every pin handed out by the board.
	Close(ctx context.Context) error
}

// NewPinNotFoundError is used when a board has no pin with the requested name.
func NewPinNotFoundError(name string) error {
	return errors.Errorf("no GPIO pin named %q", name)
}
