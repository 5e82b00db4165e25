// Package fake implements a fake board with recording pins.
package fake

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/gdp03/footrig/components/board"
)

// Board is a fake board. Pins are created on first use.
type Board struct {
	mu     sync.Mutex
	pins   map[string]*GPIOPin
	closed bool
}

// NewBoard returns an empty fake board.
func NewBoard() *Board {
	return &Board{pins: map[string]*GPIOPin{}}
}

// GPIOPinByName returns the named pin, creating it if needed.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	return b.Pin(name)
}

// Pin is GPIOPinByName returning the concrete fake so tests can inspect it.
func (b *Board) Pin(name string) (*GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, errors.New("board is closed")
	}
	if name == "" {
		return nil, board.NewPinNotFoundError(name)
	}
	pin, ok := b.pins[name]
	if !ok {
		pin = &GPIOPin{}
		b.pins[name] = pin
	}
	return pin, nil
}

// Close marks the board closed; pins already handed out keep working.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// GPIOPin is a fake pin. It records every level it is set to and, when an
// input source is attached, reads from it instead of its own level.
type GPIOPin struct {
	mu      sync.Mutex
	high    bool
	history []bool
	rising  int

	// OnSet, when non-nil, observes every Set after it is recorded.
	OnSet func(high bool)
	// Input, when non-nil, supplies Get results.
	Input func() (bool, error)
}

// Set sets the pin to either low or high.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	if high && !gp.high {
		gp.rising++
	}
	gp.high = high
	gp.history = append(gp.history, high)
	onSet := gp.OnSet
	gp.mu.Unlock()

	if onSet != nil {
		onSet(high)
	}
	return nil
}

// Get gets the high/low state of the pin.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	input := gp.Input
	high := gp.high
	gp.mu.Unlock()

	if input != nil {
		return input()
	}
	return high, nil
}

// High reports the last level set.
func (gp *GPIOPin) High() bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high
}

// RisingEdges counts low to high transitions since the last Reset.
func (gp *GPIOPin) RisingEdges() int {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.rising
}

// History returns a copy of every level set since the last Reset.
func (gp *GPIOPin) History() []bool {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return append([]bool(nil), gp.history...)
}

// Reset clears the recorded history without changing the level.
func (gp *GPIOPin) Reset() {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.history = nil
	gp.rising = 0
}
