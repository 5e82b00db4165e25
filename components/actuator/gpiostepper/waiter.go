package gpiostepper

import (
	"time"

	"github.com/benbjohnson/clock"
)

// spinThreshold is the longest half period that is busy-waited rather than slept.
const spinThreshold = 2 * time.Millisecond

// A Waiter holds the calling goroutine for a pulse half period.
type Waiter interface {
	Wait(d time.Duration)
}

// WaiterFunc adapts a function to a Waiter.
type WaiterFunc func(d time.Duration)

// Wait calls f(d).
func (f WaiterFunc) Wait(d time.Duration) {
	f(d)
}

// NewClockWaiter returns a Waiter that spins on clk below 2ms and sleeps above.
// Scheduler wakeup latency on a general purpose OS is in the tens of
// microseconds, so short half periods are only honored by spinning.
func NewClockWaiter(clk clock.Clock) Waiter {
	return WaiterFunc(func(d time.Duration) {
		if d <= 0 {
			return
		}
		if d >= spinThreshold {
			clk.Sleep(d)
			return
		}
		deadline := clk.Now().Add(d)
		for clk.Now().Before(deadline) {
		}
	})
}
