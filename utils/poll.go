package utils

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"
)

// ErrPollBoundExceeded is returned by Poll when the condition did not become
// true within the timeout or the attempt budget.
var ErrPollBoundExceeded = errors.New("poll bound exceeded")

// PollBound limits a Poll. A zero Timeout or MaxAttempts disables that limit;
// at least one of them must be set.
type PollBound struct {
	Timeout     time.Duration
	MaxAttempts int
	// Interval is waited between attempts. Zero retries immediately.
	Interval time.Duration
}

// Poll calls attempt until it reports done, returns an error, the context is
// cancelled, or the bound is exceeded. Elapsed time is measured on clk.
func Poll[T any](
	ctx context.Context,
	clk clock.Clock,
	bound PollBound,
	attempt func(ctx context.Context) (T, bool, error),
) (T, error) {
	var zero T
	if bound.Timeout <= 0 && bound.MaxAttempts <= 0 {
		return zero, errors.New("poll needs a timeout or an attempt limit")
	}
	start := clk.Now()
	for attempts := 1; ; attempts++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, done, err := attempt(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		if bound.MaxAttempts > 0 && attempts >= bound.MaxAttempts {
			return zero, errors.Wrapf(ErrPollBoundExceeded, "after %d attempts", attempts)
		}
		if elapsed := clk.Since(start); bound.Timeout > 0 && elapsed >= bound.Timeout {
			return zero, errors.Wrapf(ErrPollBoundExceeded, "after %s", elapsed)
		}
		if bound.Interval > 0 && !SleepContext(ctx, clk, bound.Interval) {
			return zero, ctx.Err()
		}
	}
}

// SleepContext waits d on clk and reports whether the wait finished before ctx
// was done.
func SleepContext(ctx context.Context, clk clock.Clock, d time.Duration) bool {
	if _, ok := clk.(*clock.Mock); !ok {
		return goutils.SelectContextOrWait(ctx, d)
	}
	timer := clk.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
