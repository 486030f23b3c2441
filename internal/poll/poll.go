// poll implements the single bounded fixed-interval wait primitive used for
// every asynchronous EC2 state transition (instance, volume, snapshot) and
// for SSH reachability.
//
// The cloud control plane acknowledges mutations before they converge, so
// every step that depends on a state transition polls a describe-style check
// until the target state is first observed or the attempt budget runs out.
// There is deliberately no backoff: the interval is fixed and the total wall
// clock is bounded by Attempts * Interval.
package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
)

var ErrTimedOut = fmt.Errorf("exhausted poll attempt budget")

// Check queries an external system and reports whether the target condition
// has been observed. A returned error aborts the wait immediately; the caller
// decides fatality.
type Check func(ctx context.Context) (bool, error)

// Waiter repeatedly evaluates a Check at a fixed Interval, at most Attempts
// times.
type Waiter struct {
	Attempts int
	Interval time.Duration

	// Sleep is swappable so tests can simulate a timeout without real elapsed
	// time. If nil, time.Sleep is used.
	Sleep func(time.Duration)
}

// Wait runs 'check' until it first reports true, returning nil on that same
// attempt. After Attempts consecutive false reports it returns ErrTimedOut
// wrapped with 'what', the human name of the awaited condition.
func (w Waiter) Wait(ctx context.Context, what string, check Check) error {
	log := clog.FromContext(ctx).With("waiting_for", what)
	sleep := w.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	for attempt := 1; attempt <= w.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			log.Debug("condition observed", "attempt", attempt)
			return nil
		}
		log.Debug("condition not yet observed", "attempt", attempt, "budget", w.Attempts)
		if attempt < w.Attempts {
			sleep(w.Interval)
		}
	}
	return fmt.Errorf("%w: %s not observed within %d attempts", ErrTimedOut, what, w.Attempts)
}
