// Package barrier runs a set of independent units of work concurrently and
// joins them under a single deadline, tolerating partial completion. It is
// the one place that decides how many offers are "enough": the join resolves
// at the deadline no matter what any individual unit is doing.
package barrier

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/concordlabs/concord/logging"
)

// Status is the join outcome for one unit.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusTimedOut  Status = "timed_out"
)

// Unit is one independent piece of work, typically a single participant's
// offer generation. Run receives a context cancelled at the barrier
// deadline and must not observe any other unit's result.
type Unit struct {
	ParticipantID string
	Run           func(ctx context.Context) (string, error)
}

// Result is the join outcome for one unit. Results are returned in the same
// order the units were supplied (activation order).
type Result struct {
	ParticipantID string
	Status        Status
	Payload       string
	Err           error
	Elapsed       time.Duration
}

// Options configures a Coordinator.
type Options struct {
	// Observer, when set, is invoked once per resolved unit from the join
	// goroutine (never concurrently) as results arrive. Timed-out units are
	// reported when the deadline resolves them.
	Observer func(Result)
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// Coordinator joins concurrent unit execution under a deadline.
type Coordinator struct {
	observer func(Result)
	logger   logging.Logger
}

// New constructs a Coordinator with optional overrides.
func New(optFns ...func(o *Options)) *Coordinator {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Coordinator{observer: opts.Observer, logger: opts.Logger}
}

// Join runs all units concurrently, isolated from each other, and returns
// when every unit has resolved or the deadline elapses, whichever comes
// first. Units still running at the deadline are marked timed-out in the
// result set; their goroutines receive cancellation but are not waited for,
// and a straggler's late result is discarded, never merged.
func (c *Coordinator) Join(ctx context.Context, deadline time.Duration, units []Unit) []Result {
	results := make([]Result, len(units))
	for i, u := range units {
		results[i] = Result{ParticipantID: u.ParticipantID, Status: StatusTimedOut, Elapsed: deadline}
	}
	if len(units) == 0 {
		return results
	}

	joinCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type resolved struct {
		idx int
		res Result
	}
	// Buffered so stragglers never block after the join has returned.
	ch := make(chan resolved, len(units))

	start := time.Now()
	for i, u := range units {
		go func(idx int, u Unit) {
			var (
				payload string
				err     error
			)
			func() {
				defer func() {
					if r := recover(); r != nil {
						err = fmt.Errorf("unit panic: %v", r)
						c.logger.Error("barrier unit panicked", "participant_id", u.ParticipantID, "recover", r, "stack", string(debug.Stack()))
					}
				}()
				payload, err = u.Run(joinCtx)
			}()
			res := Result{ParticipantID: u.ParticipantID, Payload: payload, Err: err, Elapsed: time.Since(start)}
			switch {
			case err == nil:
				res.Status = StatusCompleted
			case joinCtx.Err() != nil:
				res.Status = StatusTimedOut
				res.Payload = ""
			default:
				res.Status = StatusFailed
				res.Payload = ""
			}
			ch <- resolved{idx: idx, res: res}
		}(i, u)
	}

	pending := len(units)
	done := make(map[int]bool, len(units))
	for pending > 0 {
		select {
		case r := <-ch:
			if r.res.Status == StatusTimedOut {
				// The unit observed cancellation itself; fold it into the
				// deadline path below so timed-out reporting is uniform.
				pending--
				done[r.idx] = true
				if c.observer != nil {
					c.observer(results[r.idx])
				}
				continue
			}
			results[r.idx] = r.res
			done[r.idx] = true
			pending--
			if c.observer != nil {
				c.observer(r.res)
			}
		case <-joinCtx.Done():
			// Deadline (or caller cancellation): everything unresolved is
			// timed out for the purpose of the join result.
			for i := range results {
				if !done[i] {
					if c.observer != nil {
						c.observer(results[i])
					}
				}
			}
			c.logger.Info("barrier join resolved at deadline", "units", len(units), "resolved", len(units)-pending)
			return results
		}
	}
	c.logger.Debug("barrier join resolved", "units", len(units), "elapsed_ms", time.Since(start).Milliseconds())
	return results
}
