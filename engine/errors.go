package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/synthesis"
)

// ErrInputIgnored is the sentinel matched by errors.Is for external input
// that arrived in a state that does not accept it. The input is reported as
// ignored; it never changes session state and never fails the session.
var ErrInputIgnored = errors.New("input ignored")

// InputIgnoredError reports which session and state rejected the input.
type InputIgnoredError struct {
	SessionID string
	State     core.State
}

func (e *InputIgnoredError) Error() string {
	return fmt.Sprintf("input ignored: session %s in state %s does not accept it", e.SessionID, e.State)
}

// Is makes errors.Is(err, ErrInputIgnored) work.
func (e *InputIgnoredError) Is(target error) bool { return target == ErrInputIgnored }

var (
	errNoOffers      = errors.New(core.ReasonNoOffers)
	errNoActivation  = errors.New("no participants activated")
	errDepthExceeded = errors.New("recursion depth exceeded")
)

// classifyFailure maps a driving error onto the failure taxonomy. ctx is the
// session context: its cancellation overrides everything else, since a
// cancelled session must fail with reason "cancelled" regardless of which
// call surfaced the cancellation first.
func classifyFailure(ctx context.Context, err error) core.Failure {
	if ctx.Err() == context.Canceled || errors.Is(err, context.Canceled) {
		return core.Failure{Class: core.FailureCancel, Reason: core.ReasonCancelled}
	}
	var perr *synthesis.ProtocolError
	switch {
	case errors.As(err, &perr), errors.Is(err, capability.ErrMalformedOutcome):
		return core.Failure{Class: core.FailureProtocol, Reason: err.Error()}
	case errors.Is(err, synthesis.ErrNotConverged):
		return core.Failure{Class: core.FailureRounds, Reason: core.ReasonNotConverged}
	case errors.Is(err, errDepthExceeded):
		return core.Failure{Class: core.FailureRounds, Reason: errDepthExceeded.Error()}
	case errors.Is(err, errNoOffers):
		return core.Failure{Class: core.FailureTimeout, Reason: core.ReasonNoOffers}
	case errors.Is(err, context.DeadlineExceeded):
		return core.Failure{Class: core.FailureTimeout, Reason: err.Error()}
	default:
		return core.Failure{Class: core.FailureUpstream, Reason: err.Error()}
	}
}
