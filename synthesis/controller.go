// Package synthesis drives the aggregator through a bounded cycle of
// "produce a plan or request a tool call; execute the tool; resume" rounds.
// Exactly one tool call is processed per round. The round limit and the
// restriction of the tool set after it are enforced here, in code, not
// phrased as a request to the aggregator.
package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/logging"
)

// ErrNotConverged is returned when the aggregator exhausts all rounds
// without emitting a plan.
var ErrNotConverged = errors.New(core.ReasonNotConverged)

// ProtocolError marks aggregator output that is not a recognized terminal
// plan or a single recognized, eligible tool call. The session is failed on
// it rather than retried, since retrying a malformed protocol response risks
// masking a real defect.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return "aggregator protocol violation: " + e.Reason }

// Effects applies tool side effects. Implemented by the engine so every
// effect lands through the session state machine; the controller itself
// persists nothing. Implementations handle expected timeouts internally and
// report them as content, reserving error returns for failures that must
// end the session.
type Effects interface {
	Ask(ctx context.Context, args core.AskParticipantArgs) (string, error)
	Discover(ctx context.Context, args core.StartDiscoveryArgs) (string, error)
	Spawn(ctx context.Context, args core.SpawnSubNegotiationArgs) (string, error)
}

// RoundStep describes one processed non-terminal tool call.
type RoundStep struct {
	Round    int
	Call     core.ToolCall
	Result   core.ToolResult
	Duration time.Duration
}

// Observer receives loop progress so the engine can emit events and trace
// records in transition order.
type Observer interface {
	ReasonCompleted(round int, callID string, dur time.Duration, summary string)
	ToolProcessed(step RoundStep)
}

// Config bounds the loop.
type Config struct {
	// FullToolRounds is the last round with the full tool set.
	FullToolRounds int
	// MaxRounds is the hard total limit.
	MaxRounds int
	// AggregatorTimeout bounds each reasoning call.
	AggregatorTimeout time.Duration
}

// Controller runs the bounded aggregator loop for one session.
type Controller struct {
	agg      capability.Aggregator
	effects  Effects
	observer Observer
	cfg      Config
	logger   logging.Logger
}

// Options configures optional Controller collaborators.
type Options struct {
	Observer Observer
	Logger   logging.Logger
}

// New constructs a Controller.
func New(agg capability.Aggregator, effects Effects, cfg Config, optFns ...func(o *Options)) *Controller {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Controller{agg: agg, effects: effects, observer: opts.Observer, cfg: cfg, logger: opts.Logger}
}

// Run loops until the aggregator emits a plan, a limit trips, or an error
// escalates. nextRound advances the session's round counter and returns the
// new value; the counter strictly increases per aggregator invocation.
// The accumulated round history is returned alongside the outcome.
func (c *Controller) Run(
	ctx context.Context,
	intent core.Intent,
	offers []core.Offer,
	nextRound func() int,
) (*core.Plan, []core.RoundEntry, error) {
	var history []core.RoundEntry
	for {
		round := nextRound()
		if round > c.cfg.MaxRounds {
			return nil, history, ErrNotConverged
		}
		eligible := core.EligibleTools(round, c.cfg.FullToolRounds)

		callID := core.NewID()
		reasonStart := time.Now()
		reasonCtx, cancel := context.WithTimeout(ctx, c.cfg.AggregatorTimeout)
		outcome, err := c.agg.Reason(reasonCtx, capability.ReasonRequest{
			Intent:        intent,
			Offers:        offers,
			History:       history,
			Round:         round,
			EligibleTools: eligible,
		})
		cancel()
		dur := time.Since(reasonStart)
		if err != nil {
			if errors.Is(err, capability.ErrMalformedOutcome) {
				return nil, history, &ProtocolError{Reason: err.Error()}
			}
			return nil, history, fmt.Errorf("aggregator round %d: %w", round, err)
		}

		plan, call, perr := validateOutcome(outcome, eligible)
		if perr != nil {
			return nil, history, perr
		}
		if c.observer != nil {
			c.observer.ReasonCompleted(round, callID, dur, summarizeOutcome(plan, call))
		}
		if plan != nil {
			c.logger.Info("aggregator emitted plan", "round", round)
			return plan, history, nil
		}

		result, err := c.applyTool(ctx, *call)
		if err != nil {
			return nil, history, fmt.Errorf("tool %s round %d: %w", call.Name, round, err)
		}
		if c.observer != nil {
			c.observer.ToolProcessed(RoundStep{Round: round, Call: *call, Result: result, Duration: time.Since(reasonStart) - dur})
		}
		entry := core.RoundEntry{Round: round, Tool: call.Name, Content: result.Output}
		if result.Err != "" {
			entry.Content = result.Err
		}
		history = append(history, entry)
	}
}

// validateOutcome enforces the protocol: exactly one of plan/tool call, the
// tool known, its argument variant matching its name, and the tool eligible
// for this round. emit-plan arriving as a tool call is normalized to a plan.
func validateOutcome(outcome capability.ReasonOutcome, eligible []core.ToolName) (*core.Plan, *core.ToolCall, error) {
	if (outcome.Plan == nil) == (outcome.ToolCall == nil) {
		return nil, nil, &ProtocolError{Reason: "outcome must be exactly one of plan or tool call"}
	}
	if outcome.Plan != nil {
		return outcome.Plan, nil, nil
	}
	call := outcome.ToolCall
	if !call.Name.Known() {
		return nil, nil, &ProtocolError{Reason: fmt.Sprintf("unknown tool %q", call.Name)}
	}
	if !argsMatch(call.Name, call.Args) {
		return nil, nil, &ProtocolError{Reason: fmt.Sprintf("argument shape does not match tool %s", call.Name)}
	}
	if !core.ToolEligible(call.Name, eligible) {
		return nil, nil, &ProtocolError{Reason: fmt.Sprintf("tool %s not eligible this round", call.Name)}
	}
	if call.Name == core.ToolEmitPlan {
		args := call.Args.(core.EmitPlanArgs)
		return &core.Plan{Content: args.Content, EmittedAt: time.Now().UTC()}, nil, nil
	}
	return nil, call, nil
}

func argsMatch(name core.ToolName, args core.ToolArgs) bool {
	switch name {
	case core.ToolEmitPlan:
		_, ok := args.(core.EmitPlanArgs)
		return ok
	case core.ToolAskParticipant:
		_, ok := args.(core.AskParticipantArgs)
		return ok
	case core.ToolStartDiscovery:
		_, ok := args.(core.StartDiscoveryArgs)
		return ok
	case core.ToolSpawnSubNegotiation:
		_, ok := args.(core.SpawnSubNegotiationArgs)
		return ok
	case core.ToolEscalate:
		_, ok := args.(core.EscalateArgs)
		return ok
	}
	return false
}

func (c *Controller) applyTool(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	res := core.ToolResult{CallID: call.ID, Tool: call.Name}
	switch args := call.Args.(type) {
	case core.AskParticipantArgs:
		out, err := c.effects.Ask(ctx, args)
		if err != nil {
			return res, err
		}
		res.Output = out
	case core.StartDiscoveryArgs:
		out, err := c.effects.Discover(ctx, args)
		if err != nil {
			return res, err
		}
		res.Output = out
	case core.SpawnSubNegotiationArgs:
		out, err := c.effects.Spawn(ctx, args)
		if err != nil {
			return res, err
		}
		res.Output = out
	case core.EscalateArgs:
		// Reserved tool: recognized, rejected, loop continues.
		res.Err = "escalate: not supported"
		c.logger.Warn("escalate requested but not supported")
	}
	return res, nil
}

func summarizeOutcome(plan *core.Plan, call *core.ToolCall) string {
	if plan != nil {
		return "plan"
	}
	return "tool:" + string(call.Name)
}
