package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/synthesis"
)

// toolEffects applies the aggregator's tool calls against one running
// session. Every method is invoked from the session's driving goroutine, so
// session mutation and trace appends here are ordered with the transitions.
//
// Expected timeouts (a participant not answering a question, a discovery
// probe running out of time) come back as content, not errors: the
// aggregator is told what happened and keeps reasoning. Errors end the
// session.
type toolEffects struct {
	engine *Engine
	run    *run
}

var _ synthesis.Effects = (*toolEffects)(nil)

func (fx *toolEffects) Ask(ctx context.Context, args core.AskParticipantArgs) (string, error) {
	r := fx.run
	if _, ok := r.sess.Clone().Snapshot.Participant(args.ParticipantID); !ok {
		return "", &synthesis.ProtocolError{Reason: fmt.Sprintf("ask-participant targets %s, not in snapshot", args.ParticipantID)}
	}

	callID := core.NewID()
	start := time.Now()
	askCtx, cancel := context.WithTimeout(ctx, fx.engine.cfg.AskTimeout)
	reply, err := fx.engine.caps.Responder.Ask(askCtx, args.ParticipantID, args.Question)
	cancel()
	fx.engine.recordCapability(r, "ask."+args.ParticipantID, callID, args.Question, reply, time.Since(start), err)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Sprintf("participant %s gave no reply before the deadline", args.ParticipantID), nil
		}
		return "", fmt.Errorf("ask %s: %w", args.ParticipantID, err)
	}
	return reply, nil
}

func (fx *toolEffects) Discover(ctx context.Context, args core.StartDiscoveryArgs) (string, error) {
	r := fx.run
	a, err := fx.discoveryInput(args.ParticipantA)
	if err != nil {
		return "", err
	}
	b, err := fx.discoveryInput(args.ParticipantB)
	if err != nil {
		return "", err
	}

	callID := core.NewID()
	start := time.Now()
	discCtx, cancel := context.WithTimeout(ctx, fx.engine.cfg.DiscoveryTimeout)
	finding, derr := fx.engine.caps.Discoverer.Discover(discCtx, a, b, args.Reason)
	cancel()
	fx.engine.recordCapability(r, "discover", callID, args.ParticipantA+"+"+args.ParticipantB, finding, time.Since(start), derr)
	if derr != nil {
		if errors.Is(derr, context.DeadlineExceeded) && ctx.Err() == nil {
			return "discovery did not finish before the deadline", nil
		}
		return "", fmt.Errorf("discover %s/%s: %w", args.ParticipantA, args.ParticipantB, derr)
	}

	ev := core.NewEvent(r.sess.ID, core.EventDiscoveryComplete)
	ev.Detail = summarize(finding)
	fx.engine.emitter.Emit(ev)
	return finding, nil
}

// discoveryInput pairs a snapshot participant with its offer from this
// session. A participant with no offer still joins discovery on profile
// alone.
func (fx *toolEffects) discoveryInput(participantID string) (capability.DiscoveryInput, error) {
	sess := fx.run.sess.Clone()
	p, ok := sess.Snapshot.Participant(participantID)
	if !ok {
		return capability.DiscoveryInput{}, &synthesis.ProtocolError{Reason: fmt.Sprintf("start-discovery targets %s, not in snapshot", participantID)}
	}
	in := capability.DiscoveryInput{Profile: p.Profile}
	for _, o := range sess.Offers {
		if o.ParticipantID == participantID {
			in.Offer = o
			break
		}
	}
	return in, nil
}

// Spawn starts a nested negotiation as a full session of its own, suspends
// the parent's loop until it reaches a terminal state, and folds the child's
// outcome back as tool output. The child gets a fresh snapshot from the live
// participant source and confirms automatically.
func (fx *toolEffects) Spawn(ctx context.Context, args core.SpawnSubNegotiationArgs) (string, error) {
	e, r := fx.engine, fx.run
	depth := r.sess.Depth + 1
	if depth > e.cfg.MaxChildDepth {
		return "", errDepthExceeded
	}

	child, _, childErrs, err := e.launch(ctx, args.Demand, r.sess.ID, depth, true)
	if err != nil {
		return "", fmt.Errorf("spawn sub-negotiation: %w", err)
	}

	started := core.NewEvent(r.sess.ID, core.EventSubNegotiationStarted)
	started.ChildID = child.sess.ID
	started.Detail = args.Demand
	e.emitter.Emit(started)
	_ = r.recorder.Append(core.StepRecord{
		Type:  core.StepChild,
		Name:  string(core.EventSubNegotiationStarted),
		Input: args.Demand,
		At:    started.Timestamp,
	})

	spawnStart := time.Now()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-child.done:
	}
	// Drain the terminal failure so the child's errs channel never leaks a
	// blocked send.
	var childFailure error
	if ferr, ok := <-childErrs; ok {
		childFailure = ferr
	}

	output := fx.foldChildOutcome(child, childFailure)
	completed := core.NewEvent(r.sess.ID, core.EventSubNegotiationComplete)
	completed.ChildID = child.sess.ID
	completed.Detail = summarize(output)
	e.emitter.Emit(completed)
	_ = r.recorder.Append(core.StepRecord{
		Type:     core.StepChild,
		Name:     string(core.EventSubNegotiationComplete),
		Input:    child.sess.ID,
		Output:   summarize(output),
		Duration: time.Since(spawnStart),
		At:       completed.Timestamp,
	})
	return output, nil
}

// foldChildOutcome reduces a terminal child session to aggregator-readable
// text. A failed child is reported, not escalated: the parent's aggregator
// decides what a failed sub-negotiation means for the parent plan.
func (fx *toolEffects) foldChildOutcome(child *run, failure error) string {
	sess := child.sess.Clone()
	if failure != nil {
		return fmt.Sprintf("sub-negotiation %s failed: %s", sess.ID, failure.Error())
	}
	if sess.Result != nil && sess.Result.Plan != nil {
		return fmt.Sprintf("sub-negotiation %s completed with plan: %s", sess.ID, sess.Result.Plan.Content)
	}
	return fmt.Sprintf("sub-negotiation %s ended in state %s with no plan", sess.ID, sess.CurrentState())
}

// loopObserver relays aggregator loop progress into the session's event
// stream and trace, in loop order. Each processed tool call is modeled as a
// SYNTHESIZING self-transition carrying the center.tool_call event.
type loopObserver struct {
	engine *Engine
	run    *run
}

var _ synthesis.Observer = (*loopObserver)(nil)

func (o *loopObserver) ReasonCompleted(round int, callID string, dur time.Duration, summary string) {
	o.engine.recordCapability(o.run, "aggregator.reason", callID, fmt.Sprintf("round %d", round), summary, dur, nil)
}

func (o *loopObserver) ToolProcessed(step synthesis.RoundStep) {
	err := o.engine.transition(o.run, core.StateSynthesizing, core.EventCenterToolCall, func(ev *core.Event) {
		ev.Tool = step.Call.Name
		ev.Round = step.Round
		ev.Detail = summarize(step.Result.Output)
		if step.Result.Err != "" {
			ev.Detail = step.Result.Err
		}
	})
	if err != nil {
		o.run.logger.Error("tool self-transition rejected", "error", err.Error())
		return
	}
	out := step.Result.Output
	if step.Result.Err != "" {
		out = step.Result.Err
	}
	_ = o.run.recorder.Append(core.StepRecord{
		Type:     core.StepToolCall,
		Name:     string(step.Call.Name),
		CallID:   step.Call.ID,
		Input:    fmt.Sprintf("round %d", step.Round),
		Output:   summarize(out),
		Duration: step.Duration,
	})
}
