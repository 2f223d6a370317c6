package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/concordlabs/concord/barrier"
	"github.com/concordlabs/concord/capability"
	"github.com/concordlabs/concord/core"
	"github.com/concordlabs/concord/synthesis"
)

// drive runs one session from CREATED to a terminal state. It is the single
// logical sequence for the session: every transition, event emission and
// trace append for this session happens on this goroutine (the barrier
// observer and loop observer are called synchronously from it).
func (e *Engine) drive(ctx context.Context, r *run, errs chan<- error) {
	defer func() {
		e.finalize(r)
		if r.failure != nil {
			errs <- *r.failure
		}
		close(errs)
	}()

	phases := []func(context.Context, *run) error{
		e.formulate,
		e.awaitConfirmation,
		e.encodeAndActivate,
		e.collectOffers,
		e.synthesize,
	}
	for _, phase := range phases {
		if err := phase(ctx, r); err != nil {
			e.fail(ctx, r, err)
			return
		}
	}
}

// formulate drives CREATED -> FORMULATING -> FORMULATED through the external
// formulator.
func (e *Engine) formulate(ctx context.Context, r *run) error {
	if err := e.transition(r, core.StateFormulating, core.EventFormulationStarted, nil); err != nil {
		return err
	}

	profiles, err := e.fetchProfiles(ctx, r)
	if err != nil {
		return err
	}
	r.profiles = profiles

	callID := core.NewID()
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.FormulateTimeout)
	intent, err := e.caps.Formulator.Formulate(callCtx, r.sess.RawInput, profiles)
	cancel()
	e.recordCapability(r, "formulate", callID, r.sess.RawInput, intent.Text, time.Since(start), err)
	if err != nil {
		return fmt.Errorf("formulate: %w", err)
	}
	r.sess.SetIntent(intent)

	return e.transition(r, core.StateFormulated, core.EventFormulationReady, func(ev *core.Event) {
		ev.Detail = intent.Text
	})
}

// fetchProfiles copies the live participant profiles once; the copy is the
// raw material of this session's snapshot and is never refreshed mid-session.
func (e *Engine) fetchProfiles(ctx context.Context, r *run) ([]core.ParticipantProfile, error) {
	callID := core.NewID()
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.EncodeTimeout)
	live, err := e.caps.Participants.Profiles(callCtx)
	cancel()
	e.recordCapability(r, "participants.profiles", callID, "", fmt.Sprintf("%d profiles", len(live)), time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("fetch profiles: %w", err)
	}
	frozen := make([]core.ParticipantProfile, len(live))
	for i, p := range live {
		frozen[i] = p.Clone()
	}
	return frozen, nil
}

// awaitConfirmation suspends in FORMULATED until the external confirmation
// input arrives, then drives FORMULATED -> ENCODING. Child sessions are
// auto-confirmed: a nested negotiation has no human in the loop.
func (e *Engine) awaitConfirmation(ctx context.Context, r *run) error {
	detail := "auto"
	if !r.auto {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.confirm:
			detail = "confirmed"
		}
	}
	return e.transition(r, core.StateEncoding, core.EventDemandConfirmed, func(ev *core.Event) {
		ev.Detail = detail
	})
}

// encodeAndActivate encodes the demand and the frozen profiles, activates
// participants by similarity, freezes the snapshot, and drives
// ENCODING -> OFFERING.
func (e *Engine) encodeAndActivate(ctx context.Context, r *run) error {
	intent := r.sess.Clone().Intent

	callID := core.NewID()
	start := time.Now()
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.EncodeTimeout)
	demandVec, err := e.caps.Encoder.Encode(callCtx, intent.Text)
	cancel()
	e.recordCapability(r, "encode.demand", callID, intent.Text, fmt.Sprintf("%d dims", len(demandVec)), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("encode demand: %w", err)
	}
	r.sess.SetVector(demandVec)

	texts := make([]string, len(r.profiles))
	for i, p := range r.profiles {
		texts[i] = p.Bio
	}
	callID = core.NewID()
	start = time.Now()
	callCtx, cancel = context.WithTimeout(ctx, e.cfg.EncodeTimeout)
	vectors, err := e.caps.Encoder.BatchEncode(callCtx, texts)
	cancel()
	e.recordCapability(r, "encode.profiles", callID, fmt.Sprintf("%d texts", len(texts)), fmt.Sprintf("%d vectors", len(vectors)), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("encode profiles: %w", err)
	}
	if len(vectors) != len(r.profiles) {
		return fmt.Errorf("encode profiles: %w: got %d vectors for %d profiles", capability.ErrMalformedOutcome, len(vectors), len(r.profiles))
	}

	candidates := make([]core.ParticipantVector, len(r.profiles))
	for i := range r.profiles {
		r.profiles[i].Vector = vectors[i]
		candidates[i] = core.ParticipantVector{ParticipantID: r.profiles[i].ID, Vector: vectors[i]}
	}

	callID = core.NewID()
	start = time.Now()
	callCtx, cancel = context.WithTimeout(ctx, e.cfg.EncodeTimeout)
	activations, err := e.caps.Activator.Activate(callCtx, demandVec, candidates, capability.ActivationParams{
		Threshold: e.cfg.ActivationThreshold,
		Max:       e.cfg.MaxActivated,
	})
	cancel()
	e.recordCapability(r, "activate", callID, fmt.Sprintf("%d candidates", len(candidates)), fmt.Sprintf("%d activated", len(activations)), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("activate: %w", err)
	}
	if len(activations) == 0 {
		return errNoActivation
	}

	byID := make(map[string]core.ParticipantProfile, len(r.profiles))
	for _, p := range r.profiles {
		byID[p.ID] = p
	}
	snap := core.Snapshot{TakenAt: time.Now().UTC()}
	for _, a := range activations {
		profile, ok := byID[a.ParticipantID]
		if !ok {
			return fmt.Errorf("activate: %w: unknown participant %s", capability.ErrMalformedOutcome, a.ParticipantID)
		}
		snap.Participants = append(snap.Participants, core.ActivatedParticipant{
			Profile: profile,
			Score:   a.Score,
			Status:  core.ParticipantActivated,
		})
	}
	r.sess.SetSnapshot(snap)

	return e.transition(r, core.StateOffering, core.EventResonanceActivated, func(ev *core.Event) {
		ev.Detail = fmt.Sprintf("%d participants", len(snap.Participants))
	})
}

// collectOffers fans one offer-generation unit per activated participant out
// through the barrier coordinator and folds the join result into the
// session: OFFERING -> BARRIER_WAITING -> SYNTHESIZING.
func (e *Engine) collectOffers(ctx context.Context, r *run) error {
	sessID := r.sess.ID
	intent := r.sess.Clone().Intent
	snap := r.sess.Clone().Snapshot

	units := make([]barrier.Unit, len(snap.Participants))
	for i, p := range snap.Participants {
		pid := p.Profile.ID
		r.sess.SetParticipantStatus(pid, core.ParticipantOffering)
		units[i] = barrier.Unit{
			ParticipantID: pid,
			// The closure captures only this participant's identity and the
			// shared intent: offer generation never sees sibling results.
			Run: func(unitCtx context.Context) (string, error) {
				return e.caps.Offers.GenerateOffer(unitCtx, pid, intent)
			},
		}
	}

	if err := e.transition(r, core.StateBarrierWaiting, core.EventBarrierWaiting, func(ev *core.Event) {
		ev.Detail = fmt.Sprintf("%d units, deadline %s", len(units), e.cfg.OfferDeadline)
	}); err != nil {
		return err
	}

	var unitErrs []error
	coord := barrier.New(func(o *barrier.Options) {
		o.Logger = r.logger
		// Runs on this goroutine, inside Join: session mutation stays
		// sequential.
		o.Observer = func(res barrier.Result) {
			switch res.Status {
			case barrier.StatusCompleted:
				offer := core.Offer{
					ID:            core.NewID(),
					SessionID:     sessID,
					ParticipantID: res.ParticipantID,
					Content:       res.Payload,
					Independent:   true,
					ReceivedAt:    time.Now().UTC(),
				}
				r.sess.AddOffer(offer)
				r.sess.SetParticipantStatus(res.ParticipantID, core.ParticipantResponded)
				e.emitter.Emit(core.NewOfferEvent(sessID, core.EventOfferReceived, res.ParticipantID))
				_ = r.recorder.Append(core.StepRecord{
					Type:     core.StepOffer,
					Name:     string(core.EventOfferReceived),
					Input:    res.ParticipantID,
					Output:   res.Payload,
					Duration: res.Elapsed,
				})
			case barrier.StatusTimedOut:
				r.sess.SetParticipantStatus(res.ParticipantID, core.ParticipantTimedOut)
				e.emitter.Emit(core.NewOfferEvent(sessID, core.EventOfferTimeout, res.ParticipantID))
				_ = r.recorder.Append(core.StepRecord{
					Type:     core.StepOffer,
					Name:     string(core.EventOfferTimeout),
					Input:    res.ParticipantID,
					Duration: res.Elapsed,
				})
			case barrier.StatusFailed:
				r.sess.SetParticipantStatus(res.ParticipantID, core.ParticipantExcluded)
				_ = r.recorder.Append(core.StepRecord{
					Type:     core.StepOffer,
					Name:     "offer.failed",
					Input:    res.ParticipantID,
					Output:   res.Err.Error(),
					Duration: res.Elapsed,
				})
				unitErrs = append(unitErrs, fmt.Errorf("offer from %s: %w", res.ParticipantID, res.Err))
			}
		}
	})

	joinStart := time.Now()
	results := coord.Join(ctx, e.cfg.OfferDeadline, units)
	completed, timedOut := 0, 0
	for _, res := range results {
		switch res.Status {
		case barrier.StatusCompleted:
			completed++
		case barrier.StatusTimedOut:
			timedOut++
		}
	}
	_ = r.recorder.Append(core.StepRecord{
		Type:     core.StepBarrier,
		Name:     "barrier.join",
		Input:    fmt.Sprintf("%d units", len(units)),
		Output:   fmt.Sprintf("%d completed, %d timed out", completed, timedOut),
		Duration: time.Since(joinStart),
	})

	// A unit raising an unexpected error is an upstream failure; a unit
	// missing the deadline is a modeled exclusion.
	if len(unitErrs) > 0 {
		return unitErrs[0]
	}
	if completed == 0 {
		return errNoOffers
	}

	return e.transition(r, core.StateSynthesizing, core.EventBarrierComplete, func(ev *core.Event) {
		ev.Detail = fmt.Sprintf("%d offers", completed)
	})
}

// synthesize runs the bounded aggregator tool loop and drives the terminal
// SYNTHESIZING -> COMPLETED transition when a plan is emitted.
func (e *Engine) synthesize(ctx context.Context, r *run) error {
	intent := r.sess.Clone().Intent
	offers := r.sess.GetOffers()

	ctl := synthesis.New(e.caps.Aggregator, &toolEffects{engine: e, run: r}, synthesis.Config{
		FullToolRounds:    e.cfg.FullToolRounds,
		MaxRounds:         e.cfg.MaxSynthesisRounds,
		AggregatorTimeout: e.cfg.AggregatorTimeout,
	}, func(o *synthesis.Options) {
		o.Observer = &loopObserver{engine: e, run: r}
		o.Logger = r.logger
	})

	plan, _, err := ctl.Run(ctx, intent, offers, r.sess.IncrementRound)
	if err != nil {
		return err
	}

	r.sess.SetResult(&core.Result{Plan: plan})
	return e.transition(r, core.StateCompleted, core.EventPlanReady, func(ev *core.Event) {
		ev.Detail = summarize(plan.Content)
	})
}

// summarize truncates content for event/trace summaries.
func summarize(s string) string {
	const max = 160
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
