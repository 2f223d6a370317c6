// Package capability declares the narrow interfaces through which the engine
// consumes external collaborators: intent formulation, text encoding,
// similarity activation, per-participant offer generation, aggregator
// reasoning and discovery. The engine orchestrates these capabilities but
// never implements their reasoning; adapters for concrete providers live in
// the subpackages.
package capability

import (
	"context"
	"errors"

	"github.com/concordlabs/concord/core"
)

// ErrMalformedOutcome marks a capability response that does not match the
// expected protocol shape (no recognizable terminal output or tool call).
// The engine fails the session on it rather than guessing intent.
var ErrMalformedOutcome = errors.New("malformed capability outcome")

// Formulator turns raw user input into a structured intent, given a read-only
// view of the participant profiles in the session snapshot.
type Formulator interface {
	Formulate(ctx context.Context, rawInput string, profiles []core.ParticipantProfile) (core.Intent, error)
}

// Encoder produces comparable vectors from text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
	BatchEncode(ctx context.Context, texts []string) ([][]float64, error)
}

// ActivationParams tunes the matcher. Threshold semantics belong to the
// matcher implementation, not the engine.
type ActivationParams struct {
	Threshold float64
	Max       int
}

// Activator selects which participants to activate for a demand vector.
type Activator interface {
	Activate(ctx context.Context, demand []float64, candidates []core.ParticipantVector, params ActivationParams) ([]core.Activation, error)
}

// OfferProvider generates one participant's independent offer. It is called
// once per participant per barrier round, in isolation: the implementation
// is never shown any other participant's offer.
type OfferProvider interface {
	GenerateOffer(ctx context.Context, participantID string, intent core.Intent) (string, error)
}

// Responder forwards a follow-up question to a participant and returns its
// reply.
type Responder interface {
	Ask(ctx context.Context, participantID, question string) (string, error)
}

// ReasonRequest carries the aggregator's inputs for one round.
type ReasonRequest struct {
	Intent        core.Intent
	Offers        []core.Offer
	History       []core.RoundEntry
	Round         int
	EligibleTools []core.ToolName
}

// ReasonOutcome is the aggregator's output for one round: exactly one of
// Plan or ToolCall is set. Anything else is a protocol violation.
type ReasonOutcome struct {
	Plan     *core.Plan
	ToolCall *core.ToolCall
}

// Aggregator is the reasoning capability that reconciles offers into a plan,
// possibly via tool calls.
type Aggregator interface {
	Reason(ctx context.Context, req ReasonRequest) (ReasonOutcome, error)
}

// DiscoveryInput is one side of a discovery invocation.
type DiscoveryInput struct {
	Offer   core.Offer
	Profile core.ParticipantProfile
}

// Discoverer explores latent fit between two participants' offers/profiles.
type Discoverer interface {
	Discover(ctx context.Context, a, b DiscoveryInput, triggerReason string) (string, error)
}

// ParticipantSource supplies the live participant profiles a new session
// snapshots from. The engine copies the returned slice; later changes to the
// source are invisible to running sessions.
type ParticipantSource interface {
	Profiles(ctx context.Context) ([]core.ParticipantProfile, error)
}

// Set bundles every capability the engine consumes.
type Set struct {
	Formulator   Formulator
	Encoder      Encoder
	Activator    Activator
	Offers       OfferProvider
	Responder    Responder
	Aggregator   Aggregator
	Discoverer   Discoverer
	Participants ParticipantSource
}
