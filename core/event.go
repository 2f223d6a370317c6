package core

import "time"

// EventType names one lifecycle fact. The first block is the historically
// used vocabulary downstream dashboards depend on; the second block is
// engine-internal additions. The engine emits the full vocabulary
// unconditionally and never special-cases which events matter.
type EventType string

const (
	EventFormulationReady      EventType = "formulation.ready"
	EventResonanceActivated    EventType = "resonance.activated"
	EventOfferReceived         EventType = "offer.received"
	EventBarrierComplete       EventType = "barrier.complete"
	EventCenterToolCall        EventType = "center.tool_call"
	EventPlanReady             EventType = "plan.ready"
	EventSubNegotiationStarted EventType = "sub_negotiation.started"
)

// Engine-internal additions to the vocabulary. Each is emitted exactly where
// its name says: session.created at creation, formulation.started and
// demand.confirmed on the corresponding transitions, barrier.waiting when the
// fan-out begins, offer.timeout per participant missing the barrier deadline,
// discovery.complete and sub_negotiation.complete when those tool effects
// resolve, session.failed on any transition into FAILED.
const (
	EventSessionCreated         EventType = "session.created"
	EventFormulationStarted     EventType = "formulation.started"
	EventDemandConfirmed        EventType = "demand.confirmed"
	EventBarrierWaiting         EventType = "barrier.waiting"
	EventOfferTimeout           EventType = "offer.timeout"
	EventDiscoveryComplete      EventType = "discovery.complete"
	EventSubNegotiationComplete EventType = "sub_negotiation.complete"
	EventSessionFailed          EventType = "session.failed"
)

// Event is an immutable, timestamped, typed fact about one session. Events
// are never mutated or retracted; a later fact supersedes an earlier one by
// being a new event. Transition events carry From/To; informational events
// (offer receipts, timeouts, discovery and sub-negotiation notices) leave
// them empty.
type Event struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	From          State     `json:"from,omitempty"`
	To            State     `json:"to,omitempty"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Tool          ToolName  `json:"tool,omitempty"`
	Round         int       `json:"round,omitempty"`
	ChildID       string    `json:"child_id,omitempty"`
	Detail        string    `json:"detail,omitempty"`
}

// NewEvent creates a bare informational event for a session.
func NewEvent(sessionID string, typ EventType) Event {
	return Event{
		ID:        NewID(),
		SessionID: sessionID,
		Type:      typ,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransitionEvent creates the single event attached to one state
// transition.
func NewTransitionEvent(sessionID string, typ EventType, from, to State) Event {
	e := NewEvent(sessionID, typ)
	e.From = from
	e.To = to
	return e
}

// NewOfferEvent records an offer arriving (or a participant missing the
// deadline, with typ offer.timeout).
func NewOfferEvent(sessionID string, typ EventType, participantID string) Event {
	e := NewEvent(sessionID, typ)
	e.ParticipantID = participantID
	return e
}

// IsTransition reports whether the event is attached to a state transition.
func (e Event) IsTransition() bool { return e.To != "" }
