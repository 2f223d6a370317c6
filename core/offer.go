package core

import "time"

// Intent is the structured demand produced by the formulator from raw user
// input. Content beyond Text is opaque to the engine.
type Intent struct {
	Text     string   `json:"text"`
	Keywords []string `json:"keywords,omitempty"`
}

// Offer is one participant's proposal within one session round. Independent
// records that the offer was produced without visibility into any other
// participant's offer in the same round; the barrier coordinator enforces
// this, the field only attests it.
type Offer struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id"`
	Content       string    `json:"content"`
	Independent   bool      `json:"independent"`
	ReceivedAt    time.Time `json:"received_at"`
}

// RoundEntry is one piece of context folded back into the aggregator's next
// round: a participant's reply, a discovery result, or a child session's
// outcome.
type RoundEntry struct {
	Round   int      `json:"round"`
	Tool    ToolName `json:"tool"`
	Content string   `json:"content"`
}

// Plan is the terminal output of a successful negotiation.
type Plan struct {
	Content   string    `json:"content"`
	EmittedAt time.Time `json:"emitted_at"`
}

// PlanAction records one participant's accept/reject of the final plan.
type PlanAction struct {
	ParticipantID string    `json:"participant_id"`
	Accept        bool      `json:"accept"`
	At            time.Time `json:"at"`
}
