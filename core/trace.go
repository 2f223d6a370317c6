package core

import "time"

// StepType categorizes trace records.
type StepType string

const (
	StepTransition StepType = "transition"
	StepCapability StepType = "capability_call"
	StepOffer      StepType = "offer"
	StepToolCall   StepType = "tool_call"
	StepBarrier    StepType = "barrier"
	StepChild      StepType = "sub_negotiation"
	StepSession    StepType = "session"
)

// StepRecord is one append-only entry in a session trace: what was done, a
// summary of inputs and outputs, how long it took, and for external calls
// the correlation id of that call.
type StepRecord struct {
	Seq      int           `json:"seq"`
	Type     StepType      `json:"type"`
	Name     string        `json:"name"`
	From     State         `json:"from,omitempty"`
	To       State         `json:"to,omitempty"`
	Input    string        `json:"input,omitempty"`
	Output   string        `json:"output,omitempty"`
	CallID   string        `json:"call_id,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Trace is the complete, ordered record of one session's execution. It is
// only produced once, when the session reaches a terminal state; partial
// traces exist only in memory inside the recorder.
type Trace struct {
	SessionID   string       `json:"session_id"`
	ParentID    string       `json:"parent_id,omitempty"`
	FinalState  State        `json:"final_state"`
	Steps       []StepRecord `json:"steps"`
	FinalizedAt time.Time    `json:"finalized_at"`
}
