// Package trace records one append-only trace per session, in strict
// chronological order, and exposes it only as a finalized, complete document
// once the session reaches a terminal state. Consumers must not rely on
// reading a consistent partial trace mid-session, and the recorder refuses
// to hand one out.
package trace

import (
	"errors"
	"time"

	"github.com/concordlabs/concord/core"
)

var (
	// ErrFinalized is returned when appending to a finalized recorder.
	ErrFinalized = errors.New("trace already finalized")
	// ErrNotFinalized is returned when exporting a live trace.
	ErrNotFinalized = errors.New("trace not finalized")
)

// Recorder accumulates trace records for one session. All methods are called
// from the session's driving goroutine; the recorder enforces sequencing,
// not locking.
type Recorder struct {
	sessionID string
	parentID  string
	steps     []core.StepRecord
	seq       int
	finalized bool
	doc       core.Trace
}

// NewRecorder creates a recorder for one session.
func NewRecorder(sessionID, parentID string) *Recorder {
	return &Recorder{sessionID: sessionID, parentID: parentID}
}

// Append adds one record, assigning the next sequence number and timestamp
// if unset. No step is skipped and no step recorded twice: the recorder is
// the only writer and it numbers every entry.
func (r *Recorder) Append(step core.StepRecord) error {
	if r.finalized {
		return ErrFinalized
	}
	r.seq++
	step.Seq = r.seq
	if step.At.IsZero() {
		step.At = time.Now().UTC()
	}
	r.steps = append(r.steps, step)
	return nil
}

// Len reports the number of appended records.
func (r *Recorder) Len() int { return len(r.steps) }

// Finalize freezes the trace with the session's terminal state. It may be
// called once; the returned document owns its own copy of the steps.
func (r *Recorder) Finalize(final core.State) (core.Trace, error) {
	if r.finalized {
		return core.Trace{}, ErrFinalized
	}
	r.finalized = true
	steps := make([]core.StepRecord, len(r.steps))
	copy(steps, r.steps)
	r.doc = core.Trace{
		SessionID:   r.sessionID,
		ParentID:    r.parentID,
		FinalState:  final,
		Steps:       steps,
		FinalizedAt: time.Now().UTC(),
	}
	return r.doc, nil
}

// Document returns the finalized trace. Before finalization it returns
// ErrNotFinalized: partial traces are not observable.
func (r *Recorder) Document() (core.Trace, error) {
	if !r.finalized {
		return core.Trace{}, ErrNotFinalized
	}
	return r.doc, nil
}

// Replay reconstructs the ordered state sequence of a session from its
// finalized trace. Replaying the trace of a completed session is
// deterministic: the same document always yields the same sequence.
func Replay(doc core.Trace) []core.State {
	var states []core.State
	for _, step := range doc.Steps {
		if step.Type != core.StepTransition {
			continue
		}
		if len(states) == 0 {
			states = append(states, step.From)
		}
		states = append(states, step.To)
	}
	return states
}
