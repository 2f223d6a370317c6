package core

import (
	"sync"
	"time"
)

// FailureClass categorizes terminal failures per the engine's error taxonomy.
type FailureClass string

const (
	FailureTimeout  FailureClass = "expected_timeout"
	FailureProtocol FailureClass = "protocol_violation"
	FailureUpstream FailureClass = "upstream_error"
	FailureRounds   FailureClass = "rounds_exceeded"
	FailureCancel   FailureClass = "cancelled"
)

// Well-known failure reasons. Free-form reasons are allowed; these are the
// ones other components match on.
const (
	ReasonNoOffers     = "no offers"
	ReasonNotConverged = "aggregation did not converge"
	ReasonCancelled    = "cancelled"
)

// Failure is the reason a session ended in FAILED.
type Failure struct {
	Class  FailureClass `json:"class"`
	Reason string       `json:"reason"`
}

func (f Failure) Error() string { return string(f.Class) + ": " + f.Reason }

// Result is the completion outcome of a session: a plan or a failure, plus
// any post-completion participant plan actions.
type Result struct {
	Plan        *Plan        `json:"plan,omitempty"`
	Failure     *Failure     `json:"failure,omitempty"`
	PlanActions []PlanAction `json:"plan_actions,omitempty"`
}

// Session is one end-to-end negotiation instance from intent to plan or
// failure. It is mutated exclusively and sequentially by the engine's state
// machine; the mutex exists so stores and observers can take consistent
// clones, not to support concurrent writers.
type Session struct {
	ID       string
	ParentID string
	Depth    int
	State    State
	RawInput string
	Intent   Intent
	Vector   []float64
	Snapshot Snapshot
	Offers   []Offer
	Round    int
	Result   *Result
	Created  time.Time
	Updated  time.Time

	mu sync.RWMutex
}

// NewSession creates a session in CREATED for the given raw demand input.
// parentID is empty for root sessions.
func NewSession(rawInput, parentID string, depth int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:       NewID(),
		ParentID: parentID,
		Depth:    depth,
		State:    StateCreated,
		RawInput: rawInput,
		Created:  now,
		Updated:  now,
	}
}

// CurrentState returns the session state under the read lock.
func (s *Session) CurrentState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// SetState applies a guarded state transition. Terminal states never change
// again; an illegal target returns IllegalTransitionError with the session
// untouched.
func (s *Session) SetState(target State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.State.CanTransition(target) {
		return &IllegalTransitionError{From: s.State, To: target}
	}
	s.State = target
	s.Updated = time.Now().UTC()
	return nil
}

// SetIntent records the formulated intent.
func (s *Session) SetIntent(intent Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Intent = intent
	s.Updated = time.Now().UTC()
}

// SetVector records the encoded demand vector.
func (s *Session) SetVector(v []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Vector = append([]float64(nil), v...)
	s.Updated = time.Now().UTC()
}

// SetSnapshot freezes the activated-participant snapshot.
func (s *Session) SetSnapshot(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Snapshot = snap.Clone()
	s.Updated = time.Now().UTC()
}

// SetParticipantStatus updates the ephemeral per-session status of one
// snapshot participant.
func (s *Session) SetParticipantStatus(participantID string, status ParticipantStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.Snapshot.Participants {
		if s.Snapshot.Participants[i].Profile.ID == participantID {
			s.Snapshot.Participants[i].Status = status
			s.Updated = time.Now().UTC()
			return
		}
	}
}

// AddOffer appends a collected offer.
func (s *Session) AddOffer(o Offer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Offers = append(s.Offers, o)
	s.Updated = time.Now().UTC()
}

// GetOffers returns a defensive copy of the collected offers.
func (s *Session) GetOffers() []Offer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	offers := make([]Offer, len(s.Offers))
	copy(offers, s.Offers)
	return offers
}

// IncrementRound advances the aggregator round counter and returns the new
// value. The counter strictly increases per aggregator invocation.
func (s *Session) IncrementRound() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Round++
	s.Updated = time.Now().UTC()
	return s.Round
}

// SetResult records the completion result. It is written once, at terminal
// transition time.
func (s *Session) SetResult(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Result = r
	s.Updated = time.Now().UTC()
}

// AddPlanAction appends a participant's accept/reject of the final plan.
// Returns false when the session has no plan to act on.
func (s *Session) AddPlanAction(a PlanAction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Result == nil || s.Result.Plan == nil {
		return false
	}
	s.Result.PlanActions = append(s.Result.PlanActions, a)
	s.Updated = time.Now().UTC()
	return true
}

// Clone returns a deep copy safe for persistence or external inspection.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &Session{
		ID:       s.ID,
		ParentID: s.ParentID,
		Depth:    s.Depth,
		State:    s.State,
		RawInput: s.RawInput,
		Intent:   s.Intent,
		Snapshot: s.Snapshot.Clone(),
		Round:    s.Round,
		Created:  s.Created,
		Updated:  s.Updated,
	}
	c.Intent.Keywords = append([]string(nil), s.Intent.Keywords...)
	c.Vector = append([]float64(nil), s.Vector...)
	c.Offers = make([]Offer, len(s.Offers))
	copy(c.Offers, s.Offers)
	if s.Result != nil {
		r := Result{}
		if s.Result.Plan != nil {
			plan := *s.Result.Plan
			r.Plan = &plan
		}
		if s.Result.Failure != nil {
			f := *s.Result.Failure
			r.Failure = &f
		}
		r.PlanActions = append([]PlanAction(nil), s.Result.PlanActions...)
		c.Result = &r
	}
	return c
}
