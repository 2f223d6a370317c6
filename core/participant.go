package core

import "time"

// ParticipantStatus is the per-session status of an activated participant.
// It is ephemeral: the participant's persistent profile is never touched by
// a session.
type ParticipantStatus string

const (
	ParticipantActivated ParticipantStatus = "activated"
	ParticipantOffering  ParticipantStatus = "offering"
	ParticipantResponded ParticipantStatus = "responded"
	ParticipantTimedOut  ParticipantStatus = "timed_out"
	ParticipantExcluded  ParticipantStatus = "excluded"
)

// ParticipantProfile is the read-only capability/profile data of a candidate
// collaborator as captured into a session snapshot.
type ParticipantProfile struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Bio    string    `json:"bio"`
	Vector []float64 `json:"vector,omitempty"`
}

// Clone returns a deep copy of the profile.
func (p ParticipantProfile) Clone() ParticipantProfile {
	c := p
	if p.Vector != nil {
		c.Vector = make([]float64, len(p.Vector))
		copy(c.Vector, p.Vector)
	}
	return c
}

// ParticipantVector pairs a participant identity with its encoded vector for
// activation matching.
type ParticipantVector struct {
	ParticipantID string
	Vector        []float64
}

// Activation is one activation decision produced by the matcher.
type Activation struct {
	ParticipantID string  `json:"participant_id"`
	Score         float64 `json:"score"`
}

// ActivatedParticipant is one member of a session snapshot: the frozen
// profile plus the activation score and the mutable per-session status.
type ActivatedParticipant struct {
	Profile ParticipantProfile `json:"profile"`
	Score   float64            `json:"score"`
	Status  ParticipantStatus  `json:"status"`
}

// Snapshot is the immutable copy of participant data a session runs against,
// taken once at activation time. External changes to underlying profiles
// take effect only in a future session's snapshot.
type Snapshot struct {
	TakenAt      time.Time              `json:"taken_at"`
	Participants []ActivatedParticipant `json:"participants"`
}

// Clone returns a deep copy of the snapshot so a child session can never
// share backing storage with its parent.
func (s Snapshot) Clone() Snapshot {
	c := Snapshot{TakenAt: s.TakenAt}
	if s.Participants != nil {
		c.Participants = make([]ActivatedParticipant, len(s.Participants))
		for i, p := range s.Participants {
			c.Participants[i] = ActivatedParticipant{Profile: p.Profile.Clone(), Score: p.Score, Status: p.Status}
		}
	}
	return c
}

// Participant returns the snapshot entry for the given participant id.
func (s Snapshot) Participant(id string) (ActivatedParticipant, bool) {
	for _, p := range s.Participants {
		if p.Profile.ID == id {
			return p, true
		}
	}
	return ActivatedParticipant{}, false
}
