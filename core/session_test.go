package core

import (
	"testing"
	"time"
)

func TestNewSession_Defaults(t *testing.T) {
	s := NewSession("need a venue", "", 0)
	if s.ID == "" {
		t.Fatal("id must be assigned")
	}
	if s.CurrentState() != StateCreated {
		t.Fatalf("expected CREATED, got %s", s.CurrentState())
	}
	if s.RawInput != "need a venue" {
		t.Errorf("raw input not kept: %q", s.RawInput)
	}
}

func TestSession_SetState_Guarded(t *testing.T) {
	s := NewSession("x", "", 0)
	if err := s.SetState(StateFormulating); err != nil {
		t.Fatalf("legal transition rejected: %v", err)
	}
	err := s.SetState(StateOffering)
	if err == nil {
		t.Fatal("illegal transition accepted")
	}
	if _, ok := err.(*IllegalTransitionError); !ok {
		t.Fatalf("expected IllegalTransitionError, got %T", err)
	}
	// rejected attempt must leave the state untouched
	if s.CurrentState() != StateFormulating {
		t.Errorf("state changed by rejected transition: %s", s.CurrentState())
	}
}

func TestSession_TerminalStateFrozen(t *testing.T) {
	s := NewSession("x", "", 0)
	for _, st := range []State{StateFormulating, StateFormulated, StateEncoding, StateOffering, StateBarrierWaiting, StateSynthesizing, StateCompleted} {
		if err := s.SetState(st); err != nil {
			t.Fatalf("transition to %s: %v", st, err)
		}
	}
	if err := s.SetState(StateFailed); err == nil {
		t.Error("COMPLETED session accepted a transition")
	}
}

func TestSession_OffersCopiedOnRead(t *testing.T) {
	s := NewSession("x", "", 0)
	s.AddOffer(Offer{ID: "o1", ParticipantID: "p1", Content: "original"})
	got := s.GetOffers()
	got[0].Content = "changed"
	if s.GetOffers()[0].Content != "original" {
		t.Error("offers slice should be copied on read")
	}
}

func TestSession_IncrementRound(t *testing.T) {
	s := NewSession("x", "", 0)
	if got := s.IncrementRound(); got != 1 {
		t.Fatalf("first round = %d", got)
	}
	if got := s.IncrementRound(); got != 2 {
		t.Fatalf("second round = %d", got)
	}
}

func TestSession_AddPlanAction_RequiresPlan(t *testing.T) {
	s := NewSession("x", "", 0)
	if s.AddPlanAction(PlanAction{ParticipantID: "p1", Accept: true}) {
		t.Fatal("plan action accepted without a plan")
	}
	s.SetResult(&Result{Plan: &Plan{Content: "deal", EmittedAt: time.Now()}})
	if !s.AddPlanAction(PlanAction{ParticipantID: "p1", Accept: true}) {
		t.Fatal("plan action rejected despite a plan")
	}
	if len(s.Clone().Result.PlanActions) != 1 {
		t.Error("plan action not recorded")
	}
}

func TestSession_CloneIsDeep(t *testing.T) {
	s := NewSession("x", "", 0)
	s.SetSnapshot(Snapshot{
		TakenAt: time.Now().UTC(),
		Participants: []ActivatedParticipant{
			{Profile: ParticipantProfile{ID: "p1", Name: "One", Vector: []float64{0.1, 0.2}}, Score: 0.9, Status: ParticipantActivated},
		},
	})
	s.AddOffer(Offer{ID: "o1", ParticipantID: "p1"})

	clone := s.Clone()
	if clone == s {
		t.Fatal("clone should be a different pointer")
	}
	clone.Snapshot.Participants[0].Status = ParticipantExcluded
	clone.Snapshot.Participants[0].Profile.Vector[0] = 99
	clone.Offers[0].Content = "changed"

	orig := s.Clone()
	if orig.Snapshot.Participants[0].Status != ParticipantActivated {
		t.Error("snapshot status shared with clone")
	}
	if orig.Snapshot.Participants[0].Profile.Vector[0] != 0.1 {
		t.Error("snapshot vector shared with clone")
	}
	if orig.Offers[0].Content == "changed" {
		t.Error("offers shared with clone")
	}
}

func TestSnapshot_Participant(t *testing.T) {
	snap := Snapshot{Participants: []ActivatedParticipant{
		{Profile: ParticipantProfile{ID: "a"}},
		{Profile: ParticipantProfile{ID: "b"}},
	}}
	if _, ok := snap.Participant("b"); !ok {
		t.Error("known participant not found")
	}
	if _, ok := snap.Participant("zzz"); ok {
		t.Error("unknown participant found")
	}
}
