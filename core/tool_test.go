package core

import "testing"

func TestEligibleTools_FullThenRestricted(t *testing.T) {
	full := EligibleTools(2, 2)
	if len(full) != 5 {
		t.Fatalf("round 2 of 2 should offer all tools, got %d", len(full))
	}
	restricted := EligibleTools(3, 2)
	if len(restricted) != 2 {
		t.Fatalf("round 3 should be restricted, got %d tools", len(restricted))
	}
	if !ToolEligible(ToolEmitPlan, restricted) || !ToolEligible(ToolAskParticipant, restricted) {
		t.Error("restricted set must keep emit-plan and ask-participant")
	}
	if ToolEligible(ToolSpawnSubNegotiation, restricted) {
		t.Error("spawn-sub-negotiation must drop out after the full rounds")
	}
}

func TestToolName_Known(t *testing.T) {
	for _, n := range []ToolName{ToolEmitPlan, ToolAskParticipant, ToolStartDiscovery, ToolSpawnSubNegotiation, ToolEscalate} {
		if !n.Known() {
			t.Errorf("%s should be known", n)
		}
	}
	if ToolName("do-magic").Known() {
		t.Error("unknown tool reported as known")
	}
}

func TestParseToolArgs_Variants(t *testing.T) {
	args, err := ParseToolArgs(ToolEmitPlan, `{"content":"the plan"}`)
	if err != nil {
		t.Fatalf("emit-plan parse: %v", err)
	}
	if args.(EmitPlanArgs).Content != "the plan" {
		t.Error("emit-plan content lost")
	}

	args, err = ParseToolArgs(ToolAskParticipant, `{"participant_id":"p1","question":"when?"}`)
	if err != nil {
		t.Fatalf("ask-participant parse: %v", err)
	}
	a := args.(AskParticipantArgs)
	if a.ParticipantID != "p1" || a.Question != "when?" {
		t.Errorf("ask-participant args: %+v", a)
	}

	args, err = ParseToolArgs(ToolStartDiscovery, `{"participant_a":"p1","participant_b":"p2","reason":"overlap"}`)
	if err != nil {
		t.Fatalf("start-discovery parse: %v", err)
	}
	if args.(StartDiscoveryArgs).ParticipantB != "p2" {
		t.Error("start-discovery args lost")
	}
}

func TestParseToolArgs_EmptyPayload(t *testing.T) {
	args, err := ParseToolArgs(ToolEscalate, "")
	if err != nil {
		t.Fatalf("empty payload should decode to zero args: %v", err)
	}
	if args.(EscalateArgs).Reason != "" {
		t.Error("expected zero-value args")
	}
}

func TestParseToolArgs_Rejections(t *testing.T) {
	if _, err := ParseToolArgs(ToolName("do-magic"), `{}`); err == nil {
		t.Error("unknown tool accepted")
	}
	if _, err := ParseToolArgs(ToolEmitPlan, `{"content":"x","extra":true}`); err == nil {
		t.Error("unknown field accepted")
	}
	if _, err := ParseToolArgs(ToolEmitPlan, `{"content":`); err == nil {
		t.Error("truncated JSON accepted")
	}
}
