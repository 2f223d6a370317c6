package core

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolName identifies one member of the closed tool set the aggregator may
// request. Adding a tool is a deliberate schema change, not a runtime
// registration, so the round-eligibility invariants stay checkable.
type ToolName string

const (
	ToolEmitPlan            ToolName = "emit-plan"
	ToolAskParticipant      ToolName = "ask-participant"
	ToolStartDiscovery      ToolName = "start-discovery"
	ToolSpawnSubNegotiation ToolName = "spawn-sub-negotiation"

	// ToolEscalate is reserved: recognized by the controller but rejected
	// with a "not supported" result.
	ToolEscalate ToolName = "escalate"
)

// Known reports whether the name belongs to the closed tool set.
func (n ToolName) Known() bool {
	switch n {
	case ToolEmitPlan, ToolAskParticipant, ToolStartDiscovery, ToolSpawnSubNegotiation, ToolEscalate:
		return true
	}
	return false
}

// EligibleTools returns the tool set offered to the aggregator for the given
// round. Once the round counter exceeds fullRounds only emit-plan and
// ask-participant remain, forcing convergence in code rather than by asking
// the aggregator nicely.
func EligibleTools(round, fullRounds int) []ToolName {
	if round > fullRounds {
		return []ToolName{ToolEmitPlan, ToolAskParticipant}
	}
	return []ToolName{ToolEmitPlan, ToolAskParticipant, ToolStartDiscovery, ToolSpawnSubNegotiation, ToolEscalate}
}

// ToolEligible reports whether name is in the eligible set.
func ToolEligible(name ToolName, eligible []ToolName) bool {
	for _, t := range eligible {
		if t == name {
			return true
		}
	}
	return false
}

// ToolArgs is the closed argument variant set for tool calls. Concrete types
// implement the unexported marker, mirroring the Part pattern: no open-ended
// dynamic dispatch.
type ToolArgs interface{ isToolArgs() }

// EmitPlanArgs carries the final plan content.
type EmitPlanArgs struct {
	Content string `json:"content"`
}

func (EmitPlanArgs) isToolArgs() {}

// AskParticipantArgs forwards a follow-up question to one participant.
type AskParticipantArgs struct {
	ParticipantID string `json:"participant_id"`
	Question      string `json:"question"`
}

func (AskParticipantArgs) isToolArgs() {}

// StartDiscoveryArgs requests discovery over two participants' offers and
// profiles.
type StartDiscoveryArgs struct {
	ParticipantA string `json:"participant_a"`
	ParticipantB string `json:"participant_b"`
	Reason       string `json:"reason"`
}

func (StartDiscoveryArgs) isToolArgs() {}

// SpawnSubNegotiationArgs requests a nested negotiation for a derived demand.
type SpawnSubNegotiationArgs struct {
	Demand string `json:"demand"`
}

func (SpawnSubNegotiationArgs) isToolArgs() {}

// EscalateArgs is recognized for forward compatibility only.
type EscalateArgs struct {
	Reason string `json:"reason"`
}

func (EscalateArgs) isToolArgs() {}

// ToolCall is a structured request from the aggregator for the controller to
// perform a specific, named effect. A ToolCall never persists state on its
// own; its effect is applied exclusively through the session state machine.
type ToolCall struct {
	ID   string
	Name ToolName
	Args ToolArgs
}

// ToolResult is the controller-side outcome of a processed tool call.
type ToolResult struct {
	CallID string
	Tool   ToolName
	Output string
	Err    string
}

// ParseToolArgs decodes a raw JSON argument payload into the variant matching
// the tool name. Unknown names and malformed payloads are rejected here so
// every adapter shares one protocol boundary.
func ParseToolArgs(name ToolName, raw string) (ToolArgs, error) {
	if raw == "" {
		raw = "{}"
	}
	decode := func(v any) error {
		dec := json.NewDecoder(strings.NewReader(raw))
		dec.DisallowUnknownFields()
		return dec.Decode(v)
	}
	switch name {
	case ToolEmitPlan:
		var a EmitPlanArgs
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s args: %w", name, err)
		}
		return a, nil
	case ToolAskParticipant:
		var a AskParticipantArgs
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s args: %w", name, err)
		}
		return a, nil
	case ToolStartDiscovery:
		var a StartDiscoveryArgs
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s args: %w", name, err)
		}
		return a, nil
	case ToolSpawnSubNegotiation:
		var a SpawnSubNegotiationArgs
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s args: %w", name, err)
		}
		return a, nil
	case ToolEscalate:
		var a EscalateArgs
		if err := decode(&a); err != nil {
			return nil, fmt.Errorf("parse %s args: %w", name, err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown tool %q", name)
	}
}
