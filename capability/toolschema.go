package capability

import "github.com/concordlabs/concord/core"

// ToolSchema is the provider-neutral description of one aggregator tool:
// name, description and a minimal JSON Schema object body. Provider adapters
// translate it into their SDK's tool parameter type.
type ToolSchema struct {
	Name        core.ToolName
	Description string
	Properties  map[string]any
	Required    []string
}

var toolSchemas = map[core.ToolName]ToolSchema{
	core.ToolEmitPlan: {
		Name:        core.ToolEmitPlan,
		Description: "Emit the final reconciled plan. This ends the negotiation.",
		Properties: map[string]any{
			"content": map[string]any{"type": "string", "description": "The full plan text."},
		},
		Required: []string{"content"},
	},
	core.ToolAskParticipant: {
		Name:        core.ToolAskParticipant,
		Description: "Ask one participant a targeted follow-up question about its offer.",
		Properties: map[string]any{
			"participant_id": map[string]any{"type": "string", "description": "Id of the participant to ask."},
			"question":       map[string]any{"type": "string", "description": "The question to forward."},
		},
		Required: []string{"participant_id", "question"},
	},
	core.ToolStartDiscovery: {
		Name:        core.ToolStartDiscovery,
		Description: "Probe for latent fit between two participants whose offers may combine.",
		Properties: map[string]any{
			"participant_a": map[string]any{"type": "string"},
			"participant_b": map[string]any{"type": "string"},
			"reason":        map[string]any{"type": "string", "description": "Why these two are worth probing."},
		},
		Required: []string{"participant_a", "participant_b"},
	},
	core.ToolSpawnSubNegotiation: {
		Name:        core.ToolSpawnSubNegotiation,
		Description: "Start a nested negotiation for a sub-demand that needs its own participants and offers.",
		Properties: map[string]any{
			"demand": map[string]any{"type": "string", "description": "The sub-demand, phrased as raw input."},
		},
		Required: []string{"demand"},
	},
	core.ToolEscalate: {
		Name:        core.ToolEscalate,
		Description: "Escalate the negotiation to an external authority. Reserved; not currently honored.",
		Properties: map[string]any{
			"reason": map[string]any{"type": "string"},
		},
		Required: []string{"reason"},
	},
}

// SchemasFor returns the schemas for the given eligible tools, in the given
// order. Unknown names are skipped.
func SchemasFor(eligible []core.ToolName) []ToolSchema {
	out := make([]ToolSchema, 0, len(eligible))
	for _, name := range eligible {
		if s, ok := toolSchemas[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
