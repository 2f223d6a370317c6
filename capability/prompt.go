package capability

import (
	"fmt"
	"strings"

	"github.com/concordlabs/concord/core"
)

const aggregatorSystemPrompt = `You are the aggregation center of a multi-party negotiation.
You receive a demand and the independent offers of the activated participants.
Your job is to reconcile the offers into one coherent plan that serves the demand.

Rules:
- Respond by calling exactly one tool per turn. Never answer in plain text.
- When the offers contain enough to commit to a plan, call emit-plan with the full plan text.
- Only the tools offered to you this turn are available. Earlier turns may have had more.`

// RenderReasonPrompt renders one aggregator round as a system prompt and a
// user prompt. Both provider adapters share it so a model swap never changes
// what the aggregator is told.
func RenderReasonPrompt(req ReasonRequest) (system, user string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Round %d.\n\nDemand: %s\n", req.Round, req.Intent.Text)
	if len(req.Intent.Keywords) > 0 {
		fmt.Fprintf(&b, "Keywords: %s\n", strings.Join(req.Intent.Keywords, ", "))
	}

	b.WriteString("\nOffers:\n")
	for _, o := range req.Offers {
		fmt.Fprintf(&b, "- %s: %s\n", o.ParticipantID, o.Content)
	}

	if len(req.History) > 0 {
		b.WriteString("\nEarlier rounds:\n")
		for _, h := range req.History {
			fmt.Fprintf(&b, "- round %d, %s: %s\n", h.Round, h.Tool, h.Content)
		}
	}

	names := make([]string, len(req.EligibleTools))
	for i, t := range req.EligibleTools {
		names[i] = string(t)
	}
	fmt.Fprintf(&b, "\nTools available this turn: %s.\n", strings.Join(names, ", "))
	return aggregatorSystemPrompt, b.String()
}

// ParseToolOutcome converts a provider tool call (name plus raw JSON
// arguments) into a ReasonOutcome. Argument parse failures are reported as
// ErrMalformedOutcome so the session fails as a protocol violation rather
// than an upstream error.
func ParseToolOutcome(callID, name, rawArgs string) (ReasonOutcome, error) {
	toolName := core.ToolName(name)
	args, err := core.ParseToolArgs(toolName, rawArgs)
	if err != nil {
		return ReasonOutcome{}, fmt.Errorf("%w: tool %s: %v", ErrMalformedOutcome, name, err)
	}
	return ReasonOutcome{ToolCall: &core.ToolCall{ID: callID, Name: toolName, Args: args}}, nil
}
