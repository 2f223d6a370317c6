// Package anthropic adapts the Anthropic Messages API (with tool use) to the
// engine's Aggregator capability.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/concordlabs/concord/capability"
)

// Options configure the Anthropic adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Aggregator wraps the Messages API behind capability.Aggregator.
type Aggregator struct {
	client *anthropic.Client
	opts   Options
}

var _ capability.Aggregator = (*Aggregator)(nil)

// New creates an Aggregator with its own client. The API key falls back to
// the environment when not set.
func New(optFns ...func(o *Options)) *Aggregator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)
	return &Aggregator{client: &client, opts: opts}
}

// NewFromClient creates an Aggregator from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Aggregator {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Aggregator{client: client, opts: opts}
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.2,
		MaxTokens:   4096,
	}
}

// Reason runs one aggregation round as a Messages call with the eligible
// tools attached. The model must answer with a tool_use block; a reply with
// none is a protocol violation.
func (a *Aggregator) Reason(ctx context.Context, req capability.ReasonRequest) (capability.ReasonOutcome, error) {
	system, user := capability.RenderReasonPrompt(req)
	params := anthropic.MessageNewParams{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		Temperature: anthropic.Float(a.opts.Temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
		Tools: buildTools(capability.SchemasFor(req.EligibleTools)),
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return capability.ReasonOutcome{}, fmt.Errorf("anthropic api error: %w", err)
	}
	for _, block := range resp.Content {
		if block.Type != "tool_use" {
			continue
		}
		tu := block.AsToolUse()
		args := ""
		if tu.Input != nil {
			raw, merr := json.Marshal(tu.Input)
			if merr != nil {
				return capability.ReasonOutcome{}, fmt.Errorf("%w: tool input: %v", capability.ErrMalformedOutcome, merr)
			}
			args = string(raw)
		}
		return capability.ParseToolOutcome(tu.ID, tu.Name, args)
	}
	return capability.ReasonOutcome{}, fmt.Errorf("%w: no tool_use block in response", capability.ErrMalformedOutcome)
}

// buildTools converts neutral tool schemas into Anthropic tool params.
func buildTools(schemas []capability.ToolSchema) []anthropic.ToolUnionParam {
	tools := make([]anthropic.ToolUnionParam, len(schemas))
	for i, s := range schemas {
		tools[i] = anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        string(s.Name),
			Description: anthropic.String(s.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Type:       constant.Object("object"),
				Properties: s.Properties,
				Required:   s.Required,
			},
		}}
	}
	return tools
}
