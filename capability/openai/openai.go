// Package openai adapts the OpenAI API to the engine's capability
// interfaces: the embeddings endpoint as the Encoder and the Chat
// Completions endpoint (with function/tool calling) as the Aggregator.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/concordlabs/concord/capability"
)

// Options configure the OpenAI adapter. Fields mirror a minimal subset of
// the API parameters; extend via functional options without breaking
// callers.
type Options struct {
	ChatModel           string
	EmbeddingModel      openai.EmbeddingModel
	Temperature         float64
	MaxCompletionTokens int64
}

// Provider implements capability.Encoder and capability.Aggregator on one
// shared client.
type Provider struct {
	client *openai.Client
	opts   Options
}

var (
	_ capability.Encoder    = (*Provider)(nil)
	_ capability.Aggregator = (*Provider)(nil)
)

// New creates a Provider using the default client (API key from the
// environment).
func New(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a Provider from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		ChatModel:           openai.ChatModelGPT4oMini,
		EmbeddingModel:      openai.EmbeddingModelTextEmbedding3Small,
		Temperature:         0.2,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Encode returns the embedding vector for one text.
func (p *Provider) Encode(ctx context.Context, text string) ([]float64, error) {
	vecs, err := p.BatchEncode(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// BatchEncode embeds all texts in one request, preserving input order.
func (p *Provider) BatchEncode(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: p.opts.EmbeddingModel,
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d inputs", capability.ErrMalformedOutcome, len(resp.Data), len(texts))
	}
	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", capability.ErrMalformedOutcome, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Reason runs one aggregation round as a chat completion with the eligible
// tools exposed as functions. The model must answer with a tool call; bare
// text is a protocol violation.
func (p *Provider) Reason(ctx context.Context, req capability.ReasonRequest) (capability.ReasonOutcome, error) {
	system, user := capability.RenderReasonPrompt(req)
	params := openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model:               p.opts.ChatModel,
		Temperature:         openai.Float(p.opts.Temperature),
		MaxCompletionTokens: openai.Int(p.opts.MaxCompletionTokens),
		Tools:               buildTools(capability.SchemasFor(req.EligibleTools)),
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return capability.ReasonOutcome{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return capability.ReasonOutcome{}, fmt.Errorf("%w: no choices returned", capability.ErrMalformedOutcome)
	}
	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		return capability.ReasonOutcome{}, fmt.Errorf("%w: no tool call in response", capability.ErrMalformedOutcome)
	}
	tc := msg.ToolCalls[0]
	return capability.ParseToolOutcome(tc.ID, tc.Function.Name, tc.Function.Arguments)
}

// buildTools converts neutral tool schemas into OpenAI function definitions.
func buildTools(schemas []capability.ToolSchema) []openai.ChatCompletionToolParam {
	tools := make([]openai.ChatCompletionToolParam, len(schemas))
	for i, s := range schemas {
		tools[i] = openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        string(s.Name),
				Description: openai.String(s.Description),
				Parameters: openai.FunctionParameters{
					"type":       "object",
					"properties": s.Properties,
					"required":   s.Required,
				},
			},
		}
	}
	return tools
}
