// Package anthropic provides a completion backend for the Anthropic
// Claude Messages API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/durapensa/ksi-sub008/completion"
)

// Options configures the Anthropic backend (model id, max tokens,
// temperature, API key). Extend via functional options to preserve
// stability.
type Options struct {
	Model       anthropic.Model
	MaxTokens   int64
	Temperature float64
	APIKey      string
}

// Backend wraps the Anthropic Messages API behind the generic
// completion.Backend interface.
type Backend struct {
	client *anthropic.Client
	opts   Options
}

var _ completion.Backend = (*Backend)(nil)

// New creates a new Anthropic backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens:   4096,
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}

	client := anthropic.NewClient(clientOpts...)

	return &Backend{
		client: &client,
		opts:   opts,
	}
}

// NewFromClient creates a new Anthropic backend from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens:   4096,
		Temperature: 0.7,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Backend{
		client: client,
		opts:   opts,
	}
}

// Complete implements completion.Backend with a non-streaming Messages
// call.
func (b *Backend) Complete(ctx context.Context, req completion.Request) (completion.Result, error) {
	model := b.opts.Model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}

	params := anthropic.MessageNewParams{
		Model:       model,
		MaxTokens:   b.opts.MaxTokens,
		Temperature: anthropic.Float(b.opts.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	resp, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return completion.Result{}, fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}

	finishReason := "stop"
	if resp.StopReason != "" {
		finishReason = string(resp.StopReason)
	}

	return completion.Result{
		Text:         sb.String(),
		Model:        string(model),
		FinishReason: finishReason,
		Usage: &completion.TokenUsage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}, nil
}

// Info returns metadata describing this Anthropic backend.
func (b *Backend) Info() completion.Info {
	return completion.Info{
		Provider: "anthropic",
		Model:    string(b.opts.Model),
	}
}
