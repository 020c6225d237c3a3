// Package openai provides a completion backend for the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/durapensa/ksi-sub008/completion"
)

// Options configure the OpenAI backend. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via
// functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Backend wraps the OpenAI Chat Completions API behind the generic
// completion.Backend interface.
type Backend struct {
	client *openai.Client
	opts   Options
}

var _ completion.Backend = (*Backend)(nil)

// New creates a new OpenAI backend using the official client.
func New(optFns ...func(o *Options)) *Backend {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI backend from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Complete implements completion.Backend with a non-streaming chat
// completion call.
func (b *Backend) Complete(ctx context.Context, req completion.Request) (completion.Result, error) {
	model := b.opts.Model
	if req.Model != "" {
		model = req.Model
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               model,
		Temperature:         openai.Float(b.opts.Temperature),
		MaxCompletionTokens: openai.Int(b.opts.MaxCompletionTokens),
	}

	resp, err := b.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return completion.Result{}, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return completion.Result{}, fmt.Errorf("openai api returned no choices")
	}

	ch0 := resp.Choices[0]
	return completion.Result{
		Text:         ch0.Message.Content,
		Model:        model,
		FinishReason: ch0.FinishReason,
		Usage: &completion.TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// Info returns metadata describing this OpenAI backend.
func (b *Backend) Info() completion.Info {
	return completion.Info{
		Provider: "openai",
		Model:    b.opts.Model,
	}
}
