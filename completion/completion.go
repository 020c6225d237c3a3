package completion

import "context"

// Request captures one normalized completion request.
type Request struct {
	// Prompt is the user-facing input text. Required.
	Prompt string `json:"prompt"`

	// System optionally sets provider-level system instructions.
	System string `json:"system,omitempty"`

	// Model optionally overrides the backend's configured model id.
	Model string `json:"model,omitempty"`

	// SessionID threads daemon-level conversation identity through the
	// result event; the backend call itself is stateless.
	SessionID string `json:"session_id,omitempty"`
}

// TokenUsage captures token accounting for one completion, normalized
// across providers.
type TokenUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Result is a backend's answer to one request.
type Result struct {
	// Text is the completion output.
	Text string `json:"text"`

	// Model is the model id that actually served the request.
	Model string `json:"model,omitempty"`

	// FinishReason reports why generation stopped ("stop", "length",
	// provider-specific values pass through).
	FinishReason string `json:"finish_reason,omitempty"`

	// Usage is token accounting when the provider reports it.
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Ack acknowledges an accepted request. The completion itself arrives
// later as a completion:result (or completion:error) event carrying the
// same RequestID.
type Ack struct {
	// RequestID identifies the request in the eventual result event.
	RequestID string `json:"request_id"`

	// CorrelationID is the causal chain the result will belong to. Empty
	// when the request was made outside any event lineage; the result
	// event then starts a fresh chain.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Info contains metadata about a backend implementation.
type Info struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Backend is the synchronous provider boundary. Implementations must be
// safe for concurrent use; the service calls Complete from one goroutine
// per in-flight request.
type Backend interface {
	Complete(ctx context.Context, req Request) (Result, error)

	// Info returns information about the backend implementation.
	Info() Info
}
