package completion

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockBackend is a lightweight in-memory Backend useful for tests and
// examples. Responses are canned per prompt; unseen prompts get a
// deterministic echo.
type MockBackend struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	err       error
	delay     time.Duration
	requests  []Request
}

// NewMockBackend constructs a MockBackend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		info:      Info{Provider: "mock", Model: "mock-1"},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockBackend) AddResponse(prompt, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = text
}

// FailWith makes every subsequent Complete return err.
func (m *MockBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay makes Complete block for d (or until ctx is done) before
// answering, for shutdown and timeout tests.
func (m *MockBackend) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Requests returns every request seen so far, in arrival order.
func (m *MockBackend) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Complete implements Backend.
func (m *MockBackend) Complete(ctx context.Context, req Request) (Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	text, canned := m.responses[req.Prompt]
	err := m.err
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	if err != nil {
		return Result{}, err
	}
	if !canned {
		text = fmt.Sprintf("Mock response to: %s", req.Prompt)
	}
	return Result{
		Text:         text,
		Model:        m.info.Model,
		FinishReason: "stop",
		Usage: &TokenUsage{
			InputTokens:  int64(len(req.Prompt)),
			OutputTokens: int64(len(text)),
		},
	}, nil
}

// Info implements Backend.
func (m *MockBackend) Info() Info { return m.info }
