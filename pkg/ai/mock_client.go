package ai

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is a scripted model client for tests and offline runs.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	err       error
	prompts   []string
}

// NewMockClient creates a mock client that echoes a canned notice until
// responses are queued.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// QueueResponse appends a canned response, served in FIFO order.
func (m *MockClient) QueueResponse(text string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, text)
	return m
}

// FailWith makes every call return the given error.
func (m *MockClient) FailWith(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// Prompts returns every prompt received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Complete serves the next queued response.
func (m *MockClient) Complete(ctx context.Context, request Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = append(m.prompts, request.Prompt)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) == 0 {
		return nil, fmt.Errorf("mock model has no queued response")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return &Response{Content: next, FinishReason: "stop", Model: "mock"}, nil
}

// CompleteSimple serves the next queued response as plain text.
func (m *MockClient) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	resp, err := m.Complete(ctx, Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GetProvider returns the provider type.
func (m *MockClient) GetProvider() Provider { return ProviderMock }

// GetDefaultModel returns the default model.
func (m *MockClient) GetDefaultModel() string { return "mock" }

// ValidateConfig validates the client configuration.
func (m *MockClient) ValidateConfig() error { return nil }
