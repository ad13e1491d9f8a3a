// Package ai talks to the external generative-model service. The model is
// a black-box collaborator: it receives a text prompt and returns free
// text with no schema guarantee.
package ai

import (
	"context"
	"fmt"
)

// Provider identifies a generative-model backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderMock   Provider = "mock"
)

// Request is a completion request.
type Request struct {
	Prompt      string  `json:"prompt"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Response is a completion response.
type Response struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason,omitempty"`
	Model        string `json:"model,omitempty"`
}

// Client is the interface every model backend implements.
type Client interface {
	// Complete sends a completion request to the model.
	Complete(ctx context.Context, request Request) (*Response, error)

	// CompleteSimple is a convenience method for plain text completion.
	CompleteSimple(ctx context.Context, prompt string) (string, error)

	// GetProvider returns the provider type.
	GetProvider() Provider

	// GetDefaultModel returns the default model for this provider.
	GetDefaultModel() string

	// ValidateConfig validates the client configuration.
	ValidateConfig() error
}

// ClientConfig holds configuration for creating model clients.
type ClientConfig struct {
	Provider    Provider `json:"provider" yaml:"provider"`
	APIKey      string   `json:"api_key,omitempty" yaml:"api_key"`
	BaseURL     string   `json:"base_url,omitempty" yaml:"base_url"`
	Model       string   `json:"model,omitempty" yaml:"model"`
	Temperature float64  `json:"temperature,omitempty" yaml:"temperature"`
	Timeout     int      `json:"timeout,omitempty" yaml:"timeout"` // seconds
}

// NewClient creates a model client for the configured provider.
func NewClient(config ClientConfig) (Client, error) {
	switch config.Provider {
	case ProviderGemini:
		return NewGeminiClient(config)
	case ProviderMock:
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", config.Provider)
	}
}
