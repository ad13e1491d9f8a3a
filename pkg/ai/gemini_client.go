package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel   = "gemini-1.5-flash"
)

// GeminiClient implements Client for the Google Gemini API.
type GeminiClient struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewGeminiClient creates a Gemini client.
func NewGeminiClient(config ClientConfig) (*GeminiClient, error) {
	if config.BaseURL == "" {
		config.BaseURL = defaultGeminiBaseURL
	}
	if config.Model == "" {
		config.Model = defaultGeminiModel
	}
	if config.Timeout == 0 {
		config.Timeout = 30
	}
	client := &GeminiClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}
	if err := client.ValidateConfig(); err != nil {
		return nil, err
	}
	return client, nil
}

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends a completion request to the Gemini API.
func (c *GeminiClient) Complete(ctx context.Context, request Request) (*Response, error) {
	model := request.Model
	if model == "" {
		model = c.config.Model
	}

	body := geminiRequest{
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: request.Prompt}}},
		},
	}
	if request.Temperature > 0 || request.MaxTokens > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			Temperature:     request.Temperature,
			MaxOutputTokens: request.MaxTokens,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.config.BaseURL, model, c.config.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read model response: %w", err)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("model API error %d: %s", parsed.Error.Code, parsed.Error.Message)
		}
		return nil, fmt.Errorf("model API returned status %d", resp.StatusCode)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("model returned no candidates")
	}

	return &Response{
		Content:      parsed.Candidates[0].Content.Parts[0].Text,
		FinishReason: parsed.Candidates[0].FinishReason,
		Model:        model,
	}, nil
}

// CompleteSimple sends a plain prompt and returns the text content.
func (c *GeminiClient) CompleteSimple(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Complete(ctx, Request{Prompt: prompt, Temperature: c.config.Temperature})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GetProvider returns the provider type.
func (c *GeminiClient) GetProvider() Provider {
	return ProviderGemini
}

// GetDefaultModel returns the default model.
func (c *GeminiClient) GetDefaultModel() string {
	return c.config.Model
}

// ValidateConfig validates the client configuration.
func (c *GeminiClient) ValidateConfig() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("gemini API key is required")
	}
	return nil
}
