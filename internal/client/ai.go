package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// AIClient talks to the hosted model endpoint used for drafting goals,
// review narratives and evidence analysis summaries.
type AIClient struct {
	baseURL string
	apiKey  string
	model   string
	httpc   *http.Client
}

func NewAIClient(baseURL, apiKey, model string) *AIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &AIClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
}

type completeRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type completeResponse struct {
	Text string `json:"text"`
}

// Complete sends one prompt and returns the generated text.
func (c *AIClient) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completeRequest{Model: c.model, Prompt: prompt})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ai provider returned %d", resp.StatusCode)
	}

	var out completeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("ai response decode: %w", err)
	}
	return out.Text, nil
}
