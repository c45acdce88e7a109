package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"docsamajh/pkg/core/logging"
)

// DefaultCompatBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultCompatBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// OpenAICompatProvider talks to any /chat/completions endpoint. It is the
// default route to Gemini.
type OpenAICompatProvider struct {
	BaseURL    string // BASE_URL when empty
	APIKey     string // GEMINI_API_KEY when empty
	Model      string // GEMINI_MODEL when empty
	HTTPClient *http.Client
}

var _ Provider = (*OpenAICompatProvider)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (p *OpenAICompatProvider) GenerateResponse(ctx context.Context, prompt string, systemPrompt string, options map[string]interface{}) (string, error) {
	apiKey := firstNonEmpty(p.APIKey, envKey())
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	baseURL := strings.TrimRight(firstNonEmpty(p.BaseURL, os.Getenv("BASE_URL"), DefaultCompatBaseURL), "/")
	model := optString(options, OptModel, firstNonEmpty(p.Model, os.Getenv("GEMINI_MODEL"), "gemini-2.0-flash"))

	reqBody := chatRequest{
		Model:       model,
		Temperature: optFloat(options, OptTemperature, 0.1),
	}
	if systemPrompt != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: prompt})
	if optBool(options, OptJSON) {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(jsonBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := p.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	start := time.Now()
	res, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat completion call failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat completion body: %w", err)
	}
	logging.WithComponent("llm").WithField("model", model).WithField("status", res.StatusCode).
		WithField("elapsed_ms", time.Since(start).Milliseconds()).Debug("chat completion")

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completion failed: status=%d body=%s", res.StatusCode, truncate(string(body), 500))
	}

	var response chatResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to decode chat completion: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices: %s", truncate(string(body), 500))
	}
	return response.Choices[0].Message.Content, nil
}

func (p *OpenAICompatProvider) AdaptInstructions(raw string) string {
	return raw
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
