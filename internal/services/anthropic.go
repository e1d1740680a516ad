package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// Anthropic answers questions with a Claude model through the Anthropic Messages API. The answer is
// streamed and collected into a single string.
type Anthropic struct {
	apiKey         string
	baseURL        string
	model          string
	promptTemplate string

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type anthropicChatRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	TopP        *float32           `json:"top_p,omitempty"`
	Stream      bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicStreamResponse struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	anthropicAPIEndpoint = "https://api.anthropic.com/v1"

	anthropicDefaultMaxTokens = 1024
)

// NewAnthropic creates a new Anthropic instance with the specified API key, model name, and prompt
// template. An empty baseURL selects the public Anthropic endpoint.
func NewAnthropic(apiKey, baseURL, model, promptTemplate string, params LLMParameters, logger *slog.Logger) Anthropic {
	if baseURL == "" {
		baseURL = anthropicAPIEndpoint
	}
	return Anthropic{
		apiKey:         apiKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		model:          model,
		promptTemplate: promptTemplate,
		params:         params,
		client:         &http.Client{},
		logger:         logger.With(slog.String("module", "anthropic")),
	}
}

// Answer sends the rendered prompt as a single user message and joins the streamed text deltas.
func (a Anthropic) Answer(ctx context.Context, question string) (string, error) {
	reqBody := anthropicChatRequest{
		Model: a.model,
		Messages: []anthropicMessage{
			{Role: "user", Content: renderPrompt(a.promptTemplate, question)},
		},
		MaxTokens:   anthropicDefaultMaxTokens,
		Temperature: DefaultTemperature,
		TopP:        a.params.TopP,
		Stream:      true,
	}
	if a.params.MaxTokens != nil {
		reqBody.MaxTokens = *a.params.MaxTokens
	}
	if a.params.Temperature != nil {
		reqBody.Temperature = *a.params.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstreamStatusError(resp)
	}

	var sb strings.Builder
	for ev, err := range sse.Read(resp.Body, nil) {
		if err != nil {
			return "", fmt.Errorf("error reading response: %w", err)
		}
		switch ev.Type {
		case "error":
			var e anthropicError
			if err := json.Unmarshal([]byte(ev.Data), &e); err != nil {
				return "", fmt.Errorf("error unmarshaling error: %w", err)
			}
			return "", fmt.Errorf("%w: anthropic error %s: %s", ErrUpstream, e.Error.Type, e.Error.Message)
		case "message_stop":
			a.logger.Debug("Generated answer", slog.String("model", a.model), slog.Int("length", sb.Len()))
			return sb.String(), nil
		case "content_block_delta":
			var res anthropicStreamResponse
			if err := json.Unmarshal([]byte(ev.Data), &res); err != nil {
				return "", fmt.Errorf("error unmarshaling response: %w", err)
			}
			sb.WriteString(res.Delta.Text)
		}
	}

	// The stream ended without message_stop
	return "", fmt.Errorf("%w: anthropic stream ended early", ErrUpstream)
}
