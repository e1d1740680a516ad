package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// OpenRouter answers questions with any model routed by OpenRouter.
type OpenRouter struct {
	apiKey         string
	baseURL        string
	model          string
	promptTemplate string

	params LLMParameters

	client *http.Client

	logger *slog.Logger
}

type openRouterChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openRouterMessage `json:"messages"`
	Temperature float32             `json:"temperature"`
	TopP        *float32            `json:"top_p,omitempty"`
	MaxTokens   *int                `json:"max_tokens,omitempty"`
	Stream      bool                `json:"stream"`
}

type openRouterMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openRouterResponse struct {
	Choices []openRouterChoice `json:"choices"`
}

type openRouterChoice struct {
	Message      openRouterMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

const (
	openRouterAPIEndpoint = "https://openrouter.ai/api/v1"
)

// NewOpenRouter creates a new OpenRouter instance with the specified API key, model name, and prompt
// template. An empty baseURL selects the public OpenRouter endpoint.
func NewOpenRouter(apiKey, baseURL, model, promptTemplate string, params LLMParameters, logger *slog.Logger) OpenRouter {
	if baseURL == "" {
		baseURL = openRouterAPIEndpoint
	}
	return OpenRouter{
		apiKey:         apiKey,
		baseURL:        strings.TrimSuffix(baseURL, "/"),
		model:          model,
		promptTemplate: promptTemplate,
		params:         params,
		client:         &http.Client{},
		logger:         logger.With(slog.String("module", "openrouter")),
	}
}

// Answer sends the rendered prompt as a single user message and returns the first choice.
func (o OpenRouter) Answer(ctx context.Context, question string) (string, error) {
	reqBody := openRouterChatRequest{
		Model: o.model,
		Messages: []openRouterMessage{
			{Role: "user", Content: renderPrompt(o.promptTemplate, question)},
		},
		Temperature: DefaultTemperature,
		TopP:        o.params.TopP,
		MaxTokens:   o.params.MaxTokens,
	}
	if o.params.Temperature != nil {
		reqBody.Temperature = *o.params.Temperature
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	o.logger.Debug("Request Body", slog.String("body", string(jsonBody)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		o.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("X-Title", "KOSPI Chat")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", upstreamStatusError(resp)
	}

	var res openRouterResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", fmt.Errorf("error decoding response: %w", err)
	}

	if len(res.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	o.logger.Debug("Generated answer",
		slog.String("model", o.model),
		slog.String("finishReason", res.Choices[0].FinishReason))

	return res.Choices[0].Message.Content, nil
}
