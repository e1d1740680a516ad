package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI answers questions with an OpenAI chat completion model, or any server speaking the same API.
type OpenAI struct {
	model          string
	promptTemplate string

	params LLMParameters

	client *goopenai.Client

	logger *slog.Logger
}

// NewOpenAI creates a new OpenAI instance with the specified API key, base URL, model name, and
// prompt template. An empty baseURL selects the public OpenAI endpoint.
func NewOpenAI(apiKey, baseURL, model, promptTemplate string, params LLMParameters, logger *slog.Logger) OpenAI {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return OpenAI{
		model:          model,
		promptTemplate: promptTemplate,
		params:         params,
		client:         goopenai.NewClientWithConfig(cfg),
		logger:         logger.With(slog.String("module", "openai")),
	}
}

// Answer sends the rendered prompt as a single user message and returns the first choice.
func (o OpenAI) Answer(ctx context.Context, question string) (string, error) {
	req := goopenai.ChatCompletionRequest{
		Model: o.model,
		Messages: []goopenai.ChatCompletionMessage{
			{
				Role:    goopenai.ChatMessageRoleUser,
				Content: renderPrompt(o.promptTemplate, question),
			},
		},
		Temperature: DefaultTemperature,
	}
	if o.params.Temperature != nil {
		req.Temperature = *o.params.Temperature
	}
	if o.params.TopP != nil {
		req.TopP = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		req.MaxTokens = *o.params.MaxTokens
	}

	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no choices found")
	}

	o.logger.Debug("Generated answer",
		slog.String("model", o.model),
		slog.String("finishReason", string(resp.Choices[0].FinishReason)))

	return resp.Choices[0].Message.Content, nil
}
