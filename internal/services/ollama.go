package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// Ollama answers questions with a model served by an Ollama instance.
type Ollama struct {
	host           string
	model          string
	promptTemplate string

	params LLMParameters

	client *api.Client

	logger *slog.Logger
}

// NewOllama creates a new Ollama instance with the specified host URL and model name. The host
// parameter should be a valid URL pointing to an Ollama server. If the provided host URL is invalid,
// the function will panic.
func NewOllama(host, model, promptTemplate string, params LLMParameters, logger *slog.Logger) Ollama {
	u, err := url.Parse(host)
	if err != nil {
		panic(err)
	}

	return Ollama{
		host:           host,
		model:          model,
		promptTemplate: promptTemplate,
		params:         params,
		client:         api.NewClient(u, &http.Client{}),
		logger:         logger.With(slog.String("module", "ollama")),
	}
}

// Answer renders the prompt template with the question and returns the full, non-streamed
// completion. The context can be used to cancel the request.
func (o Ollama) Answer(ctx context.Context, question string) (string, error) {
	f := false
	req := api.GenerateRequest{
		Model:   o.model,
		Prompt:  renderPrompt(o.promptTemplate, question),
		Stream:  &f,
		Options: o.options(),
	}

	var sb strings.Builder
	if err := o.client.Generate(ctx, &req, func(res api.GenerateResponse) error {
		sb.WriteString(res.Response)
		return nil
	}); err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}

	o.logger.Debug("Generated answer",
		slog.String("model", o.model),
		slog.Int("length", sb.Len()))

	return sb.String(), nil
}

func (o Ollama) options() map[string]any {
	opts := map[string]any{
		"temperature": DefaultTemperature,
	}
	if o.params.Temperature != nil {
		opts["temperature"] = *o.params.Temperature
	}
	if o.params.TopP != nil {
		opts["top_p"] = *o.params.TopP
	}
	if o.params.MaxTokens != nil {
		opts["num_predict"] = *o.params.MaxTokens
	}
	return opts
}
