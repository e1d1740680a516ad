package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/kdb-labs/kospi-chat/internal/answer"
	"github.com/kdb-labs/kospi-chat/internal/services"
	"gopkg.in/yaml.v3"
)

type llmConfig interface {
	answerer(promptTemplate string, logger *slog.Logger) (answer.Answerer, error)
}

// BaseLLMConfig contains the common fields for all LLM configurations.
type BaseLLMConfig struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`

	services.LLMParameters `yaml:",inline"`
}

type config struct {
	Port           string
	PromptTemplate string
	LLM            llmConfig
	Logging        loggingConfig
}

type loggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type ollamaConfig struct {
	BaseLLMConfig `yaml:",inline"`
	Host          string `yaml:"host"`
}

type openAIConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type anthropicConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

type openRouterConfig struct {
	BaseLLMConfig `yaml:",inline"`
	APIKey        string `yaml:"apiKey"`
	BaseURL       string `yaml:"baseURL"`
}

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "llama3.2:latest"
)

func defaultConfig() config {
	return config{
		Port:           "8000",
		PromptTemplate: services.DefaultPromptTemplate,
		LLM: &ollamaConfig{
			BaseLLMConfig: BaseLLMConfig{Provider: "ollama", Model: defaultOllamaModel},
		},
		Logging: loggingConfig{Level: "info"},
	}
}

// loadConfig reads the yaml file at path over the defaults. A missing file means the defaults: an
// Ollama model reached through OLLAMA_HOST.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return config{}, fmt.Errorf("error reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	if v := os.Getenv("KOSPICHAT_BACKEND_PORT"); v != "" {
		cfg.Port = v
	}
	return cfg, nil
}

func (c *config) UnmarshalYAML(value *yaml.Node) error {
	var rawConfig struct {
		Port           string         `yaml:"port"`
		PromptTemplate string         `yaml:"promptTemplate"`
		LLM            map[string]any `yaml:"llm"`
		Logging        *loggingConfig `yaml:"logging"`
	}

	if err := value.Decode(&rawConfig); err != nil {
		return err
	}

	if rawConfig.Port != "" {
		c.Port = rawConfig.Port
	}
	if rawConfig.PromptTemplate != "" {
		c.PromptTemplate = rawConfig.PromptTemplate
	}
	if rawConfig.Logging != nil {
		c.Logging = *rawConfig.Logging
	}

	if rawConfig.LLM == nil {
		return nil
	}

	llmProvider, ok := rawConfig.LLM["provider"].(string)
	if !ok {
		return fmt.Errorf("llm provider is required")
	}

	llmRawYAML, err := yaml.Marshal(rawConfig.LLM)
	if err != nil {
		return err
	}

	var llm llmConfig
	switch llmProvider {
	case "ollama":
		llm = &ollamaConfig{}
	case "openai":
		llm = &openAIConfig{}
	case "anthropic":
		llm = &anthropicConfig{}
	case "openrouter":
		llm = &openRouterConfig{}
	default:
		return fmt.Errorf("unknown llm provider: %s", llmProvider)
	}

	if err := yaml.Unmarshal(llmRawYAML, llm); err != nil {
		return err
	}

	c.LLM = llm
	return nil
}

func (o ollamaConfig) answerer(promptTemplate string, logger *slog.Logger) (answer.Answerer, error) {
	model := o.Model
	if model == "" {
		model = defaultOllamaModel
	}

	host := o.Host
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}
	return services.NewOllama(host, model, promptTemplate, o.LLMParameters, logger), nil
}

func (o openAIConfig) answerer(promptTemplate string, logger *slog.Logger) (answer.Answerer, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" && o.BaseURL == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return services.NewOpenAI(apiKey, o.BaseURL, o.Model, promptTemplate, o.LLMParameters, logger), nil
}

func (a anthropicConfig) answerer(promptTemplate string, logger *slog.Logger) (answer.Answerer, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := a.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return services.NewAnthropic(apiKey, a.BaseURL, a.Model, promptTemplate, a.LLMParameters, logger), nil
}

func (o openRouterConfig) answerer(promptTemplate string, logger *slog.Logger) (answer.Answerer, error) {
	if o.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	apiKey := o.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	return services.NewOpenRouter(apiKey, o.BaseURL, o.Model, promptTemplate, o.LLMParameters, logger), nil
}
