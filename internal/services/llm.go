package services

import "strings"

// DefaultPromptTemplate asks the model to reason step by step before answering. The {question}
// placeholder is replaced with the user's question.
const DefaultPromptTemplate = "질문: {question}\n\n단계별로 생각해 봅시다\n답변:"

// DefaultTemperature keeps answers close to deterministic.
const DefaultTemperature float32 = 0.1

// LLMParameters holds the optional sampling parameters shared by the LLM-backed answerers. A nil
// field leaves the provider default in place.
type LLMParameters struct {
	Temperature *float32 `yaml:"temperature"`
	TopP        *float32 `yaml:"topP"`
	MaxTokens   *int     `yaml:"maxTokens"`
}

func renderPrompt(template, question string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.ReplaceAll(template, "{question}", question)
}
