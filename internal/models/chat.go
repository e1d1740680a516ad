package models

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// ChatMessage represents an individual entry of the chat transcript. It contains the participant's
// role, the text content, and the time when the message was created. Messages are never mutated once
// appended to a transcript.
type ChatMessage struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
}

// Role represents the role of a message participant.
type Role string

const (
	// RoleUser represents a message typed by the person using the dashboard.
	RoleUser Role = "user"
	// RoleAssistant represents a reply from the question-answering backend, or the fallback message
	// when that backend could not be reached.
	RoleAssistant Role = "assistant"
)

const (
	// Greeting is the assistant message every transcript starts with.
	Greeting = "안녕하세요. KOSPI 관련 질문에 답변 드리겠습니다."
	// ChatFallback replaces the assistant reply when the chat round trip fails.
	ChatFallback = "죄송합니다. 오류가 발생했습니다."
)

// NewChatMessage creates a message with a fresh identifier and the current time.
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// RenderMarkdown converts message content into HTML. Raw HTML embedded in the content is omitted by
// the renderer, so the result is safe to place into a template unescaped.
func RenderMarkdown(content string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}
