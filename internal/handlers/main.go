package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	kospichat "github.com/kdb-labs/kospi-chat"
	"github.com/kdb-labs/kospi-chat/internal/dashboard"
	"github.com/kdb-labs/kospi-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

// Main serves the dashboard pages. Every page owns a dashboard view; changes of that view are
// re-rendered as partials and pushed to the page over its server-sent events stream.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	registry *dashboard.Registry

	logger *slog.Logger
}

type message struct {
	ID        string
	Role      string
	Content   template.HTML
	Timestamp time.Time
}

type pageData struct {
	ViewID string
	dashboard.State

	Messages []message
	Plans    []models.Plan
}

const errLoggerKey = "err"

// partTemplates lists the partials re-rendered when a part of the view changes. Each partial is sent
// as an event named after it, and the page swaps the element with the same id.
var partTemplates = map[dashboard.Part][]string{
	dashboard.PartChat:   {"chatbox", "chat_form"},
	dashboard.PartInput:  {"chat_form"},
	dashboard.PartMarket: {"index_card", "top_movers"},
	dashboard.PartNews:   {"news_grid"},
	dashboard.PartPicker: {"security_picker"},
	dashboard.PartPlans:  {"plan_modal"},
}

var templateFuncs = template.FuncMap{
	"medal":        models.Medal,
	"companyImage": models.CompanyImage,
}

// NewMain creates a Main serving the views of registry. It parses the templates from the embedded
// filesystem and subscribes to the registry's view changes.
func NewMain(registry *dashboard.Registry, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(
		kospichat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, fmt.Errorf("failed to parse templates: %w", err)
	}

	m := Main{
		templates: tmpl,
		registry:  registry,
		logger:    logger.With(slog.String("module", "main")),
	}
	m.sseSrv = &sse.Server{
		OnSession: m.onSession,
	}
	registry.SetOnChange(m.publish)

	return m, nil
}

func viewTopic(viewID string) string {
	return fmt.Sprintf("view-%s", viewID)
}

// onSession binds a stream to its view. The current state of every part is sent first, which makes a
// reconnecting page consistent again.
func (m Main) onSession(s *sse.Session) (sse.Subscription, bool) {
	viewID := s.Req.URL.Query().Get("view_id")
	v, ok := m.registry.Get(viewID)
	if !ok {
		return sse.Subscription{}, false
	}

	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to prepare page data",
			slog.String("viewID", viewID),
			slog.String(errLoggerKey, err.Error()))
		return sse.Subscription{}, false
	}
	for _, part := range []dashboard.Part{dashboard.PartChat, dashboard.PartMarket, dashboard.PartNews,
		dashboard.PartPicker} {
		for _, name := range partTemplates[part] {
			msg, err := m.renderEvent(name, data)
			if err != nil {
				m.logger.Error("Failed to render partial",
					slog.String("template", name),
					slog.String(errLoggerKey, err.Error()))
				continue
			}
			if err := s.Send(msg); err != nil {
				return sse.Subscription{}, false
			}
		}
	}
	if err := s.Flush(); err != nil {
		return sse.Subscription{}, false
	}

	return sse.Subscription{
		Client:      s,
		LastEventID: s.LastEventID,
		Topics:      []string{sse.DefaultTopic, viewTopic(viewID)},
	}, true
}

// publish re-renders the partials of the changed part and pushes them to the view's stream.
func (m Main) publish(viewID string, part dashboard.Part) {
	v, ok := m.registry.Get(viewID)
	if !ok {
		return
	}
	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to prepare page data",
			slog.String("viewID", viewID),
			slog.String(errLoggerKey, err.Error()))
		return
	}

	for _, name := range partTemplates[part] {
		msg, err := m.renderEvent(name, data)
		if err != nil {
			m.logger.Error("Failed to render partial",
				slog.String("template", name),
				slog.String(errLoggerKey, err.Error()))
			continue
		}
		if err := m.sseSrv.Publish(msg, viewTopic(viewID)); err != nil {
			m.logger.Error("Failed to publish partial",
				slog.String("viewID", viewID),
				slog.String("template", name),
				slog.String(errLoggerKey, err.Error()))
			return
		}
	}
}

func (m Main) renderEvent(name string, data pageData) (*sse.Message, error) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		return nil, fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	msg := &sse.Message{Type: sse.Type(name)}
	msg.AppendData(sb.String())
	return msg, nil
}

func (m Main) pageData(v *dashboard.View) (pageData, error) {
	state := v.Snapshot()

	msgs := make([]message, len(state.Transcript))
	for i, cm := range state.Transcript {
		content := template.HTML(template.HTMLEscapeString(cm.Content))
		if cm.Role == models.RoleAssistant {
			var err error
			content, err = models.RenderMarkdown(cm.Content)
			if err != nil {
				return pageData{}, fmt.Errorf("failed to render message %s: %w", cm.ID, err)
			}
		}
		msgs[i] = message{
			ID:        cm.ID,
			Role:      string(cm.Role),
			Content:   content,
			Timestamp: cm.Timestamp,
		}
	}

	return pageData{
		ViewID:   v.ID(),
		State:    state,
		Messages: msgs,
		Plans:    models.Plans,
	}, nil
}

func (m Main) view(w http.ResponseWriter, r *http.Request) (*dashboard.View, bool) {
	viewID := r.FormValue("view_id")
	v, ok := m.registry.Get(viewID)
	if !ok {
		m.logger.Error("View not found", slog.String("viewID", viewID))
		http.Error(w, "View not found", http.StatusBadRequest)
		return nil, false
	}
	return v, true
}

// Shutdown gracefully terminates the Main instance's SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate. After the timeout, any
// remaining connections are forcefully closed.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeView")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}
