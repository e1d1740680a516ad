package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kdb-labs/kospi-chat/internal/dashboard"
)

// HandleChat submits a chat message of a view. It expects the "view_id" and "message" form fields.
// The message is appended to the transcript and the re-rendered chatbox, with a loading bubble in place
// of the reply, is returned. The reply itself reaches the page over the view's event stream.
//
// A missing view or a blank message is a bad request. A message sent while the previous one is still
// in flight is ignored and the chatbox is returned unchanged.
func (m Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	v, ok := m.view(w, r)
	if !ok {
		return
	}

	msg := r.FormValue("message")
	if strings.TrimSpace(msg) == "" {
		m.logger.Error("Message is required", slog.String("viewID", v.ID()))
		http.Error(w, "Message is required", http.StatusBadRequest)
		return
	}

	// The round trip outlives this request, the reply is pushed over the stream
	if !v.SendAsync(context.WithoutCancel(r.Context()), msg) {
		m.logger.Warn("Message dropped, a reply is pending", slog.String("viewID", v.ID()))
	}

	m.render(w, v, "chatbox")
}

// HandleSelectSecurity prefills the chat input of a view with a question about the picked security.
// It expects the "view_id" and "code" form fields and returns the re-rendered chat form.
func (m Main) HandleSelectSecurity(w http.ResponseWriter, r *http.Request) {
	v, ok := m.view(w, r)
	if !ok {
		return
	}

	code := r.FormValue("code")
	if !v.SelectSecurity(code) {
		m.logger.Warn("Unknown security", slog.String("code", code))
	}

	m.render(w, v, "chat_form")
}

// HandlePlans opens or closes the plan modal of a view, following the "open" form field.
func (m Main) HandlePlans(w http.ResponseWriter, r *http.Request) {
	v, ok := m.view(w, r)
	if !ok {
		return
	}

	v.SetPlansOpen(r.FormValue("open") == "true")

	m.render(w, v, "plan_modal")
}

// HandleSSE streams the re-rendered partials of the view named by the "view_id" query parameter. Each
// stream holds one mount of the view for as long as it is open, so a reconnecting page keeps the view
// polling while the old stream winds down. An abandoned view is later dropped by the registry.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	viewID := r.URL.Query().Get("view_id")
	v, ok := m.registry.Get(viewID)
	if !ok {
		m.logger.Error("View not found", slog.String("viewID", viewID))
		http.Error(w, "View not found", http.StatusNotFound)
		return
	}
	v.Mount(r.Context())
	defer v.Unmount()

	m.sseSrv.ServeHTTP(w, r)
}

func (m Main) render(w http.ResponseWriter, v *dashboard.View, name string) {
	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to prepare page data",
			slog.String("viewID", v.ID()),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, name, data); err != nil {
		m.logger.Error("Failed to render partial",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
