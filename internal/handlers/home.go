package handlers

import (
	"log/slog"
	"net/http"
)

// HandleHome renders the dashboard page. Every page load gets a fresh view, which starts polling once
// the page opens its event stream.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	v := m.registry.Create()

	data, err := m.pageData(v)
	if err != nil {
		m.logger.Error("Failed to prepare page data",
			slog.String("viewID", v.ID()),
			slog.String(errLoggerKey, err.Error()))
		m.registry.Remove(v.ID())
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		m.logger.Error("Failed to render home page",
			slog.String("viewID", v.ID()),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
