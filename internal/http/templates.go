package http

import (
	"bytes"
	"html/template"
	"net/http"
	"strconv"

	"yoyaku/internal/core"
	"yoyaku/internal/export"
	"yoyaku/internal/ledger"
	applog "yoyaku/internal/log"
	appweb "yoyaku/web"
)

var templateFuncs = template.FuncMap{
	"yen":       core.FormatYen,
	"monthName": ledger.MonthName,
	"rooms":     export.RoomSummary,
	"inc":       func(i int) int { return i + 1 },
	"guests": func(n int64) string {
		if n == 0 {
			return ""
		}
		return strconv.FormatInt(n, 10)
	},
}

// parseTemplates parses the embedded page templates.
func parseTemplates() (*template.Template, error) {
	return template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
}

// render executes a template into a buffer and writes it only on success.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentTemplate).
			ErrorContext(r.Context(), "Template execution failed", "template", name, applog.FieldError, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
