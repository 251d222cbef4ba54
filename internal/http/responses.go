package http

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
)

// HTMX events sent to clients that post with HX-Request: true. The bundled
// dashboard page works without them.
const (
	eventExpenseCreated   = "expense:created"
	eventFormReset        = "form:reset"
	eventDashboardRefresh = "dashboard:refresh"
	eventNotification     = "show-notification"
)

type noticeKind string

const (
	noticeSuccess noticeKind = "success"
	noticeError   noticeKind = "error"
)

// fragment is the HTML snippet answered to HTMX requests. Events end up in
// the HX-Trigger header as one JSON object.
type fragment struct {
	status int
	class  string
	text   string
	events map[string]interface{}
}

func newFragment(status int, class, text string) *fragment {
	return &fragment{status: status, class: class, text: text, events: map[string]interface{}{}}
}

func errorFragment(status int, text string) *fragment {
	return newFragment(status, "error", text).notify(noticeError, text)
}

// createdFragment confirms a stored expense and asks the page to reset the
// form and reload the dashboard.
func createdFragment(id string) *fragment {
	const text = "Ausgabe gespeichert."
	return newFragment(http.StatusCreated, "success", text).
		on(eventExpenseCreated, map[string]string{"id": id}).
		on(eventFormReset, struct{}{}).
		on(eventDashboardRefresh, struct{}{}).
		notify(noticeSuccess, text)
}

func (f *fragment) on(event string, data interface{}) *fragment {
	f.events[event] = data
	return f
}

func (f *fragment) notify(kind noticeKind, message string) *fragment {
	duration := 3000
	if kind == noticeError {
		duration = 5000
	}
	return f.on(eventNotification, map[string]interface{}{
		"type":     string(kind),
		"message":  message,
		"duration": duration,
	})
}

// silent drops the events, for plain form posts that get a full page back.
func (f *fragment) silent() *fragment {
	f.events = map[string]interface{}{}
	return f
}

func (f *fragment) write(w http.ResponseWriter) {
	if len(f.events) > 0 {
		if b, err := json.Marshal(f.events); err == nil {
			w.Header().Set("HX-Trigger", string(b))
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(f.status)
	_, _ = w.Write([]byte(`<div class="` + f.class + `">` + template.HTMLEscapeString(f.text) + `</div>`))
}

// writeJSON encodes v with the given status. Encoding errors after the
// header is written can only be logged.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err, "status", status)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}
