package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func triggerEvents(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var events map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &events); err != nil {
		t.Fatalf("HX-Trigger is not a JSON object: %v", err)
	}
	return events
}

func TestCreatedFragment(t *testing.T) {
	w := httptest.NewRecorder()
	createdFragment("abc123").write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Body.String(); got != `<div class="success">Ausgabe gespeichert.</div>` {
		t.Errorf("body = %q", got)
	}

	events := triggerEvents(t, w)
	for _, name := range []string{eventExpenseCreated, eventFormReset, eventDashboardRefresh, eventNotification} {
		if _, ok := events[name]; !ok {
			t.Errorf("HX-Trigger missing %q", name)
		}
	}
	if got := string(events[eventExpenseCreated]); got != `{"id":"abc123"}` {
		t.Errorf("expense:created = %s", got)
	}
	if !strings.Contains(string(events[eventNotification]), `"type":"success"`) {
		t.Errorf("notification = %s", events[eventNotification])
	}
}

func TestErrorFragment(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		message    string
		silent     bool
		wantBody   string
		wantEvents bool
	}{
		{
			name:       "htmx request gets a notification",
			status:     http.StatusUnprocessableEntity,
			message:    "Betrag darf nicht negativ sein",
			wantBody:   `<div class="error">Betrag darf nicht negativ sein</div>`,
			wantEvents: true,
		},
		{
			name:     "message is escaped",
			status:   http.StatusBadGateway,
			message:  "<script>alert(1)</script>",
			silent:   true,
			wantBody: `<div class="error">&lt;script&gt;alert(1)&lt;/script&gt;</div>`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := errorFragment(tt.status, tt.message)
			if tt.silent {
				f = f.silent()
			}
			w := httptest.NewRecorder()
			f.write(w)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			events := triggerEvents(t, w)
			if tt.wantEvents != (events != nil) {
				t.Fatalf("HX-Trigger present = %v, want %v", events != nil, tt.wantEvents)
			}
			if tt.wantEvents && !strings.Contains(string(events[eventNotification]), `"duration":5000`) {
				t.Errorf("error notification = %s", events[eventNotification])
			}
		})
	}
}

func TestWriteJSONError(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSONError(w, http.StatusBadGateway, "Fehler beim Laden der Daten: timeout")

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q", ct)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "Fehler beim Laden der Daten: timeout" {
		t.Errorf("error = %q", body.Error)
	}
}
