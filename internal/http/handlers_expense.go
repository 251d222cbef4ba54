package http

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"ausgaben/internal/core"
	applog "ausgaben/internal/log"
	"ausgaben/internal/services"
)

// createTimeout bounds the write to the record store.
const createTimeout = 15 * time.Second

// validationMessages are the user-facing texts for create validation errors.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrInvalidAmount, "Ungültiger Betrag"},
	{core.ErrInvalidDate, "Ungültiges Datum (erwartet JJJJ-MM-TT)"},
	{core.ErrEmptyExpense, "Beschreibung oder Betrag angeben"},
	{core.ErrDescriptionLong, "Beschreibung zu lang (max. 200 Zeichen)"},
	{core.ErrInvalidReference, "Ungültige Kategorie"},
}

func validationMessage(err error) (string, bool) {
	for _, v := range validationMessages {
		if errors.Is(err, v.err) {
			return v.msg, true
		}
	}
	return "", false
}

type createdBody struct {
	ID string `json:"id"`
}

// handleCreateExpense stores one expense from a JSON or form body.
//
// API clients get 201 {"id": ...}, 422 for invalid input and 502 when the
// record store fails. Browser form posts are redirected back to the
// dashboard. Requests with HX-Request: true get an HTML fragment with
// HX-Trigger events; the bundled page does not load htmx, so this serves
// external htmx front ends that embed the form.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	html := wantsHTML(r)

	parser := NewRequestBodyParser(r)
	exp, err := ParseNewExpense(parser)
	if err == nil {
		cctx, cancel := context.WithTimeout(ctx, createTimeout)
		var id string
		id, err = s.expenses.Create(cctx, exp)
		cancel()
		if err == nil {
			s.expensesCreated.Add(1)
			s.writeCreated(w, r, id, html)
			return
		}
	}

	status, msg := createStatus(err)
	if status >= http.StatusInternalServerError {
		s.createFailures.Add(1)
		applog.NewStructuredLogger(logger).LogError(ctx, "Expense create failed", err, applog.OpCreate,
			applog.NewFields().
				WithExpense("", exp.Description, exp.Amount.Cents, exp.CategoryRef).
				WithErrorType(applog.ErrorTypeUpstream))
	} else {
		logger.WarnContext(ctx, "Expense rejected",
			applog.FieldError, err,
			applog.FieldErrorType, applog.ErrorTypeValidation,
			applog.FieldOperation, applog.OpValidate)
	}

	switch {
	case r.Header.Get("HX-Request") == "true":
		errorFragment(status, msg).write(w)
	case html:
		errorFragment(status, msg).silent().write(w)
	default:
		writeJSONError(w, status, msg)
	}
}

func (s *Server) writeCreated(w http.ResponseWriter, r *http.Request, id string, html bool) {
	switch {
	case r.Header.Get("HX-Request") == "true":
		createdFragment(id).write(w)
	case html:
		http.Redirect(w, r, "/?"+url.Values{"created": {id}}.Encode(), http.StatusSeeOther)
	default:
		writeJSON(w, http.StatusCreated, createdBody{ID: id})
	}
}

// createStatus maps a create error to a status code and message.
func createStatus(err error) (int, string) {
	if msg, ok := validationMessage(err); ok {
		return http.StatusUnprocessableEntity, msg
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, "Ungültiges Anfrageformat"
	case errors.Is(err, services.ErrWrite), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, "Fehler beim Speichern: " + err.Error()
	default:
		return http.StatusInternalServerError, "Fehler beim Speichern"
	}
}
