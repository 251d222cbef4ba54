package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ausgaben/internal/core"
	applog "ausgaben/internal/log"
	"ausgaben/internal/services"
	"ausgaben/internal/ui"
)

// fetchTimeout bounds one dashboard computation including the record fetch.
const fetchTimeout = 10 * time.Second

// loadErrorPrefix is shown before the failure reason on the page.
const loadErrorPrefix = "Fehler beim Laden der Daten: "

// loadDashboard computes the dashboard for q. The snapshot is returned too
// so the page can list every category, not only those with spending.
func (s *Server) loadDashboard(r *http.Request, q DashboardQuery) (core.Dashboard, core.Snapshot, error) {
	opts, err := q.Options(s.now())
	if err != nil {
		return core.Dashboard{}, core.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(r.Context(), fetchTimeout)
	defer cancel()
	snap, err := s.dashboard.Snapshot(ctx)
	if err != nil {
		return core.Dashboard{}, core.Snapshot{}, err
	}
	return core.BuildDashboard(snap, s.dashboard.Options(opts)), snap, nil
}

// dashboardStatus maps a dashboard error to a status code and message.
func dashboardStatus(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrInvalidPeriod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, services.ErrFetch), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway, loadErrorPrefix + err.Error()
	default:
		return http.StatusInternalServerError, loadErrorPrefix + err.Error()
	}
}

func (s *Server) logDashboardError(r *http.Request, err error) {
	errType := applog.ErrorTypeUpstream
	if errors.Is(err, core.ErrInvalidPeriod) {
		errType = applog.ErrorTypeValidation
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
		"Dashboard load failed", err, applog.OpFetch,
		applog.NewFields().WithErrorType(errType))
}

// handleIndex renders the dashboard page. Load failures still render the
// page chrome with an error banner and a retry link.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Templates not loaded", applog.FieldPath, r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	settings := ui.FromRequest(w, r, s.settings)
	q := ParseDashboardQuery(r.URL.Query())

	status := http.StatusOK
	var view pageView
	d, snap, err := s.loadDashboard(r, q)
	if err != nil {
		s.logDashboardError(r, err)
		var msg string
		status, msg = dashboardStatus(err)
		view = basePageView(q, settings)
		view.Error = msg
	} else {
		view = newPageView(d, q, settings, s.now())
		view.CategoryOptions = categoryOptions(snap.Categories)
	}
	if r.URL.Query().Get("created") != "" {
		view.Notice = "Ausgabe gespeichert."
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, "index.html", view); err != nil {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).LogError(r.Context(),
			"Index template execution failed", err, applog.OpRender,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
	}
}

// serveAPI loads the dashboard for the request and writes render(d) as JSON.
func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request, q DashboardQuery, render func(core.Dashboard) interface{}) {
	d, _, err := s.loadDashboard(r, q)
	if err != nil {
		s.logDashboardError(r, err)
		status, msg := dashboardStatus(err)
		writeJSONError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, render(d))
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	s.serveAPI(w, r, ParseDashboardQuery(r.URL.Query()), func(d core.Dashboard) interface{} {
		return newDashboardJSON(d)
	})
}

func (s *Server) handleAPISummary(w http.ResponseWriter, r *http.Request) {
	s.serveAPI(w, r, ParseDashboardQuery(r.URL.Query()), func(d core.Dashboard) interface{} {
		return struct {
			Period  summaryJSON `json:"period"`
			AllTime summaryJSON `json:"all_time"`
			Undated int         `json:"undated"`
		}{newSummaryJSON(d.Period), newSummaryJSON(d.AllTime), d.Undated}
	})
}

// handleAPIDailySeries returns one bucket per day. A days parameter without
// an explicit period selects the trailing window of that length.
func (s *Server) handleAPIDailySeries(w http.ResponseWriter, r *http.Request) {
	q := ParseDashboardQuery(r.URL.Query())
	if q.Period == "" && q.Days > 0 {
		q.Period = string(core.PeriodDays)
	}
	s.serveAPI(w, r, q, func(d core.Dashboard) interface{} {
		return struct {
			Period periodJSON        `json:"period"`
			Points []seriesPointJSON `json:"points"`
		}{newPeriodJSON(d.Period.Period), newSeriesJSON(d.Daily)}
	})
}

func (s *Server) handleAPIMonthlySeries(w http.ResponseWriter, r *http.Request) {
	s.serveAPI(w, r, ParseDashboardQuery(r.URL.Query()), func(d core.Dashboard) interface{} {
		return struct {
			Points []seriesPointJSON `json:"points"`
		}{newSeriesJSON(d.Monthly)}
	})
}

func (s *Server) handleAPICategories(w http.ResponseWriter, r *http.Request) {
	s.serveAPI(w, r, ParseDashboardQuery(r.URL.Query()), func(d core.Dashboard) interface{} {
		return struct {
			Period     periodJSON     `json:"period"`
			Total      moneyJSON      `json:"total"`
			Categories []categoryJSON `json:"categories"`
		}{newPeriodJSON(d.Period.Period), newMoneyJSON(d.Period.Total), newCategoriesJSON(d.Top)}
	})
}

func (s *Server) handleAPIRecent(w http.ResponseWriter, r *http.Request) {
	s.serveAPI(w, r, ParseDashboardQuery(r.URL.Query()), func(d core.Dashboard) interface{} {
		return struct {
			Expenses []recentJSON `json:"expenses"`
		}{newRecentJSON(d.Recent)}
	})
}
