package http

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"ausgaben/internal/core"
	applog "ausgaben/internal/log"
	"ausgaben/internal/middleware/ratelimit"
	"ausgaben/internal/middleware/security"
	"ausgaben/internal/middleware/trace"
	"ausgaben/internal/services"
	"ausgaben/internal/ui"
	appweb "ausgaben/web"
)

// DashboardProvider hands out the current snapshot and the engine options
// it is computed with.
type DashboardProvider interface {
	Snapshot(ctx context.Context) (core.Snapshot, error)
	Options(opts core.DashboardOptions) core.DashboardOptions
	Stats() services.Stats
}

// ExpenseCreator stores a new expense and returns its id.
type ExpenseCreator interface {
	Create(ctx context.Context, e core.NewExpense) (string, error)
}

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of the server. Pinger may be nil.
type Deps struct {
	Dashboard DashboardProvider
	Expenses  ExpenseCreator
	Pinger    Pinger
	Settings  ui.Settings
	Logger    *applog.Logger
	// BlockSuspicious answers 404 to scanner traffic instead of only logging it.
	BlockSuspicious bool
	// RequestsPerMinute bounds POST requests per client.
	RequestsPerMinute int
	// Now overrides the clock; tests only.
	Now func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard DashboardProvider
	expenses  ExpenseCreator
	pinger    Pinger
	settings  ui.Settings
	logger    *applog.Logger
	now       func() time.Time
	started   time.Time

	traceMiddleware  *trace.Middleware
	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	headers          *security.HeadersMiddleware

	expensesCreated atomic.Int64
	createFailures  atomic.Int64
	shutdownOnce    sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		dashboard:        deps.Dashboard,
		expenses:         deps.Expenses,
		pinger:           deps.Pinger,
		settings:         deps.Settings,
		logger:           logger,
		now:              now,
		started:          now(),
		securityDetector: security.NewDetector(),
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Limit:  deps.RequestsPerMinute,
			Window: time.Minute,
		}),
		headers: security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
	}
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, logger)

	t, err := appweb.Templates()
	if err != nil {
		logger.WithComponent(applog.ComponentTemplate).Warn("Failed parsing templates", applog.FieldError, err)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := appweb.Static(); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.Handle("GET /api/dashboard", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPIDashboard)))
	mux.Handle("GET /api/summary", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPISummary)))
	mux.Handle("GET /api/series/daily", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPIDailySeries)))
	mux.Handle("GET /api/series/monthly", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPIMonthlySeries)))
	mux.Handle("GET /api/categories", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPICategories)))
	mux.Handle("GET /api/expenses/recent", security.NoStoreMiddleware(http.HandlerFunc(s.handleAPIRecent)))
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	// Wrapped inside out; tracing ends up outermost and sees rejected requests.
	var h http.Handler = mux
	h = s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited, http.MethodPost)(h)
	h = s.headers.Middleware(h)
	h = s.securityDetector.Middleware(deps.BlockSuspicious)(h)
	h = s.traceMiddleware.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	const msg = "Zu viele Anfragen. Bitte später erneut versuchen."
	switch {
	case r.Header.Get("HX-Request") == "true":
		errorFragment(http.StatusTooManyRequests, msg).write(w)
		return
	case wantsHTML(r):
		errorFragment(http.StatusTooManyRequests, msg).silent().write(w)
		return
	}
	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
