package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dualbudget/internal/budget"
	"dualbudget/internal/core"
	applog "dualbudget/internal/log"
	"dualbudget/internal/middleware/ratelimit"
	"dualbudget/internal/middleware/security"
	"dualbudget/internal/middleware/trace"
	"dualbudget/internal/reconcile"
	"dualbudget/internal/storage"
)

// Service is the ledger surface the API exposes. *services.BudgetService
// implements it.
type Service interface {
	Ping(ctx context.Context) error
	CreateProfile(ctx context.Context, name string, settings core.Settings) (core.Profile, core.Settings, error)
	Settings(ctx context.Context, profileID string) (core.Settings, error)
	Summary(ctx context.Context, profileID string, bt core.BudgetType, month core.Month) (budget.BudgetSummary, error)
	Forecast(ctx context.Context, profileID string, bt core.BudgetType, month core.Month, expectedIncome decimal.Decimal) (map[string]decimal.Decimal, error)
	SetBudget(ctx context.Context, profileID string, month core.Month, categoryID string, amount decimal.Decimal) (core.MonthlyBudget, error)
	CreateAccount(ctx context.Context, a *core.Account) error
	NetWorth(ctx context.Context, profileID string, bt core.BudgetType) (core.NetWorth, error)
	CreateCategory(ctx context.Context, c *core.Category) error
	UpdateCategory(ctx context.Context, id string, patch core.CategoryPatch) (core.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	CreateTransaction(ctx context.Context, t *core.Transaction) error
	DeleteTransaction(ctx context.Context, id string) error
	CreateTransfer(ctx context.Context, in storage.Transfer) (core.Transaction, core.Transaction, error)
	CreateProject(ctx context.Context, p *core.Project) error
	ProjectReport(ctx context.Context, projectID string) (budget.ProjectReport, error)
	Reconcile(ctx context.Context, profileID string) (reconcile.Report, error)
}

type Server struct {
	http.Server
	svc      Service
	logger   *applog.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	now      func() time.Time

	rateLimit    ratelimit.Config
	shutdownOnce sync.Once
}

type Option func(*Server)

// WithLogger sets the logger handlers inherit through the request context.
func WithLogger(logger *applog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRateLimit overrides the write rate limit.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) { s.rateLimit = cfg }
}

// WithClock sets the time source used for the default month.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, svc Service, opts ...Option) *Server {
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 5 * time.Second,
		},
		svc:       svc,
		detector:  security.NewDetector(),
		now:       time.Now,
		rateLimit: ratelimit.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = applog.New(applog.DefaultConfig())
	}
	s.logger = s.logger.WithComponent(applog.ComponentHTTP)
	s.limiter = ratelimit.NewLimiter(s.rateLimit)
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /statsz", s.handleStats)

	mux.HandleFunc("POST /api/profiles", s.handleCreateProfile)
	mux.HandleFunc("GET /api/profiles/{profile}/settings", s.handleSettings)
	mux.HandleFunc("GET /api/profiles/{profile}/summary", s.handleSummary)
	mux.HandleFunc("GET /api/profiles/{profile}/forecast", s.handleForecast)
	mux.HandleFunc("PUT /api/profiles/{profile}/budgets", s.handleSetBudget)
	mux.HandleFunc("POST /api/profiles/{profile}/accounts", s.handleCreateAccount)
	mux.HandleFunc("GET /api/profiles/{profile}/net-worth", s.handleNetWorth)
	mux.HandleFunc("POST /api/profiles/{profile}/categories", s.handleCreateCategory)
	mux.HandleFunc("PATCH /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)
	mux.HandleFunc("POST /api/profiles/{profile}/transactions", s.handleCreateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/profiles/{profile}/transfers", s.handleCreateTransfer)
	mux.HandleFunc("POST /api/profiles/{profile}/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{id}/report", s.handleProjectReport)
	mux.HandleFunc("POST /api/profiles/{profile}/reconcile", s.handleReconcile)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.rejectRateLimited)(h)
	h = s.detector.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)
	h = applog.Middleware(s.logger)(h)
	s.Handler = h

	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) rejectRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.detector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, errorResponse{
		Error:     "rate limit exceeded, retry later",
		Code:      applog.ErrorTypeRateLimit,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.svc.Ping(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

type statsResponse struct {
	Requests          int64 `json:"requests"`
	ServerErrors      int64 `json:"server_errors"`
	AverageResponseMs int64 `json:"average_response_ms"`
	RateLimited       int64 `json:"rate_limited"`
	TrackedClients    int64 `json:"tracked_clients"`
	Suspicious        int64 `json:"suspicious_requests"`
	InvalidClientIPs  int64 `json:"invalid_client_ips"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rl := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()
	writeJSON(w, r, http.StatusOK, statsResponse{
		Requests:          tm.TotalRequests,
		ServerErrors:      tm.ServerErrors,
		AverageResponseMs: tm.AverageResponseTime().Milliseconds(),
		RateLimited:       rl.Rejected,
		TrackedClients:    rl.ClientCount,
		Suspicious:        dm.SuspiciousRequests,
		InvalidClientIPs:  dm.InvalidIPAttempts,
	})
}
