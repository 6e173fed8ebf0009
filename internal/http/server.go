package http

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"fintrack/internal/auth"
	"fintrack/internal/backend"
	"fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// Options configures the HTTP server. Nil fields get defaults.
type Options struct {
	Verifier auth.Verifier
	Limiter  *ratelimit.Limiter
	ClientIP *security.ClientIP
	Headers  *security.HeadersConfig
	Logger   *log.Logger
	// Checks run on /readyz, keyed by dependency name.
	Checks map[string]func(context.Context) error
}

// Server serves the JSON API over the application services.
type Server struct {
	http.Server

	svc      *backend.Services
	limiter  *ratelimit.Limiter
	clientIP *security.ClientIP
	tracer   *trace.Middleware
	logger   *log.Logger
	checks   map[string]func(context.Context) error

	started time.Time
	ready   atomic.Bool
}

// NewServer builds the router. The server reports ready until Shutdown.
func NewServer(addr string, svc *backend.Services, opts Options) (*Server, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	clientIP := opts.ClientIP
	if clientIP == nil {
		var err error
		if clientIP, err = security.NewClientIP(); err != nil {
			return nil, err
		}
	}
	verifier := opts.Verifier
	if verifier == nil {
		verifier = auth.HeaderVerifier{}
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.NewLimiter(ratelimit.DefaultConfig())
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	s := &Server{
		svc:      svc,
		limiter:  limiter,
		clientIP: clientIP,
		tracer:   trace.NewMiddleware(logger, clientIP.Extract),
		logger:   logger.WithComponent(log.ComponentHTTP),
		checks:   opts.Checks,
		started:  time.Now(),
	}
	s.ready.Store(true)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.Headers(headers))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, s.unauthenticated))
		r.Use(limiter.Middleware(s.rateKey, s.rateLimited))

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/", s.handleListExpenses)
			r.Post("/", s.handleCreateExpense)
			r.Get("/predict", s.handlePredictExpenses)
			r.Get("/{id}", s.handleGetExpense)
			r.Put("/{id}", s.handleUpdateExpense)
			r.Delete("/{id}", s.handleDeleteExpense)
		})
		r.Route("/budgets", func(r chi.Router) {
			r.Get("/", s.handleListBudgets)
			r.Post("/", s.handleUpsertBudget)
			r.Get("/{id}", s.handleGetBudget)
			r.Put("/{id}", s.handleUpdateBudget)
			r.Delete("/{id}", s.handleDeleteBudget)
		})
		r.Route("/goals", func(r chi.Router) {
			r.Get("/", s.handleListGoals)
			r.Post("/", s.handleCreateGoal)
			r.Get("/details", s.handleGoalDetails)
			r.Post("/reconcile", s.handleReconcileGoals)
			r.Get("/{id}", s.handleGetGoal)
			r.Put("/{id}", s.handleUpdateGoal)
			r.Delete("/{id}", s.handleDeleteGoal)
			r.Get("/{id}/expenses", s.handleGoalExpenses)
		})
		r.Route("/income", func(r chi.Router) {
			r.Get("/", s.handleListIncome)
			r.Post("/", s.handleCreateIncome)
			r.Get("/{id}", s.handleGetIncome)
			r.Put("/{id}", s.handleUpdateIncome)
			r.Delete("/{id}", s.handleDeleteIncome)
		})
		r.Get("/alerts", s.handleAlerts)
		r.Get("/predictions", s.handlePredictions)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	s.Server = http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// Shutdown marks the server not ready, drains connections and stops the
// rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.ready.Store(false)
	s.logger.Info("Shutting down HTTP server", "uptime", time.Since(s.started).Round(time.Second).String())
	err := s.Server.Shutdown(ctx)
	s.limiter.Stop()
	return err
}

// rateKey limits per owner, falling back to the client address.
func (s *Server) rateKey(r *http.Request) string {
	if owner, ok := auth.OwnerFrom(r.Context()); ok {
		return "owner:" + owner
	}
	return "ip:" + s.clientIP.Extract(r)
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.clientIP.Extract(r))
	writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
}

func (s *Server) unauthenticated(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rejected unauthenticated request",
		log.FieldError, err.Error())
	writeMessage(w, http.StatusUnauthorized, "Unauthorized")
}
