// Package http exposes the JSON API: auth, couple lifecycle, expenses,
// goals, and reports.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"coppia/internal/auth"
	"coppia/internal/log"
	"coppia/internal/middleware/ratelimit"
	"coppia/internal/services"
)

// Server wires the services into the router and owns the listener.
type Server struct {
	httpServer *http.Server

	jwt           *auth.JWTManager
	authenticator *auth.PasswordAuthenticator
	couples       *services.CoupleService
	expenses      *services.ExpenseService
	goals         *services.GoalService
	reports       *services.ReportService
	limiter       ratelimit.KeyLimiter
	metrics       *appMetrics
}

// Deps carries everything the server needs. Limiter may be nil to disable
// rate limiting, as in tests.
type Deps struct {
	JWT           *auth.JWTManager
	Authenticator *auth.PasswordAuthenticator
	Couples       *services.CoupleService
	Expenses      *services.ExpenseService
	Goals         *services.GoalService
	Reports       *services.ReportService
	Limiter       ratelimit.KeyLimiter
	Logger        *log.Logger
}

func NewServer(addr string, deps Deps) *Server {
	s := &Server{
		jwt:           deps.JWT,
		authenticator: deps.Authenticator,
		couples:       deps.Couples,
		expenses:      deps.Expenses,
		goals:         deps.Goals,
		reports:       deps.Reports,
		limiter:       deps.Limiter,
		metrics:       newAppMetrics(),
	}

	r := chi.NewRouter()
	if deps.Logger != nil {
		r.Use(log.Middleware(deps.Logger))
		r.Use(log.RequestLogger(deps.Logger))
	}
	r.Use(s.metrics.countRequests)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)
			r.Use(s.rateLimitMiddleware)

			r.Route("/couple", func(r chi.Router) {
				r.Post("/invite", s.handleInvite)
				r.Post("/accept", s.handleAccept)
				r.Get("/", s.handleCurrentCouple)
				r.Delete("/", s.handleLeave)
				r.Get("/invitations", s.handlePendingInvitations)
				r.Patch("/settings", s.handleUpdateSettings)
				r.Get("/budget", s.handleBudgetUsage)
			})

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", s.handleCreateExpense)
				r.Get("/", s.handleListExpenses)
				r.Get("/shared", s.handleListSharedExpenses)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetExpense)
					r.Patch("/", s.handlePatchExpense)
					r.Delete("/", s.handleDeleteExpense)
					r.Get("/split", s.handleExpenseSplit)
				})
			})

			r.Route("/goals", func(r chi.Router) {
				r.Post("/", s.handleCreateGoal)
				r.Get("/", s.handleListGoals)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetGoal)
					r.Patch("/", s.handlePatchGoal)
					r.Post("/pause", s.handlePauseGoal)
					r.Post("/resume", s.handleResumeGoal)
					r.Post("/cancel", s.handleCancelGoal)
					r.Get("/progress", s.handleGoalProgress)
					r.Post("/contributions", s.handleContribute)
					r.Get("/contributions", s.handleLedger)
					r.Post("/withdrawals", s.handleWithdraw)
				})
			})

			r.Route("/reports", func(r chi.Router) {
				r.Get("/categories", s.handleCategoryTotals)
				r.Get("/trend", s.handleMonthlyTrend)
				r.Get("/forecast", s.handleForecast)
				r.Get("/couple/categories", s.handleCoupleCategoryTotals)
				r.Get("/couple/trend", s.handleCoupleMonthlyTrend)
			})
		})
	})

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
