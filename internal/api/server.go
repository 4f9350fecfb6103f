// Package api exposes the wallet over HTTP: public wallet operations, admin
// maintenance and the operational endpoints (health, readiness, metrics).
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberearn/reward-wallet/internal/engine"
	apperrors "github.com/cyberearn/reward-wallet/internal/errors"
	"github.com/cyberearn/reward-wallet/internal/giftcode"
	"github.com/cyberearn/reward-wallet/internal/health"
	"github.com/cyberearn/reward-wallet/internal/identity"
	"github.com/cyberearn/reward-wallet/internal/jobs"
	"github.com/cyberearn/reward-wallet/internal/ledger"
	"github.com/cyberearn/reward-wallet/internal/lifecycle"
	"github.com/cyberearn/reward-wallet/internal/repository"
	"github.com/cyberearn/reward-wallet/internal/settings"
	"github.com/cyberearn/reward-wallet/pkg/logger"
)

// Server bundles the HTTP handlers and their collaborators.
type Server struct {
	engine   *engine.Engine
	settings *settings.Service
	registry *giftcode.Registry
	ledger   *ledger.Service
	users    repository.UserRepository
	gateway  *identity.Gateway
	checker  *health.Checker
	probes   lifecycle.HealthChecker
	jobs     jobs.Manager
	errs     *apperrors.Handler
	log      *slog.Logger
}

// Deps collects the server's collaborators. Jobs may be nil when the queue is
// disabled.
type Deps struct {
	Engine   *engine.Engine
	Settings *settings.Service
	Registry *giftcode.Registry
	Ledger   *ledger.Service
	Users    repository.UserRepository
	Gateway  *identity.Gateway
	Checker  *health.Checker
	Probes   lifecycle.HealthChecker
	Jobs     jobs.Manager
	Errors   *apperrors.Handler
	Log      *slog.Logger
}

// NewServer constructs the HTTP server.
func NewServer(deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Errors == nil {
		deps.Errors = apperrors.NewHandler(deps.Log, false)
	}

	return &Server{
		engine:   deps.Engine,
		settings: deps.Settings,
		registry: deps.Registry,
		ledger:   deps.Ledger,
		users:    deps.Users,
		gateway:  deps.Gateway,
		checker:  deps.Checker,
		probes:   deps.Probes,
		jobs:     deps.Jobs,
		errs:     deps.Errors,
		log:      deps.Log,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(logger.Middleware)
	r.Use(requestLogger(s.log))
	r.Use(operationMetrics)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/users", s.handleRegister)
		r.Get("/leaderboard", s.handleLeaderboard)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Get("/", s.handleStatus)
			r.Post("/verify", s.handleVerify)
			r.Get("/history", s.handleHistory)
			r.Get("/referrals", s.handleReferrals)
			r.Post("/withdrawals", s.handleWithdraw)
			r.Post("/gift-claims", s.handleClaim)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)

			r.Get("/settings", s.handleGetSettings)
			r.Patch("/settings", s.handleUpdateSettings)
			r.Get("/stats", s.handleStats)

			r.Get("/gift-codes", s.handleListGiftCodes)
			r.Post("/gift-codes", s.handleCreateGiftCode)
			r.Patch("/gift-codes/{code}", s.handleToggleGiftCode)

			r.Get("/withdrawals", s.handleListWithdrawals)
			r.Post("/withdrawals/{txID}/settle", s.handleSettleWithdrawal)
		})
	})

	return r
}

// requireAdmin gates the admin surface on the acting user carried in the
// X-Actor-ID header.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get("X-Actor-ID")
		if actorID == "" || s.gateway == nil || !s.gateway.IsAdmin(r.Context(), actorID) {
			s.writeJSON(w, http.StatusForbidden, envelope{Error: &errorBody{
				Kind:    string(apperrors.KindPolicyViolation),
				Message: "admin access required",
				Reason:  "forbidden",
			}})
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.probes != nil {
		if err := s.probes.Liveness(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.checker == nil {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	results := s.checker.Check(r.Context())
	status := http.StatusOK
	for _, result := range results {
		if result != "OK" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	s.writeJSON(w, status, envelope{OK: status == http.StatusOK, Data: results})
}

// requestLeaderboardRefresh asks the background worker for a recompute after
// a balance-changing operation. Best effort.
func (s *Server) requestLeaderboardRefresh(r *http.Request, trigger string) {
	if s.jobs == nil {
		return
	}

	task, err := jobs.NewLeaderboardRefreshTask(trigger)
	if err != nil {
		return
	}
	if _, err := s.jobs.Enqueue(r.Context(), task); err != nil {
		s.log.Warn("failed to enqueue leaderboard refresh", slog.Any("error", err))
	}
}
