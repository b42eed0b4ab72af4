// Package httpapi is the chi-routed HTTP surface: webhook ingestion,
// connection status/lifecycle, and commitment CRUD. Every route runs
// behind the bearer-auth middleware except the /livez and /readyz
// probes and the webhook, which is authenticated by its own HMAC
// signature instead.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/commitloop/engine/internal/api"
	"github.com/commitloop/engine/internal/commitment"
	"github.com/commitloop/engine/internal/connection"
	"github.com/commitloop/engine/internal/credit"
	"github.com/commitloop/engine/internal/live"
	"github.com/commitloop/engine/internal/query"
	"github.com/commitloop/engine/internal/trigger"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// Server bundles every dependency the HTTP surface needs.
type Server struct {
	Commitments *commitment.Service
	Queries     *query.Service
	Connections *connection.Service
	Triggers    *trigger.Service
	Credits     *credit.Meter
	Webhooks    *live.Handler

	JWTSecret          []byte
	WebhookSecret      []byte
	AllowedOrigins     []string
	RateLimiter        *api.RateLimiter
	Health             *api.HealthService
	Logger             *slog.Logger
}

// Router builds the chi.Router for the HTTP surface.
func (s *Server) Router() chi.Router {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(api.RequestID)
	r.Use(toChiMiddleware(api.Logger(s.Logger)))
	r.Use(toChiMiddleware(api.CORS(s.AllowedOrigins)))
	r.Use(toChiMiddleware(api.SecureHeaders))
	if s.RateLimiter != nil {
		r.Use(toChiMiddleware(s.RateLimiter.Limit))
	}

	r.Get("/livez", api.LivenessHandler())
	if s.Health != nil {
		r.Get("/readyz", s.Health.ReadinessHandler())
	}

	r.Post("/webhook", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(toChiMiddleware(Auth(s.JWTSecret)))

		r.Get("/check-connection", s.handleCheckConnection)
		r.Post("/disconnect", s.handleDisconnect)
		r.Get("/sync-status", s.handleSyncStatus)

		r.Patch("/commitments/{id}/complete", s.handleCompleteCommitment)
		r.Delete("/commitments/{id}", s.handleDeleteCommitment)
		r.Get("/commitments/completed", s.handleListCompleted)
		r.Get("/commitments/deleted", s.handleListDeleted)
		r.Post("/commitments/restore/{id}", s.handleRestoreCommitment)
	})

	return r
}

// toChiMiddleware adapts an api.Middleware (func(http.Handler) http.Handler,
// the teacher's own signature) to chi's identical func.Middleware type.
func toChiMiddleware(mw api.Middleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next)
	}
}
