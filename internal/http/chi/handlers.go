package chi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/marcelsud/plop-reliability/ratelimit"
	"github.com/marcelsud/plop-reliability/store"
	"github.com/marcelsud/plop-reliability/webhook"
	"github.com/rs/zerolog"
)

// RateLimitRecorder counts limiter decisions, typically for metrics
type RateLimitRecorder interface {
	RecordRateLimit(ctx context.Context, outcome string)
}

// Dependencies are the services exposed over HTTP
type Dependencies struct {
	Deliveries webhook.UseCase
	Limiter    ratelimit.Limiter
	Store      *store.Handle
	/* Metrics serves /metrics when set */
	Metrics  http.Handler
	Recorder RateLimitRecorder
	/* AdminToken guards the operator routes; empty rejects every operator call */
	AdminToken string
	Logger     zerolog.Logger
}

// Handlers sets up the scheduler-facing API routes
func Handlers(ctx context.Context, deps Dependencies) *chi.Mux {
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.Noop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(httplog.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", getHealth(deps.Store).ServeHTTP)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(deps.Limiter, deps.Recorder))

		// Delivery attempt issued by the task scheduler
		r.Post("/tasks/webhook-delivery", postDeliveryTask(deps.Deliveries).ServeHTTP)

		// Operator endpoints
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin(deps.AdminToken))
			r.Get("/ratelimit/{identifier}", getRateLimit(deps.Limiter).ServeHTTP)
			r.Delete("/ratelimit/{identifier}", deleteRateLimit(deps.Limiter).ServeHTTP)
		})
	})

	return r
}
