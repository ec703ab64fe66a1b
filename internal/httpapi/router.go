// Package httpapi is the JSON-over-HTTP surface of accesshubd.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/MrEthical07/accesshub/middleware"
)

// Options configures [NewRouter].
type Options struct {
	Logger *slog.Logger
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
	// TrustProxy takes the client IP from X-Forwarded-For.
	TrustProxy bool
	Timeout    time.Duration
}

// NewRouter creates a chi router with every auth route registered.
func NewRouter(engine Engine, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(Recovery(logger))
	r.Use(chimw.RequestID)
	r.Use(chimw.Timeout(timeout))
	r.Use(RequestLogging(logger))
	r.Use(middleware.ClientMeta(opts.TrustProxy))

	h := NewHandler(engine, logger)

	r.Get("/healthz", h.Healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.Post("/verify-otp", h.VerifyOTP)
		r.Post("/resend-otp", h.ResendOTP)
		r.Post("/refresh", h.Refresh)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(engine))

			r.Post("/logout-all", h.LogoutAll)
			r.Get("/whoami", h.WhoAmI)
			r.Get("/security-events", h.SecurityEvents)
		})
	})

	return r
}
