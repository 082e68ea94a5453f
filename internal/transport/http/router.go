package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/phone-verify/internal/config"
	"github.com/phone-verify/internal/domain"
	"github.com/phone-verify/internal/transport/http/handler"
	appmiddleware "github.com/phone-verify/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10 per client IP on code request/confirm.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	healthH := handler.NewHealthHandler()
	verifyH := handler.NewVerificationHandler(deps.Verification)
	sessionH := handler.NewSessionHandler(deps.Verification)
	adminH := handler.NewAdminHandler(deps.Verification)

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)

		r.With(sensitiveRL.Limit).Post("/verifications", verifyH.Request)
		r.With(sensitiveRL.Limit).Post("/verifications/confirm", verifyH.Confirm)

		if deps.Tokens != nil {
			r.With(appmiddleware.Auth(deps.Tokens)).Get("/sessions/validate", sessionH.Validate)
		}

		if cfg.AdminEnabled {
			r.Route("/admin", func(r chi.Router) {
				if deps.Tokens != nil {
					r.Use(appmiddleware.Auth(deps.Tokens))
					r.Use(appmiddleware.RequireRole(domain.RoleAdmin))
				}
				r.Delete("/verifications", adminH.Clear)
				r.Get("/delivery-status", adminH.DeliveryStatus)
			})
		}
	})

	return r
}
